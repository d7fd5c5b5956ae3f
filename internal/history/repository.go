package history

import (
	"context"
	"errors"

	"shellpilot/internal/execution"

	"gorm.io/gorm"
)

const DefaultListLimit = 20

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func newRecord(snapshot execution.Snapshot) *ExecutionRecord {
	record := &ExecutionRecord{
		ID:                   snapshot.ID,
		ServerID:             snapshot.ServerID,
		Prompt:               snapshot.Prompt,
		DryRun:               snapshot.DryRun,
		Status:               snapshot.Status,
		Plan:                 snapshot.Plan,
		Commands:             snapshot.Commands,
		Explanation:          snapshot.Explanation,
		Warnings:             snapshot.Warnings,
		RiskLevel:            snapshot.RiskLevel.String(),
		RequiresConfirmation: snapshot.RequiresConfirmation,
		Output:               snapshot.Output,
		Analysis:             snapshot.Analysis,
		Error:                snapshot.Error,
		CreatedAt:            snapshot.CreatedAt,
		FinishedAt:           snapshot.FinishedAt,
	}

	if record.Commands == nil {
		record.Commands = []string{}
	}

	if record.Warnings == nil {
		record.Warnings = []string{}
	}

	for i, result := range snapshot.Results {
		record.Results = append(record.Results, CommandRecord{
			ExecutionID: snapshot.ID,
			Position:    i,
			Command:     result.Command,
			Stdout:      result.Stdout,
			Stderr:      result.Stderr,
			ExitCode:    result.ExitCode,
			Success:     result.Success,
		})
	}

	return record
}

// Record stores a finished execution together with its command results.
func (r *Repository) Record(ctx context.Context, snapshot execution.Snapshot) error {
	if !snapshot.Status.Terminal() {
		return ErrNotTerminal
	}

	return r.db.WithContext(ctx).Create(newRecord(snapshot)).Error
}

func (r *Repository) Get(ctx context.Context, id string) (*ExecutionRecord, error) {
	var record ExecutionRecord

	err := r.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Where("id = ?", id).
		First(&record).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrExecutionNotFound
		}

		return nil, err
	}

	return &record, nil
}

// List returns the most recent executions, newest first. An empty serverID
// lists executions of every server; a non-positive limit uses
// DefaultListLimit.
func (r *Repository) List(ctx context.Context, serverID string, limit int) ([]*ExecutionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := r.db.WithContext(ctx).
		Preload("Results", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order("created_at desc").
		Limit(limit)

	if serverID != "" {
		query = query.Where("server_id = ?", serverID)
	}

	var records []*ExecutionRecord

	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	return records, nil
}

var _ execution.Recorder = (*Repository)(nil)
