package planner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shellpilot/internal/events"
	"shellpilot/internal/logger"
	"shellpilot/internal/ssh"
)

const (
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 512
)

// Client talks to the external planning service. It implements the planner
// and analyzer collaborators of the execution orchestrator.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL string, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func postJSON[RequestType any, ResponseType any](ctx context.Context, c *Client, endpoint string, request RequestType) (ResponseType, error) {
	var response ResponseType

	requestBody, err := json.Marshal(request)

	if err != nil {
		return response, fmt.Errorf("%w: %v", ErrFailedToMarshalRequest, err)
	}

	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(requestBody))

	if err != nil {
		return response, fmt.Errorf("%w: %v", ErrFailedToExecuteRequest, err)
	}

	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)

	if err != nil {
		return response, fmt.Errorf("%w: %v", ErrFailedToExecuteRequest, err)
	}

	defer httpResponse.Body.Close()

	responseBody, err := io.ReadAll(httpResponse.Body)

	if err != nil {
		return response, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode >= 300 {
		return response, fmt.Errorf("%w: %s %s: %s", ErrUnexpectedStatus, endpoint, httpResponse.Status, errorMessage(responseBody))
	}

	if err := json.Unmarshal(responseBody, &response); err != nil {
		return response, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	return response, nil
}

func errorMessage(body []byte) string {
	var dto errorResponseDTO

	if err := json.Unmarshal(body, &dto); err == nil {
		if dto.Message != "" {
			return dto.Message
		}

		if dto.Error != "" {
			return dto.Error
		}
	}

	message := strings.TrimSpace(string(body))

	if len(message) > maxErrorBody {
		message = message[:maxErrorBody] + "..."
	}

	return message
}

func (c *Client) Plan(ctx context.Context, prompt string, pctx Context) (*events.Plan, error) {
	plan, err := postJSON[planRequestDTO, events.Plan](ctx, c, "/plan", planRequestDTO{Prompt: prompt, Context: pctx})

	if err != nil {
		logger.Error("Planner failed to plan for server %s: %v", pctx.ServerID, err)
		return nil, err
	}

	if plan.Objective == "" && len(plan.Steps) == 0 {
		return nil, ErrEmptyPlan
	}

	return &plan, nil
}

func (c *Client) Commands(ctx context.Context, plan *events.Plan, pctx Context) (*CommandSet, error) {
	set, err := postJSON[commandsRequestDTO, CommandSet](ctx, c, "/commands", commandsRequestDTO{Plan: *plan, Context: pctx})

	if err != nil {
		logger.Error("Planner failed to generate commands for server %s: %v", pctx.ServerID, err)
		return nil, err
	}

	return &set, nil
}

func (c *Client) Analyze(ctx context.Context, prompt string, results []ssh.CommandResult) (*events.Analysis, error) {
	analysis, err := postJSON[analyzeRequestDTO, events.Analysis](ctx, c, "/analyze", analyzeRequestDTO{Prompt: prompt, Results: results})

	if err != nil {
		logger.Error("Planner failed to analyze results: %v", err)
		return nil, err
	}

	return &analysis, nil
}
