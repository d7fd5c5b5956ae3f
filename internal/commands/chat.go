package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"shellpilot/internal/channel"
	"shellpilot/internal/chatlog"
	"shellpilot/internal/encryption/tlscert"
	"shellpilot/internal/events"
	"shellpilot/internal/execution"
)

const (
	dialTimeout       = 10 * time.Second
	cancelGracePeriod = 5 * time.Second
)

var (
	ErrChatAborted      = errors.New("execution did not complete")
	ErrChatDisconnected = errors.New("connection closed before the execution finished")
)

type ChatOptions struct {
	URL         string
	Token       string
	CACertPath  string
	Server      string
	Prompt      string
	DryRun      bool
	AutoConfirm bool
}

// Chat sends one prompt to a running server and follows the execution to
// its end, asking on stdIn whenever confirmation is required.
func (s *Service) Chat(ctx context.Context, opts ChatOptions, stdIn io.Reader, stdOut io.Writer, errOut io.Writer) error {
	serverID := opts.Server

	if s.DB != nil {
		if server, err := s.serverLookup().GetByName(ctx, opts.Server); err == nil {
			serverID = server.ID
		}
	}

	var dialOpts []channel.DialOption

	if opts.CACertPath != "" {
		caPEM, err := os.ReadFile(opts.CACertPath)

		if err != nil {
			fmt.Fprintf(errOut, "❌ Failed to read CA certificate: %v\n", err)
			return err
		}

		tlsConfig, err := tlscert.ClientTLSConfig(caPEM)

		if err != nil {
			fmt.Fprintf(errOut, "❌ Error: %v\n", err)
			return err
		}

		dialOpts = append(dialOpts, channel.WithTLSConfig(tlsConfig))
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	client, err := channel.Dial(dialCtx, opts.URL, opts.Token, dialOpts...)
	cancel()

	if err != nil {
		fmt.Fprintf(errOut, "❌ Failed to connect to %s: %v\n", opts.URL, err)
		return err
	}

	defer client.Close()

	log := chatlog.New()
	printMessage(stdOut, log.AddUser(opts.Prompt))

	if err := client.Execute(serverID, opts.Prompt, opts.DryRun); err != nil {
		return err
	}

	answers := bufio.NewReader(stdIn)
	executionID := ""
	interrupted := ctx.Done()

	var graceTimer <-chan time.Time

	for {
		select {
		case <-interrupted:
			interrupted = nil

			if executionID == "" {
				return ctx.Err()
			}

			printMessage(stdOut, log.AddSystem("🚫 Execution cancelled by user."))

			if err := client.Cancel(executionID); err != nil {
				return err
			}

			graceTimer = time.After(cancelGracePeriod)
		case <-graceTimer:
			return ErrChatAborted
		case event, ok := <-client.Events():
			if !ok {
				if err := client.Err(); err != nil {
					fmt.Fprintf(errOut, "❌ %v: %v\n", ErrChatDisconnected, err)
				}
				return ErrChatDisconnected
			}

			if id := events.ExecutionID(event); id != "" && executionID == "" {
				executionID = id
			}

			message, err := log.Apply(event)

			if err != nil {
				fmt.Fprintf(errOut, "Skipping event: %v\n", err)
				continue
			}

			printMessage(stdOut, message)

			done, err := chatStep(event, executionID, opts.AutoConfirm, client, answers, stdOut)

			if done || err != nil {
				return err
			}
		}
	}
}

// chatStep reacts to one event and reports whether the execution is over.
func chatStep(event events.Event, executionID string, autoConfirm bool, client *channel.Client, answers *bufio.Reader, stdOut io.Writer) (bool, error) {
	switch ev := event.(type) {
	case events.Commands:
		if !ev.RequiresConfirmation {
			return false, nil
		}

		if autoConfirm || ask(answers, stdOut, "Run these commands? [y/N] ") {
			return false, client.Confirm(ev.ExecutionID)
		}

		return false, client.Cancel(ev.ExecutionID)
	case events.Complete:
		if !ev.Success {
			return true, ErrChatAborted
		}
		return true, nil
	case events.Blocked:
		return true, ErrChatAborted
	case events.Status:
		switch execution.Status(ev.Status) {
		case execution.StatusCancelled, execution.StatusFailed:
			return true, ErrChatAborted
		}
	case events.Error:
		if ev.ExecutionID == "" || ev.ExecutionID == executionID {
			return true, ErrChatAborted
		}
	}

	return false, nil
}

func ask(answers *bufio.Reader, stdOut io.Writer, prompt string) bool {
	fmt.Fprint(stdOut, prompt)

	line, err := answers.ReadString('\n')

	if err != nil && line == "" {
		fmt.Fprintln(stdOut)
		return false
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}

	return false
}

func printMessage(w io.Writer, message chatlog.Message) {
	switch message.Type {
	case chatlog.MessageTypeUser:
		fmt.Fprintf(w, "> %s\n", message.Content)
	case chatlog.MessageTypeOutput, chatlog.MessageTypeCommand:
		fmt.Fprintf(w, "%s\n", strings.TrimRight(message.Content, "\n"))
	default:
		fmt.Fprintf(w, "%s\n\n", message.Content)
	}
}
