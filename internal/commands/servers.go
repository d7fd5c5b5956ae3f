package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"shellpilot/internal/servers"
)

func (s *Service) ServerAdd(ctx context.Context, input servers.NewServer, stdOut io.Writer, errOut io.Writer) {
	repository, err := s.serversRepository()

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return
	}

	server, err := repository.Create(ctx, input)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Failed to add server: %v\n", err)
		return
	}

	fmt.Fprintf(stdOut, "✅ Server '%s' added (%s@%s:%d, id %s)\n", server.Name, server.Username, server.Host, server.Port, server.ID)
	fmt.Fprintf(stdOut, "💡 Run 'shellpilot server test %s' to verify the connection.\n", server.Name)
}

func (s *Service) ServerList(ctx context.Context, stdOut io.Writer, errOut io.Writer) {
	list, err := s.serverLookup().List(ctx)

	if err != nil {
		fmt.Fprintf(errOut, "Error getting servers: %v\n", err)
		return
	}

	if len(list) == 0 {
		fmt.Fprintf(stdOut, "No servers are registered.\nUse 'shellpilot server add' command to register a server.\n")
		return
	}

	w := tabwriter.NewWriter(stdOut, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "NAME\tADDRESS\tAUTH\tSTATUS\tLAST CONNECTION\tTAGS\tID\n")

	for _, server := range list {
		fmt.Fprintf(w, "%s\t%s@%s:%d\t%s\t%s\t%s\t%s\t%s\n",
			server.Name,
			server.Username, server.Host, server.Port,
			server.AuthType,
			server.Status,
			formatTime(server.LastConnection),
			strings.Join(server.Tags, ","),
			server.ID,
		)
	}

	_ = w.Flush()
}

// ServerTest opens a throwaway connection with the stored credentials and
// records the outcome as the server status.
func (s *Service) ServerTest(ctx context.Context, nameOrID string, stdOut io.Writer, errOut io.Writer) bool {
	repository, err := s.serversRepository()

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return false
	}

	server, err := repository.GetByName(ctx, nameOrID)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return false
	}

	creds, err := repository.Credentials(ctx, server.ID)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Failed to load credentials: %v\n", err)
		return false
	}

	manager, err := s.sshManager()

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return false
	}

	fmt.Fprintf(stdOut, "📡 SSH Connection\n")
	fmt.Fprintf(stdOut, "   Server: %s@%s:%d\n", creds.Username, creds.Host, creds.Port)

	result := manager.TestConnection(ctx, creds, s.Config.SSHTestTimeout)

	status := servers.StatusConnected

	if result.Success {
		fmt.Fprintf(stdOut, "   Status: ✅ Connected\n")
		fmt.Fprintf(stdOut, "   Hostname: %s\n", result.Hostname)
	} else {
		status = servers.StatusError
		fmt.Fprintf(stdOut, "   Status: ❌ Failed\n")
		fmt.Fprintf(stdOut, "   Error:  %s\n", result.Message)
	}

	if err := repository.UpdateStatus(ctx, server.ID, status); err != nil {
		fmt.Fprintf(errOut, "Failed to update server status: %v\n", err)
	}

	return result.Success
}

func (s *Service) ServerRemove(ctx context.Context, nameOrID string, stdOut io.Writer, errOut io.Writer) {
	repository := s.serverLookup()

	server, err := repository.GetByName(ctx, nameOrID)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Error: %v\n", err)
		return
	}

	if err := repository.Delete(ctx, server.ID); err != nil {
		fmt.Fprintf(errOut, "❌ Failed to remove server: %v\n", err)
		return
	}

	fmt.Fprintf(stdOut, "🗑️  Server '%s' removed\n", server.Name)
}
