package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

func (s *Service) TokenCreate(ctx context.Context, name string, stdOut io.Writer, errOut io.Writer) {
	accessToken, plainText, err := s.AccessTokensRepository.Create(ctx, name)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Failed to create access token: %v\n", err)
		return
	}

	fmt.Fprintf(stdOut, "✅ Access token '%s' created:\n\n%s\n\n", accessToken.Name, plainText)
	fmt.Fprintf(stdOut, "⚠️  Store it now, it cannot be shown again.\n")
}

func (s *Service) TokenList(ctx context.Context, stdOut io.Writer, errOut io.Writer) {
	tokens, err := s.AccessTokensRepository.List(ctx)

	if err != nil {
		fmt.Fprintf(errOut, "Error getting access tokens: %v\n", err)
		return
	}

	if len(tokens) == 0 {
		fmt.Fprintf(stdOut, "No access tokens found.\nUse 'shellpilot token create' command to create one.\n")
		return
	}

	w := tabwriter.NewWriter(stdOut, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "NAME\tCREATED\tLAST USED\tID\n")

	for _, accessToken := range tokens {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			accessToken.Name,
			accessToken.CreatedAt.Local().Format(time.DateTime),
			formatTime(accessToken.LastUsedAt),
			accessToken.ID,
		)
	}

	_ = w.Flush()
}

func (s *Service) TokenRevoke(ctx context.Context, nameOrID string, stdOut io.Writer, errOut io.Writer) {
	accessToken, err := s.AccessTokensRepository.Revoke(ctx, nameOrID)

	if err != nil {
		fmt.Fprintf(errOut, "❌ Failed to revoke access token: %v\n", err)
		return
	}

	fmt.Fprintf(stdOut, "🗑️  Access token '%s' revoked\n", accessToken.Name)
}
