package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"shellpilot/internal/channel"
	"shellpilot/internal/encryption/tlscert"
	"shellpilot/internal/execution"
	"shellpilot/internal/logger"
	"shellpilot/internal/planner"
	"shellpilot/internal/risk"
	"shellpilot/internal/routes"

	"golang.org/x/sync/errgroup"
)

var ErrNoAccessTokens = errors.New("no access tokens: set CHANNEL_TOKENS or create one with 'shellpilot token create'")

const (
	readHeaderTimeout = 10 * time.Second
	serverCertExpiry  = 365 * 24 * time.Hour
	rootCAExpiry      = 10 * 365 * 24 * time.Hour
)

// Serve runs the HTTP and channel server until ctx is cancelled, then shuts
// down: channel connections first, then in-flight executions, then cached
// SSH connections.
func (s *Service) Serve(ctx context.Context, stdOut io.Writer, errOut io.Writer) error {
	cfg := s.Config

	if err := cfg.Validate(); err != nil {
		return err
	}

	storedTokens, err := s.AccessTokensRepository.Count(ctx)

	if err != nil {
		return err
	}

	if len(cfg.ChannelTokens) == 0 && storedTokens == 0 {
		return ErrNoAccessTokens
	}

	serversRepository, err := s.serversRepository()

	if err != nil {
		return err
	}

	policy, err := risk.LoadPolicy(cfg.RiskPolicyPath)

	if err != nil {
		return err
	}

	classifier, err := risk.NewPolicyClassifier(policy)

	if err != nil {
		return err
	}

	threshold, err := risk.ParseLevel(cfg.ConfirmationThreshold)

	if err != nil {
		return err
	}

	sshManager, err := s.sshManager()

	if err != nil {
		return err
	}

	plannerClient := planner.NewClient(cfg.PlannerURL, cfg.PlannerAPIKey, cfg.PlannerTimeout)

	orchestrator := execution.New(
		plannerClient,
		classifier,
		sshManager,
		serversRepository,
		execution.WithAnalyzer(plannerClient),
		execution.WithRecorder(s.HistoryRepository),
		execution.WithConfirmationThreshold(threshold),
	)

	verifier := channel.Verifiers{
		channel.NewStaticTokens(cfg.ChannelTokens),
		s.AccessTokensRepository,
	}

	chatHandler := channel.NewHandler(orchestrator, verifier,
		channel.WithRateLimit(cfg.EventRate, cfg.EventBurst),
		channel.WithAllowedOrigin(cfg.AllowedOrigin),
	)

	server := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: routes.Router(routes.Dependencies{
			Channel:       chatHandler,
			Verifier:      verifier,
			Servers:       serversRepository,
			History:       s.HistoryRepository,
			Sessions:      sshManager,
			Executions:    orchestrator,
			AllowedOrigin: cfg.AllowedOrigin,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	if cfg.TLSEnabled {
		bundle, created, err := tlscert.LoadOrGenerate(cfg.TLSDir, tlscert.Options{
			CommonName: cfg.TLSHosts[0],
			Expiry:     serverCertExpiry,
			Hosts:      cfg.TLSHosts,
		}, rootCAExpiry)

		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificates: %w", err)
		}

		if created {
			logger.Info("Generated TLS certificates for %v in %s", cfg.TLSHosts, cfg.TLSDir)
		}

		if server.TLSConfig, err = bundle.ServerTLSConfig(); err != nil {
			return err
		}

		fmt.Fprintf(stdOut, "🔒 TLS enabled, clients must trust %s (SHELLPILOT_CA_CERT)\n", tlscert.CAFile(cfg.TLSDir))
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(stdOut, "🚀 shellpilot is listening on %s (chat channel: /ws/chat)\n", cfg.ListenAddr)

		var err error

		if server.TLSConfig != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info("Shutting down, waiting up to %s for in-flight executions", cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// hijacked websocket connections are not closed by server.Shutdown
		chatHandler.CloseAll()

		var shutdownErr error

		if err := server.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("http server: %w", err))
		}

		if err := orchestrator.Shutdown(shutdownCtx); err != nil {
			shutdownErr = errors.Join(shutdownErr, fmt.Errorf("executions: %w", err))
		}

		sshManager.DisconnectAll()

		return shutdownErr
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(errOut, "❌ Server stopped with error: %v\n", err)
		return err
	}

	fmt.Fprintf(stdOut, "👋 shellpilot stopped\n")

	return nil
}
