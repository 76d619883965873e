package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/epunch/internal/api"
)

const shutdownTimeout = 10 * time.Second

var (
	serveAddr string
	tokenTTL  time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the punch clock over HTTP",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a bearer token for the acting user",
	Long: `Print an HS256 bearer token for the acting user, signed with server.jwt_secret.
Meant for local testing of the HTTP API.`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr from config.json)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	serveCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.user()
	if err != nil {
		return err
	}
	token, err := api.IssueToken(a.cfg.Server.JWTSecret, user, a.svc.Now(), tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.Server.Addr
	}
	if a.cfg.Server.JWTSecret == "" {
		a.log.Warn("no jwt_secret configured, trusting the X-User-ID header")
	}

	srv := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(a.svc, api.Options{
			JWTSecret:      a.cfg.Server.JWTSecret,
			AllowedOrigins: a.cfg.Server.AllowedOrigins,
			LogOutput:      cmd.OutOrStdout(),
			Version:        version,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fmt.Fprintf(cmd.ErrOrStderr(), "Listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down", zap.String("addr", addr))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
