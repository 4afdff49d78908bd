// Package main serves the in-memory Ratel API.
//
// ratel-api is the backend ratelctl and the integration tests talk to when
// the production API is not available. Every route is served from memory;
// state is lost on restart.
//
// Configuration:
//   - RATEL_CONFIG: YAML config file (optional)
//   - RATEL_LISTEN: Listen address (default: ":3000")
//   - RATEL_LOG_LEVEL: debug, info, warn or error (default: "info")
//   - RATEL_SEED: Load demo spaces, posts and notifications (default: "true")
//
// Example usage:
//
//	RATEL_LISTEN=:3000 ./ratel-api
//	curl localhost:3000/v3/spaces
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/ratelsync/internal/apiserver"
	"github.com/dreamware/ratelsync/internal/config"
	"github.com/dreamware/ratelsync/internal/resource"
)

func main() {
	cfg, err := config.Load(os.Getenv("RATEL_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ratel-api: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.NewLogger(false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ratel-api: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, getenv("RATEL_SEED", "true") == "true", nil); err != nil {
		logger.Fatal("ratel-api failed", zap.Error(err))
	}
}

// run serves until ctx ends, then shuts down gracefully. The bound address
// is sent on ready once the listener is open.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger, seed bool, ready chan<- string) error {
	srv := apiserver.New(
		apiserver.WithLogger(logger.Named("api")),
		apiserver.WithCurrentUser(cfg.Server.CurrentUser),
	)
	if seed {
		seedDemo(srv)
	}

	ln, err := net.Listen("tcp", cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("ratel-api listening", zap.String("addr", ln.Addr().String()))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	if ready != nil {
		ready <- ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.GetShutdownTimeout())
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("ratel-api stopped", zap.Int("requests", srv.TotalHits()))
	return nil
}

// seedDemo loads a small data set so a fresh server has something to show.
func seedDemo(srv *apiserver.Server) {
	welcome := srv.AddSpace(resource.Space{
		Pk:             "sp_welcome",
		Title:          "Welcome to Ratel",
		Description:    "Introduce yourself",
		AuthorUsername: "ratel",
	})
	srv.AddSpace(resource.Space{
		Pk:             "sp_policy",
		Title:          "Digital asset policy review",
		Status:         "draft",
		AuthorUsername: "ratel",
	})
	srv.SetPrerequisite("sp_policy", "verify-email", "accept-terms")

	srv.AddPost(resource.Post{
		Title:          "Hello, Ratel",
		HTMLContents:   "<p>First post</p>",
		AuthorUsername: "ratel",
		SpacePk:        welcome.Pk,
	})
	srv.AddNotification(resource.Notification{Kind: "welcome", Message: "Welcome to Ratel"})
	srv.AddNotification(resource.Notification{Kind: "space", Message: "A new space was created"})
	srv.AddUser(resource.User{Username: "ratel", Nickname: "Ratel"})
	srv.AddAttributeCode(resource.AttributeCode{Code: "KR-VERIFIED", Description: "Verified Korean resident"})
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
