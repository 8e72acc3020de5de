package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ziadkadry99/handoff/internal/audit"
	"github.com/ziadkadry99/handoff/internal/bots"
	"github.com/ziadkadry99/handoff/internal/dashboard"
	"github.com/ziadkadry99/handoff/internal/escalation"
	"github.com/ziadkadry99/handoff/internal/knowledge"
	"github.com/ziadkadry99/handoff/internal/notifications"
	"github.com/ziadkadry99/handoff/internal/server"
	"github.com/ziadkadry99/handoff/internal/sessions"
)

var serverPort int

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API and supervisor dashboard",
	Long: `Starts the handoff server with the knowledge base and help request REST API,
call session tracking, the notification log and the live supervisor dashboard.
The timeout sweep runs in the background for as long as the server is up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Server.Port = serverPort
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx, cfg, true)
		if err != nil {
			return err
		}
		defer a.Close()

		srv := server.New(server.Config{
			Port:     cfg.Server.Port,
			AllowAll: cfg.Server.AllowAllOrigins,
		}, a.db)
		if err := registerAllRoutes(srv, a); err != nil {
			return err
		}

		count, err := a.knowledge.Count(ctx)
		if err != nil {
			return fmt.Errorf("counting knowledge entries: %w", err)
		}
		fmt.Fprintf(os.Stderr, "handoff server v%s starting on port %d\n", Version, cfg.Server.Port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", cfg.Database.Path)
		fmt.Fprintf(os.Stderr, "  Index: %s\n", cfg.Index.Backend)
		fmt.Fprintf(os.Stderr, "  Knowledge entries: %d\n", count)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			a.refreshIndex(gctx)
			return nil
		})
		g.Go(func() error {
			a.coordinator.Start(gctx)
			<-gctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			a.coordinator.Stop()
			a.hub.Close()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// registerAllRoutes mounts every feature's routes on the server router.
func registerAllRoutes(srv *server.Server, a *app) error {
	r := srv.Router()

	audit.RegisterRoutes(r, a.audit)
	knowledge.RegisterRoutes(r, a.knowledge, a.audit)
	escalation.RegisterRoutes(r, a.coordinator)
	sessions.RegisterRoutes(r, a.sessions)
	notifications.RegisterRoutes(r, a.notifications)
	dashboard.New(a.hub, a.coordinator).RegisterRoutes(r)

	// Supervisor chat commands
	var slackHandler *bots.SlackHandler
	var teamsHandler *bots.TeamsHandler
	processor := bots.NewProcessor(a.coordinator)
	if secret := a.cfg.Bots.SlackSigningSecret; secret != "" {
		var replier bots.Replier
		if a.slack != nil {
			replier = a.slack
		}
		slackHandler = bots.NewSlackHandler(processor, secret, replier)
	}
	if secret := a.cfg.Bots.TeamsSecret; secret != "" {
		th, err := bots.NewTeamsHandler(processor, secret)
		if err != nil {
			return fmt.Errorf("bots.teams_secret: %w", err)
		}
		teamsHandler = th
	}
	bots.RegisterRoutes(r, slackHandler, teamsHandler)
	return nil
}

func init() {
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serverCmd)
}
