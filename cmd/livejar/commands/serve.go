package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/livejar/internal/api"
	"github.com/bryanchriswhite/livejar/internal/config"
	"github.com/bryanchriswhite/livejar/internal/control"
	"github.com/bryanchriswhite/livejar/internal/events"
	"github.com/bryanchriswhite/livejar/internal/logger"
	"github.com/bryanchriswhite/livejar/internal/metrics"
	"github.com/bryanchriswhite/livejar/internal/session"
	"github.com/bryanchriswhite/livejar/internal/settings"
	"github.com/bryanchriswhite/livejar/internal/streams"
	"github.com/bryanchriswhite/livejar/internal/window"
)

const (
	loopQueue       = 256
	closeTimeout    = 3 * time.Second
	shutdownTimeout = 5 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LiveJar core",
	Long: `Start the LiveJar core: open the main window and every stream window that
was open at last exit, then serve the command API.

The server provides a REST API, per-window websocket push channels and
optionally an MCP endpoint for agents.`,
	Example: `  # Start on the default port (8080)
  livejar serve

  # Start with an MCP endpoint
  livejar serve --mcp-port 8081

  # Use another X display and settings file
  livejar serve --display :1 --settings /tmp/settings.yaml

  # Start with debug logging
  livejar serve --log-level debug --log-pretty`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "API server port")
	serveCmd.Flags().Int("mcp-port", 0, "MCP server port (0 disables)")
	serveCmd.Flags().String("display", "", "X display (default is $DISPLAY)")

	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("mcp_port", serveCmd.Flags().Lookup("mcp-port"))
	viper.BindPFlag("display", serveCmd.Flags().Lookup("display"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	loop := control.New(loopQueue)
	loop.Start()
	defer loop.Stop()
	post := func(fn func()) { loop.Post(fn) }

	// Settings document
	store, err := config.Open(SettingsPath())
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	store.SetWriteObserver(metrics.ObserveStoreWrite)
	repo := settings.New(store)

	watcher := config.NewWatcher(store, post, config.WithErrorHandler(func(err error) {
		log.Warn().Err(err).Msg("Settings file changed but could not be reloaded")
	}))
	if err := watcher.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to watch settings file, external edits need a restart")
	}
	defer watcher.Stop()

	// Windows
	bus := events.New()
	log.Info().Str("display", viper.GetString("display")).Msg("Connecting to X11 server...")
	host, err := window.NewX11Host(viper.GetString("display"), bus)
	if err != nil {
		return fmt.Errorf("failed to connect to X11: %w", err)
	}
	defer host.Close()

	registry := window.NewRegistry()
	mgr := window.NewManager(repo, registry, host, bus, post)
	mgr.Start()
	defer mgr.Stop()

	if err := metrics.RegisterOpenWindows(registry.Len); err != nil {
		log.Warn().Err(err).Msg("Failed to register open windows gauge")
	}

	// Command surfaces
	svc := streams.New(repo, mgr)
	dispatcher := api.NewDispatcher(api.Core{
		Loop:     loop,
		Settings: repo,
		Windows:  mgr,
		Streams:  svc,
	})
	hub := api.NewHub(loop, dispatcher, mgr, bus)
	hub.Start()
	defer hub.Stop()

	server := api.NewServer(dispatcher, hub)
	errChan := make(chan error, 2)
	go func() {
		if err := server.Start(viper.GetInt("port")); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	var mcpServer *api.MCPServer
	if port := viper.GetInt("mcp_port"); port > 0 {
		mcpServer = api.NewMCPServer(dispatcher)
		go func() {
			if err := mcpServer.Serve(port); err != nil {
				errChan <- fmt.Errorf("mcp server error: %w", err)
			}
		}()
	}

	// Quitting must be set before any window goes away
	quit := func() {
		mgr.SetQuitting()
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := loop.Do(ctx, mgr.CloseAll); err != nil {
			log.Warn().Err(err).Msg("Failed to close windows")
			return
		}
		select {
		case <-mgr.MainClosed():
		case <-ctx.Done():
			log.Warn().Msg("Timed out waiting for the main window to close")
		}
	}

	shutdownAnnounced := make(chan struct{}, 1)
	if sw, err := session.NewShutdownWatcher(func() {
		quit()
		select {
		case shutdownAnnounced <- struct{}{}:
		default:
		}
	}); err != nil {
		log.Warn().Err(err).Msg("System bus unavailable, system shutdown is handled as a plain signal")
	} else if err := sw.Start(); err != nil {
		log.Warn().Err(err).Msg("Failed to watch for system shutdown")
		sw.Stop()
	} else {
		defer sw.Stop()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Startup runs on the loop like everything else
	err = loop.Do(cmd.Context(), func() {
		if err := mgr.OpenMainWindow(); err != nil {
			log.Error().Err(err).Msg("Failed to open main window")
		}
		if err := svc.OpenAll(); err != nil {
			log.Warn().Err(err).Msg("Failed to restore windows")
		}
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("port", viper.GetInt("port")).
		Int("mcp_port", viper.GetInt("mcp_port")).
		Str("settings", store.Path()).
		Msg("LiveJar is running")

	// Wait for interrupt signal, the main window or a system shutdown
	var runErr error
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")
		quit()
	case <-shutdownAnnounced:
		log.Info().Msg("Shutting down for system shutdown...")
	case <-mgr.MainClosed():
		log.Info().Msg("Main window closed, shutting down...")
		quit()
	case runErr = <-errChan:
		log.Error().Err(runErr).Msg("Shutting down after server failure")
		quit()
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("HTTP server shutdown")
	}
	if mcpServer != nil {
		if err := mcpServer.Shutdown(ctx); err != nil {
			log.Warn().Err(err).Msg("MCP server shutdown")
		}
	}
	return runErr
}
