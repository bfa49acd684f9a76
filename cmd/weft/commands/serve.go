package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/internal/config"
	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/internal/server"
	"github.com/weft-ai/weft/pkg/types"
)

var (
	servePort int
	serveDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the weft HTTP server",
	Long: `Start weft as a server exposing the session API and the /event
SSE stream. Agent capability profiles hot-reload when the config file
set via WEFT_CONFIG changes.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on")
	serveCmd.Flags().StringVar(&serveDir, "directory", "", "Working directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := GetWorkDir(serveDir)
	if err != nil {
		return err
	}

	app, err := buildApp(workDir)
	if err != nil {
		return err
	}
	defer app.Close()

	log := logging.For("serve")

	// hot reload of agent profiles while the server runs
	if cfgPath := os.Getenv("WEFT_CONFIG"); cfgPath != "" {
		watcher, err := capability.NewWatcher(app.caps, cfgPath, func(string) (map[string]types.AgentConfig, error) {
			cfg, err := config.Load(workDir)
			if err != nil {
				return nil, err
			}
			return cfg.Agent, nil
		})
		if err != nil {
			log.Warn().Err(err).Msg("capability hot reload disabled")
		} else {
			defer watcher.Close()
		}
	}

	serverConfig := server.DefaultConfig()
	if app.config.Server.Port != 0 {
		serverConfig.Port = app.config.Server.Port
	}
	if servePort != 0 {
		serverConfig.Port = servePort
	}
	serverConfig.EnableCORS = serverConfig.EnableCORS || app.config.Server.EnableCORS

	srv := server.New(serverConfig, app.sessions, app.bus)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
