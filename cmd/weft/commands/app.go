package commands

import (
	"fmt"

	"github.com/weft-ai/weft/internal/capability"
	"github.com/weft-ai/weft/internal/config"
	"github.com/weft-ai/weft/internal/event"
	"github.com/weft-ai/weft/internal/logging"
	"github.com/weft-ai/weft/internal/provider"
	"github.com/weft-ai/weft/internal/run"
	"github.com/weft-ai/weft/internal/session"
	"github.com/weft-ai/weft/internal/storage"
	"github.com/weft-ai/weft/internal/tool"
	"github.com/weft-ai/weft/pkg/types"
)

// DefaultModel is used when neither config nor flags pick one.
const DefaultModel = "openrouter/auto"

// app bundles the wired application components.
type app struct {
	config   *types.Config
	bus      *event.Bus
	caps     *capability.Source
	sessions *session.Service
}

// buildApp loads configuration and wires every component together.
func buildApp(workDir string) (*app, error) {
	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logging.DefaultConfig()
	if cfg.LogLevel != "" {
		logCfg.Level = logging.ParseLevel(cfg.LogLevel)
	}
	logging.Init(logCfg)

	paths := config.GetPaths()
	if err := paths.EnsurePaths(); err != nil {
		return nil, fmt.Errorf("ensure data directories: %w", err)
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = paths.StoragePath()
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	bus := event.NewBus()
	caps := capability.NewSource(cfg.Agent, bus)
	registry := tool.DefaultRegistry()

	sessions := session.NewService(session.Deps{
		Streamer: session.ProviderStreamer{Client: provider.NewClient(cfg.Provider)},
		Tools:    registry,
		Adapter:  tool.NewAdapter(registry),
		Caps:     caps,
		Store:    storage.NewStore(dataDir),
		Bus:      bus,
		Run: run.Config{
			Model:       model,
			MaxTokens:   cfg.Provider.MaxTokens,
			Temperature: cfg.Provider.Temperature,
		},
	})

	return &app{
		config:   cfg,
		bus:      bus,
		caps:     caps,
		sessions: sessions,
	}, nil
}

// Close cancels active runs and shuts the bus down.
func (a *app) Close() {
	a.sessions.Close()
	a.bus.Close()
}
