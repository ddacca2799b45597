// Root command and shared wiring for the satchel CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/satchel/internal/engine"
	"github.com/mesh-intelligence/satchel/internal/paths"
	"github.com/mesh-intelligence/satchel/internal/processor"
	"github.com/mesh-intelligence/satchel/internal/queue"
	"github.com/mesh-intelligence/satchel/internal/registry"
	"github.com/mesh-intelligence/satchel/internal/sqlite"
	"github.com/mesh-intelligence/satchel/pkg/types"
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagJSON      bool
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:     "satchel",
	Short:   "Satchel is an offline-first sync client for a remote note service",
	Version: version,
	Long: `Satchel keeps a local replica of a user's notes consistent with a
remote note service across unreliable connectivity. Writes queue while
offline, temporary ids are remapped once the server assigns real ones, and
full or incremental sync reconciles local and remote state.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.satchel-db)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "enable debug logging")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(queueCmd)
	rootCmd.AddCommand(statusCmd)
}

// app bundles the wired core components behind one CLI invocation.
type app struct {
	cfg       types.Config
	store     *sqlite.Store
	queue     *queue.Queue
	registry  *registry.Registry
	processor *processor.Processor
	engine    *engine.Engine
}

// buildApp loads config, attaches the store, and wires the core. The caller
// must defer close().
func buildApp() (*app, error) {
	configDir, err := paths.ResolveConfigDir(flagConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}

	v, err := loadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	cfg, err := coreConfig(v)
	if err != nil {
		return nil, err
	}

	logger := newLogger()

	store := sqlite.NewStore()
	if err := store.Attach(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("attach store: %w", err)
	}

	reg, err := registry.Load(store, nil)
	if err != nil {
		_ = store.Detach()
		return nil, fmt.Errorf("load registry: %w", err)
	}

	remote := newRemote(v.GetString(cfgKeyRemoteEndpoint))
	q := queue.New(store, cfg, nil, nil)
	proc := processor.New(q, reg, remote, cfg, nil, nil, logger)
	eng := engine.New(store, q, proc, remote, cfg, nil, nil, logger)

	return &app{
		cfg:       cfg,
		store:     store,
		queue:     q,
		registry:  reg,
		processor: proc,
		engine:    eng,
	}, nil
}

func (a *app) close() error {
	return a.store.Detach()
}

// coreConfig maps the loaded configuration onto the core's tunables.
func coreConfig(v configValues) (types.Config, error) {
	dataDir, err := paths.ResolveDataDir(flagDataDir, v.GetString(cfgKeyDataDir))
	if err != nil {
		return types.Config{}, fmt.Errorf("resolve data dir: %w", err)
	}

	cfg := types.Config{
		DataDir:        dataDir,
		MaxConcurrency: v.GetInt(cfgKeyMaxConcurrency),
		MaxRetry:       v.GetInt(cfgKeyMaxRetry),
		BaseRetryDelay: v.GetDuration(cfgKeyBaseRetryDelay),
		DrainTimeout:   v.GetDuration(cfgKeyDrainTimeout),
		SyncInterval:   v.GetDuration(cfgKeySyncInterval),
	}.WithDefaults()

	if err := cfg.Validate(); err != nil {
		return types.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the CLI's slog logger; --verbose lowers the level to debug.
func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
