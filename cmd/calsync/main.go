package main

import (
	"log"
	"sync"

	"calsync/engine"
	"calsync/engine/sqlite"
	syncengine "calsync/engine/sync"
	"calsync/internal/config"
	"calsync/internal/policy"
	"calsync/internal/utils"

	"github.com/spf13/cobra"

	_ "calsync/engine/gcal" // registers the "gcal" provider type
	_ "modernc.org/sqlite"
)

// App wires the config, local store, network monitor and sync coordinator
// together. It is initialized lazily so commands that never touch the store
// (credentials, completion) do not open the database or prompt for a config.
type App struct {
	once sync.Once
	err  error

	config      *config.Config
	store       *sqlite.Store
	monitor     *syncengine.Monitor
	coordinator *syncengine.Coordinator
}

func (a *App) init() error {
	a.once.Do(func() {
		a.err = a.build()
	})
	return a.err
}

func (a *App) build() error {
	cfg := config.GetConfig()
	a.config = cfg

	dbPath, err := cfg.GetDatabasePath()
	if err != nil {
		return err
	}
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	a.store = store

	policyDir, err := cfg.GetPolicyDir()
	if err != nil {
		return err
	}
	policies, err := policy.LoadDir(policyDir)
	if err != nil {
		return err
	}

	coordinator := syncengine.NewCoordinator(store, syncengine.NewResolver(policies))
	coordinator.SetBatchSize(cfg.BatchSize)
	coordinator.SetMaxAttempts(cfg.MaxAttempts)

	for name, providerConfig := range cfg.GetEnabledProviders() {
		adapter, err := engine.NewAdapter(providerConfig)
		if err != nil {
			utils.GetLogger().Warn("provider %s unavailable: %v", name, err)
			continue
		}
		coordinator.AddProvider(providerConfig, adapter)
	}

	a.coordinator = coordinator
	a.monitor = syncengine.NewMonitor(cfg.ProbeURL, cfg.ProbeInterval())
	return nil
}

// Close releases the store. Safe to call before init.
func (a *App) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
}

// providerNames returns the names of providers registered on the coordinator.
func (a *App) providerNames() []string {
	var names []string
	for _, p := range a.coordinator.Providers() {
		names = append(names, p.Name)
	}
	return names
}

func main() {
	app := &App{}
	defer app.Close()

	var configPath string
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "calsync",
		Short: "Offline-first calendar synchronization",
		Long: `calsync keeps a local calendar cache in sync with remote providers.

Edits made offline queue in a durable outbox and replay once connectivity
returns. Conflicting edits are detected against the last synced state and
resolved by the configured strategy (local_wins, remote_wins, merge, defer).`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				config.SetCustomConfigPath(configPath)
			}
			utils.SetVerboseMode(verbose)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file or directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newSyncCmd(app))
	rootCmd.AddCommand(newEventsCmd(app))
	rootCmd.AddCommand(newConflictsCmd(app))
	rootCmd.AddCommand(newCredentialsCmd())
	rootCmd.AddCommand(newDaemonCmd(app))
	rootCmd.AddCommand(newBackgroundSyncCmd(app))

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
