package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"calsync/engine/sqlite"
	syncengine "calsync/engine/sync"
	"calsync/internal/utils"

	"github.com/spf13/cobra"
)

func newDaemonCmd(a *App) *cobra.Command {
	var autoSync bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the sync scheduler in the foreground",
		Long: `Run calsync as a long-lived process.

The daemon probes connectivity, syncs on the configured interval, and kicks
off a catch-up sync whenever the connection comes back after an outage.
Stop it with Ctrl-C or SIGTERM.

With --auto-sync=false only explicit triggers run (reconnects and intervals
are ignored); the flag overrides the auto_sync config setting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			if len(a.coordinator.Providers()) == 0 {
				return fmt.Errorf("no providers available, nothing to sync")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := syncengine.NewScheduler(a.coordinator, a.monitor)
			enabled := a.config.AutoSync
			if cmd.Flags().Changed("auto-sync") {
				enabled = autoSync
			}
			if !enabled {
				scheduler.DisableAutoSync()
			}

			a.monitor.Start(ctx)
			scheduler.Start(ctx)

			utils.GetLogger().Info("daemon started (pid %d)", os.Getpid())
			scheduler.Trigger()

			<-ctx.Done()

			utils.GetLogger().Info("daemon shutting down")
			scheduler.Stop()
			a.monitor.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoSync, "auto-sync", true, "Sync on intervals and reconnects, not just explicit triggers")
	return cmd
}

// newBackgroundSyncCmd creates a hidden command that drains the outbox in a
// detached process, letting the interactive CLI return immediately after a
// local edit.
func newBackgroundSyncCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:    "_internal_background_sync",
		Hidden: true,
		Short:  "Internal command for background sync (do not call directly)",
		RunE: func(cmd *cobra.Command, args []string) error {
			bgLogger, err := utils.NewBackgroundLogger()
			if err == nil {
				defer bgLogger.Close()
				bgLogger.Printf("background sync started (pid %d)", os.Getpid())
			}

			if err := a.init(); err != nil {
				if bgLogger != nil {
					bgLogger.Printf("init failed: %v", err)
				}
				return nil // silent: the queue stays durable
			}

			// Let the parent process exit before grabbing the database.
			time.Sleep(100 * time.Millisecond)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			if status := a.monitor.CheckNow(ctx); !status.Online {
				if bgLogger != nil {
					bgLogger.Printf("offline (%s), leaving operations queued", status.Reason)
				}
				return nil
			}

			results, err := a.coordinator.SyncAll(ctx)
			if bgLogger != nil {
				if errors.Is(err, sqlite.ErrLeaseHeld) {
					bgLogger.Printf("another sync is running, leaving operations queued")
				} else if err != nil {
					bgLogger.Printf("sync error: %v", err)
				}
				for _, r := range results {
					bgLogger.Printf("%s: created %d updated %d deleted %d pulled %d conflicts %d errors %d",
						r.Provider, r.EventsCreated, r.EventsUpdated, r.EventsDeleted,
						r.EventsPulled, r.ConflictsFound, len(r.Errors))
				}
			}
			return nil
		},
	}
}

// spawnBackgroundSync starts a detached process running the hidden background
// sync command. The caller returns immediately.
func spawnBackgroundSync() error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	executable, err = filepath.EvalSymlinks(executable)
	if err != nil {
		return err
	}

	cmd := exec.Command(executable, "_internal_background_sync")
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil

	return cmd.Start()
}
