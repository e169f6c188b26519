package main

import (
	"errors"
	"fmt"
	"time"

	"calsync/engine/sqlite"
	syncengine "calsync/engine/sync"
	"calsync/internal/utils"

	"github.com/spf13/cobra"
)

// newSyncCmd creates the sync command with all subcommands
func newSyncCmd(a *App) *cobra.Command {
	var fullSync bool
	var background bool

	syncCmd := &cobra.Command{
		Use:   "sync [provider]",
		Short: "Synchronize local changes with remote providers",
		Long: `Run a sync cycle against the configured providers.

Each cycle pushes queued local changes first, then pulls remote changes and
reconciles them against the last synced state. Conflicts are resolved by the
provider's configured strategy; unresolvable ones are deferred for
'calsync conflicts resolve'.

Examples:
  calsync sync                  # Sync all enabled providers
  calsync sync gcal             # Sync one provider
  calsync sync --full           # Ignore sync cursors, re-pull everything
  calsync sync --background     # Queue and return, sync in a detached process

  calsync sync status           # Show connectivity, queue and conflict counts
  calsync sync queue            # Show pending operations
  calsync sync queue retry      # Requeue dead-lettered operations`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			if background {
				return spawnBackgroundSync()
			}

			ctx := cmd.Context()
			status := a.monitor.CheckNow(ctx)
			if !status.Online {
				fmt.Printf("⚠ Offline: %s\n", status.Reason)
				fmt.Println("Working from the local cache. Queued changes sync when connectivity returns.")
				return nil
			}

			// A daemon or background sync may hold the lease; their cycle
			// picks up whatever this one would have pushed.
			finish := func(err error) error {
				if errors.Is(err, sqlite.ErrLeaseHeld) {
					fmt.Println("Another sync is already running; it will push the queued changes.")
					return nil
				}
				return err
			}

			fmt.Println("Syncing...")
			switch {
			case len(args) == 1:
				result, err := a.coordinator.SyncProvider(ctx, args[0])
				if result != nil {
					printSyncResult(result)
				}
				return finish(err)
			case fullSync:
				results, err := a.coordinator.FullSync(ctx)
				printSyncResults(results)
				return finish(err)
			default:
				results, err := a.coordinator.SyncAll(ctx)
				printSyncResults(results)
				return finish(err)
			}
		},
	}

	syncCmd.ValidArgsFunction = providerCompletion(a)
	syncCmd.Flags().BoolVar(&fullSync, "full", false, "Ignore sync cursors and re-pull all remote events")
	syncCmd.Flags().BoolVar(&background, "background", false, "Run the sync in a detached background process")

	syncCmd.AddCommand(newSyncStatusCmd(a))
	syncCmd.AddCommand(newSyncQueueCmd(a))
	syncCmd.AddCommand(newSyncClearDataCmd(a))

	return syncCmd
}

// newSyncClearDataCmd creates the 'sync clear-data' command
func newSyncClearDataCmd(a *App) *cobra.Command {
	var force bool
	var deadLetters bool

	cmd := &cobra.Command{
		Use:   "clear-data",
		Short: "Wipe the local offline cache",
		Long: `Delete all locally cached events, sync snapshots, provider cursors and
pending queue operations.

Queued changes that were never pushed are lost. The next sync re-pulls
everything from the remote providers. Dead-lettered operations are kept for
inspection unless --dead-letters is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			if !force {
				if !utils.PromptYesNo("Delete all offline data? Unpushed local changes will be lost.") {
					fmt.Println("Aborted")
					return nil
				}
			}

			if err := a.store.ClearOfflineData(deadLetters); err != nil {
				return fmt.Errorf("failed to clear offline data: %w", err)
			}
			fmt.Println("Offline data cleared. The next sync re-pulls all remote events.")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&deadLetters, "dead-letters", false, "Also discard dead-lettered operations")
	return cmd
}

// newSyncStatusCmd creates the 'sync status' command
func newSyncStatusCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status",
		Long: `Display current synchronization status including:
- Online/offline state and probe round-trip time
- Pending outbox operations and dead letters
- Open conflicts and unsynced events
- Recent sync results`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			a.monitor.CheckNow(cmd.Context())
			snapshot, err := syncengine.BuildSnapshot(a.store, a.monitor, nil)
			if err != nil {
				return fmt.Errorf("failed to build status snapshot: %w", err)
			}

			fmt.Println("\n=== Sync Status ===")
			if snapshot.IsOnline {
				fmt.Printf("Connection: Online (%s", snapshot.Network.ConnectionType)
				if snapshot.Network.RoundTripTime > 0 {
					fmt.Printf(", rtt %s", snapshot.Network.RoundTripTime.Round(time.Millisecond))
				}
				fmt.Println(")")
				if snapshot.Network.SlowConnection {
					fmt.Println("Warning: connection is slow, large syncs may take a while")
				}
			} else {
				fmt.Printf("Connection: Offline (%s)\n", snapshot.Network.Reason)
			}

			fmt.Printf("Local events: %d\n", snapshot.TotalEvents)
			fmt.Printf("Unsynced events: %d\n", snapshot.UnsyncedEvents)
			fmt.Printf("Pending operations: %d\n", snapshot.PendingOperations)
			if snapshot.DeadLetters > 0 {
				fmt.Printf("Dead letters: %d (see 'calsync sync queue')\n", snapshot.DeadLetters)
			}
			if snapshot.OpenConflicts > 0 {
				fmt.Printf("Open conflicts: %d (see 'calsync conflicts')\n", snapshot.OpenConflicts)
			}
			fmt.Printf("Local store: %s\n", formatBytes(snapshot.StorageSizeBytes))

			if snapshot.LastSyncAt.IsZero() {
				fmt.Println("Last sync: Never")
			} else {
				fmt.Printf("Last sync: %s ago\n", formatDuration(time.Since(snapshot.LastSyncAt)))
			}

			if len(snapshot.RecentResults) > 0 {
				fmt.Println("\nRecent syncs:")
				for _, r := range snapshot.RecentResults {
					marker := "✓"
					if r.Failed() {
						marker = "✗"
					}
					fmt.Printf("  %s %s: +%d ~%d -%d pulled %d conflicts %d (%s)\n",
						marker, r.Provider, r.EventsCreated, r.EventsUpdated, r.EventsDeleted,
						r.EventsPulled, r.ConflictsFound, r.Duration().Round(time.Millisecond))
				}
			}

			fmt.Println()
			return nil
		},
	}
}

// newSyncQueueCmd creates the 'sync queue' command
func newSyncQueueCmd(a *App) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the durable outbox",
		Long:  `Display and manage queued operations waiting to be pushed to remote providers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			total := 0
			for _, name := range a.providerNames() {
				ops, err := a.store.PeekBatch(name, 1000)
				if err != nil {
					return fmt.Errorf("failed to read outbox for %s: %w", name, err)
				}
				dead, err := a.store.ListDeadLetters(name)
				if err != nil {
					return fmt.Errorf("failed to read dead letters for %s: %w", name, err)
				}
				total += len(ops) + len(dead)

				if len(ops) > 0 {
					fmt.Printf("\nPending for %s (%d):\n\n", name, len(ops))
					for _, op := range ops {
						printOperation(&op)
					}
				}
				if len(dead) > 0 {
					fmt.Printf("\nDead letters for %s (%d):\n\n", name, len(dead))
					for _, op := range dead {
						printOperation(&op)
					}
				}
			}

			if total == 0 {
				fmt.Println("No pending operations")
			}
			return nil
		},
	}

	queueCmd.AddCommand(newSyncQueueClearCmd(a))
	queueCmd.AddCommand(newSyncQueueRetryCmd(a))

	return queueCmd
}

// newSyncQueueClearCmd creates the 'sync queue clear' command
func newSyncQueueClearCmd(a *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard dead-lettered operations",
		Long: `Remove operations that exhausted their retries from the queue.

The discarded local changes are NOT pushed to the remote provider. Pending
(non-failed) operations are never touched; they push on the next sync.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			cleared := 0
			for _, name := range a.providerNames() {
				dead, err := a.store.ListDeadLetters(name)
				if err != nil {
					return fmt.Errorf("failed to read dead letters for %s: %w", name, err)
				}
				if len(dead) == 0 {
					continue
				}

				if !force {
					prompt := fmt.Sprintf("Discard %d failed operation(s) for %s? Their local changes will not sync.", len(dead), name)
					if !utils.PromptYesNo(prompt) {
						continue
					}
				}

				for _, op := range dead {
					if err := a.store.RemoveDeadLetter(op.ID); err != nil {
						fmt.Printf("Warning: failed to remove operation %s: %v\n", op.ID, err)
						continue
					}
					cleared++
				}
			}

			fmt.Printf("Cleared %d operations\n", cleared)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

// newSyncQueueRetryCmd creates the 'sync queue retry' command
func newSyncQueueRetryCmd(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Requeue dead-lettered operations",
		Long:  `Move dead-lettered operations back into the pending queue with a fresh attempt budget.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}

			retried := 0
			for _, name := range a.providerNames() {
				n, err := a.store.RequeueAll(name)
				if err != nil {
					return fmt.Errorf("failed to requeue operations for %s: %w", name, err)
				}
				retried += n
			}

			fmt.Printf("Requeued %d operations for retry\n", retried)
			return nil
		},
	}
}
