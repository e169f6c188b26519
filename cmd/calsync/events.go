package main

import (
	"fmt"
	"strings"
	"time"

	"calsync/engine"
	"calsync/internal/utils"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// newEventsCmd creates the events command with all subcommands. Every
// mutation lands in the local store and the outbox; the remote provider is
// never touched directly, so all of these work offline.
func newEventsCmd(a *App) *cobra.Command {
	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Manage local calendar events",
		Long: `List and edit events in the local cache.

Changes queue in the durable outbox and push to the remote provider on the
next sync, so every subcommand works offline.

Examples:
  calsync events                                        # List events
  calsync events add "Standup" --start 2026-09-01T09:00:00Z --end 2026-09-01T09:15:00Z
  calsync events edit 4f1c2a --location "Room 2"
  calsync events rm 4f1c2a`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEventsList(a, cmd)
		},
	}

	eventsCmd.PersistentFlags().StringP("provider", "p", "", "provider name (defaults to the only enabled provider)")

	eventsCmd.AddCommand(newEventsAddCmd(a))
	eventsCmd.AddCommand(newEventsShowCmd(a))
	eventsCmd.AddCommand(newEventsEditCmd(a))
	eventsCmd.AddCommand(newEventsRmCmd(a))

	return eventsCmd
}

func runEventsList(a *App, cmd *cobra.Command) error {
	if err := a.init(); err != nil {
		return err
	}
	provider, err := a.resolveProvider(cmd)
	if err != nil {
		return err
	}

	events, err := a.store.ListEvents(provider)
	if err != nil {
		return fmt.Errorf("failed to list events: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No events in the local cache. Run 'calsync sync' to pull from the provider.")
		return nil
	}

	dateFormat := a.config.GetDateFormat()
	for _, ev := range events {
		synced := ""
		if ev.ExternalID == "" {
			synced = dimStyle.Render(" (not yet synced)")
		}
		fmt.Printf("%s  %s  %s%s\n",
			dimStyle.Render(shortID(ev.ID)),
			ev.StartTime.Format(dateFormat+" 15:04"),
			titleStyle.Render(ev.Title),
			synced)
		if ev.Location != "" {
			fmt.Printf("          %s\n", dimStyle.Render(ev.Location))
		}
	}
	return nil
}

func newEventsAddCmd(a *App) *cobra.Command {
	var startStr, endStr, description, location string
	var attendees []string

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create an event in the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			provider, err := a.resolveProvider(cmd)
			if err != nil {
				return err
			}

			start, err := utils.ParseTimeFlag(startStr)
			if err != nil {
				return err
			}
			end, err := utils.ParseTimeFlag(endStr)
			if err != nil {
				return err
			}
			if start == nil {
				return &utils.ErrorWithSuggestion{
					Err:        fmt.Errorf("start time is required"),
					Suggestion: "Pass --start, e.g. --start 2026-09-01T09:00:00Z",
				}
			}
			if end == nil {
				e := start.Add(time.Hour)
				end = &e
			}
			if err := utils.ValidateEventTimes(*start, *end); err != nil {
				return err
			}

			ev := &engine.CalendarEvent{
				ID:                uuid.NewString(),
				Title:             args[0],
				StartTime:         *start,
				EndTime:           *end,
				Description:       description,
				Location:          location,
				Attendees:         attendees,
				LastModifiedLocal: time.Now(),
			}

			if err := a.store.SaveLocalEdit(provider, ev); err != nil {
				return fmt.Errorf("failed to save event: %w", err)
			}
			if err := a.enqueue(provider, ev, engine.OpCreate); err != nil {
				return err
			}

			fmt.Printf("✓ Created %q (%s), queued for sync\n", ev.Title, shortID(ev.ID))
			a.maybeBackgroundSync()
			return nil
		},
	}

	cmd.Flags().StringVar(&startStr, "start", "", "start time (RFC3339 or yyyy-mm-ddThh:mm:ss)")
	cmd.Flags().StringVar(&endStr, "end", "", "end time, defaults to start + 1h")
	cmd.Flags().StringVarP(&description, "description", "d", "", "event description")
	cmd.Flags().StringVarP(&location, "location", "l", "", "event location")
	cmd.Flags().StringArrayVar(&attendees, "attendee", nil, "attendee email, repeatable")
	return cmd
}

func newEventsShowCmd(a *App) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <event-id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			provider, err := a.resolveProvider(cmd)
			if err != nil {
				return err
			}
			ev, err := a.findEvent(provider, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				return utils.OutputJSON(ev)
			}

			fmt.Printf("%s\n", titleStyle.Render(ev.Title))
			fmt.Printf("  ID: %s\n", ev.ID)
			if ev.ExternalID != "" {
				fmt.Printf("  Remote ID: %s\n", ev.ExternalID)
			}
			fmt.Printf("  Start: %s\n", ev.StartTime.Format(time.RFC3339))
			fmt.Printf("  End: %s\n", ev.EndTime.Format(time.RFC3339))
			if ev.Location != "" {
				fmt.Printf("  Location: %s\n", ev.Location)
			}
			if ev.Description != "" {
				fmt.Printf("  Description: %s\n", ev.Description)
			}
			if len(ev.Attendees) > 0 {
				fmt.Printf("  Attendees: %s\n", strings.Join(ev.Attendees, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the event as JSON")
	return cmd
}

func newEventsEditCmd(a *App) *cobra.Command {
	var title, startStr, endStr, description, location string
	var attendees []string

	cmd := &cobra.Command{
		Use:   "edit <event-id>",
		Short: "Edit an event in the local cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			provider, err := a.resolveProvider(cmd)
			if err != nil {
				return err
			}
			ev, err := a.findEvent(provider, args[0])
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("title") {
				ev.Title = title
			}
			if cmd.Flags().Changed("description") {
				ev.Description = description
			}
			if cmd.Flags().Changed("location") {
				ev.Location = location
			}
			if cmd.Flags().Changed("attendee") {
				ev.Attendees = attendees
			}
			if startStr != "" {
				start, err := utils.ParseTimeFlag(startStr)
				if err != nil {
					return err
				}
				ev.StartTime = *start
			}
			if endStr != "" {
				end, err := utils.ParseTimeFlag(endStr)
				if err != nil {
					return err
				}
				ev.EndTime = *end
			}
			if err := utils.ValidateEventTimes(ev.StartTime, ev.EndTime); err != nil {
				return err
			}
			ev.LastModifiedLocal = time.Now()

			if err := a.store.SaveLocalEdit(provider, ev); err != nil {
				return fmt.Errorf("failed to save event: %w", err)
			}
			if err := a.enqueue(provider, ev, engine.OpUpdate); err != nil {
				return err
			}

			fmt.Printf("✓ Updated %q, queued for sync\n", ev.Title)
			a.maybeBackgroundSync()
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "new title")
	cmd.Flags().StringVar(&startStr, "start", "", "new start time")
	cmd.Flags().StringVar(&endStr, "end", "", "new end time")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	cmd.Flags().StringVarP(&location, "location", "l", "", "new location")
	cmd.Flags().StringArrayVar(&attendees, "attendee", nil, "replace attendees, repeatable")
	return cmd
}

func newEventsRmCmd(a *App) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rm <event-id>",
		Short: "Delete an event",
		Long: `Remove an event from the local cache and queue the remote deletion.

If the event was never pushed, the queued create and delete cancel out and
nothing reaches the provider.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.init(); err != nil {
				return err
			}
			provider, err := a.resolveProvider(cmd)
			if err != nil {
				return err
			}
			ev, err := a.findEvent(provider, args[0])
			if err != nil {
				return err
			}

			if !force && !utils.PromptYesNo(fmt.Sprintf("Delete %q?", ev.Title)) {
				return nil
			}

			// The delete payload carries the last known copy so the
			// external id survives the local row going away.
			if err := a.enqueue(provider, ev, engine.OpDelete); err != nil {
				return err
			}
			if err := a.store.DeleteEvent(ev.ID); err != nil {
				return fmt.Errorf("failed to delete event: %w", err)
			}

			fmt.Printf("✓ Deleted %q, remote deletion queued\n", ev.Title)
			a.maybeBackgroundSync()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

// resolveProvider picks the provider from --provider, falling back to the
// single enabled provider when there is exactly one.
func (a *App) resolveProvider(cmd *cobra.Command) (string, error) {
	name, _ := cmd.Flags().GetString("provider")
	if name != "" {
		if _, err := a.config.GetProvider(name); err != nil {
			return "", err
		}
		return name, nil
	}

	enabled := a.config.GetEnabledProviders()
	if len(enabled) == 1 {
		for only := range enabled {
			return only, nil
		}
	}
	names := make([]string, 0, len(enabled))
	for n := range enabled {
		names = append(names, n)
	}
	return "", &utils.ErrorWithSuggestion{
		Err:        fmt.Errorf("provider is ambiguous"),
		Suggestion: "Pass --provider with one of: " + strings.Join(names, ", "),
	}
}

// findEvent looks up an event by full id or unique prefix.
func (a *App) findEvent(provider, idOrPrefix string) (*engine.CalendarEvent, error) {
	events, err := a.store.ListEvents(provider)
	if err != nil {
		return nil, err
	}

	var match *engine.CalendarEvent
	for i := range events {
		if events[i].ID == idOrPrefix {
			return &events[i], nil
		}
		if strings.HasPrefix(events[i].ID, idOrPrefix) {
			if match != nil {
				return nil, fmt.Errorf("event id %q is ambiguous", idOrPrefix)
			}
			match = &events[i]
		}
	}
	if match == nil {
		return nil, utils.ErrEventNotFound(idOrPrefix)
	}
	return match, nil
}

func (a *App) enqueue(provider string, ev *engine.CalendarEvent, opType engine.OpType) error {
	op := &engine.Operation{
		Provider: provider,
		RecordID: ev.ID,
		Type:     opType,
		Payload:  ev,
	}
	if err := a.store.Enqueue(op); err != nil {
		return fmt.Errorf("failed to queue %s: %w", opType, err)
	}
	return nil
}

// maybeBackgroundSync kicks off a detached push after a local mutation when
// auto-sync is on. Failures only log; the change is already durable.
func (a *App) maybeBackgroundSync() {
	if !a.config.AutoSync {
		return
	}
	if err := spawnBackgroundSync(); err != nil {
		utils.GetLogger().Debug("background sync not started: %v", err)
	}
}
