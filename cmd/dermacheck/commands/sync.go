// ABOUTME: Sync commands for Charm cloud synchronization
// ABOUTME: Pushes and pulls consultation snapshots through Charm KV
package commands

import (
	"fmt"

	"github.com/harper/dermacheck/internal/app"
	"github.com/harper/dermacheck/internal/charm"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command group
func NewSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Manage Charm cloud synchronization",
		Long: `Manage synchronization with Charm cloud.

Consultations live in local SQLite. push copies session snapshots to
a Charm KV store keyed by your SSH identity, and pull restores them on
another device linked to the same Charm account.`,
	}

	cmd.AddCommand(newSyncStatusCmd())
	cmd.AddCommand(newSyncNowCmd())
	cmd.AddCommand(newSyncPushCmd())
	cmd.AddCommand(newSyncPullCmd())

	return cmd
}

// openCharm connects to Charm with the configured host and database
func openCharm(a *app.App) (*charm.Client, error) {
	client, err := charm.NewClient(&charm.Config{
		Host:     a.Config.CharmHost,
		DBName:   a.Config.CharmDBName,
		AutoSync: a.Config.AutoSync,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Charm: %w", err)
	}
	return client, nil
}

func newSyncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show sync status and connection info",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := openCharm(a)
			if err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			id, err := client.ID()
			if err != nil {
				fmt.Fprintln(out, "Status: Not connected")
				fmt.Fprintln(out, "Check your SSH keys and DERMACHECK_CHARM_HOST")
				return nil
			}
			ids, err := client.ListSessionIDs()
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "Status: Connected")
			fmt.Fprintf(out, "User ID: %s\n", id)
			fmt.Fprintf(out, "Host: %s\n", a.Config.CharmHost)
			fmt.Fprintf(out, "Synced consultations: %d\n", len(ids))
			return nil
		},
	}
}

func newSyncNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "now",
		Short: "Force immediate sync with Charm cloud",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := openCharm(a)
			if err != nil {
				return err
			}
			defer client.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Syncing...")
			if err := client.Sync(); err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sync complete")
			return nil
		},
	}
}

func newSyncPushCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "push [session-id...]",
		Short: "Copy local consultations to Charm",
		Long:  `Copy local consultations to Charm. All consultations are pushed when no IDs are given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ids := args
			if len(ids) == 0 {
				records, err := a.Service.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, rec := range records {
					ids = append(ids, rec.SessionID)
				}
			}

			client, err := openCharm(a)
			if err != nil {
				return err
			}
			defer client.Close()

			for _, id := range ids {
				rec, facts, err := a.Store.LoadSession(id)
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("unknown session %s", id)
				}
				if err := client.PushSession(charm.NewSessionPayload(*rec, facts)); err != nil {
					return err
				}
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Pushed %d consultation(s)\n", len(ids))
			}
			return nil
		},
	}
}

func newSyncPullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull [session-id...]",
		Short: "Restore consultations from Charm",
		Long: `Restore consultations from Charm into local storage. All synced
consultations are pulled when no IDs are given. Each one must restore
cleanly against the current knowledge base.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			client, err := openCharm(a)
			if err != nil {
				return err
			}
			defer client.Close()

			ids := args
			if len(ids) == 0 {
				if ids, err = client.ListSessionIDs(); err != nil {
					return err
				}
			}

			for _, id := range ids {
				payload, err := client.PullSession(id)
				if err != nil {
					return err
				}
				if err := a.Service.Import(cmd.Context(), payload.Record, payload.Facts); err != nil {
					return err
				}
			}

			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "Pulled %d consultation(s)\n", len(ids))
			}
			return nil
		},
	}
}
