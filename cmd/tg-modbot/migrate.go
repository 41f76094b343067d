package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tg-modbot/internal/config"
	"tg-modbot/internal/storage"
)

func newMigrateCmd() *cobra.Command {
	var action string
	var yes bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create, reset or inspect the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			db, err := storage.Open(&cfg.Database, cfg.Logger.Level)
			if err != nil {
				return fmt.Errorf("failed to open database: %w", err)
			}
			store := storage.NewStore(db)
			out := cmd.OutOrStdout()

			switch action {
			case "migrate":
				fmt.Fprintln(out, "Migrating database...")
				if err := store.AutoMigrate(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Migration completed successfully")
			case "reset":
				if !yes && !confirm(cmd, "WARNING: This will delete all data! Are you sure? (y/N): ") {
					return fmt.Errorf("operation cancelled by user")
				}
				if err := store.Reset(); err != nil {
					return err
				}
				fmt.Fprintln(out, "Database reset completed successfully")
			case "status":
				st, err := store.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("status check failed: %w", err)
				}
				fmt.Fprintf(out, "Database driver: %s\n", cfg.Database.Driver)
				fmt.Fprintf(out, "Chat configs: %d\n", st.Chats)
				fmt.Fprintf(out, "Open polls:   %d\n", st.Polls)
				fmt.Fprintf(out, "Pending jobs: %d\n", st.Jobs)
			default:
				return fmt.Errorf("unknown action: %s", action)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "migrate", "Action to perform (migrate, reset, status)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the reset confirmation")
	return cmd
}

func confirm(cmd *cobra.Command, prompt string) bool {
	fmt.Fprint(cmd.OutOrStdout(), prompt)
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	answer := strings.TrimSpace(line)
	return answer == "y" || answer == "Y"
}
