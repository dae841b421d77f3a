package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"campus-events/pkg/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer a.close()
			return printVersion(cmd, a)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			defer a.close()
			return printVersion(cmd, a)
		},
	})

	return cmd
}

func printVersion(cmd *cobra.Command, a *app) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	version, dirty, err := database.MigrationVersion(sqlDB)
	if err != nil {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	if dirty {
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version %d\n", version)
	return nil
}
