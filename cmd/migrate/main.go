// migrate applies the embedded account and session schema. Run "migrate up" before the
// server when SESSION_STORE is postgres or redis.
package main

import (
	"fmt"
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"authcore/backend/internal/config"
	"authcore/backend/internal/db/migrate"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the authcore database schema",
		SilenceUsage: true,
	}
	cmd.AddCommand(newDirectionCmd("up", "Apply all pending migrations"))
	cmd.AddCommand(newDirectionCmd("down", "Roll back all migrations"))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newDirectionCmd(direction, short string) *cobra.Command {
	return &cobra.Command{
		Use:   direction,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := config.LoadDatabaseURL()
			if err != nil {
				return err
			}
			if err := migrate.Run(dsn, direction); err != nil {
				return oops.Code("MIGRATION_FAILED").With("direction", direction).Wrap(err)
			}
			cmd.Printf("migrations %s: done\n", direction)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := config.LoadDatabaseURL()
			if err != nil {
				return err
			}
			v, dirty, err := migrate.Version(dsn)
			if err != nil {
				return oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
			}
			cmd.Printf("version %d", v)
			if dirty {
				cmd.Print(" (dirty)")
			}
			cmd.Println()
			return nil
		},
	}
}
