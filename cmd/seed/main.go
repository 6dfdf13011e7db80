// seed creates the development account alice@example.com through the session manager so
// local clients have someone to log in as. Idempotent: an existing account is left alone.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	accountrepo "authcore/backend/internal/account/repository"
	"authcore/backend/internal/config"
	"authcore/backend/internal/db"
	"authcore/backend/internal/device"
	"authcore/backend/internal/logging"
	"authcore/backend/internal/security"
	sessionrepo "authcore/backend/internal/session/repository"
	"authcore/backend/internal/session/service"
)

const (
	defaultEmail    = "alice@example.com"
	defaultName     = "Alice"
	defaultPassword = "correct horse battery staple"
	seedTimeout     = 30 * time.Second
)

type seedFlags struct {
	email    string
	name     string
	password string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &seedFlags{}
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the development account",
		Long: `Creates a development account in the configured account store.
This command is idempotent - it will not create duplicates if run multiple times.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Env == "production" {
				return oops.Code("SEED_FORBIDDEN").Errorf("refusing to seed when APP_ENV=production")
			}
			logging.SetDefault(logging.Options{Service: "authcore-seed", Format: "text", Level: cfg.LogLevel})

			ctx, cancel := context.WithTimeout(cmd.Context(), seedTimeout)
			defer cancel()

			pool, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return oops.Code("DB_CONNECT_FAILED").Wrap(err)
			}
			defer pool.Close()

			mgr := service.NewManager(service.Deps{
				Accounts:    accountrepo.NewPostgresRepository(pool),
				Ledger:      sessionrepo.NewPostgresRepository(pool),
				Codec:       security.NewHMACTokenProvider([]byte("seed-only"), cfg.JWTIssuer, cfg.JWTAudience),
				Passwords:   security.NewHasher(cfg.BcryptCost),
				Credentials: security.NewCredentialHasher(),
			}, service.Config{MaxActiveSessions: cfg.MaxActiveSessions})

			created, err := seedAccount(ctx, mgr, flags)
			if err != nil {
				return err
			}
			if created {
				cmd.Printf("created %s\n", flags.email)
			} else {
				cmd.Printf("%s already exists, skipping\n", flags.email)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.email, "email", defaultEmail, "account email")
	cmd.Flags().StringVar(&flags.name, "name", defaultName, "display name")
	cmd.Flags().StringVar(&flags.password, "password", defaultPassword, "account password")
	return cmd
}

// registrar is the part of the session manager seeding needs.
type registrar interface {
	Register(ctx context.Context, email, password, name string, md device.RequestMetadata) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string, md device.RequestMetadata) error
}

// seedAccount registers the account and logs the seeding session straight out, so no
// active session is left behind. It reports false when the account already exists.
func seedAccount(ctx context.Context, mgr registrar, flags *seedFlags) (bool, error) {
	md := device.RequestMetadata{UserAgent: "authcore-seed", NetworkOrigin: "127.0.0.1"}
	res, err := mgr.Register(ctx, flags.email, flags.password, flags.name, md)
	if errors.Is(err, service.ErrAccountExists) {
		return false, nil
	}
	if err != nil {
		return false, oops.Code("SEED_FAILED").With("email", flags.email).Wrap(err)
	}
	slog.InfoContext(ctx, "seed account created", "account_id", res.Account.ID)
	if err := mgr.Logout(ctx, res.RefreshToken, md); err != nil {
		return true, oops.Code("SEED_LOGOUT_FAILED").Wrap(err)
	}
	return true, nil
}
