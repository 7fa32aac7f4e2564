package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "trustscore/internal/jwt_token"
	"trustscore/internal/platform/config"
	"trustscore/internal/platform/postgres"
	"trustscore/internal/scoring/registry"
	authmw "trustscore/pkg/platform/middleware/auth"
	"trustscore/pkg/requestcontext"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load(ctx, configPath)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("database_url is not configured")
			}
			db, err := postgres.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect scoring registry artifacts",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate a registry artifact (the embedded default when no path is given)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			reg, err := registry.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "registry %s: ok\n", reg.Version())
			for _, p := range reg.Pillars() {
				fmt.Fprintf(out, "  %s (%s)\n", p.ID, p.Label)
				for _, c := range p.Categories() {
					fmt.Fprintf(out, "    %s: %d factors, max %g\n", c.ID, len(c.Factors()), c.MaxTotal())
				}
			}
			return nil
		},
	})
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		subject string
		name    string
		role    string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an operator access token for the admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if subject == "" {
				return errors.New("--subject is required")
			}
			if role != authmw.RoleAdmin && role != authmw.RoleModerator {
				return fmt.Errorf("--role must be %s or %s", authmw.RoleAdmin, authmw.RoleModerator)
			}
			cfg, err := config.Load(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
			token, err := tokens.GenerateAccessToken(requestcontext.ActorInfo{ID: subject, Name: name, Role: role}, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Actor id recorded on audit entries")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Actor display name")
	cmd.Flags().StringVarP(&role, "role", "r", authmw.RoleModerator, "admin or moderator")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "Token lifetime")

	return cmd
}
