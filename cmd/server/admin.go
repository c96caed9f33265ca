package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/httpapi"
	pgstore "liquorpos/backend/internal/store/postgres"
)

// runCreateAdmin bootstraps the first administrator of a fresh database,
// registering the account in the role registry.
func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required to create an administrator")
	}
	password := adminPassword
	if password == "" {
		password = os.Getenv("LIQUORPOS_ADMIN_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
	defer cancel()

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Minute, pg)
	user, err := auth.CreateUser(ctx, domain.UserCreateRequest{
		Email:       adminEmail,
		Password:    password,
		DisplayName: adminName,
		Role:        domain.RoleAdministrator,
	})
	if err != nil {
		return err
	}

	log.Info().Str("uid", user.ID).Str("email", user.Email).Msg("administrator created")
	return nil
}
