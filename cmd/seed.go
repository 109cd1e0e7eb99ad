/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/shieldline/siteapi/config"
	"github.com/shieldline/siteapi/internal/db"
	"github.com/shieldline/siteapi/internal/logging"
	"github.com/shieldline/siteapi/internal/services"
	"github.com/shieldline/siteapi/internal/store"
	"github.com/shieldline/siteapi/types"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default roles and the first administrator",
	Long: `Creates any missing default role. When SEED_ADMIN_EMAIL and
SEED_ADMIN_PASSWORD are set, also creates that administrator unless an
account with the email already exists.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		cfg := config.LoadConfig()
		logger := logging.New(cfg.LogLevel)

		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		roleRepo := store.NewRoleRepository(conn)
		roles := services.NewRoleService(roleRepo)
		users := services.NewUserService(store.NewUserRepository(conn), roleRepo, services.NewPermissionService(roleRepo))

		created, err := roles.EnsureDefaults(ctx)
		if err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}
		logger.Info("default roles ready", "created", created)

		if cfg.Seed.AdminEmail == "" || cfg.Seed.AdminPassword == "" {
			logger.Info("SEED_ADMIN_EMAIL or SEED_ADMIN_PASSWORD not set, skipping administrator")
			return nil
		}

		var roleIDs []int
		all, err := roles.List(ctx)
		if err != nil {
			return fmt.Errorf("list roles: %w", err)
		}
		for _, role := range all {
			if role.Name == types.RoleAdmin {
				roleIDs = append(roleIDs, role.ID)
			}
		}

		admin, err := users.Create(ctx, 0, services.CreateUserInput{
			Email:    cfg.Seed.AdminEmail,
			Name:     cfg.Seed.AdminName,
			Password: cfg.Seed.AdminPassword,
			Role:     types.RoleAdmin,
			RoleIDs:  roleIDs,
		})
		if errors.Is(err, store.ErrConflict) {
			logger.Info("administrator already exists", "email", cfg.Seed.AdminEmail)
			return nil
		}
		if err != nil {
			return fmt.Errorf("seed administrator: %w", err)
		}
		logger.Info("administrator created", "id", admin.ID, "email", admin.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
