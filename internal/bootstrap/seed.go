// Package bootstrap prepares a fresh database: permission catalog, the
// default admin and the default lead settings.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/config"
	"smartcrm/internal/database"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
	"smartcrm/internal/services"
)

type Seeder struct {
	db       *sql.DB
	users    repositories.UserRepository
	perms    *repositories.PermissionRepository
	settings *services.SettingsService
}

func NewSeeder(db *sql.DB, users repositories.UserRepository, perms *repositories.PermissionRepository, settings *services.SettingsService) *Seeder {
	return &Seeder{db: db, users: users, perms: perms, settings: settings}
}

// Run is idempotent; every step skips what already exists.
func (s *Seeder) Run(ctx context.Context, cfg config.BootstrapConfig) error {
	if err := s.seedCatalog(ctx); err != nil {
		return err
	}
	if err := s.seedAdmin(ctx, cfg); err != nil {
		return err
	}
	admins, err := s.users.ListAdminIDs(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}
	for _, id := range admins {
		if _, err := s.perms.GrantAll(ctx, id); err != nil {
			return fmt.Errorf("grant admin %d: %w", id, err)
		}
	}
	if err := s.settings.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed settings: %w", err)
	}
	return nil
}

func (s *Seeder) seedCatalog(ctx context.Context) error {
	n, err := s.perms.Count(ctx)
	if err != nil {
		return fmt.Errorf("count permissions: %w", err)
	}
	if n > 0 {
		return nil
	}
	entries, err := authz.Catalog()
	if err != nil {
		return err
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		repo := s.perms.WithTx(tx)
		ids := make(map[string]int, len(entries))
		for _, e := range entries {
			p := models.Permission{
				Key:         e.Key,
				Name:        e.Name,
				Category:    e.Category,
				Level:       e.Level,
				Description: e.Description,
			}
			if e.ParentKey != "" {
				pid, ok := ids[e.ParentKey]
				if !ok {
					return fmt.Errorf("permission %s: parent %s not seeded", e.Key, e.ParentKey)
				}
				p.ParentID = &pid
			}
			id, err := repo.Insert(ctx, p)
			if err != nil {
				return err
			}
			ids[e.Key] = id
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info().Int("count", len(entries)).Msg("[bootstrap][catalog] seeded")
	return nil
}

func (s *Seeder) seedAdmin(ctx context.Context, cfg config.BootstrapConfig) error {
	u, err := s.users.GetByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("lookup admin: %w", err)
	}
	if u != nil {
		return nil
	}
	hash, err := services.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{
		Username:     cfg.AdminUsername,
		PasswordHash: hash,
		FullName:     "Administrator",
		Email:        cfg.AdminEmail,
		Role:         authz.RoleAdmin,
		Permissions:  authz.DefaultLegacyPermissions(authz.RoleAdmin),
		IsActive:     true,
	}
	if _, err := s.users.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Warn().Str("username", cfg.AdminUsername).Msg("[bootstrap][admin] default admin created, change its password")
	return nil
}
