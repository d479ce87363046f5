package services

import (
	"context"
	"database/sql"
	"sort"

	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/database"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
)

type PermissionService struct {
	db    *sql.DB
	users repositories.UserRepository
	perms *repositories.PermissionRepository
}

func NewPermissionService(db *sql.DB, users repositories.UserRepository, perms *repositories.PermissionRepository) *PermissionService {
	return &PermissionService{db: db, users: users, perms: perms}
}

// LoadSubject resolves the caller from the database. Grants are read on every
// request so changes apply without a new login.
func (s *PermissionService) LoadSubject(ctx context.Context, userID int) (*authz.Subject, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, notFound("User")
	}
	keys, err := s.perms.KeysForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	legacy := u.Permissions
	if legacy == nil {
		legacy = authz.DefaultLegacyPermissions(u.Role)
	}
	return &authz.Subject{
		UserID:   u.ID,
		Username: u.Username,
		FullName: u.FullName,
		Role:     u.Role,
		Legacy:   legacy,
		Keys:     keys,
	}, nil
}

func (s *PermissionService) List(ctx context.Context) ([]models.Permission, error) {
	return s.perms.List(ctx)
}

func (s *PermissionService) Tree(ctx context.Context) ([]*models.PermissionNode, error) {
	flat, err := s.perms.List(ctx)
	if err != nil {
		return nil, err
	}
	return authz.BuildTree(flat), nil
}

func (s *PermissionService) ForUser(ctx context.Context, userID int) (*models.UserPermissionsView, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("User")
	}
	perms, err := s.perms.ForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(perms))
	for _, p := range perms {
		keys = append(keys, p.Key)
	}
	return &models.UserPermissionsView{User: u, Permissions: perms, PermissionKeys: keys}, nil
}

// Replace swaps every grant of userID for ids in one transaction.
func (s *PermissionService) Replace(ctx context.Context, userID int, ids []int, grantedBy int) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return notFound("User")
	}
	ids = uniqueInts(ids)
	if len(ids) > 0 {
		n, err := s.perms.CountExisting(ctx, ids)
		if err != nil {
			return err
		}
		if n != len(ids) {
			return invalid("Unknown permission id in request")
		}
	}

	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.perms.WithTx(tx).ReplaceForUser(ctx, userID, ids, grantedBy)
	})
	if err != nil {
		return err
	}
	log.Info().Int("user_id", userID).Int("count", len(ids)).Int("by", grantedBy).Msg("[permissions][replace] done")
	return nil
}

func (s *PermissionService) Revoke(ctx context.Context, userID, permissionID int) error {
	ok, err := s.perms.Revoke(ctx, userID, permissionID)
	if err != nil {
		return err
	}
	if !ok {
		return notFound("Permission grant")
	}
	return nil
}

func uniqueInts(in []int) []int {
	seen := make(map[int]struct{}, len(in))
	out := make([]int, 0, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}
