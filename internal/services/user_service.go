package services

import (
	"context"
	"database/sql"
	"errors"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/notify"
	"smartcrm/internal/repositories"
	"smartcrm/internal/session"
	"smartcrm/internal/storage"
)

var photoExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

type UserService interface {
	List(ctx context.Context, excludeID int) ([]*models.User, error)
	ListActive(ctx context.Context) ([]models.ActiveUser, error)
	GetByID(ctx context.Context, id int) (*models.User, error)
	Create(ctx context.Context, req models.UserCreate, createdBy int) (*models.User, error)
	Update(ctx context.Context, id int, req models.UserUpdate) (*models.User, error)
	SetLegacyPermissions(ctx context.Context, id int, perms map[string]bool) error
	SetActive(ctx context.Context, id int, active bool) error
	Delete(ctx context.Context, id, callerID int) error
	UploadPhoto(ctx context.Context, id int, filename string, data []byte) (string, error)
	Photo(ctx context.Context, id int) ([]byte, string, error)
	ListDesignations(ctx context.Context) ([]models.Designation, error)
	CreateDesignation(ctx context.Context, name string) (*models.Designation, error)
}

type userService struct {
	repo         repositories.UserRepository
	perms        *repositories.PermissionRepository
	designations *repositories.DesignationRepository
	sessions     session.Store
	files        storage.Backend
	notifier     *notify.Notifier
}

func NewUserService(
	repo repositories.UserRepository,
	perms *repositories.PermissionRepository,
	designations *repositories.DesignationRepository,
	sessions session.Store,
	files storage.Backend,
	notifier *notify.Notifier,
) UserService {
	return &userService{
		repo:         repo,
		perms:        perms,
		designations: designations,
		sessions:     sessions,
		files:        files,
		notifier:     notifier,
	}
}

func (s *userService) List(ctx context.Context, excludeID int) ([]*models.User, error) {
	users, err := s.repo.List(ctx, excludeID)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []*models.User{}
	}
	return users, nil
}

func (s *userService) ListActive(ctx context.Context) ([]models.ActiveUser, error) {
	return s.repo.ListActive(ctx)
}

func (s *userService) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, notFound("User")
	}
	return u, nil
}

func (s *userService) Create(ctx context.Context, req models.UserCreate, createdBy int) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, invalid("Username is required")
	}
	role := strings.TrimSpace(req.Role)
	if role == "" {
		role = authz.RoleSales
	}
	if !authz.ValidRole(role) {
		return nil, invalid("Invalid role: %s", role)
	}
	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, newError(ErrConflict, "Username already exists")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	perms := authz.DefaultLegacyPermissions(role)
	for k, v := range req.Permissions {
		perms[k] = v
	}
	if req.DateOfBirth != nil && strings.TrimSpace(*req.DateOfBirth) == "" {
		req.DateOfBirth = nil
	}
	if req.DateOfBirth != nil {
		if _, err := time.Parse("2006-01-02", *req.DateOfBirth); err != nil {
			return nil, invalid("Invalid date_of_birth, expected YYYY-MM-DD")
		}
	}

	by := createdBy
	u := &models.User{
		Username:       username,
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		FullName:       strings.TrimSpace(req.FullName),
		Email:          strings.TrimSpace(req.Email),
		Designation:    req.Designation,
		MobileNo:       req.MobileNo,
		DateOfBirth:    req.DateOfBirth,
		Role:           role,
		Permissions:    perms,
		IsActive:       true,
		TelegramChatID: req.TelegramChatID,
		CreatedBy:      &by,
	}
	if _, err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	if role == authz.RoleAdmin && s.perms != nil {
		if _, err := s.perms.GrantAll(ctx, u.ID); err != nil {
			log.Warn().Err(err).Int("user_id", u.ID).Msg("[users][create] grant all failed")
		}
	}
	log.Info().Int("user_id", u.ID).Str("role", role).Int("by", createdBy).Msg("[users][create] done")

	welcome := *u
	go s.notifier.Welcome(&welcome)
	return u, nil
}

func (s *userService) Update(ctx context.Context, id int, req models.UserUpdate) (*models.User, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	setStr := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	setStr("full_name", req.FullName)
	setStr("first_name", req.FirstName)
	setStr("last_name", req.LastName)
	setStr("email", req.Email)
	setStr("designation", req.Designation)
	setStr("mobile_no", req.MobileNo)
	if req.DateOfBirth != nil {
		dob := strings.TrimSpace(*req.DateOfBirth)
		if dob == "" {
			fields["date_of_birth"] = nil
		} else if _, err := time.Parse("2006-01-02", dob); err != nil {
			return nil, invalid("Invalid date_of_birth, expected YYYY-MM-DD")
		} else {
			fields["date_of_birth"] = dob
		}
	}
	if req.Role != nil {
		if !authz.ValidRole(*req.Role) {
			return nil, invalid("Invalid role: %s", *req.Role)
		}
		fields["role"] = *req.Role
	}
	if req.Permissions != nil {
		fields["permissions"] = req.Permissions
	}
	if req.IsActive != nil {
		fields["is_active"] = *req.IsActive
	}
	if req.Password != nil && *req.Password != "" {
		if len(*req.Password) < 6 {
			return nil, invalid("Password must be at least 6 characters")
		}
		h, err := HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		fields["password"] = h
	}
	if req.TelegramChatID != nil {
		fields["telegram_chat_id"] = *req.TelegramChatID
	}
	if len(fields) == 0 {
		return nil, ErrNoChanges
	}

	if err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, err
	}
	if req.IsActive != nil && !*req.IsActive {
		s.dropSessions(ctx, id)
	}
	return s.GetByID(ctx, id)
}

func (s *userService) SetLegacyPermissions(ctx context.Context, id int, perms map[string]bool) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if perms == nil {
		perms = map[string]bool{}
	}
	return s.repo.UpdateLegacyPermissions(ctx, id, perms)
}

func (s *userService) SetActive(ctx context.Context, id int, active bool) error {
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return err
	}
	if !active {
		s.dropSessions(ctx, id)
	}
	return nil
}

func (s *userService) dropSessions(ctx context.Context, id int) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DeleteUser(ctx, id); err != nil {
		log.Warn().Err(err).Int("user_id", id).Msg("[users][sessions] drop failed")
	}
}

func (s *userService) Delete(ctx context.Context, id, callerID int) error {
	if id == callerID {
		return invalid("You cannot delete your own account")
	}
	if s.perms != nil {
		if err := s.perms.DeleteForUser(ctx, id); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("User")
		}
		return err
	}
	s.dropSessions(ctx, id)
	return nil
}

// UploadPhoto stores an image as photos/{uuid}.{ext} and returns the key.
func (s *userService) UploadPhoto(ctx context.Context, id int, filename string, data []byte) (string, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !photoExts[ext] {
		return "", invalid("Only jpg, jpeg, png, gif and webp images are allowed")
	}
	if len(data) == 0 {
		return "", invalid("Empty file")
	}
	key := "photos/" + uuid.NewString() + ext
	if err := s.files.Put(ctx, key, mime.TypeByExtension(ext), data); err != nil {
		return "", err
	}
	if err := s.repo.SetPhoto(ctx, id, key); err != nil {
		_ = s.files.Delete(ctx, key)
		return "", err
	}
	if u.Photo != nil && *u.Photo != "" && *u.Photo != key {
		if err := s.files.Delete(ctx, *u.Photo); err != nil {
			log.Warn().Err(err).Str("key", *u.Photo).Msg("[users][photo] old photo not removed")
		}
	}
	return key, nil
}

func (s *userService) Photo(ctx context.Context, id int) ([]byte, string, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if u.Photo == nil || *u.Photo == "" {
		return nil, "", notFound("Photo")
	}
	data, err := s.files.Get(ctx, *u.Photo)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", notFound("Photo")
	}
	if err != nil {
		return nil, "", err
	}
	ct := mime.TypeByExtension(filepath.Ext(*u.Photo))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return data, ct, nil
}

func (s *userService) ListDesignations(ctx context.Context) ([]models.Designation, error) {
	return s.designations.List(ctx)
}

func (s *userService) CreateDesignation(ctx context.Context, name string) (*models.Designation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("Designation name is required")
	}
	d, created, err := s.designations.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, newError(ErrConflict, "Designation already exists")
	}
	return d, nil
}
