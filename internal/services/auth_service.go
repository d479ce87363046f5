package services

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"smartcrm/internal/authz"
	"smartcrm/internal/models"
	"smartcrm/internal/repositories"
	"smartcrm/internal/session"
	"smartcrm/internal/utils"
)

type Claims struct {
	UserID int    `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	Token          string
	SessionID      string
	ExpiresAt      time.Time
	User           *models.User
	PermissionKeys []string
	RedirectTo     string
}

// SubjectLoader resolves a user's current grants.
type SubjectLoader interface {
	LoadSubject(ctx context.Context, userID int) (*authz.Subject, error)
}

type AuthService struct {
	users    repositories.UserRepository
	perms    SubjectLoader
	sessions session.Store
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewAuthService(users repositories.UserRepository, perms SubjectLoader, sessions session.Store, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		users:    users,
		perms:    perms,
		sessions: sessions,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func legacyHash(pw string) string {
	sum := sha256.Sum256([]byte(pw))
	return hex.EncodeToString(sum[:])
}

// CheckPassword verifies pw against a bcrypt hash or a legacy SHA-256 hex digest.
// legacy reports that the stored hash should be upgraded.
func CheckPassword(hash, pw string) (ok, legacy bool) {
	hash = strings.TrimSpace(hash)
	if strings.HasPrefix(hash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil, false
	}
	if len(hash) == sha256.Size*2 {
		match := subtle.ConstantTimeCompare([]byte(strings.ToLower(hash)), []byte(legacyHash(pw))) == 1
		return match, match
	}
	return false, false
}

func (s *AuthService) IssueToken(userID int, role, sessionID string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.tokenTTL)
	claims := &Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, exp, nil
}

func (s *AuthService) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		// только HMAC
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.ID == "" {
		return nil, errors.New("token has no session id")
	}
	return claims, nil
}

// Authenticate validates the token and returns its live session.
func (s *AuthService) Authenticate(ctx context.Context, tokenStr string) (*session.Session, error) {
	claims, err := s.ParseToken(tokenStr)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != claims.UserID {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

// Login checks credentials and opens a session. Unknown, inactive and
// wrong-password users all get ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		log.Info().Str("username", username).Msg("[auth][login] unknown or inactive user")
		return nil, ErrUnauthorized
	}
	ok, legacy := CheckPassword(u.PasswordHash, password)
	if !ok {
		log.Info().Int("user_id", u.ID).Msg("[auth][login] password mismatch")
		return nil, ErrUnauthorized
	}

	now := s.now()
	if legacy {
		if h, err := HashPassword(password); err == nil {
			if err := s.users.UpdatePassword(ctx, u.ID, h); err != nil {
				log.Warn().Err(err).Int("user_id", u.ID).Msg("[auth][login] hash upgrade failed")
			} else {
				log.Info().Int("user_id", u.ID).Msg("[auth][login] legacy hash upgraded")
			}
		}
	}
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now

	sid, err := utils.NewSessionID(32)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Create(ctx, &session.Session{
		ID:       sid,
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	tok, exp, err := s.IssueToken(u.ID, u.Role, sid)
	if err != nil {
		return nil, err
	}

	subject, err := s.perms.LoadSubject(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	log.Info().Int("user_id", u.ID).Str("role", u.Role).Msg("[auth][login] success")

	return &LoginResult{
		Token:          tok,
		SessionID:      sid,
		ExpiresAt:      exp,
		User:           u,
		PermissionKeys: subject.Keys,
		RedirectTo:     authz.DefaultRoute(subject),
	}, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessions.Delete(ctx, sessionID)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID int, current, next string) error {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if u == nil {
		return notFound("User")
	}
	if ok, _ := CheckPassword(u.PasswordHash, current); !ok {
		return invalid("Current password is incorrect")
	}
	if len(next) < 6 {
		return invalid("New password must be at least 6 characters")
	}
	h, err := HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, userID, h)
}
