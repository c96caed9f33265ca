package httpapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"liquorpos/backend/internal/domain"
	"liquorpos/backend/internal/service"
	"liquorpos/backend/internal/store"
	"liquorpos/backend/internal/validation"
	"liquorpos/backend/internal/xid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
)

// UserStore is the slice of the repository the auth layer needs: account
// records plus the administrator registry kept alongside them.
type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUser(ctx context.Context, id string) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUser(ctx context.Context, user domain.UserAccount) error
	DeleteUser(ctx context.Context, id string) error
	SetAdministrator(ctx context.Context, uid string, admin bool) error
}

type AuthManager struct {
	secret   []byte
	tokenTTL time.Duration
	users    UserStore
	now      func() time.Time
}

type posCustomClaims struct {
	jwtlib.RegisteredClaims
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

func NewAuthManager(secret string, tokenTTL time.Duration, users UserStore) *AuthManager {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &AuthManager{
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		users:    users,
		now:      time.Now,
	}
}

func (a *AuthManager) Login(ctx context.Context, req domain.LoginRequest) (domain.LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}

	user, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.LoginResponse{}, ErrInvalidCredentials
		}
		return domain.LoginResponse{}, err
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return domain.LoginResponse{}, ErrInvalidCredentials
	}
	if !user.Active {
		return domain.LoginResponse{}, ErrAccountInactive
	}

	expiresAt := a.now().UTC().Add(a.tokenTTL)
	token, err := a.sign(*user, expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}

	return domain.LoginResponse{
		AccessToken: token,
		UID:         user.ID,
		Role:        user.Role,
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

// ParseToken verifies the signature and expiry and returns the actor the token
// names. The role it carries is advisory; privileged operations consult the
// role registry.
func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &posCustomClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}), jwtlib.WithIssuer("liquorpos"))
	if err != nil || !token.Valid {
		return domain.Actor{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.Actor{}, errors.New("invalid token subject")
	}
	return domain.Actor{UID: sub, Name: claims.Name, Email: claims.Email, Role: claims.Role}, nil
}

func (a *AuthManager) sign(user domain.UserAccount, expiresAt time.Time) (string, error) {
	claims := posCustomClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(a.now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "liquorpos",
		},
		Role:  user.Role,
		Name:  user.DisplayName,
		Email: user.Email,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

func (a *AuthManager) CreateUser(ctx context.Context, req domain.UserCreateRequest) (domain.UserAccount, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.DisplayName = strings.TrimSpace(req.DisplayName)
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := validation.Struct(req); err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}

	passwordHash, err := hashPassword(req.Password)
	if err != nil {
		return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.now().UTC()
	user := domain.UserAccount{
		ID:           xid.New("user"),
		Email:        req.Email,
		DisplayName:  req.DisplayName,
		PasswordHash: passwordHash,
		Role:         req.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrInvalidTransaction) {
			return domain.UserAccount{}, fmt.Errorf("%w: email %s is already registered", service.ErrInvalidRequest, user.Email)
		}
		return domain.UserAccount{}, err
	}
	if err := a.syncRegistry(ctx, user); err != nil {
		if delErr := a.users.DeleteUser(ctx, user.ID); delErr != nil {
			log.Error().Err(delErr).Str("user_id", user.ID).Msg("rollback of unregistered account failed")
		}
		return domain.UserAccount{}, err
	}
	return user, nil
}

func (a *AuthManager) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	return a.users.ListUsers(ctx)
}

func (a *AuthManager) UpdateUser(ctx context.Context, id string, req domain.UserUpdateRequest) (domain.UserAccount, error) {
	if req.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*req.Role))
		req.Role = &role
	}
	if err := validation.Struct(req); err != nil {
		return domain.UserAccount{}, fmt.Errorf("%w: %v", service.ErrInvalidRequest, err)
	}

	user, err := a.users.GetUser(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.UserAccount{}, err
	}
	previous := *user
	if req.DisplayName != nil {
		user.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Role != nil {
		user.Role = *req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	if req.Password != nil {
		user.PasswordHash, err = hashPassword(*req.Password)
		if err != nil {
			return domain.UserAccount{}, fmt.Errorf("hash password: %w", err)
		}
	}

	if actor, ok := service.ActorFromContext(ctx); ok && actor.UID == user.ID {
		if !user.Active || (previous.Role == domain.RoleAdministrator && user.Role != domain.RoleAdministrator) {
			return domain.UserAccount{}, fmt.Errorf("%w: you cannot demote or deactivate your own account", service.ErrInvalidRequest)
		}
	}

	if err := a.users.UpdateUser(ctx, *user); err != nil {
		return domain.UserAccount{}, err
	}
	if err := a.syncRegistry(ctx, *user); err != nil {
		a.restoreUser(ctx, previous)
		return domain.UserAccount{}, err
	}
	updated, err := a.users.GetUser(ctx, user.ID)
	if err != nil {
		return domain.UserAccount{}, err
	}
	return *updated, nil
}

func (a *AuthManager) DeleteUser(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	actor, ok := service.ActorFromContext(ctx)
	if ok && actor.UID == id {
		return fmt.Errorf("%w: you cannot delete your own account", service.ErrInvalidRequest)
	}
	return a.users.DeleteUser(ctx, id)
}

// syncRegistry keeps the administrator registry in step with the account:
// only active administrators are listed.
func (a *AuthManager) syncRegistry(ctx context.Context, user domain.UserAccount) error {
	admin := user.Active && user.Role == domain.RoleAdministrator
	if err := a.users.SetAdministrator(ctx, user.ID, admin); err != nil {
		return fmt.Errorf("sync role registry for %s: %w", user.ID, err)
	}
	return nil
}

// restoreUser puts back an account whose registry sync failed so the record
// and the registry do not disagree about its privilege.
func (a *AuthManager) restoreUser(ctx context.Context, previous domain.UserAccount) {
	logger := log.With().Str("user_id", previous.ID).Logger()
	if err := a.users.UpdateUser(ctx, previous); err != nil {
		logger.Error().Err(err).Msg("restore account after registry failure")
		return
	}
	if err := a.syncRegistry(ctx, previous); err != nil {
		logger.Error().Err(err).Msg("account and role registry disagree")
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
