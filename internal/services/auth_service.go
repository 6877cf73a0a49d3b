package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

const (
	userIDPrefix = "usr_"

	minUsernameLength = 3
	maxUsernameLength = 50
	minPasswordLength = 6
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordBytes = 72
)

// TokenIssuer signs bearer tokens for authenticated accounts.
type TokenIssuer interface {
	Issue(subject, username, role string) (string, time.Time, error)
}

// PasswordHasher derives and checks password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// AuthServiceDeps bundles collaborators required to construct the auth service.
type AuthServiceDeps struct {
	Users       repositories.UserRepository
	Tokens      TokenIssuer
	Passwords   PasswordHasher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type authService struct {
	users     repositories.UserRepository
	tokens    TokenIssuer
	passwords PasswordHasher
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

var _ AuthService = (*authService)(nil)

// NewAuthService wires dependencies into a concrete AuthService implementation.
func NewAuthService(deps AuthServiceDeps) (AuthService, error) {
	switch {
	case deps.Users == nil:
		return nil, errors.New("auth service: user repository is required")
	case deps.Tokens == nil:
		return nil, errors.New("auth service: token issuer is required")
	case deps.Passwords == nil:
		return nil, errors.New("auth service: password hasher is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &authService{
		users:     deps.Users,
		tokens:    deps.Tokens,
		passwords: deps.Passwords,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *authService) Register(ctx context.Context, cmd RegisterCommand) (AuthResult, error) {
	username, err := validateCredentials(cmd.Username, cmd.Password)
	if err != nil {
		return AuthResult{}, err
	}

	_, err = s.users.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return AuthResult{}, fmt.Errorf("%w: %s", ErrUsernameTaken, username)
	case !isRepositoryNotFound(err):
		return AuthResult{}, mapRepositoryError(err, nil, nil)
	}

	hash, err := s.passwords.Hash(cmd.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("auth service: %w", err)
	}

	user := domain.User{
		ID:           userIDPrefix + s.newID(),
		Username:     username,
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
		CreatedAt:    s.clock(),
	}
	// The unique index still guards against a concurrent registration of the same name.
	if err := s.users.Insert(ctx, user); err != nil {
		return AuthResult{}, mapRepositoryError(err, nil, ErrUsernameTaken)
	}

	s.logger(ctx, "auth.registered", map[string]any{"userId": user.ID, "username": user.Username})
	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, cmd LoginCommand) (AuthResult, error) {
	username := strings.TrimSpace(cmd.Username)
	if username == "" || cmd.Password == "" {
		return AuthResult{}, fmt.Errorf("%w: username and password are required", ErrAuthInvalidInput)
	}

	user, err := s.users.FindByUsername(ctx, username)
	if err != nil {
		if isRepositoryNotFound(err) {
			s.logger(ctx, "auth.login.failed", map[string]any{"username": username, "reason": "unknown_user"})
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, mapRepositoryError(err, nil, nil)
	}
	if err := s.passwords.Compare(user.PasswordHash, cmd.Password); err != nil {
		s.logger(ctx, "auth.login.failed", map[string]any{"username": username, "reason": "password"})
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) issue(user domain.User) (AuthResult, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Username, user.Role)
	if err != nil {
		return AuthResult{}, fmt.Errorf("auth service: issue token: %w", err)
	}
	return AuthResult{
		Token:     token,
		Username:  user.Username,
		Role:      user.Role,
		ExpiresAt: expiresAt,
	}, nil
}

func validateCredentials(username, password string) (string, error) {
	username = strings.TrimSpace(username)
	switch n := utf8.RuneCountInString(username); {
	case n == 0:
		return "", fmt.Errorf("%w: username is required", ErrAuthInvalidInput)
	case n < minUsernameLength || n > maxUsernameLength:
		return "", fmt.Errorf("%w: username must be between %d and %d characters", ErrAuthInvalidInput, minUsernameLength, maxUsernameLength)
	}
	if strings.IndexFunc(username, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: username must not contain whitespace", ErrAuthInvalidInput)
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", ErrAuthInvalidInput, minPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", ErrAuthInvalidInput, maxPasswordBytes)
	}
	return username, nil
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
