package sqlstore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/sqldb"
)

const userColumns = `id, username, password_hash, role, created_at`

// UserRepository stores API accounts.
type UserRepository struct {
	provider *sqldb.Provider
}

// NewUserRepository constructs a SQL-backed user repository.
func NewUserRepository(provider *sqldb.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires sql provider")
	}
	return &UserRepository{provider: provider}, nil
}

// Insert creates an account. A taken username surfaces as a conflict.
func (r *UserRepository) Insert(ctx context.Context, user domain.User) error {
	_, err := r.provider.Querier(ctx).ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES ($1, $2, $3, $4, $5)`,
		user.ID,
		strings.TrimSpace(user.Username),
		user.PasswordHash,
		user.Role,
		user.CreatedAt.UTC(),
	)
	return sqldb.WrapError("users.insert", err)
}

// FindByUsername loads an account by its unique username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.provider.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, strings.TrimSpace(username)).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return domain.User{}, sqldb.WrapError("users.find", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}
