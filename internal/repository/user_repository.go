package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const userColumns = "id, name, email, password_hash, role, created_at"

// UserChanges lists the fields of a partial user update. Nil means unchanged.
type UserChanges struct {
	Name         *string
	Email        *string
	PasswordHash *string
	Role         *domain.Role
}

// Empty reports whether no field is set.
func (c UserChanges) Empty() bool {
	return c.Name == nil && c.Email == nil && c.PasswordHash == nil && c.Role == nil
}

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, id int64, changes UserChanges) (*domain.User, error)
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	db DBTX
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (name, email, password_hash, role, created_at)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id`

	err := r.db.QueryRow(ctx, query,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.CreatedAt,
	).Scan(&user.ID)
	if isUniqueViolation(err) {
		return ErrDuplicateEmail
	}
	return err
}

func (r *userRepository) Update(ctx context.Context, id int64, changes UserChanges) (*domain.User, error) {
	set := map[string]any{}
	if changes.Name != nil {
		set["name"] = *changes.Name
	}
	if changes.Email != nil {
		set["email"] = *changes.Email
	}
	if changes.PasswordHash != nil {
		set["password_hash"] = *changes.PasswordHash
	}
	if changes.Role != nil {
		set["role"] = *changes.Role
	}
	if len(set) == 0 {
		return r.GetByID(ctx, id)
	}

	query, args, err := psql.Update("users").
		SetMap(set).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + userColumns).
		ToSql()
	if err != nil {
		return nil, err
	}

	user, err := scanUser(r.db.QueryRow(ctx, query, args...))
	if isUniqueViolation(err) {
		return nil, ErrDuplicateEmail
	}
	return user, translateNoRows(err)
}

func (r *userRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
	return user, translateNoRows(err)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email))
	return user, translateNoRows(err)
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *user)
	}
	return result, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
