package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"webtoonhub/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u    models.User
		name sql.NullString
	)
	if err := row.Scan(&u.ID, &u.ClerkID, &u.Email, &name, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Name = name.String
	return &u, nil
}

func (r *Repo) CreateUser(ctx context.Context, u models.User) error {
	var name any
	if u.Name != "" {
		name = u.Name
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (id, clerk_id, email, name)
		VALUES (?, ?, ?, ?)
	`, u.ID, u.ClerkID, strings.ToLower(strings.TrimSpace(u.Email)), name)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *Repo) GetByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, clerk_id, email, name, created_at
		FROM users
		WHERE clerk_id = ?
	`, clerkID)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get by clerk id: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, clerk_id, email, name, created_at
		FROM users
		WHERE id = ?
	`, id)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get by id: %w", err)
	}
	return u, nil
}

func (r *Repo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	row := r.DB.QueryRowContext(ctx, `
		SELECT id, clerk_id, email, name, created_at
		FROM users
		WHERE LOWER(email) = ?
	`, email)

	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get by email: %w", err)
	}
	return u, nil
}

// List returns every user, oldest first.
func (r *Repo) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, clerk_id, email, name, created_at
		FROM users
		ORDER BY created_at ASC, rowid ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows users: %w", err)
	}
	return out, nil
}

// Update changes name and/or email; nil leaves a field as is.
func (r *Repo) Update(ctx context.Context, id string, name, email *string) (bool, error) {
	var (
		sets []string
		args []any
	)
	if name != nil {
		sets = append(sets, "name = ?")
		args = append(args, strings.TrimSpace(*name))
	}
	if email != nil {
		sets = append(sets, "email = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*email)))
	}
	if len(sets) == 0 {
		u, err := r.GetByID(ctx, id)
		return u != nil, err
	}

	args = append(args, id)
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return false, fmt.Errorf("update user: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Delete removes the user and their webtoons in one transaction.
func (r *Repo) Delete(ctx context.Context, id string) (bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete user: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM webtoons WHERE author_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete user webtoons: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete user rows: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete user: %w", err)
	}
	return n > 0, nil
}
