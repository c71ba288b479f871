package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"circus-pes/apperr"
	"circus-pes/models"
)

const userColumns = `id, name, image, discriminator, role, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var (
		u    models.User
		role int16
	)
	err := row.Scan(&u.ID, &u.Name, &u.Image, &u.Discriminator, &role, &u.CreatedAt, &u.UpdatedAt)
	u.Role = models.Role(role)
	return u, err
}

// UpsertUser stores the identity provider profile. New users start as
// invited; the role of known users is left untouched.
func (s *Store) UpsertUser(ctx context.Context, p models.Profile) (models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `
INSERT INTO users (id, name, image, discriminator, role, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	image = EXCLUDED.image,
	discriminator = EXCLUDED.discriminator,
	updated_at = NOW()
RETURNING `+userColumns,
		p.ID, p.Name, p.Image, p.Discriminator, int16(models.RoleInvited),
	))
	if err != nil {
		return models.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, apperr.NotFound.New("user %s", id)
		}
		return models.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY role DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan users: %w", err)
	}
	return users, nil
}

func (s *Store) SetUserRole(ctx context.Context, id string, role models.Role) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, int16(role))
	if err != nil {
		return fmt.Errorf("set user role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound.New("user %s", id)
	}
	return nil
}
