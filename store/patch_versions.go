package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"circus-pes/apperr"
	"circus-pes/models"
)

func (s *Store) patchVersionExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patch_versions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("lookup patch version: %w", err)
	}
	return exists, nil
}

func scanPatchVersion(row pgx.CollectableRow) (models.PatchVersion, error) {
	var pv models.PatchVersion
	err := row.Scan(&pv.ID, &pv.Name, &pv.Visible, &pv.CreatedAt)
	return pv, err
}

// ListPatchVersions returns newest versions first.
func (s *Store) ListPatchVersions(ctx context.Context, onlyVisible bool) ([]models.PatchVersion, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, name, visible, created_at
FROM patch_versions
WHERE visible OR NOT $1
ORDER BY created_at DESC
`, onlyVisible)
	if err != nil {
		return nil, fmt.Errorf("list patch versions: %w", err)
	}
	versions, err := pgx.CollectRows(rows, scanPatchVersion)
	if err != nil {
		return nil, fmt.Errorf("scan patch versions: %w", err)
	}
	return versions, nil
}

func (s *Store) GetPatchVersion(ctx context.Context, id string) (models.PatchVersion, error) {
	var pv models.PatchVersion
	err := s.pool.QueryRow(ctx, `
SELECT id, name, visible, created_at
FROM patch_versions
WHERE id = $1
`, id).Scan(&pv.ID, &pv.Name, &pv.Visible, &pv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PatchVersion{}, apperr.NotFound.New("patch version %s", id)
		}
		return models.PatchVersion{}, fmt.Errorf("get patch version: %w", err)
	}
	return pv, nil
}

func (s *Store) CreatePatchVersion(ctx context.Context, pv models.PatchVersion) (models.PatchVersion, error) {
	var created models.PatchVersion
	err := s.pool.QueryRow(ctx, `
INSERT INTO patch_versions (id, name, visible, created_at)
VALUES ($1, $2, $3, NOW())
RETURNING id, name, visible, created_at
`, pv.ID, pv.Name, pv.Visible).Scan(&created.ID, &created.Name, &created.Visible, &created.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return models.PatchVersion{}, apperr.BadInput.New("patch version %q already exists", pv.Name)
		}
		return models.PatchVersion{}, fmt.Errorf("create patch version: %w", err)
	}
	return created, nil
}

func (s *Store) SetPatchVersionVisible(ctx context.Context, id string, visible bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE patch_versions SET visible = $2 WHERE id = $1`, id, visible)
	if err != nil {
		return fmt.Errorf("set patch version visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound.New("patch version %s", id)
	}
	return nil
}

func (s *Store) ListCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, name FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowToStructByPos[models.Category])
	if err != nil {
		return nil, fmt.Errorf("scan categories: %w", err)
	}
	return categories, nil
}
