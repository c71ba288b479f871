package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"circus-pes/apperr"
	"circus-pes/models"
)

// FacetQuery scopes the shard and location pickers.
type FacetQuery struct {
	PatchVersionID string
	Region         string
	ShardID        string
	Visibility     models.Visibility
}

func buildShardCounts(fq FacetQuery) *query {
	q := &query{}
	q.write(`
SELECT i.shard_id, COUNT(*) AS item_count
FROM items i`)
	conds := []string{"i.patch_version_id = " + q.arg(fq.PatchVersionID)}
	if fq.Region != "" {
		conds = append(conds, "starts_with(i.shard_id, "+q.arg(fq.Region)+")")
	}
	if c := q.visibilityCond("i", fq.Visibility); c != "" {
		conds = append(conds, c)
	}
	q.where(conds)
	q.write(`
GROUP BY i.shard_id
ORDER BY item_count DESC, i.shard_id ASC`)
	return q
}

func buildLocations(fq FacetQuery) *query {
	q := &query{}
	q.write(`
SELECT DISTINCT i.location
FROM items i`)
	conds := []string{"i.patch_version_id = " + q.arg(fq.PatchVersionID)}
	if fq.Region != "" {
		conds = append(conds, "starts_with(i.shard_id, "+q.arg(fq.Region)+")")
	}
	if fq.ShardID != "" {
		conds = append(conds, "i.shard_id = "+q.arg(fq.ShardID))
	}
	if c := q.visibilityCond("i", fq.Visibility); c != "" {
		conds = append(conds, c)
	}
	q.where(conds)
	q.write(`
ORDER BY i.location ASC`)
	return q
}

// ShardCounts returns how many items each shard has in the scope.
func (s *Store) ShardCounts(ctx context.Context, fq FacetQuery) ([]models.ShardCount, error) {
	if err := s.requirePatchVersion(ctx, fq.PatchVersionID); err != nil {
		return nil, err
	}

	q := buildShardCounts(fq)
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("count shards: %w", err)
	}
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ShardCount, error) {
		var c models.ShardCount
		err := row.Scan(&c.ShardID, &c.Count)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan shard counts: %w", err)
	}
	return counts, nil
}

// Locations returns the distinct locations used in the scope.
func (s *Store) Locations(ctx context.Context, fq FacetQuery) ([]string, error) {
	if err := s.requirePatchVersion(ctx, fq.PatchVersionID); err != nil {
		return nil, err
	}

	q := buildLocations(fq)
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	locations, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan locations: %w", err)
	}
	return locations, nil
}

func (s *Store) requirePatchVersion(ctx context.Context, id string) error {
	exists, err := s.patchVersionExists(ctx, id)
	if err != nil {
		return err
	}
	if !exists {
		return apperr.BadInput.New("unknown patch version %q", id)
	}
	return nil
}
