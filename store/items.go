package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"circus-pes/apperr"
	"circus-pes/models"
)

// ItemQuery selects the aggregated items of one patch version. Empty
// filters do not apply; set filters combine with AND.
type ItemQuery struct {
	PatchVersionID string
	Sort           models.ItemSort
	// Region matches shard identifiers by prefix.
	Region     string
	ShardID    string
	Location   string
	OwnerID    string
	ViewerID   string
	Visibility models.Visibility
	Offset     int
	Limit      int
}

// The viewer is always $1 so has_liked can be resolved for anonymous
// callers too (NULL never matches).
const aggregatedItemSelect = `
SELECT
	i.id,
	i.patch_version_id,
	i.shard_id,
	i.location,
	i.description,
	i.image,
	i.public,
	i.user_id,
	i.created_at,
	i.updated_at,
	pv.name,
	u.name,
	u.image,
	u.discriminator,
	COUNT(l.id) AS like_count,
	COALESCE(BOOL_OR(l.user_id = $1::text), FALSE) AS has_liked,
	COALESCE(rv.found_count, 0) AS found_count,
	COALESCE(rv.not_found_count, 0) AS not_found_count
FROM items i
JOIN patch_versions pv ON pv.id = i.patch_version_id
JOIN users u ON u.id = i.user_id
LEFT JOIN likes l ON l.item_id = i.id
LEFT JOIN LATERAL (
	SELECT
		COUNT(*) FILTER (WHERE recent.has_found) AS found_count,
		COUNT(*) FILTER (WHERE NOT recent.has_found) AS not_found_count
	FROM (
		SELECT r.has_found
		FROM responses r
		WHERE r.item_id = i.id AND r.public
		ORDER BY r.created_at DESC
		LIMIT 2
	) recent
) rv ON TRUE`

const aggregatedItemGroupBy = `
GROUP BY i.id, pv.id, u.id, rv.found_count, rv.not_found_count`

func buildListItems(iq ItemQuery) *query {
	q := &query{}
	q.arg(nullable(iq.ViewerID))
	q.write(aggregatedItemSelect)

	conds := []string{"i.patch_version_id = " + q.arg(iq.PatchVersionID)}
	if iq.Region != "" {
		conds = append(conds, "starts_with(i.shard_id, "+q.arg(iq.Region)+")")
	}
	if iq.ShardID != "" {
		conds = append(conds, "i.shard_id = "+q.arg(iq.ShardID))
	}
	if iq.Location != "" {
		conds = append(conds, "i.location = "+q.arg(iq.Location))
	}
	if iq.OwnerID != "" {
		conds = append(conds, "i.user_id = "+q.arg(iq.OwnerID))
	}
	if c := q.visibilityCond("i", iq.Visibility); c != "" {
		conds = append(conds, c)
	}
	q.where(conds)
	q.write(aggregatedItemGroupBy)

	switch iq.Sort {
	case models.SortLikes:
		q.write("\nORDER BY like_count DESC")
	case models.SortFound:
		q.write("\nORDER BY found_count DESC, not_found_count ASC")
	default:
		q.write("\nORDER BY i.created_at DESC")
	}

	q.paginate(iq.Offset, iq.Limit)
	return q
}

func buildGetItem(id, viewerID string, v models.Visibility) *query {
	q := &query{}
	q.arg(nullable(viewerID))
	q.write(aggregatedItemSelect)

	conds := []string{"i.id = " + q.arg(id)}
	if c := q.visibilityCond("i", v); c != "" {
		conds = append(conds, c)
	}
	q.where(conds)
	q.write(aggregatedItemGroupBy)
	return q
}

// ListItems returns the aggregated view of the items of one patch version.
// An unknown patch version is rejected before any item is scanned.
func (s *Store) ListItems(ctx context.Context, iq ItemQuery) ([]models.AggregatedItem, error) {
	if err := s.requirePatchVersion(ctx, iq.PatchVersionID); err != nil {
		return nil, err
	}

	q := buildListItems(iq)
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]models.AggregatedItem, 0)
	for rows.Next() {
		item, err := scanAggregatedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}

	return items, nil
}

// GetItem returns one aggregated item if it is visible under v.
func (s *Store) GetItem(ctx context.Context, id, viewerID string, v models.Visibility) (models.AggregatedItem, error) {
	q := buildGetItem(id, viewerID, v)
	item, err := scanAggregatedItem(s.pool.QueryRow(ctx, q.String(), q.args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.AggregatedItem{}, apperr.NotFound.New("item %s", id)
		}
		return models.AggregatedItem{}, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func scanAggregatedItem(row pgx.Row) (models.AggregatedItem, error) {
	var it models.AggregatedItem
	err := row.Scan(
		&it.ID,
		&it.PatchVersionID,
		&it.ShardID,
		&it.Location,
		&it.Description,
		&it.Image,
		&it.Public,
		&it.UserID,
		&it.CreatedAt,
		&it.UpdatedAt,
		&it.PatchVersionName,
		&it.Owner.Name,
		&it.Owner.Image,
		&it.Owner.Discriminator,
		&it.LikeCount,
		&it.HasLiked,
		&it.FoundCount,
		&it.NotFoundCount,
	)
	it.Owner.ID = it.UserID
	return it, err
}

const itemColumns = `id, patch_version_id, shard_id, location, description, image, public, user_id, created_at, updated_at`

func scanItem(row pgx.Row) (models.Item, error) {
	var it models.Item
	err := row.Scan(
		&it.ID,
		&it.PatchVersionID,
		&it.ShardID,
		&it.Location,
		&it.Description,
		&it.Image,
		&it.Public,
		&it.UserID,
		&it.CreatedAt,
		&it.UpdatedAt,
	)
	return it, err
}

// FindItem returns the bare item row regardless of visibility.
func (s *Store) FindItem(ctx context.Context, id string) (models.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Item{}, apperr.NotFound.New("item %s", id)
		}
		return models.Item{}, fmt.Errorf("find item: %w", err)
	}
	return it, nil
}

func (s *Store) CreateItem(ctx context.Context, it models.Item) (models.Item, error) {
	created, err := scanItem(s.pool.QueryRow(ctx, `
INSERT INTO items (
	id,
	patch_version_id,
	shard_id,
	location,
	description,
	public,
	user_id,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
RETURNING `+itemColumns,
		it.ID, it.PatchVersionID, it.ShardID, it.Location, it.Description, it.Public, it.UserID,
	))
	if err != nil {
		return models.Item{}, fmt.Errorf("create item: %w", err)
	}
	return created, nil
}

// SetItemImage records the image key and optionally publishes the item.
func (s *Store) SetItemImage(ctx context.Context, id, image string, publish bool) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE items
SET image = $2, public = public OR $3, updated_at = NOW()
WHERE id = $1
`, id, image, publish)
	if err != nil {
		return fmt.Errorf("set item image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound.New("item %s", id)
	}
	return nil
}

func (s *Store) SetItemPublic(ctx context.Context, id string, public bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE items SET public = $2, updated_at = NOW() WHERE id = $1`, id, public)
	if err != nil {
		return fmt.Errorf("set item visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound.New("item %s", id)
	}
	return nil
}

// DeleteItem removes an item with its responses and likes in one
// transaction. authorize sees the locked row before anything is deleted.
// The images of the removed responses are returned for storage cleanup.
func (s *Store) DeleteItem(ctx context.Context, id string, authorize func(models.Item) error) (models.Item, []models.ResponseImage, error) {
	var (
		item   models.Item
		images []models.ResponseImage
	)

	err := s.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		item, err = scanItem(tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound.New("item %s", id)
			}
			return fmt.Errorf("lock item: %w", err)
		}

		if authorize != nil {
			if err := authorize(item); err != nil {
				return err
			}
		}

		rows, err := tx.Query(ctx, `
SELECT id, image
FROM responses
WHERE item_id = $1 AND image IS NOT NULL
`, id)
		if err != nil {
			return fmt.Errorf("list response images: %w", err)
		}
		images, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ResponseImage, error) {
			var img models.ResponseImage
			err := row.Scan(&img.ResponseID, &img.Image)
			return img, err
		})
		if err != nil {
			return fmt.Errorf("scan response images: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM items WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Item{}, nil, err
	}

	return item, images, nil
}

// Like is idempotent: the (user, item) pair is unique.
func (s *Store) Like(ctx context.Context, like models.Like) error {
	if _, err := s.pool.Exec(ctx, `
INSERT INTO likes (id, user_id, item_id, created_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (user_id, item_id) DO NOTHING
`, like.ID, like.UserID, like.ItemID); err != nil {
		return fmt.Errorf("like item: %w", err)
	}
	return nil
}

// Unlike reports whether a like was removed.
func (s *Store) Unlike(ctx context.Context, userID, itemID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM likes WHERE user_id = $1 AND item_id = $2`, userID, itemID)
	if err != nil {
		return false, fmt.Errorf("unlike item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
