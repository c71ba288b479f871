package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"circus-pes/apperr"
	"circus-pes/models"
)

// ResponseQuery lists responses of one item, or of every item when ItemID
// is empty (moderation queue).
type ResponseQuery struct {
	ItemID     string
	Visibility models.Visibility
	Offset     int
	Limit      int
}

func buildListResponses(rq ResponseQuery) *query {
	q := &query{}
	q.write(`
SELECT
	r.id,
	r.item_id,
	r.has_found,
	r.comment,
	r.image,
	r.public,
	r.user_id,
	r.created_at,
	r.updated_at,
	u.name,
	u.image,
	u.discriminator,
	i.shard_id,
	i.location
FROM responses r
JOIN users u ON u.id = r.user_id
JOIN items i ON i.id = r.item_id`)

	var conds []string
	if rq.ItemID != "" {
		conds = append(conds, "r.item_id = "+q.arg(rq.ItemID))
	}
	if c := q.visibilityCond("r", rq.Visibility); c != "" {
		conds = append(conds, c)
	}
	q.where(conds)
	q.write("\nORDER BY r.created_at DESC")
	q.paginate(rq.Offset, rq.Limit)
	return q
}

func (s *Store) ListResponses(ctx context.Context, rq ResponseQuery) ([]models.AggregatedResponse, error) {
	q := buildListResponses(rq)
	rows, err := s.pool.Query(ctx, q.String(), q.args...)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	responses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.AggregatedResponse, error) {
		var r models.AggregatedResponse
		err := row.Scan(
			&r.ID,
			&r.ItemID,
			&r.HasFound,
			&r.Comment,
			&r.Image,
			&r.Public,
			&r.UserID,
			&r.CreatedAt,
			&r.UpdatedAt,
			&r.Owner.Name,
			&r.Owner.Image,
			&r.Owner.Discriminator,
			&r.ItemShardID,
			&r.ItemLocation,
		)
		r.Owner.ID = r.UserID
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan responses: %w", err)
	}
	return responses, nil
}

const responseColumns = `id, item_id, has_found, comment, image, public, user_id, created_at, updated_at`

func scanResponse(row pgx.Row) (models.Response, error) {
	var r models.Response
	err := row.Scan(
		&r.ID,
		&r.ItemID,
		&r.HasFound,
		&r.Comment,
		&r.Image,
		&r.Public,
		&r.UserID,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (s *Store) FindResponse(ctx context.Context, id string) (models.Response, error) {
	r, err := scanResponse(s.pool.QueryRow(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Response{}, apperr.NotFound.New("response %s", id)
		}
		return models.Response{}, fmt.Errorf("find response: %w", err)
	}
	return r, nil
}

func (s *Store) CreateResponse(ctx context.Context, r models.Response) (models.Response, error) {
	created, err := scanResponse(s.pool.QueryRow(ctx, `
INSERT INTO responses (
	id,
	item_id,
	has_found,
	comment,
	public,
	user_id,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
RETURNING `+responseColumns,
		r.ID, r.ItemID, r.HasFound, r.Comment, r.Public, r.UserID,
	))
	if err != nil {
		return models.Response{}, fmt.Errorf("create response: %w", err)
	}
	return created, nil
}

func (s *Store) SetResponseImage(ctx context.Context, id, image string, publish bool) error {
	tag, err := s.pool.Exec(ctx, `
UPDATE responses
SET image = $2, public = public OR $3, updated_at = NOW()
WHERE id = $1
`, id, image, publish)
	if err != nil {
		return fmt.Errorf("set response image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound.New("response %s", id)
	}
	return nil
}

func (s *Store) SetResponsePublic(ctx context.Context, id string, public bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE responses SET public = $2, updated_at = NOW() WHERE id = $1`, id, public)
	if err != nil {
		return fmt.Errorf("set response visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound.New("response %s", id)
	}
	return nil
}

// DeleteResponse locks, authorizes and deletes one response in a transaction.
func (s *Store) DeleteResponse(ctx context.Context, id string, authorize func(models.Response) error) (models.Response, error) {
	var resp models.Response

	err := s.WithTx(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		resp, err = scanResponse(tx.QueryRow(ctx, `SELECT `+responseColumns+` FROM responses WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound.New("response %s", id)
			}
			return fmt.Errorf("lock response: %w", err)
		}

		if authorize != nil {
			if err := authorize(resp); err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM responses WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete response: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Response{}, err
	}

	return resp, nil
}

func (s *Store) RemoveResponse(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM responses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("remove response: %w", err)
	}
	return nil
}
