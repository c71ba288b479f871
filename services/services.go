// Package services implements the operations exposed by the API on top of
// the relational store and the object storage bucket.
package services

import (
	"context"

	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/audit"
	"circus-pes/models"
	"circus-pes/objectstore"
)

// ObjectStorage is the subset of the bucket used by the services.
type ObjectStorage interface {
	PresignUpload(ctx context.Context, key string, p objectstore.UploadPolicy) (objectstore.PresignedUpload, error)
	Get(ctx context.Context, key string, maxBytes int64) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Remove(ctx context.Context, key string) error
}

// Page is one page of a cursor-paginated listing. The cursor is the page
// index; NextCursor is nil on the last page.
type Page[T any] struct {
	Items      []T  `json:"items"`
	NextCursor *int `json:"nextCursor"`
}

// maxCursor bounds page cursors so the row offset stays well within int.
const maxCursor = 1_000_000

// pageWindow returns the offset and limit for a cursor, fetching one extra
// row to detect whether another page follows.
func pageWindow(cursor, size int) (offset, limit int, err error) {
	if cursor > maxCursor {
		return 0, 0, apperr.BadInput.New("cursor must not exceed %d", maxCursor)
	}
	if cursor < 0 {
		cursor = 0
	}
	return cursor * size, size + 1, nil
}

func newPage[T any](rows []T, cursor, size int) Page[T] {
	if cursor < 0 {
		cursor = 0
	}
	p := Page[T]{Items: rows}
	if len(rows) > size {
		p.Items = rows[:size]
		next := cursor + 1
		p.NextCursor = &next
	}
	if p.Items == nil {
		p.Items = []T{}
	}
	return p
}

func requireUser(actor *models.User) error {
	if actor == nil {
		return apperr.Unauthenticated.New("sign in required")
	}
	return nil
}

// canManage reports whether actor may change an entity owned by ownerID:
// contributors manage their own entities, admins manage everything.
func canManage(actor *models.User, ownerID string) bool {
	if actor == nil {
		return false
	}
	if actor.Role.AtLeast(models.RoleAdmin) {
		return true
	}
	return actor.Role.AtLeast(models.RoleContributor) && actor.ID == ownerID
}

// siteVisibility is the public site policy: anonymous callers see public
// rows, signed-in users (admins included) also see their own private rows.
func siteVisibility(viewer *models.User) models.Visibility {
	if viewer == nil {
		return models.StrictPublic(true)
	}
	return models.PublicOrOwnedBy(viewer.ID)
}

func viewerID(viewer *models.User) string {
	if viewer == nil {
		return ""
	}
	return viewer.ID
}

// removeObjects deletes storage objects after their rows are gone. A
// failure leaves an orphaned object, which is only logged.
func removeObjects(ctx context.Context, storage ObjectStorage, log *zap.Logger, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := storage.Remove(ctx, key); err != nil {
			log.Warn("remove storage object", zap.String("key", key), zap.Error(err))
		}
	}
}

func record(ctx context.Context, rec audit.Recorder, log *zap.Logger, e audit.Event) {
	if err := rec.Record(ctx, e); err != nil {
		log.Warn("record audit event",
			zap.String("action", string(e.Action)),
			zap.String("entity_id", e.EntityID),
			zap.Error(err),
		)
	}
}
