package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/audit"
	"circus-pes/models"
	"circus-pes/objectstore"
	"circus-pes/store"
)

const (
	responsePageSize   = 10
	moderationPageSize = 25
)

type ResponseStore interface {
	GetItem(ctx context.Context, id, viewerID string, v models.Visibility) (models.AggregatedItem, error)
	ListResponses(ctx context.Context, q store.ResponseQuery) ([]models.AggregatedResponse, error)
	CreateResponse(ctx context.Context, r models.Response) (models.Response, error)
	SetResponsePublic(ctx context.Context, id string, public bool) error
	DeleteResponse(ctx context.Context, id string, authorize func(models.Response) error) (models.Response, error)
}

type ResponseService struct {
	store   ResponseStore
	storage ObjectStorage
	audit   audit.Recorder
	log     *zap.Logger
	newID   func() string
}

func NewResponseService(st ResponseStore, storage ObjectStorage, rec audit.Recorder, log *zap.Logger) *ResponseService {
	return &ResponseService{
		store:   st,
		storage: storage,
		audit:   rec,
		log:     log,
		newID:   uuid.NewString,
	}
}

// ListForItem pages through the responses of an item the viewer can see.
func (s *ResponseService) ListForItem(ctx context.Context, viewer *models.User, itemID string, cursor int) (Page[models.AggregatedResponse], error) {
	vis := models.VisibilityFor(viewer)
	if _, err := s.store.GetItem(ctx, itemID, viewerID(viewer), vis); err != nil {
		return Page[models.AggregatedResponse]{}, err
	}

	offset, limit, err := pageWindow(cursor, responsePageSize)
	if err != nil {
		return Page[models.AggregatedResponse]{}, err
	}
	rows, err := s.store.ListResponses(ctx, store.ResponseQuery{
		ItemID:     itemID,
		Visibility: vis,
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		return Page[models.AggregatedResponse]{}, err
	}
	return newPage(rows, cursor, responsePageSize), nil
}

// ListForModeration pages through responses of every item, optionally
// restricted to one public flag.
func (s *ResponseService) ListForModeration(ctx context.Context, public *bool, cursor int) (Page[models.AggregatedResponse], error) {
	vis := models.Unrestricted()
	if public != nil {
		vis = models.StrictPublic(*public)
	}

	offset, limit, err := pageWindow(cursor, moderationPageSize)
	if err != nil {
		return Page[models.AggregatedResponse]{}, err
	}
	rows, err := s.store.ListResponses(ctx, store.ResponseQuery{
		Visibility: vis,
		Offset:     offset,
		Limit:      limit,
	})
	if err != nil {
		return Page[models.AggregatedResponse]{}, err
	}
	return newPage(rows, cursor, moderationPageSize), nil
}

type CreateResponseInput struct {
	ItemID   string
	HasFound bool
	Comment  string
}

func (s *ResponseService) Create(ctx context.Context, actor *models.User, in CreateResponseInput) (models.Response, error) {
	if err := requireUser(actor); err != nil {
		return models.Response{}, err
	}
	if !actor.Role.AtLeast(models.RoleContributor) {
		return models.Response{}, apperr.Forbidden.New("contributor role required")
	}
	comment := strings.TrimSpace(in.Comment)
	if n := utf8.RuneCountInString(comment); n == 0 || n > models.MaxCommentLength {
		return models.Response{}, apperr.BadInput.New("comment must be 1 to %d characters", models.MaxCommentLength)
	}
	if _, err := s.store.GetItem(ctx, in.ItemID, actor.ID, models.VisibilityFor(actor)); err != nil {
		return models.Response{}, err
	}

	return s.store.CreateResponse(ctx, models.Response{
		ID:       s.newID(),
		ItemID:   in.ItemID,
		HasFound: in.HasFound,
		Comment:  comment,
		Public:   actor.Role.AtLeast(models.RoleAdmin),
		UserID:   actor.ID,
	})
}

func (s *ResponseService) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := requireUser(actor); err != nil {
		return err
	}

	resp, err := s.store.DeleteResponse(ctx, id, func(r models.Response) error {
		if !canManage(actor, r.UserID) {
			return apperr.Forbidden.New("response %s belongs to another user", r.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if resp.HasImage() {
		removeObjects(ctx, s.storage, s.log, *resp.Image, objectstore.ResponsePreviewKey(resp.ItemID, resp.ID))
	}

	if actor.ID != resp.UserID {
		record(ctx, s.audit, s.log, audit.Event{
			Action:   audit.ActionResponseDeleted,
			ActorID:  actor.ID,
			EntityID: resp.ID,
			Details:  map[string]any{"ownerId": resp.UserID, "itemId": resp.ItemID},
		})
	}
	return nil
}

func (s *ResponseService) SetVisibility(ctx context.Context, actor *models.User, id string, public bool) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return apperr.Forbidden.New("admin role required")
	}
	if err := s.store.SetResponsePublic(ctx, id, public); err != nil {
		return err
	}

	record(ctx, s.audit, s.log, audit.Event{
		Action:   audit.ActionResponseVisibility,
		ActorID:  actor.ID,
		EntityID: id,
		Details:  map[string]any{"public": public},
	})
	return nil
}
