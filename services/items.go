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
	defaultListLimit = 50
	maxListLimit     = 100
	userPageSize     = 12
)

type ItemStore interface {
	ListItems(ctx context.Context, q store.ItemQuery) ([]models.AggregatedItem, error)
	GetItem(ctx context.Context, id, viewerID string, v models.Visibility) (models.AggregatedItem, error)
	CreateItem(ctx context.Context, it models.Item) (models.Item, error)
	SetItemPublic(ctx context.Context, id string, public bool) error
	DeleteItem(ctx context.Context, id string, authorize func(models.Item) error) (models.Item, []models.ResponseImage, error)
	Like(ctx context.Context, like models.Like) error
	Unlike(ctx context.Context, userID, itemID string) (bool, error)
	ShardCounts(ctx context.Context, q store.FacetQuery) ([]models.ShardCount, error)
	Locations(ctx context.Context, q store.FacetQuery) ([]string, error)
	GetPatchVersion(ctx context.Context, id string) (models.PatchVersion, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type ItemService struct {
	store   ItemStore
	storage ObjectStorage
	audit   audit.Recorder
	log     *zap.Logger
	newID   func() string
}

func NewItemService(st ItemStore, storage ObjectStorage, rec audit.Recorder, log *zap.Logger) *ItemService {
	return &ItemService{
		store:   st,
		storage: storage,
		audit:   rec,
		log:     log,
		newID:   uuid.NewString,
	}
}

// ListItemsInput carries the optional filters of a version listing.
type ListItemsInput struct {
	PatchVersionID string
	Sort           models.ItemSort
	Region         string
	ShardID        string
	Location       string
	Offset         int
	Limit          int
}

func (in ListItemsInput) query() store.ItemQuery {
	limit := in.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return store.ItemQuery{
		PatchVersionID: in.PatchVersionID,
		Sort:           in.Sort,
		Region:         strings.ToUpper(in.Region),
		ShardID:        strings.ToUpper(in.ShardID),
		Location:       in.Location,
		Offset:         max(0, in.Offset),
		Limit:          limit,
	}
}

// List is the public site listing of a patch version.
func (s *ItemService) List(ctx context.Context, viewer *models.User, in ListItemsInput) ([]models.AggregatedItem, error) {
	q := in.query()
	q.ViewerID = viewerID(viewer)
	q.Visibility = siteVisibility(viewer)
	return s.store.ListItems(ctx, q)
}

// ListForModeration ignores ownership: all items when public is nil,
// otherwise only the ones with that public flag.
func (s *ItemService) ListForModeration(ctx context.Context, admin *models.User, in ListItemsInput, public *bool) ([]models.AggregatedItem, error) {
	q := in.query()
	q.ViewerID = viewerID(admin)
	q.Visibility = models.Unrestricted()
	if public != nil {
		q.Visibility = models.StrictPublic(*public)
	}
	return s.store.ListItems(ctx, q)
}

// ListByUser pages through one owner's items of a version, newest first.
// Owners and admins see private items too.
func (s *ItemService) ListByUser(ctx context.Context, viewer *models.User, patchVersionID, ownerID string, cursor int) (Page[models.AggregatedItem], error) {
	vis := models.StrictPublic(true)
	if viewer != nil && (viewer.ID == ownerID || viewer.Role.AtLeast(models.RoleAdmin)) {
		vis = models.Unrestricted()
	}

	offset, limit, err := pageWindow(cursor, userPageSize)
	if err != nil {
		return Page[models.AggregatedItem]{}, err
	}
	rows, err := s.store.ListItems(ctx, store.ItemQuery{
		PatchVersionID: patchVersionID,
		Sort:           models.SortRecent,
		OwnerID:        ownerID,
		ViewerID:       viewerID(viewer),
		Visibility:     vis,
		Offset:         offset,
		Limit:          limit,
	})
	if err != nil {
		return Page[models.AggregatedItem]{}, err
	}
	return newPage(rows, cursor, userPageSize), nil
}

func (s *ItemService) Get(ctx context.Context, viewer *models.User, id string) (models.AggregatedItem, error) {
	return s.store.GetItem(ctx, id, viewerID(viewer), models.VisibilityFor(viewer))
}

type CreateItemInput struct {
	PatchVersionID string
	ShardID        string
	Location       string
	Description    string
}

func (in CreateItemInput) validate() error {
	if !models.ValidShardID(in.ShardID) {
		return apperr.BadInput.New("invalid shard id %q", in.ShardID)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.Description)); n == 0 || n > models.MaxDescriptionLength {
		return apperr.BadInput.New("description must be 1 to %d characters", models.MaxDescriptionLength)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(in.Location)); n == 0 || n > models.MaxLocationLength {
		return apperr.BadInput.New("location must be 1 to %d characters", models.MaxLocationLength)
	}
	return nil
}

// Create stores a new item. Admin submissions are public immediately,
// everyone else's wait for moderation.
func (s *ItemService) Create(ctx context.Context, actor *models.User, in CreateItemInput) (models.Item, error) {
	if err := requireUser(actor); err != nil {
		return models.Item{}, err
	}
	if !actor.Role.AtLeast(models.RoleContributor) {
		return models.Item{}, apperr.Forbidden.New("contributor role required")
	}
	in.ShardID = strings.ToUpper(strings.TrimSpace(in.ShardID))
	if err := in.validate(); err != nil {
		return models.Item{}, err
	}

	pv, err := s.store.GetPatchVersion(ctx, in.PatchVersionID)
	if err != nil {
		if apperr.NotFound.Has(err) {
			return models.Item{}, apperr.BadInput.New("unknown patch version %q", in.PatchVersionID)
		}
		return models.Item{}, err
	}
	isAdmin := actor.Role.AtLeast(models.RoleAdmin)
	if !pv.Visible && !isAdmin {
		return models.Item{}, apperr.Forbidden.New("patch version %s is closed for submissions", pv.Name)
	}
	location, err := s.curatedLocation(ctx, in.Location)
	if err != nil {
		return models.Item{}, err
	}

	return s.store.CreateItem(ctx, models.Item{
		ID:             s.newID(),
		PatchVersionID: pv.ID,
		ShardID:        in.ShardID,
		Location:       location,
		Description:    strings.TrimSpace(in.Description),
		Public:         isAdmin,
		UserID:         actor.ID,
	})
}

// curatedLocation matches a location against the category list, ignoring
// case, and returns the curated spelling. An empty list accepts anything.
func (s *ItemService) curatedLocation(ctx context.Context, location string) (string, error) {
	location = strings.TrimSpace(location)
	categories, err := s.store.ListCategories(ctx)
	if err != nil {
		return "", err
	}
	if len(categories) == 0 {
		return location, nil
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, location) {
			return c.Name, nil
		}
	}
	return "", apperr.BadInput.New("unknown location %q", location)
}

// Delete removes the item, its responses and likes, then their images.
func (s *ItemService) Delete(ctx context.Context, actor *models.User, id string) error {
	if err := requireUser(actor); err != nil {
		return err
	}

	item, images, err := s.store.DeleteItem(ctx, id, func(it models.Item) error {
		if !canManage(actor, it.UserID) {
			return apperr.Forbidden.New("item %s belongs to another user", it.ID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	keys := make([]string, 0, 2+2*len(images))
	if item.HasImage() {
		keys = append(keys, *item.Image, objectstore.ItemPreviewKey(item.PatchVersionID, item.ID))
	}
	for _, img := range images {
		keys = append(keys, img.Image, objectstore.ResponsePreviewKey(item.ID, img.ResponseID))
	}
	removeObjects(ctx, s.storage, s.log, keys...)

	if actor.ID != item.UserID {
		record(ctx, s.audit, s.log, audit.Event{
			Action:   audit.ActionItemDeleted,
			ActorID:  actor.ID,
			EntityID: item.ID,
			Details:  map[string]any{"ownerId": item.UserID, "responses": len(images)},
		})
	}
	return nil
}

// Like returns the refreshed item. Liking twice counts once.
func (s *ItemService) Like(ctx context.Context, actor *models.User, id string) (models.AggregatedItem, error) {
	if err := requireUser(actor); err != nil {
		return models.AggregatedItem{}, err
	}
	if _, err := s.Get(ctx, actor, id); err != nil {
		return models.AggregatedItem{}, err
	}

	if err := s.store.Like(ctx, models.Like{ID: s.newID(), UserID: actor.ID, ItemID: id}); err != nil {
		return models.AggregatedItem{}, err
	}
	return s.Get(ctx, actor, id)
}

// Unlike returns the refreshed item. A failed delete is logged and the
// current aggregate is returned anyway.
func (s *ItemService) Unlike(ctx context.Context, actor *models.User, id string) (models.AggregatedItem, error) {
	if err := requireUser(actor); err != nil {
		return models.AggregatedItem{}, err
	}
	if _, err := s.store.Unlike(ctx, actor.ID, id); err != nil {
		s.log.Warn("unlike item", zap.String("item_id", id), zap.String("user_id", actor.ID), zap.Error(err))
	}
	return s.Get(ctx, actor, id)
}

func (s *ItemService) SetVisibility(ctx context.Context, actor *models.User, id string, public bool) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return apperr.Forbidden.New("admin role required")
	}
	if err := s.store.SetItemPublic(ctx, id, public); err != nil {
		return err
	}

	record(ctx, s.audit, s.log, audit.Event{
		Action:   audit.ActionItemVisibility,
		ActorID:  actor.ID,
		EntityID: id,
		Details:  map[string]any{"public": public},
	})
	return nil
}

// FacetInput scopes the shard and location pickers.
type FacetInput struct {
	PatchVersionID string
	Region         string
	ShardID        string
}

func (s *ItemService) Shards(ctx context.Context, viewer *models.User, in FacetInput) ([]models.ShardCount, error) {
	return s.store.ShardCounts(ctx, store.FacetQuery{
		PatchVersionID: in.PatchVersionID,
		Region:         strings.ToUpper(in.Region),
		Visibility:     siteVisibility(viewer),
	})
}

func (s *ItemService) Locations(ctx context.Context, viewer *models.User, in FacetInput) ([]string, error) {
	return s.store.Locations(ctx, store.FacetQuery{
		PatchVersionID: in.PatchVersionID,
		Region:         strings.ToUpper(in.Region),
		ShardID:        strings.ToUpper(in.ShardID),
		Visibility:     siteVisibility(viewer),
	})
}
