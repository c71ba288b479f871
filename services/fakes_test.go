package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/audit"
	"circus-pes/models"
	"circus-pes/objectstore"
	"circus-pes/store"
)

var (
	invited     = &models.User{ID: "u-invited", Name: "Invited", Role: models.RoleInvited}
	contributor = &models.User{ID: "u-contrib", Name: "Contrib", Role: models.RoleContributor}
	other       = &models.User{ID: "u-other", Name: "Other", Role: models.RoleContributor}
	admin       = &models.User{ID: "u-admin", Name: "Admin", Role: models.RoleAdmin}
)

// memStore is an in-memory stand-in for *store.Store.
type memStore struct {
	mu        sync.Mutex
	versions  map[string]models.PatchVersion
	items     map[string]models.Item
	responses map[string]models.Response
	likes     map[[2]string]models.Like
	users     map[string]models.User
	clock     time.Time

	categories []models.Category
	unlikeErr  error
}

func newMemStore() *memStore {
	s := &memStore{
		versions:  map[string]models.PatchVersion{},
		items:     map[string]models.Item{},
		responses: map[string]models.Response{},
		likes:     map[[2]string]models.Like{},
		users:     map[string]models.User{},
		clock:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	s.categories = []models.Category{
		{ID: "c1", Name: "Area18"},
		{ID: "c2", Name: "Hangar"},
		{ID: "c3", Name: "Lorville"},
	}
	s.versions["pv-open"] = models.PatchVersion{ID: "pv-open", Name: "3.23", Visible: true}
	s.versions["pv-hidden"] = models.PatchVersion{ID: "pv-hidden", Name: "4.0", Visible: false}
	for _, u := range []*models.User{invited, contributor, other, admin} {
		s.users[u.ID] = *u
	}
	return s
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Minute)
	return s.clock
}

func visibleTo(v models.Visibility, public bool, ownerID string) bool {
	switch v.Mode {
	case models.VisibilityStrict:
		return public == v.Public
	case models.VisibilityOwnerInclusive:
		return public == v.Public || (v.ViewerID != "" && ownerID == v.ViewerID)
	}
	return true
}

func (s *memStore) aggregate(it models.Item, viewerID string) models.AggregatedItem {
	agg := models.AggregatedItem{
		Item:             it,
		PatchVersionName: s.versions[it.PatchVersionID].Name,
		Owner:            models.Owner{ID: it.UserID, Name: s.users[it.UserID].Name},
	}
	for key := range s.likes {
		if key[1] != it.ID {
			continue
		}
		agg.LikeCount++
		if key[0] == viewerID {
			agg.HasLiked = true
		}
	}
	var public []models.Response
	for _, r := range s.responses {
		if r.ItemID == it.ID && r.Public {
			public = append(public, r)
		}
	}
	sort.Slice(public, func(i, j int) bool { return public[i].CreatedAt.After(public[j].CreatedAt) })
	for i, r := range public {
		if i == 2 {
			break
		}
		if r.HasFound {
			agg.FoundCount++
		} else {
			agg.NotFoundCount++
		}
	}
	return agg
}

func (s *memStore) ListItems(_ context.Context, q store.ItemQuery) ([]models.AggregatedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.versions[q.PatchVersionID]; !ok {
		return nil, apperr.BadInput.New("unknown patch version %q", q.PatchVersionID)
	}
	var out []models.AggregatedItem
	for _, it := range s.items {
		switch {
		case it.PatchVersionID != q.PatchVersionID,
			q.OwnerID != "" && it.UserID != q.OwnerID,
			q.Region != "" && !strings.HasPrefix(it.ShardID, q.Region),
			q.ShardID != "" && it.ShardID != q.ShardID,
			q.Location != "" && it.Location != q.Location,
			!visibleTo(q.Visibility, it.Public, it.UserID):
			continue
		}
		out = append(out, s.aggregate(it, q.ViewerID))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	switch q.Sort {
	case models.SortLikes:
		sort.SliceStable(out, func(i, j int) bool { return out[i].LikeCount > out[j].LikeCount })
	case models.SortFound:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].FoundCount != out[j].FoundCount {
				return out[i].FoundCount > out[j].FoundCount
			}
			return out[i].NotFoundCount < out[j].NotFoundCount
		})
	}
	if q.Offset >= len(out) {
		return []models.AggregatedItem{}, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memStore) GetItem(_ context.Context, id, viewerID string, v models.Visibility) (models.AggregatedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok || !visibleTo(v, it.Public, it.UserID) {
		return models.AggregatedItem{}, apperr.NotFound.New("item %s", id)
	}
	return s.aggregate(it, viewerID), nil
}

func (s *memStore) FindItem(_ context.Context, id string) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return models.Item{}, apperr.NotFound.New("item %s", id)
	}
	return it, nil
}

func (s *memStore) CreateItem(_ context.Context, it models.Item) (models.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it.CreatedAt = s.tick()
	it.UpdatedAt = it.CreatedAt
	s.items[it.ID] = it
	return it, nil
}

func (s *memStore) SetItemImage(_ context.Context, id, image string, publish bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return apperr.NotFound.New("item %s", id)
	}
	it.Image = &image
	it.Public = it.Public || publish
	s.items[id] = it
	return nil
}

func (s *memStore) SetItemPublic(_ context.Context, id string, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return apperr.NotFound.New("item %s", id)
	}
	it.Public = public
	s.items[id] = it
	return nil
}

func (s *memStore) DeleteItem(_ context.Context, id string, authorize func(models.Item) error) (models.Item, []models.ResponseImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return models.Item{}, nil, apperr.NotFound.New("item %s", id)
	}
	if authorize != nil {
		if err := authorize(it); err != nil {
			return models.Item{}, nil, err
		}
	}
	var images []models.ResponseImage
	for rid, r := range s.responses {
		if r.ItemID != id {
			continue
		}
		if r.HasImage() {
			images = append(images, models.ResponseImage{ResponseID: rid, Image: *r.Image})
		}
		delete(s.responses, rid)
	}
	for key := range s.likes {
		if key[1] == id {
			delete(s.likes, key)
		}
	}
	delete(s.items, id)
	return it, images, nil
}

func (s *memStore) Like(_ context.Context, like models.Like) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]string{like.UserID, like.ItemID}
	if _, ok := s.likes[key]; !ok {
		s.likes[key] = like
	}
	return nil
}

func (s *memStore) Unlike(_ context.Context, userID, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlikeErr != nil {
		return false, s.unlikeErr
	}
	key := [2]string{userID, itemID}
	_, ok := s.likes[key]
	delete(s.likes, key)
	return ok, nil
}

func (s *memStore) ShardCounts(_ context.Context, q store.FacetQuery) ([]models.ShardCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := map[string]int64{}
	for _, it := range s.items {
		if it.PatchVersionID == q.PatchVersionID && strings.HasPrefix(it.ShardID, q.Region) && visibleTo(q.Visibility, it.Public, it.UserID) {
			counts[it.ShardID]++
		}
	}
	out := make([]models.ShardCount, 0, len(counts))
	for shard, n := range counts {
		out = append(out, models.ShardCount{ShardID: shard, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ShardID < out[j].ShardID })
	return out, nil
}

func (s *memStore) Locations(_ context.Context, q store.FacetQuery) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	for _, it := range s.items {
		if it.PatchVersionID == q.PatchVersionID && strings.HasPrefix(it.ShardID, q.Region) &&
			(q.ShardID == "" || it.ShardID == q.ShardID) && visibleTo(q.Visibility, it.Public, it.UserID) {
			seen[it.Location] = true
		}
	}
	out := make([]string, 0, len(seen))
	for loc := range seen {
		out = append(out, loc)
	}
	sort.Strings(out)
	return out, nil
}

func (s *memStore) GetPatchVersion(_ context.Context, id string) (models.PatchVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pv, ok := s.versions[id]
	if !ok {
		return models.PatchVersion{}, apperr.NotFound.New("patch version %s", id)
	}
	return pv, nil
}

func (s *memStore) ListPatchVersions(_ context.Context, onlyVisible bool) ([]models.PatchVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PatchVersion
	for _, pv := range s.versions {
		if pv.Visible || !onlyVisible {
			out = append(out, pv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (s *memStore) CreatePatchVersion(_ context.Context, pv models.PatchVersion) (models.PatchVersion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.versions {
		if existing.Name == pv.Name {
			return models.PatchVersion{}, apperr.BadInput.New("patch version %q already exists", pv.Name)
		}
	}
	pv.CreatedAt = s.tick()
	s.versions[pv.ID] = pv
	return pv, nil
}

func (s *memStore) SetPatchVersionVisible(_ context.Context, id string, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	pv, ok := s.versions[id]
	if !ok {
		return apperr.NotFound.New("patch version %s", id)
	}
	pv.Visible = visible
	s.versions[id] = pv
	return nil
}

func (s *memStore) ListCategories(context.Context) ([]models.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Category(nil), s.categories...), nil
}

func (s *memStore) ListResponses(_ context.Context, q store.ResponseQuery) ([]models.AggregatedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.AggregatedResponse
	for _, r := range s.responses {
		if (q.ItemID != "" && r.ItemID != q.ItemID) || !visibleTo(q.Visibility, r.Public, r.UserID) {
			continue
		}
		it := s.items[r.ItemID]
		out = append(out, models.AggregatedResponse{
			Response:     r,
			Owner:        models.Owner{ID: r.UserID, Name: s.users[r.UserID].Name},
			ItemShardID:  it.ShardID,
			ItemLocation: it.Location,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if q.Offset >= len(out) {
		return []models.AggregatedResponse{}, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *memStore) FindResponse(_ context.Context, id string) (models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[id]
	if !ok {
		return models.Response{}, apperr.NotFound.New("response %s", id)
	}
	return r, nil
}

func (s *memStore) CreateResponse(_ context.Context, r models.Response) (models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.CreatedAt = s.tick()
	r.UpdatedAt = r.CreatedAt
	s.responses[r.ID] = r
	return r, nil
}

func (s *memStore) SetResponseImage(_ context.Context, id, image string, publish bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[id]
	if !ok {
		return apperr.NotFound.New("response %s", id)
	}
	r.Image = &image
	r.Public = r.Public || publish
	s.responses[id] = r
	return nil
}

func (s *memStore) SetResponsePublic(_ context.Context, id string, public bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[id]
	if !ok {
		return apperr.NotFound.New("response %s", id)
	}
	r.Public = public
	s.responses[id] = r
	return nil
}

func (s *memStore) DeleteResponse(_ context.Context, id string, authorize func(models.Response) error) (models.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.responses[id]
	if !ok {
		return models.Response{}, apperr.NotFound.New("response %s", id)
	}
	if err := authorize(r); err != nil {
		return models.Response{}, err
	}
	delete(s.responses, id)
	return r, nil
}

func (s *memStore) RemoveResponse(ctx context.Context, id string) error {
	_, err := s.DeleteResponse(ctx, id, func(models.Response) error { return nil })
	return err
}

func (s *memStore) UpsertUser(_ context.Context, p models.Profile) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[p.ID]
	if !ok {
		u = models.User{ID: p.ID, Role: models.RoleInvited, CreatedAt: s.tick()}
	}
	u.Name, u.Image, u.Discriminator = p.Name, p.Image, p.Discriminator
	u.UpdatedAt = s.tick()
	s.users[p.ID] = u
	return u, nil
}

func (s *memStore) GetUser(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, apperr.NotFound.New("user %s", id)
	}
	return u, nil
}

func (s *memStore) ListUsers(context.Context) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) SetUserRole(_ context.Context, id string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return apperr.NotFound.New("user %s", id)
	}
	u.Role = role
	s.users[id] = u
	return nil
}

type object struct {
	data        []byte
	contentType string
}

// memBucket is an in-memory stand-in for *objectstore.Bucket.
type memBucket struct {
	mu        sync.Mutex
	objects   map[string]object
	presigned []string
}

func newMemBucket() *memBucket {
	return &memBucket{objects: map[string]object{}}
}

func (b *memBucket) PresignUpload(_ context.Context, key string, p objectstore.UploadPolicy) (objectstore.PresignedUpload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presigned = append(b.presigned, key)
	return objectstore.PresignedUpload{
		URL:       "https://bucket.test/circuspes",
		Fields:    map[string]string{"key": key},
		Key:       key,
		ExpiresAt: time.Now().Add(p.TTL),
	}, nil
}

// upload simulates the client posting a file to a presigned form.
func (b *memBucket) upload(key string, data []byte, contentType string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = object{data: data, contentType: contentType}
}

func (b *memBucket) Get(_ context.Context, key string, maxBytes int64) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	obj, ok := b.objects[key]
	if !ok {
		return nil, apperr.BadInput.New("uploaded object %s not found", key)
	}
	if maxBytes > 0 && int64(len(obj.data)) > maxBytes {
		return nil, apperr.BadInput.New("uploaded object %s is too large", key)
	}
	return obj.data, nil
}

func (b *memBucket) Put(_ context.Context, key string, data []byte, contentType string) error {
	b.upload(key, data, contentType)
	return nil
}

func (b *memBucket) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *memBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

func (b *memBucket) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type memAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *memAudit) Record(_ context.Context, e audit.Event) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
	return nil
}

func (a *memAudit) History(_ context.Context, entityID string, limit int64) ([]audit.Event, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := []audit.Event{}
	for i := len(a.events) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if a.events[i].EntityID == entityID {
			out = append(out, a.events[i])
		}
	}
	return out, nil
}

func (a *memAudit) actions() []audit.Action {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]audit.Action, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.Action)
	}
	return out
}

type env struct {
	store     *memStore
	bucket    *memBucket
	audit     *memAudit
	items     *ItemService
	responses *ResponseService
	pipeline  *Pipeline
	versions  *PatchVersionService
	users     *UserService
}

const testMaxPixels = 64 * 64

func newEnv(t *testing.T) *env {
	t.Helper()
	st, bucket, rec, log := newMemStore(), newMemBucket(), &memAudit{}, zap.NewNop()
	return &env{
		store:     st,
		bucket:    bucket,
		audit:     rec,
		items:     NewItemService(st, bucket, rec, log),
		responses: NewResponseService(st, bucket, rec, log),
		pipeline: NewPipeline(st, bucket, rec, log, UploadLimits{
			MinBytes:        1,
			MaxBytes:        1 << 20,
			TTL:             5 * time.Minute,
			PreviewMaxWidth: 16,
			MaxPixels:       testMaxPixels,
		}),
		versions: NewPatchVersionService(st, log),
		users:    NewUserService(st, rec, log),
	}
}

func (e *env) createItem(t *testing.T, actor *models.User, shard string) models.Item {
	t.Helper()
	it, err := e.items.Create(context.Background(), actor, CreateItemInput{
		PatchVersionID: "pv-open",
		ShardID:        shard,
		Location:       "Area18",
		Description:    "Box behind the kiosk",
	})
	require.NoError(t, err)
	return it
}

func (e *env) createResponse(t *testing.T, actor *models.User, itemID string, found bool) models.Response {
	t.Helper()
	r, err := e.responses.Create(context.Background(), actor, CreateResponseInput{
		ItemID:   itemID,
		HasFound: found,
		Comment:  "checked it",
	})
	require.NoError(t, err)
	return r
}

// attach runs the full upload flow with a real PNG.
func (e *env) attach(t *testing.T, actor *models.User, target ImageTarget) string {
	t.Helper()
	ctx := context.Background()
	up, err := e.pipeline.RequestUpload(ctx, actor, target, "png")
	require.NoError(t, err)
	e.bucket.upload(up.Key, pngBytes(t, 32, 24), "image/png")
	require.NoError(t, e.pipeline.NotifyImageSet(ctx, actor, target, up.Key))
	return up.Key
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
