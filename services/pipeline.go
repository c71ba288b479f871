package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/audit"
	"circus-pes/imaging"
	"circus-pes/models"
	"circus-pes/objectstore"
)

// TargetKind names the entity an image is attached to.
type TargetKind string

const (
	TargetItem     TargetKind = "item"
	TargetResponse TargetKind = "response"
)

type ImageTarget struct {
	Kind TargetKind
	ID   string
}

type ImageStore interface {
	FindItem(ctx context.Context, id string) (models.Item, error)
	FindResponse(ctx context.Context, id string) (models.Response, error)
	SetItemImage(ctx context.Context, id, image string, publish bool) error
	SetResponseImage(ctx context.Context, id, image string, publish bool) error
	DeleteItem(ctx context.Context, id string, authorize func(models.Item) error) (models.Item, []models.ResponseImage, error)
	RemoveResponse(ctx context.Context, id string) error
}

type UploadLimits struct {
	MinBytes        int64
	MaxBytes        int64
	TTL             time.Duration
	PreviewMaxWidth int
	MaxPixels       int64
}

// Pipeline attaches at most one image to an item or response. Uploads go
// straight from the client to the bucket; the pipeline signs the upload,
// then validates the stored bytes and derives the preview.
type Pipeline struct {
	store   ImageStore
	storage ObjectStorage
	audit   audit.Recorder
	log     *zap.Logger
	limits  UploadLimits
}

func NewPipeline(st ImageStore, storage ObjectStorage, rec audit.Recorder, log *zap.Logger, limits UploadLimits) *Pipeline {
	return &Pipeline{
		store:   st,
		storage: storage,
		audit:   rec,
		log:     log,
		limits:  limits,
	}
}

// slot is the image slot of one entity.
type slot struct {
	target      ImageTarget
	ownerID     string
	hasImage    bool
	originalKey func(ext string) string
	previewKey  string
	setImage    func(ctx context.Context, key string, publish bool) error
	// remove deletes the entity and returns the storage keys left behind
	// by its dependents.
	remove func(ctx context.Context) ([]string, error)
}

func (p *Pipeline) slot(ctx context.Context, t ImageTarget) (slot, error) {
	switch t.Kind {
	case TargetItem:
		it, err := p.store.FindItem(ctx, t.ID)
		if err != nil {
			return slot{}, err
		}
		return slot{
			target:   t,
			ownerID:  it.UserID,
			hasImage: it.HasImage(),
			originalKey: func(ext string) string {
				return objectstore.ItemImageKey(it.PatchVersionID, it.ID, ext)
			},
			previewKey: objectstore.ItemPreviewKey(it.PatchVersionID, it.ID),
			setImage: func(ctx context.Context, key string, publish bool) error {
				return p.store.SetItemImage(ctx, it.ID, key, publish)
			},
			remove: func(ctx context.Context) ([]string, error) {
				_, images, err := p.store.DeleteItem(ctx, it.ID, nil)
				if err != nil {
					return nil, err
				}
				keys := make([]string, 0, 2*len(images))
				for _, img := range images {
					keys = append(keys, img.Image, objectstore.ResponsePreviewKey(it.ID, img.ResponseID))
				}
				return keys, nil
			},
		}, nil
	case TargetResponse:
		r, err := p.store.FindResponse(ctx, t.ID)
		if err != nil {
			return slot{}, err
		}
		return slot{
			target:   t,
			ownerID:  r.UserID,
			hasImage: r.HasImage(),
			originalKey: func(ext string) string {
				return objectstore.ResponseImageKey(r.ItemID, r.ID, ext)
			},
			previewKey: objectstore.ResponsePreviewKey(r.ItemID, r.ID),
			setImage: func(ctx context.Context, key string, publish bool) error {
				return p.store.SetResponseImage(ctx, r.ID, key, publish)
			},
			remove: func(ctx context.Context) ([]string, error) {
				return nil, p.store.RemoveResponse(ctx, r.ID)
			},
		}, nil
	}
	return slot{}, apperr.BadInput.New("unknown image target %q", t.Kind)
}

// open resolves the slot and checks the actor may fill it.
func (p *Pipeline) open(ctx context.Context, actor *models.User, t ImageTarget) (slot, error) {
	if err := requireUser(actor); err != nil {
		return slot{}, err
	}
	s, err := p.slot(ctx, t)
	if err != nil {
		return slot{}, err
	}
	if !canManage(actor, s.ownerID) {
		return slot{}, apperr.Forbidden.New("%s %s belongs to another user", t.Kind, t.ID)
	}
	if s.hasImage {
		return slot{}, apperr.Forbidden.New("%s %s already has an image", t.Kind, t.ID)
	}
	return s, nil
}

// RequestUpload signs a time-boxed upload of one image for the target.
func (p *Pipeline) RequestUpload(ctx context.Context, actor *models.User, t ImageTarget, ext string) (objectstore.PresignedUpload, error) {
	normalized, ok := objectstore.NormalizeExt(ext)
	if !ok {
		return objectstore.PresignedUpload{}, apperr.BadInput.New("file type %q is not allowed", ext)
	}

	s, err := p.open(ctx, actor, t)
	if err != nil {
		return objectstore.PresignedUpload{}, err
	}

	upload, err := p.storage.PresignUpload(ctx, s.originalKey(normalized), objectstore.UploadPolicy{
		ContentTypePrefix: "image/",
		MinBytes:          p.limits.MinBytes,
		MaxBytes:          p.limits.MaxBytes,
		TTL:               p.limits.TTL,
	})
	if err != nil {
		return objectstore.PresignedUpload{}, apperr.Internal.Wrap(err)
	}
	return upload, nil
}

// NotifyImageSet validates an uploaded image by its content. A file that is
// not an image is removed together with the entity it was uploaded for.
// Otherwise the preview is stored and the key recorded; admin uploads
// also publish the entity.
func (p *Pipeline) NotifyImageSet(ctx context.Context, actor *models.User, t ImageTarget, key string) error {
	s, err := p.open(ctx, actor, t)
	if err != nil {
		return err
	}
	if !ownsKey(s, key) {
		return apperr.BadInput.New("key %q does not belong to %s %s", key, t.Kind, t.ID)
	}

	data, err := p.storage.Get(ctx, key, p.limits.MaxBytes)
	if err != nil {
		if apperr.BadInput.Has(err) {
			return err
		}
		return apperr.Internal.Wrap(err)
	}

	contentType, ok := imaging.Allowed(data)
	if !ok {
		return p.reject(ctx, actor, s, key, contentType,
			apperr.BadInput.New("uploaded file is %s, not a jpeg or png image", contentType))
	}

	preview, err := imaging.Preview(data, p.limits.PreviewMaxWidth, p.limits.MaxPixels)
	if err != nil {
		if apperr.BadInput.Has(err) {
			return p.reject(ctx, actor, s, key, contentType, err)
		}
		return apperr.Internal.Wrap(err)
	}
	if err := p.storage.Put(ctx, s.previewKey, preview, imaging.PreviewContentType); err != nil {
		return apperr.Internal.Wrap(err)
	}

	publish := actor.Role.AtLeast(models.RoleAdmin)
	if err := s.setImage(ctx, key, publish); err != nil {
		return err
	}

	p.log.Info("image attached",
		zap.String("target", string(t.Kind)),
		zap.String("id", t.ID),
		zap.String("content_type", contentType),
		zap.Bool("published", publish),
	)
	return nil
}

func ownsKey(s slot, key string) bool {
	for _, ext := range objectstore.ImageExtensions {
		if key == s.originalKey(ext) {
			return true
		}
	}
	return false
}

// reject discards the upload and the entity created to host it, along with
// the images of any responses removed with an item. Row and object
// deletions are not atomic; failures are logged.
func (p *Pipeline) reject(ctx context.Context, actor *models.User, s slot, key, contentType string, cause error) error {
	dependents, err := s.remove(ctx)
	if err != nil {
		p.log.Error("remove entity with invalid image",
			zap.String("target", string(s.target.Kind)),
			zap.String("id", s.target.ID),
			zap.Error(err),
		)
	}
	removeObjects(ctx, p.storage, p.log, append([]string{key}, dependents...)...)

	record(ctx, p.audit, p.log, audit.Event{
		Action:   audit.ActionImageRejected,
		ActorID:  actor.ID,
		EntityID: s.target.ID,
		Details:  map[string]any{"target": string(s.target.Kind), "contentType": contentType, "reason": cause.Error()},
	})

	return cause
}
