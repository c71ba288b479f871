package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/models"
)

const maxPatchVersionName = 32

type PatchVersionStore interface {
	ListPatchVersions(ctx context.Context, onlyVisible bool) ([]models.PatchVersion, error)
	CreatePatchVersion(ctx context.Context, pv models.PatchVersion) (models.PatchVersion, error)
	SetPatchVersionVisible(ctx context.Context, id string, visible bool) error
	ListCategories(ctx context.Context) ([]models.Category, error)
}

type PatchVersionService struct {
	store PatchVersionStore
	log   *zap.Logger
	newID func() string
}

func NewPatchVersionService(st PatchVersionStore, log *zap.Logger) *PatchVersionService {
	return &PatchVersionService{store: st, log: log, newID: uuid.NewString}
}

// ListVisible returns the versions shown on the site, newest first.
func (s *PatchVersionService) ListVisible(ctx context.Context) ([]models.PatchVersion, error) {
	return s.store.ListPatchVersions(ctx, true)
}

func (s *PatchVersionService) ListAll(ctx context.Context) ([]models.PatchVersion, error) {
	return s.store.ListPatchVersions(ctx, false)
}

// Create adds a hidden version; it is opened with SetVisibility.
func (s *PatchVersionService) Create(ctx context.Context, actor *models.User, name string) (models.PatchVersion, error) {
	if err := requireUser(actor); err != nil {
		return models.PatchVersion{}, err
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return models.PatchVersion{}, apperr.Forbidden.New("admin role required")
	}
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxPatchVersionName {
		return models.PatchVersion{}, apperr.BadInput.New("name must be 1 to %d characters", maxPatchVersionName)
	}

	pv, err := s.store.CreatePatchVersion(ctx, models.PatchVersion{ID: s.newID(), Name: name})
	if err != nil {
		return models.PatchVersion{}, err
	}
	s.log.Info("patch version created", zap.String("id", pv.ID), zap.String("name", pv.Name))
	return pv, nil
}

func (s *PatchVersionService) SetVisibility(ctx context.Context, actor *models.User, id string, visible bool) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return apperr.Forbidden.New("admin role required")
	}
	return s.store.SetPatchVersionVisible(ctx, id, visible)
}

func (s *PatchVersionService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.store.ListCategories(ctx)
}
