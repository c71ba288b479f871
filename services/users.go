package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"circus-pes/apperr"
	"circus-pes/audit"
	"circus-pes/models"
)

type UserStore interface {
	UpsertUser(ctx context.Context, p models.Profile) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetUserRole(ctx context.Context, id string, role models.Role) error
}

type UserService struct {
	store UserStore
	audit audit.Recorder
	log   *zap.Logger
}

func NewUserService(st UserStore, rec audit.Recorder, log *zap.Logger) *UserService {
	return &UserService{store: st, audit: rec, log: log}
}

// Sync records a sign-in from the identity provider.
func (s *UserService) Sync(ctx context.Context, p models.Profile) (models.User, error) {
	p.ID = strings.TrimSpace(p.ID)
	p.Name = strings.TrimSpace(p.Name)
	if p.ID == "" || p.Name == "" {
		return models.User{}, apperr.BadInput.New("profile id and name are required")
	}
	return s.store.UpsertUser(ctx, p)
}

func (s *UserService) Get(ctx context.Context, id string) (models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return nil, apperr.Forbidden.New("admin role required")
	}
	return s.store.ListUsers(ctx)
}

// UpdateRole changes another user's role. Admins cannot change their own.
func (s *UserService) UpdateRole(ctx context.Context, actor *models.User, id string, role models.Role) error {
	if err := requireUser(actor); err != nil {
		return err
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return apperr.Forbidden.New("admin role required")
	}
	if !role.Valid() {
		return apperr.BadInput.New("invalid role %d", int(role))
	}
	if actor.ID == id {
		return apperr.Forbidden.New("cannot change your own role")
	}

	prev, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetUserRole(ctx, id, role); err != nil {
		return err
	}

	record(ctx, s.audit, s.log, audit.Event{
		Action:   audit.ActionUserRole,
		ActorID:  actor.ID,
		EntityID: id,
		Details:  map[string]any{"from": prev.Role.String(), "to": role.String()},
	})
	return nil
}

// History returns the moderation events recorded for an entity.
func (s *UserService) History(ctx context.Context, actor *models.User, entityID string, limit int64) ([]audit.Event, error) {
	if err := requireUser(actor); err != nil {
		return nil, err
	}
	if !actor.Role.AtLeast(models.RoleAdmin) {
		return nil, apperr.Forbidden.New("admin role required")
	}
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	events, err := s.audit.History(ctx, entityID, limit)
	if err != nil {
		return nil, apperr.Internal.Wrap(err)
	}
	return events, nil
}
