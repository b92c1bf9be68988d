package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/app/repository"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/cache"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/entitlements"
)

const (
	saveLeaseTTL   = 10 * time.Second
	maxSaveRetries = 1
)

// Locker serializes saves of one project across server processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lease, error)
}

// Recorder observes save outcomes, used for metrics.
type Recorder interface {
	VersionSaved(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) VersionSaved(string) {}

// CreateInput is a new project as submitted by its owner.
type CreateInput struct {
	Name        string
	Description string
	Visibility  string
}

// SaveInput is a full diagram snapshot. Missing collections default to empty.
type SaveInput struct {
	Resources     json.RawMessage
	Connections   json.RawMessage
	Positions     json.RawMessage
	TerraformCode string
}

// Service owns projects and their append-only version log.
type Service struct {
	projects repository.ProjectRepository
	versions repository.VersionRepository
	limits   entitlements.Limits
	locker   Locker
	recorder Recorder
	now      func() time.Time
}

func NewService(projects repository.ProjectRepository, versions repository.VersionRepository, limits entitlements.Limits) *Service {
	return &Service{
		projects: projects,
		versions: versions,
		limits:   limits,
		recorder: nopRecorder{},
		now:      time.Now,
	}
}

// WithLocker enables the per-project save lease.
func (s *Service) WithLocker(l Locker) *Service {
	s.locker = l
	return s
}

func (s *Service) WithRecorder(r Recorder) *Service {
	if r != nil {
		s.recorder = r
	}
	return s
}

func (s *Service) List(ctx context.Context, user *models.User) ([]models.Project, error) {
	return s.projects.ListByUser(user.ID)
}

// Create adds a project unless the owner's tier limit is reached.
func (s *Service) Create(ctx context.Context, user *models.User, in CreateInput) (*models.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, ErrNameRequired
	}
	visibility := strings.TrimSpace(in.Visibility)
	if visibility == "" {
		visibility = models.VisibilityPrivate
	}
	if !models.IsValidVisibility(visibility) {
		return nil, ErrInvalidVisibility
	}

	count, err := s.projects.CountByUser(user.ID)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}
	if !s.limits.CanCreateProject(user, count, s.now()) {
		return nil, ErrProjectLimit
	}

	project := &models.Project{
		UserID:      user.ID,
		Name:        name,
		Description: in.Description,
		Visibility:  visibility,
	}
	if err := project.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProject, err)
	}
	if err := s.projects.Create(project); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	log.Infof("[Projects] Project created: %s by user %s", project.ID, user.ID)
	return project, nil
}

// Get returns a project the user owns.
func (s *Service) Get(ctx context.Context, user *models.User, projectID string) (*models.Project, error) {
	project, err := s.projects.GetByID(projectID)
	if repository.IsNotFound(err) {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, err
	}
	if project.UserID != user.ID {
		return nil, ErrForbidden
	}
	return project, nil
}

func (s *Service) Delete(ctx context.Context, user *models.User, projectID string) error {
	if _, err := s.Get(ctx, user, projectID); err != nil {
		return err
	}
	if err := s.projects.Delete(projectID); err != nil {
		if repository.IsNotFound(err) {
			return ErrProjectNotFound
		}
		return fmt.Errorf("delete project: %w", err)
	}
	log.Infof("[Projects] Project deleted: %s", projectID)
	return nil
}

// Save appends the snapshot as the next version. A lost race on the version
// number is retried once before ErrVersionConflict is returned.
func (s *Service) Save(ctx context.Context, user *models.User, projectID string, in SaveInput) (*models.ProjectVersion, error) {
	if _, err := s.Get(ctx, user, projectID); err != nil {
		return nil, err
	}
	version, err := newVersion(projectID, user.ID, in)
	if err != nil {
		return nil, err
	}

	lease, err := s.acquire(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			log.Warnf("[Projects] Failed to release save lease for %s: %v", projectID, err)
		}
	}()

	for attempt := 0; ; attempt++ {
		err := s.versions.Append(version)
		if err == nil {
			break
		}
		if !repository.IsDuplicateKey(err) {
			s.recorder.VersionSaved("error")
			return nil, fmt.Errorf("append version: %w", err)
		}
		if attempt >= maxSaveRetries {
			log.Warnf("[Projects] Version conflict on project %s persisted after retry", projectID)
			s.recorder.VersionSaved("conflict")
			return nil, ErrVersionConflict
		}
		log.Infof("[Projects] Version number race on project %s, retrying", projectID)
	}

	s.recorder.VersionSaved("ok")
	log.Infof("[Projects] Saved version %d of project %s", version.VersionNumber, projectID)
	return version, nil
}

func (s *Service) acquire(ctx context.Context, projectID string) (*cache.Lease, error) {
	if s.locker == nil {
		return nil, nil
	}
	lease, err := s.locker.Acquire(ctx, "project:save:"+projectID, saveLeaseTTL)
	switch {
	case err == nil:
		return lease, nil
	case errors.Is(err, cache.ErrLeaseHeld):
		s.recorder.VersionSaved("conflict")
		return nil, ErrVersionConflict
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		// Cache outage: the unique index still guards the version numbers.
		log.Warnf("[Projects] Save lease unavailable for %s, continuing without: %v", projectID, err)
		return nil, nil
	}
}

// LoadLatest returns the newest version, or the empty sentinel when none exists.
func (s *Service) LoadLatest(ctx context.Context, user *models.User, projectID string) (*models.ProjectVersion, error) {
	if _, err := s.Get(ctx, user, projectID); err != nil {
		return nil, err
	}
	v, err := s.versions.GetLatest(projectID)
	if repository.IsNotFound(err) {
		return models.EmptyProjectVersion(projectID), nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (s *Service) LoadVersion(ctx context.Context, user *models.User, projectID string, number int) (*models.ProjectVersion, error) {
	if _, err := s.Get(ctx, user, projectID); err != nil {
		return nil, err
	}
	v, err := s.versions.GetByNumber(projectID, number)
	if repository.IsNotFound(err) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListVersions returns version metadata, newest first.
func (s *Service) ListVersions(ctx context.Context, user *models.User, projectID string) ([]models.ProjectVersionMeta, error) {
	if _, err := s.Get(ctx, user, projectID); err != nil {
		return nil, err
	}
	return s.versions.ListMeta(projectID)
}

func newVersion(projectID, userID string, in SaveInput) (*models.ProjectVersion, error) {
	resources, count, err := jsonArray(in.Resources, "resources")
	if err != nil {
		return nil, err
	}
	connections, _, err := jsonArray(in.Connections, "connections")
	if err != nil {
		return nil, err
	}
	positions, err := jsonObject(in.Positions, "positions")
	if err != nil {
		return nil, err
	}
	return &models.ProjectVersion{
		ProjectID:     projectID,
		Resources:     resources,
		Connections:   connections,
		Positions:     positions,
		TerraformCode: in.TerraformCode,
		ResourceCount: count,
		CreatedBy:     userID,
	}, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func jsonArray(raw json.RawMessage, field string) (datatypes.JSON, int, error) {
	if isAbsent(raw) {
		return datatypes.JSON("[]"), 0, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, 0, fmt.Errorf("%w: %s must be a list", ErrInvalidSnapshot, field)
	}
	return datatypes.JSON(bytes.TrimSpace(raw)), len(items), nil
}

func jsonObject(raw json.RawMessage, field string) (datatypes.JSON, error) {
	if isAbsent(raw) {
		return datatypes.JSON("{}"), nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %s must be an object", ErrInvalidSnapshot, field)
	}
	return datatypes.JSON(bytes.TrimSpace(raw)), nil
}
