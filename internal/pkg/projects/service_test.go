package projects

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/app/repository"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/cache"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/database"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/entitlements"
)

var testLimits = entitlements.Limits{FreeProjects: 3, ProProjects: entitlements.Unlimited}

type fakeLocker struct {
	err   error
	calls []string
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lease, error) {
	f.calls = append(f.calls, key)
	return nil, f.err
}

// racingVersions fails the first n appends with a duplicate key error.
type racingVersions struct {
	repository.VersionRepository
	failures int
	appends  int
}

func (r *racingVersions) Append(v *models.ProjectVersion) error {
	r.appends++
	if r.failures > 0 {
		r.failures--
		return gorm.ErrDuplicatedKey
	}
	return r.VersionRepository.Append(v)
}

type countingRecorder map[string]int

func (c countingRecorder) VersionSaved(outcome string) { c[outcome]++ }

func setup(t *testing.T) (*Service, *repository.Repositories) {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	repos := repository.NewRepositories(db)
	return NewService(repos.Project, repos.Version, testLimits), repos
}

func newUser(t *testing.T, repos *repository.Repositories, email string) *models.User {
	t.Helper()
	u, err := models.CreateUser("Owner", email, "password123")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(u))
	return u
}

func snapshot(resources int) SaveInput {
	items := make([]map[string]string, resources)
	for i := range items {
		items[i] = map[string]string{"id": string(rune('a' + i)), "type": "aws_instance"}
	}
	raw, _ := json.Marshal(items)
	return SaveInput{
		Resources:   raw,
		Connections: json.RawMessage(`[]`),
		Positions:   json.RawMessage(`{"a":{"x":10,"y":20}}`),
	}
}

func TestSequentialSavesNumberVersions(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	owner := newUser(t, repos, "owner@example.com")

	project, err := svc.Create(ctx, owner, CreateInput{Name: "Infra"})
	require.NoError(t, err)
	assert.Equal(t, models.VisibilityPrivate, project.Visibility)

	for i := 1; i <= 5; i++ {
		v, err := svc.Save(ctx, owner, project.ID, snapshot(i))
		require.NoError(t, err)
		assert.Equal(t, i, v.VersionNumber)
		assert.Equal(t, i, v.ResourceCount)
	}

	latest, err := svc.LoadLatest(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, latest.VersionNumber)
	assert.JSONEq(t, `{"a":{"x":10,"y":20}}`, string(latest.Positions))

	metas, err := svc.ListVersions(ctx, owner, project.ID)
	require.NoError(t, err)
	require.Len(t, metas, 5)
	for i, m := range metas {
		assert.Equal(t, 5-i, m.VersionNumber)
		assert.Equal(t, 5-i, m.ResourceCount)
		assert.Equal(t, owner.ID, m.CreatedBy)
	}

	v3, err := svc.LoadVersion(ctx, owner, project.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, v3.ResourceCount)
}

func TestLoadWithoutVersions(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	owner := newUser(t, repos, "empty@example.com")
	project, err := svc.Create(ctx, owner, CreateInput{Name: "Empty"})
	require.NoError(t, err)

	latest, err := svc.LoadLatest(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, latest.VersionNumber)
	assert.JSONEq(t, `[]`, string(latest.Resources))
	assert.JSONEq(t, `{}`, string(latest.Positions))
	assert.Empty(t, latest.TerraformCode)

	_, err = svc.LoadVersion(ctx, owner, project.ID, 1)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	metas, err := svc.ListVersions(ctx, owner, project.ID)
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestOwnershipChecks(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	owner := newUser(t, repos, "a@example.com")
	other := newUser(t, repos, "b@example.com")
	project, err := svc.Create(ctx, owner, CreateInput{Name: "Private"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, other, project.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Save(ctx, other, project.ID, snapshot(1))
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = svc.LoadLatest(ctx, other, project.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, svc.Delete(ctx, other, project.ID), ErrForbidden)

	_, err = svc.Get(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = svc.ListVersions(ctx, owner, "missing")
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestCreateValidationAndLimits(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	free := newUser(t, repos, "free@example.com")

	_, err := svc.Create(ctx, free, CreateInput{Name: "   "})
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = svc.Create(ctx, free, CreateInput{Name: "x", Visibility: "secret"})
	assert.ErrorIs(t, err, ErrInvalidVisibility)

	for i := 0; i < testLimits.FreeProjects; i++ {
		_, err := svc.Create(ctx, free, CreateInput{Name: "p", Visibility: models.VisibilityTeam})
		require.NoError(t, err)
	}
	_, err = svc.Create(ctx, free, CreateInput{Name: "one too many"})
	assert.ErrorIs(t, err, ErrProjectLimit)

	now := time.Now()
	free.StartTrial(now, now.Add(72*time.Hour))
	_, err = svc.Create(ctx, free, CreateInput{Name: "trial project"})
	assert.NoError(t, err, "active trial lifts the free limit")

	pro := newUser(t, repos, "pro@example.com")
	pro.SubscriptionTier = models.TierPro
	for i := 0; i < 10; i++ {
		_, err := svc.Create(ctx, pro, CreateInput{Name: "pro"})
		require.NoError(t, err)
	}
}

func TestDeleteRemovesVersions(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	owner := newUser(t, repos, "delete@example.com")
	project, err := svc.Create(ctx, owner, CreateInput{Name: "Doomed"})
	require.NoError(t, err)
	_, err = svc.Save(ctx, owner, project.ID, snapshot(2))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, owner, project.ID))
	_, err = svc.Get(ctx, owner, project.ID)
	assert.ErrorIs(t, err, ErrProjectNotFound)

	_, err = repos.Version.GetLatest(project.ID)
	assert.True(t, repository.IsNotFound(err))
}

func TestSaveRetriesOnceOnVersionRace(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	owner := newUser(t, repos, "race@example.com")
	project, err := svc.Create(ctx, owner, CreateInput{Name: "Race"})
	require.NoError(t, err)

	rec := countingRecorder{}
	racing := &racingVersions{VersionRepository: repos.Version, failures: 1}
	svc.versions = racing
	svc.WithRecorder(rec)

	v, err := svc.Save(ctx, owner, project.ID, snapshot(1))
	require.NoError(t, err)
	assert.Equal(t, 1, v.VersionNumber)
	assert.Equal(t, 2, racing.appends)

	racing.failures = 2
	racing.appends = 0
	_, err = svc.Save(ctx, owner, project.ID, snapshot(1))
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 2, racing.appends)
	assert.Equal(t, 1, rec["ok"])
	assert.Equal(t, 1, rec["conflict"])
}

func TestSaveLease(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	owner := newUser(t, repos, "lease@example.com")
	project, err := svc.Create(ctx, owner, CreateInput{Name: "Leased"})
	require.NoError(t, err)

	locker := &fakeLocker{}
	svc.WithLocker(locker)
	_, err = svc.Save(ctx, owner, project.ID, snapshot(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"project:save:" + project.ID}, locker.calls)

	locker.err = cache.ErrLeaseHeld
	_, err = svc.Save(ctx, owner, project.ID, snapshot(1))
	assert.ErrorIs(t, err, ErrVersionConflict)

	locker.err = errors.New("dial tcp: connection refused")
	v, err := svc.Save(ctx, owner, project.ID, snapshot(1))
	require.NoError(t, err, "saves proceed when the cache is down")
	assert.Equal(t, 2, v.VersionNumber)
}

func TestSaveRejectsMalformedSnapshot(t *testing.T) {
	svc, repos := setup(t)
	ctx := context.Background()
	owner := newUser(t, repos, "bad@example.com")
	project, err := svc.Create(ctx, owner, CreateInput{Name: "Bad"})
	require.NoError(t, err)

	_, err = svc.Save(ctx, owner, project.ID, SaveInput{Resources: json.RawMessage(`{"not":"a list"}`)})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)
	_, err = svc.Save(ctx, owner, project.ID, SaveInput{Positions: json.RawMessage(`[1,2]`)})
	assert.ErrorIs(t, err, ErrInvalidSnapshot)

	v, err := svc.Save(ctx, owner, project.ID, SaveInput{Resources: json.RawMessage(`null`)})
	require.NoError(t, err)
	assert.Equal(t, 0, v.ResourceCount)
	assert.JSONEq(t, `[]`, string(v.Connections))
}
