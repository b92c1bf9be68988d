package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TFVisualizer/app/models"
	"github.com/ManuelReschke/TFVisualizer/internal/pkg/database"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func createUser(t *testing.T, repos *Repositories, email string) *models.User {
	t.Helper()
	u, err := models.CreateUser("Test User", email, "password123")
	require.NoError(t, err)
	require.NoError(t, repos.User.Create(u))
	return u
}

func TestUserRepositoryLookups(t *testing.T) {
	repos := NewRepositories(setupDB(t))
	u := createUser(t, repos, "Lookup@Example.com")

	got, err := repos.User.GetByEmail("  LOOKUP@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	customer := "cus_42"
	provider := models.OAuthProviderGoogle
	oauthID := "g-123"
	got.StripeCustomerID = &customer
	got.OAuthProvider = &provider
	got.OAuthID = &oauthID
	require.NoError(t, repos.User.Update(got))

	byCustomer, err := repos.User.GetByStripeCustomerID("cus_42")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byCustomer.ID)

	byOAuth, err := repos.User.GetByOAuth("google", "g-123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byOAuth.ID)

	_, err = repos.User.GetByStripeCustomerID("")
	assert.True(t, IsNotFound(err))
}

func TestUserRepositoryDuplicateEmail(t *testing.T) {
	repos := NewRepositories(setupDB(t))
	createUser(t, repos, "dupe@example.com")

	u, err := models.CreateUser("Other", "dupe@example.com", "password123")
	require.NoError(t, err)
	err = repos.User.Create(u)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestUserRepositoryTrialQueries(t *testing.T) {
	repos := NewRepositories(setupDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	expired := createUser(t, repos, "expired@example.com")
	expired.StartTrial(now.AddDate(0, 0, -14), now.Add(-time.Hour))
	require.NoError(t, repos.User.Update(expired))

	active := createUser(t, repos, "active@example.com")
	active.StartTrial(now, now.AddDate(0, 0, 7))
	require.NoError(t, repos.User.Update(active))

	createUser(t, repos, "none@example.com")

	expiredUsers, err := repos.User.ListExpiredTrials(now)
	require.NoError(t, err)
	require.Len(t, expiredUsers, 1)
	assert.Equal(t, expired.ID, expiredUsers[0].ID)

	activeUsers, err := repos.User.ListActiveTrials(now)
	require.NoError(t, err)
	require.Len(t, activeUsers, 1)
	assert.Equal(t, active.ID, activeUsers[0].ID)
}

func TestVersionRepositoryAppendsSequentially(t *testing.T) {
	repos := NewRepositories(setupDB(t))
	u := createUser(t, repos, "versions@example.com")
	p := &models.Project{UserID: u.ID, Name: "infra"}
	require.NoError(t, repos.Project.Create(p))

	for i := 1; i <= 3; i++ {
		v := &models.ProjectVersion{
			ProjectID:     p.ID,
			Resources:     datatypes.JSON(`[]`),
			Connections:   datatypes.JSON(`[]`),
			Positions:     datatypes.JSON(`{}`),
			ResourceCount: i,
			CreatedBy:     u.ID,
		}
		require.NoError(t, repos.Version.Append(v))
		assert.Equal(t, i, v.VersionNumber)
	}

	latest, err := repos.Version.GetLatest(p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.VersionNumber)

	second, err := repos.Version.GetByNumber(p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, second.ResourceCount)

	_, err = repos.Version.GetByNumber(p.ID, 9)
	assert.True(t, IsNotFound(err))

	metas, err := repos.Version.ListMeta(p.ID)
	require.NoError(t, err)
	require.Len(t, metas, 3)
	assert.Equal(t, []int{3, 2, 1}, []int{metas[0].VersionNumber, metas[1].VersionNumber, metas[2].VersionNumber})
	assert.Equal(t, u.ID, metas[0].CreatedBy)
}

func TestVersionUniqueIndexRejectsDuplicateNumber(t *testing.T) {
	db := setupDB(t)
	repos := NewRepositories(db)
	u := createUser(t, repos, "unique@example.com")
	p := &models.Project{UserID: u.ID, Name: "infra"}
	require.NoError(t, repos.Project.Create(p))

	first := &models.ProjectVersion{ProjectID: p.ID, VersionNumber: 1, Resources: datatypes.JSON(`[]`), Connections: datatypes.JSON(`[]`), Positions: datatypes.JSON(`{}`), CreatedBy: u.ID}
	require.NoError(t, db.Create(first).Error)

	dupe := &models.ProjectVersion{ProjectID: p.ID, VersionNumber: 1, Resources: datatypes.JSON(`[]`), Connections: datatypes.JSON(`[]`), Positions: datatypes.JSON(`{}`), CreatedBy: u.ID}
	err := db.Create(dupe).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestProjectRepositoryDeleteRemovesVersions(t *testing.T) {
	db := setupDB(t)
	repos := NewRepositories(db)
	u := createUser(t, repos, "delete@example.com")
	p := &models.Project{UserID: u.ID, Name: "infra"}
	require.NoError(t, repos.Project.Create(p))
	require.NoError(t, repos.Version.Append(&models.ProjectVersion{ProjectID: p.ID, Resources: datatypes.JSON(`[]`), Connections: datatypes.JSON(`[]`), Positions: datatypes.JSON(`{}`), CreatedBy: u.ID}))

	count, err := repos.Project.CountByUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repos.Project.Delete(p.ID))

	var versions int64
	require.NoError(t, db.Model(&models.ProjectVersion{}).Where("project_id = ?", p.ID).Count(&versions).Error)
	assert.Equal(t, int64(0), versions)

	assert.True(t, IsNotFound(repos.Project.Delete(p.ID)))
}

func TestTrialWarningCreateIfNotExists(t *testing.T) {
	repos := NewRepositories(setupDB(t))
	u := createUser(t, repos, "warn@example.com")
	end := time.Now().UTC().Truncate(time.Second).AddDate(0, 0, 3)

	created, err := repos.TrialWarning.CreateIfNotExists(&models.TrialWarning{UserID: u.ID, ThresholdDays: 3, TrialEndDate: end, SentAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repos.TrialWarning.CreateIfNotExists(&models.TrialWarning{UserID: u.ID, ThresholdDays: 3, TrialEndDate: end, SentAt: time.Now()})
	require.NoError(t, err)
	assert.False(t, created)

	created, err = repos.TrialWarning.CreateIfNotExists(&models.TrialWarning{UserID: u.ID, ThresholdDays: 3, TrialEndDate: end.AddDate(0, 1, 0), SentAt: time.Now()})
	require.NoError(t, err)
	assert.True(t, created, "a new trial window gets its own marker")
}

func TestIsDuplicateKey(t *testing.T) {
	assert.False(t, IsDuplicateKey(nil))
	assert.True(t, IsDuplicateKey(gorm.ErrDuplicatedKey))
	assert.False(t, IsDuplicateKey(gorm.ErrRecordNotFound))
}
