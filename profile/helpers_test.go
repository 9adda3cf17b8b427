package profile_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"campus/adapters/database"
	"campus/models"
	"campus/profile"
)

type testEnv struct {
	db          *gorm.DB
	identities  *database.IdentityStore
	departments *database.DepartmentDirectory
	profiles    *database.ProfileRepository
	tx          profile.ITransactionCoordinator
}

func setupTest(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	return &testEnv{
		db:          db,
		identities:  database.NewIdentityStore(db),
		departments: database.NewDepartmentDirectory(db),
		profiles:    database.NewProfileRepository(db),
		tx:          database.NewTransactionCoordinator(db),
	}
}

func (env *testEnv) synchronizer(t *testing.T, opts ...profile.SynchronizerOption) *profile.Synchronizer {
	t.Helper()
	opts = append([]profile.SynchronizerOption{profile.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := profile.NewSynchronizer(env.identities, env.departments, env.profiles, env.tx, opts...)
	require.NoError(t, err)
	return s
}

func (env *testEnv) seedUser(t *testing.T, username string) models.User {
	t.Helper()
	user := models.User{
		Username:    username,
		Email:       username + "@campus.test",
		FirstName:   "Original",
		LastName:    "Name",
		PhoneNumber: "000",
	}
	require.NoError(t, env.db.Create(&user).Error)
	return user
}

func (env *testEnv) seedDepartment(t *testing.T, name string) models.Department {
	t.Helper()
	department := models.Department{Name: name}
	require.NoError(t, env.db.Create(&department).Error)
	return department
}

func (env *testEnv) user(t *testing.T, id uuid.UUID) models.User {
	t.Helper()
	var user models.User
	require.NoError(t, env.db.First(&user, "id = ?", id).Error)
	return user
}

func (env *testEnv) count(t *testing.T, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, env.db.Model(model).Count(&count).Error)
	return count
}

// failingCoordinator 讓交易中的角色資料寫入失敗，用來驗證回滾
type failingCoordinator struct {
	inner profile.ITransactionCoordinator
	err   error
}

func (c failingCoordinator) Execute(ctx context.Context, fn func(ctx context.Context, stores profile.IStores) error) error {
	return c.inner.Execute(ctx, func(ctx context.Context, stores profile.IStores) error {
		return fn(ctx, failingStores{IStores: stores, err: c.err})
	})
}

type failingStores struct {
	profile.IStores
	err error
}

func (s failingStores) Profiles() profile.IProfileRepository {
	return failingProfiles{IProfileRepository: s.IStores.Profiles(), err: s.err}
}

type failingProfiles struct {
	profile.IProfileRepository
	err error
}

func (f failingProfiles) Insert(ctx context.Context, p *profile.Profile) (uint, error) {
	return 0, f.err
}

func (f failingProfiles) Update(ctx context.Context, p *profile.Profile) error {
	return f.err
}

type txMarker struct{}

// markingCoordinator 在交易的 context 上做記號，並計算沒有帶記號的儲存操作
type markingCoordinator struct {
	inner    profile.ITransactionCoordinator
	calls    int
	unmarked int
}

func (c *markingCoordinator) Execute(ctx context.Context, fn func(ctx context.Context, stores profile.IStores) error) error {
	return c.inner.Execute(ctx, func(ctx context.Context, stores profile.IStores) error {
		return fn(context.WithValue(ctx, txMarker{}, true), markingStores{IStores: stores, coordinator: c})
	})
}

func (c *markingCoordinator) check(ctx context.Context) {
	c.calls++
	if ctx.Value(txMarker{}) == nil {
		c.unmarked++
	}
}

type markingStores struct {
	profile.IStores
	coordinator *markingCoordinator
}

func (s markingStores) Identities() profile.IIdentityStore {
	return markingIdentities{IIdentityStore: s.IStores.Identities(), coordinator: s.coordinator}
}

func (s markingStores) Profiles() profile.IProfileRepository {
	return markingProfiles{IProfileRepository: s.IStores.Profiles(), coordinator: s.coordinator}
}

type markingIdentities struct {
	profile.IIdentityStore
	coordinator *markingCoordinator
}

func (m markingIdentities) Update(ctx context.Context, identity profile.Identity) error {
	m.coordinator.check(ctx)
	return m.IIdentityStore.Update(ctx, identity)
}

type markingProfiles struct {
	profile.IProfileRepository
	coordinator *markingCoordinator
}

func (m markingProfiles) Insert(ctx context.Context, p *profile.Profile) (uint, error) {
	m.coordinator.check(ctx)
	return m.IProfileRepository.Insert(ctx, p)
}

func (m markingProfiles) Update(ctx context.Context, p *profile.Profile) error {
	m.coordinator.check(ctx)
	return m.IProfileRepository.Update(ctx, p)
}

type uploadCall struct {
	identityID uuid.UUID
	attachment profile.Attachment
}

type fakeUploader struct {
	mu    sync.Mutex
	calls []uploadCall
	err   error
}

func (u *fakeUploader) Upload(ctx context.Context, identityID uuid.UUID, attachment profile.Attachment) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls = append(u.calls, uploadCall{identityID: identityID, attachment: attachment})
	return u.err
}

type fakePublisher struct {
	events []profile.Synchronized
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, event profile.Synchronized) error {
	p.events = append(p.events, event)
	return p.err
}

type fakeLocker struct {
	locked   int
	released int
	err      error
}

func (l *fakeLocker) Lock(ctx context.Context, identityID uuid.UUID) (context.Context, func(), error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	l.locked++
	return ctx, func() { l.released++ }, nil
}

var errInjected = errors.New("injected failure")
