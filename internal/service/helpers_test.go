package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"GameSync/internal/catalog"
	"GameSync/internal/config"
	"GameSync/internal/interfaces"
	"GameSync/internal/model"
	"GameSync/internal/repository"
	"GameSync/internal/testutil"
	"GameSync/internal/utils/namekey"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64  { return &v }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeCatalog 按规范化名称返回元数据；unavailable > 0 时先连续返回目录不可用
type fakeCatalog struct {
	mu          sync.Mutex
	byName      map[string]*model.GameMetadata
	unavailable int
	alwaysFail  bool
	calls       []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{byName: make(map[string]*model.GameMetadata)}
}

func (f *fakeCatalog) set(name string, meta *model.GameMetadata) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byName[namekey.Normalize(name)] = meta
}

func (f *fakeCatalog) Lookup(_ context.Context, name string, _ model.PlatformType, _ *string) (*model.GameMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if f.alwaysFail || f.unavailable > 0 {
		if f.unavailable > 0 {
			f.unavailable--
		}
		return nil, fmt.Errorf("%w: 返回状态码503", catalog.ErrCatalogUnavailable)
	}
	return f.byName[namekey.Normalize(name)], nil
}

func (f *fakeCatalog) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// stubCollector 原样返回给定记录（不按平台过滤，便于构造异常输入）
type stubCollector struct {
	platform model.PlatformType
	records  []*model.RawPlatformRecord
	err      error
}

func (s *stubCollector) GetType() model.PlatformType { return s.platform }

func (s *stubCollector) FetchRecords(ctx context.Context, _ *model.PlatformLink) ([]*model.RawPlatformRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.records, ctx.Err()
}

type stubCollectors map[model.PlatformType]interfaces.PlatformCollector

func (s stubCollectors) GetCollector(p model.PlatformType) (interfaces.PlatformCollector, error) {
	c, ok := s[p]
	if !ok {
		return nil, fmt.Errorf("平台%s未初始化采集器", p)
	}
	return c, nil
}

type harness struct {
	db         *gorm.DB
	clock      *testutil.FakeClock
	catalog    *fakeCatalog
	collectors stubCollectors
	tracker    *JobTracker
	reconciler *Reconciler
	games      repository.GameRepository
	owners     repository.OwnershipRepository
	links      repository.LinkRepository
}

func testSyncConfig() config.SyncConfig {
	return config.SyncConfig{
		QueueSize:           4,
		RunTimeout:          time.Minute,
		ExcludedTokens:      []string{"demo", "beta"},
		CatalogRetries:      3,
		CatalogRetryBackoff: time.Second,
		MaxRefreshPerRun:    25,
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.OpenTestDB(t)
	logger := quietLogger()
	h := &harness{
		db:         db,
		clock:      testutil.NewFakeClock(t),
		catalog:    newFakeCatalog(),
		collectors: stubCollectors{},
		tracker:    NewJobTracker(db, logger),
		games:      repository.NewGameRepository(db),
		owners:     repository.NewOwnershipRepository(db),
		links:      repository.NewLinkRepository(db),
	}
	h.reconciler = NewReconciler(db, h.tracker, h.catalog, h.collectors, h.clock, testSyncConfig(), logger)

	ctx := context.Background()
	for _, p := range model.Platforms {
		require.NoError(t, h.links.Save(ctx, &model.PlatformLink{
			UserID:    "u1",
			Platform:  p,
			AccountID: "acct-" + p.String(),
			APIKey:    "key",
		}))
	}
	return h
}

// sync 以 u1 身份执行一次同步，返回任务的最终状态与 Run 的返回值
func (h *harness) sync(t *testing.T, platform model.PlatformType, records ...*model.RawPlatformRecord) (*model.SyncJob, error) {
	t.Helper()
	h.collectors[platform] = &stubCollector{platform: platform, records: records}
	return h.run(t, "u1", platform)
}

func (h *harness) run(t *testing.T, userID string, platform model.PlatformType) (*model.SyncJob, error) {
	t.Helper()
	ctx := context.Background()
	job, err := h.tracker.Enqueue(ctx, userID, platform)
	require.NoError(t, err)
	runErr := h.reconciler.Run(ctx, job.JobID)
	job, err = h.tracker.Get(ctx, job.JobID)
	require.NoError(t, err)
	return job, runErr
}

func (h *harness) allGames(t *testing.T) []*model.CanonicalGame {
	t.Helper()
	var games []*model.CanonicalGame
	require.NoError(t, h.db.Order("id ASC").Find(&games).Error)
	return games
}

func (h *harness) allOwnerships(t *testing.T) []*model.Ownership {
	t.Helper()
	var owns []*model.Ownership
	require.NoError(t, h.db.Order("id ASC").Find(&owns).Error)
	return owns
}

func steamRec(ext *string, name string, progress, duration int64) *model.RawPlatformRecord {
	return &model.RawPlatformRecord{
		Platform:      model.PlatformSteam,
		ExternalID:    ext,
		DisplayName:   name,
		ProgressCount: progress,
		PlayDuration:  duration,
	}
}

func storedGame(name string, steamID, psnID *string, catalogID *int64) *model.CanonicalGame {
	return &model.CanonicalGame{
		CatalogID:      catalogID,
		CanonicalName:  name,
		OriginalName:   name,
		NormalizedName: namekey.Normalize(name),
		SteamID:        steamID,
		PSNID:          psnID,
	}
}
