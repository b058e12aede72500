package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"GameSync/internal/catalog"
	"GameSync/internal/config"
	"GameSync/internal/interfaces"
	"GameSync/internal/metrics"
	"GameSync/internal/model"
	"GameSync/internal/repository"
	"GameSync/internal/utils/clock"
	"GameSync/internal/utils/namekey"
	"GameSync/internal/utils/validate"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CollectorProvider 按平台取采集器（adapter.PlatformRegistry 实现）
type CollectorProvider interface {
	GetCollector(platform model.PlatformType) (interfaces.PlatformCollector, error)
}

// Reconciler 执行一次同步：拉取平台记录、匹配规范游戏、入库并写入拥有关系
type Reconciler struct {
	games      repository.GameRepository
	links      repository.LinkRepository
	tracker    *JobTracker
	owners     *OwnershipUpserter
	merger     *MergeResolver
	catalog    interfaces.CatalogLookup
	collectors CollectorProvider
	clock      clock.Clock
	cfg        config.SyncConfig
	logger     *logrus.Logger
}

func NewReconciler(
	db *gorm.DB,
	tracker *JobTracker,
	lookup interfaces.CatalogLookup,
	collectors CollectorProvider,
	clk clock.Clock,
	cfg config.SyncConfig,
	logger *logrus.Logger,
) *Reconciler {
	return &Reconciler{
		games:      repository.NewGameRepository(db),
		links:      repository.NewLinkRepository(db),
		tracker:    tracker,
		owners:     NewOwnershipUpserter(db),
		merger:     NewMergeResolver(db, logger),
		catalog:    lookup,
		collectors: collectors,
		clock:      clk,
		cfg:        cfg,
		logger:     logger,
	}
}

type resolution struct {
	rec    *model.RawPlatformRecord
	gameID uint64     // 匹配到已有行
	cand   *candidate // 匹配到本次新游戏
}

type backfillTask struct {
	gameID     uint64
	externalID string
}

type refreshTask struct {
	gameID     uint64
	name       string
	externalID *string
}

// runState 单次同步的中间状态，只在 Run 内使用
type runState struct {
	job         *model.SyncJob
	index       *GameIndex
	pending     *pendingSet
	resolutions []resolution
	flags       []uint64
	flagged     map[uint64]bool
	backfills   []backfillTask
	refreshes   []refreshTask
	refreshing  map[uint64]bool
	remap       map[uint64]uint64 // 被合并行 → 保留行
	counters    model.JobCounters
}

func (st *runState) flag(id uint64) {
	if !st.flagged[id] {
		st.flagged[id] = true
		st.flags = append(st.flags, id)
	}
}

// resolve 沿合并链取当前有效的游戏ID
func (st *runState) resolve(id uint64) uint64 {
	for {
		next, ok := st.remap[id]
		if !ok || next == id {
			return id
		}
		id = next
	}
}

// Run 执行同步任务；任何错误与 panic 都记为任务失败，已提交的部分结果保留
func (r *Reconciler) Run(ctx context.Context, jobID string) (err error) {
	job, err := r.tracker.Start(ctx, jobID)
	if err != nil {
		return fmt.Errorf("启动同步任务失败: %w", err)
	}
	log := r.logger.WithFields(logrus.Fields{
		"job_id":   job.JobID,
		"user_id":  job.UserID,
		"platform": job.Platform,
	})
	started := r.clock.Now()
	st := &runState{
		job:        job,
		pending:    newPendingSet(job.Platform),
		flagged:    make(map[uint64]bool),
		refreshing: make(map[uint64]bool),
		remap:      make(map[uint64]uint64),
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: panic: %v", ErrRunFatal, p)
		}
		// 超时或取消后仍要写入终态
		finCtx := context.WithoutCancel(ctx)
		status := string(model.JobStatusSuccess)
		if err != nil {
			status = string(model.JobStatusFail)
			log.WithError(err).Error("同步任务失败")
			if ferr := r.tracker.Fail(finCtx, jobID, err, st.counters); ferr != nil {
				log.WithError(ferr).Error("写入任务失败状态失败")
			}
		} else if serr := r.tracker.Succeed(finCtx, jobID, st.counters); serr != nil {
			log.WithError(serr).Error("写入任务成功状态失败")
			err = serr
			status = string(model.JobStatusFail)
		} else {
			log.WithFields(logrus.Fields{
				"games_inserted":     st.counters.GamesInserted,
				"games_updated":      st.counters.GamesUpdated,
				"ownership_inserted": st.counters.OwnershipInserted,
				"ownership_updated":  st.counters.OwnershipUpdated,
			}).Info("同步任务完成")
		}
		metrics.SyncRuns.WithLabelValues(job.Platform.String(), status).Inc()
		metrics.SyncDuration.WithLabelValues(job.Platform.String()).Observe(r.clock.Now().Sub(started).Seconds())
	}()

	runCtx := ctx
	if r.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.cfg.RunTimeout)
		defer cancel()
	}
	if err := r.reconcile(runCtx, st); err != nil {
		if errors.Is(err, ErrRunFatal) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrRunFatal, err)
	}
	return nil
}

func (r *Reconciler) reconcile(ctx context.Context, st *runState) error {
	job := st.job
	link, err := r.links.Get(ctx, job.UserID, job.Platform)
	if err != nil {
		return fmt.Errorf("查询平台绑定失败: %w", err)
	}
	if link == nil {
		return fmt.Errorf("%w: user=%s platform=%s", ErrPlatformNotLinked, job.UserID, job.Platform)
	}
	if link.APIKey == "" {
		return fmt.Errorf("%w: user=%s platform=%s", ErrMissingAPIKey, job.UserID, job.Platform)
	}

	collector, err := r.collectors.GetCollector(job.Platform)
	if err != nil {
		return err
	}
	records, err := collector.FetchRecords(ctx, link)
	if err != nil {
		return fmt.Errorf("拉取%s平台记录失败: %w", job.Platform, err)
	}
	r.logger.WithFields(logrus.Fields{
		"job_id":  job.JobID,
		"records": len(records),
	}).Info("平台记录拉取完成，开始匹配")

	snapshot, err := r.games.Snapshot(ctx)
	if err != nil {
		return err
	}
	st.index = NewGameIndex(snapshot)

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.scanRecord(ctx, st, rec); err != nil {
			return err
		}
	}

	if err := r.commitCandidates(ctx, st); err != nil {
		return err
	}
	if err := r.applyFlags(ctx, st); err != nil {
		return err
	}
	if err := r.applyBackfills(ctx, st); err != nil {
		return err
	}
	if err := r.applyRefreshes(ctx, st); err != nil {
		return err
	}
	games, err := r.writeOwnerships(ctx, st)
	if err != nil {
		return err
	}
	return r.updateSummary(ctx, link, games)
}

func (r *Reconciler) scanRecord(ctx context.Context, st *runState, rec *model.RawPlatformRecord) error {
	platform := st.job.Platform
	outcome := func(name string) {
		metrics.ReconcileRecords.WithLabelValues(platform.String(), name).Inc()
	}
	if rec == nil {
		outcome("invalid")
		return nil
	}
	if rec.Platform != platform {
		r.logger.WithFields(logrus.Fields{
			"job_id":          st.job.JobID,
			"record_platform": rec.Platform,
		}).Warn("记录平台与任务不一致，已跳过")
		outcome("invalid")
		return nil
	}
	if err := validate.Struct(rec); err != nil {
		r.logger.WithError(err).WithField("name", rec.Name()).Warn("平台记录校验失败，已跳过")
		outcome("invalid")
		return nil
	}
	key := namekey.Normalize(rec.Name())
	if key == "" {
		r.logger.WithField("name", rec.Name()).Debug("标题无法生成匹配键，已跳过")
		outcome("skipped")
		return nil
	}
	if namekey.HasAnyToken(key, r.cfg.ExcludedTokens) {
		r.logger.WithField("name", rec.Name()).Debug("标题命中排除词，已跳过")
		outcome("skipped")
		return nil
	}

	res := Match(rec, key, st.index, st.pending)
	switch res.Kind {
	case MatchExisting:
		g := res.Game
		if rec.ExternalID != nil && g.ExternalID(platform) == nil {
			st.backfills = append(st.backfills, backfillTask{gameID: g.ID, externalID: *rec.ExternalID})
			st.index.SetExternalID(g, platform, *rec.ExternalID)
		}
		if res.NameOnly {
			st.flag(g.ID)
		}
		if g.CatalogID == nil && !st.refreshing[g.ID] && len(st.refreshes) < r.cfg.MaxRefreshPerRun {
			st.refreshing[g.ID] = true
			st.refreshes = append(st.refreshes, refreshTask{gameID: g.ID, name: rec.Name(), externalID: rec.ExternalID})
		}
		st.resolutions = append(st.resolutions, resolution{rec: rec, gameID: g.ID})
		outcome("existing")
	case MatchPending:
		c := res.Candidate
		if rec.ExternalID != nil && c.game.ExternalID(platform) == nil {
			st.pending.adoptExternalID(c, *rec.ExternalID)
		}
		if res.NameOnly {
			c.game.NeedsVerification = true
		}
		st.resolutions = append(st.resolutions, resolution{rec: rec, cand: c})
		outcome("pending")
	default:
		c, err := r.buildCandidate(ctx, rec, key)
		if err != nil {
			return err
		}
		st.pending.add(c)
		st.resolutions = append(st.resolutions, resolution{rec: rec, cand: c})
		outcome("new")
	}
	return nil
}

// buildCandidate 查目录构建新游戏；目录不可用时不带元数据并标记待核验
func (r *Reconciler) buildCandidate(ctx context.Context, rec *model.RawPlatformRecord, key string) (*candidate, error) {
	meta, unavailable, err := r.lookupWithRetry(ctx, rec.Name(), rec.Platform, rec.ExternalID)
	if err != nil {
		return nil, err
	}
	g := &model.CanonicalGame{
		CanonicalName:  namekey.Clean(rec.Name()),
		OriginalName:   rec.Name(),
		NormalizedName: key,
	}
	if rec.ExternalID != nil {
		id := *rec.ExternalID
		g.SetExternalID(rec.Platform, &id)
	}
	flag := rec.ExternalID == nil || unavailable
	if meta != nil {
		g.ApplyMetadata(meta)
		if metaKey := namekey.Normalize(meta.Name); metaKey != "" {
			g.NormalizedName = metaKey
			if metaKey != key {
				flag = true
			}
		}
	}
	g.NeedsVerification = flag
	return &candidate{game: g, key: key}, nil
}

// lookupWithRetry 目录不可用时按指数退避重试；重试耗尽返回 unavailable=true，只有 ctx 结束才是错误
func (r *Reconciler) lookupWithRetry(ctx context.Context, name string, platform model.PlatformType, externalID *string) (*model.GameMetadata, bool, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.CatalogRetryBackoff
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	// WithMaxRetries(b, 0) 表示不限次数，0 次重试单独处理
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if r.cfg.CatalogRetries > 0 {
		policy = backoff.WithMaxRetries(b, uint64(r.cfg.CatalogRetries))
	}

	for attempt := 1; ; attempt++ {
		meta, err := r.catalog.Lookup(ctx, name, platform, externalID)
		if err == nil {
			return meta, false, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		log := r.logger.WithError(err).WithFields(logrus.Fields{
			"name":    name,
			"attempt": attempt,
		})
		if !errors.Is(err, catalog.ErrCatalogUnavailable) {
			log.Warn("目录查询出现未知错误，按不可用降级")
			return nil, true, nil
		}
		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			log.Warn("目录查询重试耗尽，新游戏将以待核验状态入库")
			return nil, true, nil
		}
		log.WithField("wait", wait).Debug("目录暂不可用，稍后重试")
		r.clock.Sleep(wait)
	}
}

// commitCandidates 用最新快照去重后单事务批量插入；唯一键冲突时回退为逐行 ON CONFLICT DO NOTHING
func (r *Reconciler) commitCandidates(ctx context.Context, st *runState) error {
	if len(st.pending.list) == 0 {
		return nil
	}
	platform := st.job.Platform
	snapshot, err := r.games.Snapshot(ctx)
	if err != nil {
		return err
	}
	fresh := NewGameIndex(snapshot)

	byCatalog := make(map[int64]*candidate)
	byKey := make(map[unverifiedKey]*candidate)
	inserts := make([]*candidate, 0, len(st.pending.list))
	for _, c := range st.pending.list {
		g := c.game
		ext := g.ExternalID(platform)
		if ext != nil {
			if stored := fresh.ByExternal(platform, *ext); stored != nil {
				r.resolveToStored(st, c, stored)
				continue
			}
		}
		if g.CatalogID != nil {
			if stored := fresh.ByCatalog(*g.CatalogID); stored != nil {
				r.resolveToStored(st, c, stored)
				continue
			}
			if prev, ok := byCatalog[*g.CatalogID]; ok {
				c.alias = prev
				if prev.game.ExternalID(platform) == nil && ext != nil {
					prev.game.SetExternalID(platform, ext)
				}
				continue
			}
			byCatalog[*g.CatalogID] = c
		} else {
			if stored := fresh.Unverified(g.NormalizedName, platform, ext); stored != nil {
				r.resolveToStored(st, c, stored)
				continue
			}
			k := makeUnverifiedKey(g.NormalizedName, ext)
			if prev, ok := byKey[k]; ok {
				c.alias = prev
				continue
			}
			byKey[k] = c
		}
		inserts = append(inserts, c)
	}
	if len(inserts) == 0 {
		return nil
	}

	rows := make([]*model.CanonicalGame, len(inserts))
	for i, c := range inserts {
		rows[i] = c.game
	}
	err = r.games.CreateBatch(ctx, rows)
	if err == nil {
		for _, c := range inserts {
			c.resolvedID = c.game.ID
		}
		st.counters.GamesInserted += len(inserts)
		return nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("批量插入规范游戏失败: %w", err)
	}

	// 其它同步并发插入了同键行：整批已回滚，逐行插入并把冲突行当作已有行
	r.logger.WithError(err).WithField("job_id", st.job.JobID).Warn("批量插入唯一键冲突，改为逐行插入")
	for _, c := range inserts {
		c.game.ID = 0
		c.game.CreatedAt = time.Time{}
		c.game.UpdatedAt = time.Time{}
		ok, err := r.games.CreateIgnoreConflict(ctx, c.game)
		if err != nil {
			return fmt.Errorf("插入规范游戏失败: %w", err)
		}
		if ok {
			c.resolvedID = c.game.ID
			st.counters.GamesInserted++
			continue
		}
		stored, err := r.findConflicting(ctx, c.game, platform)
		if err != nil {
			return err
		}
		if stored == nil {
			return fmt.Errorf("规范游戏%q插入冲突但未找到已有行", c.game.NormalizedName)
		}
		r.resolveToStored(st, c, stored)
	}
	return nil
}

func (r *Reconciler) findConflicting(ctx context.Context, g *model.CanonicalGame, platform model.PlatformType) (*model.CanonicalGame, error) {
	var (
		stored *model.CanonicalGame
		err    error
	)
	if g.CatalogID != nil {
		stored, err = r.games.FindByCatalogID(ctx, *g.CatalogID)
	} else {
		stored, err = r.games.FindUnverified(ctx, g.NormalizedName, platform, g.ExternalID(platform))
	}
	if err != nil {
		return nil, fmt.Errorf("查询冲突的规范游戏失败: %w", err)
	}
	return stored, nil
}

// resolveToStored 候选已由其它行代表，按已有行处理（缺外部ID则回填，候选待核验则已有行也标记）
func (r *Reconciler) resolveToStored(st *runState, c *candidate, stored *model.CanonicalGame) {
	platform := st.job.Platform
	c.resolvedID = stored.ID
	if ext := c.game.ExternalID(platform); ext != nil && stored.ExternalID(platform) == nil {
		st.backfills = append(st.backfills, backfillTask{gameID: stored.ID, externalID: *ext})
	}
	if c.game.NeedsVerification {
		st.flag(stored.ID)
	}
}

func (r *Reconciler) applyFlags(ctx context.Context, st *runState) error {
	for _, id := range st.flags {
		changed, err := r.games.MarkNeedsVerification(ctx, id)
		if err != nil {
			return fmt.Errorf("标记待核验失败: %w", err)
		}
		if changed {
			st.counters.GamesUpdated++
		}
	}
	return nil
}

func (r *Reconciler) applyBackfills(ctx context.Context, st *runState) error {
	for _, b := range st.backfills {
		id := st.resolve(b.gameID)
		out, mergeErr := r.merger.BackfillExternalID(ctx, id, st.job.Platform, b.externalID)
		if err := r.afterMerge(st, id, out, mergeErr); err != nil {
			return err
		}
	}
	return nil
}

// applyRefreshes 给未核验的已有行补拉目录元数据；单次查询，失败只记录日志
func (r *Reconciler) applyRefreshes(ctx context.Context, st *runState) error {
	for _, rf := range st.refreshes {
		meta, err := r.catalog.Lookup(ctx, rf.name, st.job.Platform, rf.externalID)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.WithError(err).WithField("game_id", rf.gameID).Warn("补拉目录元数据失败，下次同步再试")
			continue
		}
		if meta == nil {
			continue
		}
		id := st.resolve(rf.gameID)
		out, mergeErr := r.merger.AssignCatalogMetadata(ctx, id, meta)
		if err := r.afterMerge(st, id, out, mergeErr); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reconciler) afterMerge(st *runState, id uint64, out MergeOutcome, err error) error {
	if err != nil {
		if errors.Is(err, ErrMergeInvariantViolation) {
			r.logger.WithError(err).WithFields(logrus.Fields{
				"job_id":  st.job.JobID,
				"game_id": id,
			}).Warn("合并前提不成立，已跳过")
			return nil
		}
		return err
	}
	if out.Merged {
		st.remap[out.LoserID] = out.SurvivorID
	}
	if out.Changed {
		st.counters.GamesUpdated++
	}
	return nil
}

type ownershipStats struct {
	progress int64
	duration int64
}

// writeOwnerships 返回本次同步涉及的游戏及最终写入的统计
func (r *Reconciler) writeOwnerships(ctx context.Context, st *runState) (map[uint64]ownershipStats, error) {
	games := make(map[uint64]ownershipStats)
	for _, res := range st.resolutions {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := res.gameID
		if res.cand != nil {
			id = res.cand.finalID()
		}
		id = st.resolve(id)
		inserted, err := r.owners.Upsert(ctx, id, st.job.UserID, st.job.Platform, res.rec.ProgressCount, res.rec.PlayDuration)
		if err != nil {
			if errors.Is(err, ErrNilGameID) {
				r.logger.WithFields(logrus.Fields{
					"job_id": st.job.JobID,
					"name":   res.rec.Name(),
				}).Error("记录未解析到游戏ID，跳过拥有关系")
				continue
			}
			return nil, err
		}
		if inserted {
			st.counters.OwnershipInserted++
		} else {
			st.counters.OwnershipUpdated++
		}
		games[id] = ownershipStats{progress: res.rec.ProgressCount, duration: res.rec.PlayDuration}
	}
	return games, nil
}

func (r *Reconciler) updateSummary(ctx context.Context, link *model.PlatformLink, games map[uint64]ownershipStats) error {
	summary := model.PlatformSummary{GameCount: len(games), SyncedAt: r.clock.Now()}
	for _, s := range games {
		summary.EarnedAchievements += s.progress
		summary.PlayDuration += s.duration
	}
	if err := r.links.UpdateSummary(ctx, link.ID, summary); err != nil {
		return fmt.Errorf("更新平台汇总失败: %w", err)
	}
	return nil
}
