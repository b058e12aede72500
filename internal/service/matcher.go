package service

import (
	"GameSync/internal/model"
	"GameSync/internal/utils/namekey"
)

// MatchKind 实体匹配结果类型
type MatchKind int

const (
	MatchNew      MatchKind = iota // 需要查目录并新建
	MatchExisting                  // 已入库
	MatchPending                   // 本次同步前面已出现，等待入库
)

// MatchResult 匹配结果；Existing 时 Game 有值，Pending 时 Candidate 有值
type MatchResult struct {
	Kind      MatchKind
	Game      *model.CanonicalGame
	Candidate *candidate
	NameOnly  bool // 仅凭名称命中，需要人工核验
}

type unverifiedKey struct {
	name   string
	ext    string
	hasExt bool
}

func makeUnverifiedKey(name string, ext *string) unverifiedKey {
	if ext == nil {
		return unverifiedKey{name: name}
	}
	return unverifiedKey{name: name, ext: *ext, hasExt: true}
}

// GameIndex 同步开始时的规范游戏快照索引（每次同步只刷新一次）
type GameIndex struct {
	byExternal map[model.PlatformType]map[string]*model.CanonicalGame
	byName     map[string][]*model.CanonicalGame
	byCatalog  map[int64]*model.CanonicalGame
	unverified map[model.PlatformType]map[unverifiedKey]*model.CanonicalGame
}

// NewGameIndex games 需按 id 升序：同键多行时最早的一行优先
func NewGameIndex(games []*model.CanonicalGame) *GameIndex {
	ix := &GameIndex{
		byExternal: make(map[model.PlatformType]map[string]*model.CanonicalGame),
		byName:     make(map[string][]*model.CanonicalGame),
		byCatalog:  make(map[int64]*model.CanonicalGame),
		unverified: make(map[model.PlatformType]map[unverifiedKey]*model.CanonicalGame),
	}
	for _, p := range model.Platforms {
		ix.byExternal[p] = make(map[string]*model.CanonicalGame)
		ix.unverified[p] = make(map[unverifiedKey]*model.CanonicalGame)
	}
	for _, g := range games {
		ix.Add(g)
	}
	return ix
}

// Add 把一行加入索引；已有的键不覆盖
func (ix *GameIndex) Add(g *model.CanonicalGame) {
	for _, p := range model.Platforms {
		if ext := g.ExternalID(p); ext != nil {
			if _, ok := ix.byExternal[p][*ext]; !ok {
				ix.byExternal[p][*ext] = g
			}
		}
		if g.CatalogID == nil {
			k := makeUnverifiedKey(g.NormalizedName, g.ExternalID(p))
			if _, ok := ix.unverified[p][k]; !ok {
				ix.unverified[p][k] = g
			}
		}
	}
	if g.CatalogID != nil {
		if _, ok := ix.byCatalog[*g.CatalogID]; !ok {
			ix.byCatalog[*g.CatalogID] = g
		}
	}
	ix.addName(g.NormalizedName, g)
	if orig := namekey.Normalize(g.OriginalName); orig != g.NormalizedName {
		ix.addName(orig, g)
	}
}

func (ix *GameIndex) addName(key string, g *model.CanonicalGame) {
	if key == "" {
		return
	}
	for _, existing := range ix.byName[key] {
		if existing.ID == g.ID {
			return
		}
	}
	ix.byName[key] = append(ix.byName[key], g)
}

// SetExternalID 本次同步已安排回填外部ID，后续记录按外部ID即可命中
func (ix *GameIndex) SetExternalID(g *model.CanonicalGame, p model.PlatformType, ext string) {
	id := ext
	g.SetExternalID(p, &id)
	if _, ok := ix.byExternal[p][ext]; !ok {
		ix.byExternal[p][ext] = g
	}
}

func (ix *GameIndex) ByExternal(p model.PlatformType, ext string) *model.CanonicalGame {
	return ix.byExternal[p][ext]
}

func (ix *GameIndex) ByCatalog(id int64) *model.CanonicalGame {
	return ix.byCatalog[id]
}

// ByName 返回第一个不与该外部ID冲突的同名行
func (ix *GameIndex) ByName(key string, p model.PlatformType, ext *string) *model.CanonicalGame {
	for _, g := range ix.byName[key] {
		if !conflictingExternal(g, p, ext) {
			return g
		}
	}
	return nil
}

// Unverified 按唯一键 (normalized_name, 外部ID) 查未核验行
func (ix *GameIndex) Unverified(name string, p model.PlatformType, ext *string) *model.CanonicalGame {
	return ix.unverified[p][makeUnverifiedKey(name, ext)]
}

// conflictingExternal 已存外部ID与记录的不同：平台认为它们是两款游戏，名称再像也不能合并
func conflictingExternal(g *model.CanonicalGame, p model.PlatformType, ext *string) bool {
	stored := g.ExternalID(p)
	return ext != nil && stored != nil && *stored != *ext
}

// candidate 本次同步待入库的新游戏
type candidate struct {
	game  *model.CanonicalGame
	key   string     // 记录自身的规范化名称
	alias *candidate // 去重后指向保留的候选
	// resolvedID 入库后的ID，或去重命中的已有行ID
	resolvedID uint64
}

// finalID 沿去重链取最终游戏ID，未入库时为 0
func (c *candidate) finalID() uint64 {
	for c.alias != nil {
		c = c.alias
	}
	return c.resolvedID
}

// pendingSet 本次同步已出现的新游戏，按外部ID与名称索引
type pendingSet struct {
	platform   model.PlatformType
	byExternal map[string]*candidate
	byName     map[string][]*candidate
	list       []*candidate
}

func newPendingSet(platform model.PlatformType) *pendingSet {
	return &pendingSet{
		platform:   platform,
		byExternal: make(map[string]*candidate),
		byName:     make(map[string][]*candidate),
	}
}

func (s *pendingSet) add(c *candidate) {
	s.list = append(s.list, c)
	s.index(c)
}

func (s *pendingSet) index(c *candidate) {
	if ext := c.game.ExternalID(s.platform); ext != nil {
		if _, ok := s.byExternal[*ext]; !ok {
			s.byExternal[*ext] = c
		}
	}
	for _, k := range []string{c.key, c.game.NormalizedName} {
		if k == "" {
			continue
		}
		dup := false
		for _, existing := range s.byName[k] {
			if existing == c {
				dup = true
				break
			}
		}
		if !dup {
			s.byName[k] = append(s.byName[k], c)
		}
	}
}

// adoptExternalID 候选原本没有外部ID，由后续同名记录补上
func (s *pendingSet) adoptExternalID(c *candidate, ext string) {
	id := ext
	c.game.SetExternalID(s.platform, &id)
	s.index(c)
}

func (s *pendingSet) byNameFor(key string, ext *string) *candidate {
	for _, c := range s.byName[key] {
		if !conflictingExternal(c.game, s.platform, ext) {
			return c
		}
	}
	return nil
}

// Match 按固定优先级匹配：已存外部ID > 已存名称 > 本次候选（外部ID、名称） > 新游戏
func Match(rec *model.RawPlatformRecord, key string, ix *GameIndex, pending *pendingSet) MatchResult {
	p := rec.Platform
	ext := rec.ExternalID
	if ext != nil {
		if g := ix.ByExternal(p, *ext); g != nil {
			return MatchResult{Kind: MatchExisting, Game: g}
		}
	}
	if g := ix.ByName(key, p, ext); g != nil {
		return MatchResult{Kind: MatchExisting, Game: g, NameOnly: true}
	}
	if ext != nil {
		if c, ok := pending.byExternal[*ext]; ok {
			return MatchResult{Kind: MatchPending, Candidate: c}
		}
	}
	if c := pending.byNameFor(key, ext); c != nil {
		return MatchResult{Kind: MatchPending, Candidate: c, NameOnly: true}
	}
	return MatchResult{Kind: MatchNew}
}
