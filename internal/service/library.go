package service

import (
	"context"
	"fmt"

	"GameSync/internal/model"
	"GameSync/internal/repository"

	"github.com/sirupsen/logrus"
)

// LibraryService 面向前端的用户游戏库查询
type LibraryService struct {
	games  repository.GameRepository
	owners repository.OwnershipRepository
	logger *logrus.Logger
}

func NewLibraryService(games repository.GameRepository, owners repository.OwnershipRepository, logger *logrus.Logger) *LibraryService {
	return &LibraryService{games: games, owners: owners, logger: logger}
}

// LibraryEntry 游戏库单条：规范游戏 + 该平台进度
type LibraryEntry struct {
	GameID            uint64             `json:"game_id"`
	CatalogID         *int64             `json:"catalog_id"`
	Name              string             `json:"name"`
	CoverImage        string             `json:"cover_image,omitempty"`
	Platform          model.PlatformType `json:"platform"`
	ExternalID        *string            `json:"external_id"`
	ProgressCount     int64              `json:"progress_count"`
	PlayDuration      int64              `json:"play_duration"`
	NeedsVerification bool               `json:"needs_verification"`
}

// LibraryResult 分页返回
type LibraryResult struct {
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
	Items    []LibraryEntry `json:"items"`
}

// ListLibrary 用户在某平台上的游戏库，按拥有关系创建顺序
func (s *LibraryService) ListLibrary(ctx context.Context, userID string, platform model.PlatformType, page, pageSize int) (*LibraryResult, error) {
	if !platform.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPlatform, platform)
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	owns, err := s.owners.ListByUser(ctx, userID, platform)
	if err != nil {
		return nil, fmt.Errorf("查询拥有关系失败: %w", err)
	}
	result := &LibraryResult{Page: page, PageSize: pageSize, Total: len(owns), Items: []LibraryEntry{}}
	start := (page - 1) * pageSize
	if start >= len(owns) {
		return result, nil
	}
	owns = owns[start:min(start+pageSize, len(owns))]

	ids := make([]uint64, len(owns))
	for i, o := range owns {
		ids[i] = o.GameID
	}
	games, err := s.games.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("查询规范游戏失败: %w", err)
	}
	byID := make(map[uint64]*model.CanonicalGame, len(games))
	for _, g := range games {
		byID[g.ID] = g
	}
	for _, o := range owns {
		g, ok := byID[o.GameID]
		if !ok {
			s.logger.WithField("game_id", o.GameID).Warn("拥有关系指向不存在的游戏")
			continue
		}
		result.Items = append(result.Items, LibraryEntry{
			GameID:            g.ID,
			CatalogID:         g.CatalogID,
			Name:              g.CanonicalName,
			CoverImage:        g.CoverImage,
			Platform:          o.Platform,
			ExternalID:        g.ExternalID(o.Platform),
			ProgressCount:     o.ProgressCount,
			PlayDuration:      o.PlayDuration,
			NeedsVerification: g.NeedsVerification,
		})
	}
	return result, nil
}
