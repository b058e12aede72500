package steam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"GameSync/internal/adapter"
	"GameSync/internal/config"
	"GameSync/internal/interfaces"
	"GameSync/internal/model"
	"GameSync/internal/utils/httpclient"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

func init() {
	adapter.Register(model.PlatformSteam, NewSteamCollector)
}

type Collector struct {
	cfg        *config.PlatformConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewSteamCollector Steam Web API 采集器：已拥有游戏 + 每款游戏的成就解锁数
func NewSteamCollector(cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformCollector {
	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}
	return &Collector{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(httpclient.Options{Timeout: cfg.Timeout, Proxy: cfg.Proxy}, logger),
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}
}

func (c *Collector) GetType() model.PlatformType {
	return model.PlatformSteam
}

func (c *Collector) FetchRecords(ctx context.Context, link *model.PlatformLink) ([]*model.RawPlatformRecord, error) {
	if link.AccountID == "" {
		return nil, fmt.Errorf("Steam绑定缺少steam_id（user_id=%s）", link.UserID)
	}

	// 1. 先确认账号存在，避免私密/错误 ID 静默返回空列表
	var summaries model.SteamPlayerSummariesResponse
	if err := c.getJSON(ctx, "/ISteamUser/GetPlayerSummaries/v2/", url.Values{
		"key":      {link.APIKey},
		"steamids": {link.AccountID},
	}, &summaries); err != nil {
		return nil, fmt.Errorf("获取Steam用户信息失败: %w", err)
	}
	if len(summaries.Response.Players) == 0 {
		return nil, fmt.Errorf("Steam用户%s不存在", link.AccountID)
	}

	// 2. 已拥有游戏
	var owned model.SteamOwnedGamesResponse
	if err := c.getJSON(ctx, "/IPlayerService/GetOwnedGames/v1/", url.Values{
		"key":                       {link.APIKey},
		"steamid":                   {link.AccountID},
		"include_appinfo":           {"1"},
		"include_played_free_games": {"1"},
	}, &owned); err != nil {
		return nil, fmt.Errorf("获取Steam已拥有游戏失败: %w", err)
	}

	// 3. 逐个游戏拉成就；没玩过的游戏不请求
	records := make([]*model.RawPlatformRecord, 0, len(owned.Response.Games))
	for _, g := range owned.Response.Games {
		appID := strconv.FormatInt(g.AppID, 10)
		var earned int64
		if g.PlaytimeForever > 0 {
			n, err := c.earnedAchievements(ctx, link, appID)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.logger.WithError(err).WithFields(logrus.Fields{
					"appid": appID,
					"name":  g.Name,
				}).Warn("获取Steam成就失败，按0处理")
			}
			earned = n
		}
		records = append(records, &model.RawPlatformRecord{
			Platform:      model.PlatformSteam,
			ExternalID:    &appID,
			DisplayName:   g.Name,
			ProgressCount: earned,
			PlayDuration:  g.PlaytimeForever * 60,
		})
	}

	c.logger.WithFields(logrus.Fields{
		"user_id":    link.UserID,
		"game_count": owned.Response.GameCount,
		"records":    len(records),
	}).Info("Steam游戏记录采集完成")
	return records, nil
}

// earnedAchievements 已解锁成就数；无统计数据的游戏（400/403 或 success=false）返回 0
func (c *Collector) earnedAchievements(ctx context.Context, link *model.PlatformLink, appID string) (int64, error) {
	var resp model.SteamPlayerAchievementsResponse
	err := c.getJSON(ctx, "/ISteamUserStats/GetPlayerAchievements/v1/", url.Values{
		"key":     {link.APIKey},
		"steamid": {link.AccountID},
		"appid":   {appID},
	}, &resp)
	if err != nil {
		var se *statusError
		if asStatus(err, &se) && (se.code == http.StatusBadRequest || se.code == http.StatusForbidden) {
			return 0, nil
		}
		return 0, err
	}
	if !resp.PlayerStats.Success {
		return 0, nil
	}
	var n int64
	for _, a := range resp.PlayerStats.Achievements {
		if a.Achieved == 1 {
			n++
		}
	}
	return n, nil
}

func (c *Collector) getJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	query.Set("format", "json")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &statusError{code: resp.StatusCode, body: truncate(body, 256)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
