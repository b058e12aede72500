package psn

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
	"GameSync/internal/utils/namekey"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const defaultPageSize = 200

func init() {
	adapter.Register(model.PlatformPSN, NewPSNCollector)
}

type Collector struct {
	cfg        *config.PlatformConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *logrus.Logger
}

// NewPSNCollector PSN 采集器：游玩记录（gamelist）与奖杯列表（trophy）按标题合并
func NewPSNCollector(cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformCollector {
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
	return model.PlatformPSN
}

func (c *Collector) FetchRecords(ctx context.Context, link *model.PlatformLink) ([]*model.RawPlatformRecord, error) {
	titles, err := c.fetchTitles(ctx, link.APIKey)
	if err != nil {
		return nil, fmt.Errorf("获取PSN游玩记录失败: %w", err)
	}
	trophies, err := c.fetchTrophyTitles(ctx, link.APIKey)
	if err != nil {
		return nil, fmt.Errorf("获取PSN奖杯列表失败: %w", err)
	}

	// 奖杯列表按规范化标题索引；同名取第一条
	byKey := make(map[string]int, len(trophies))
	for i, tr := range trophies {
		key := namekey.Normalize(tr.TrophyTitleName)
		if key == "" {
			continue
		}
		if _, ok := byKey[key]; !ok {
			byKey[key] = i
		}
	}
	joined := make([]bool, len(trophies))

	records := make([]*model.RawPlatformRecord, 0, len(titles)+len(trophies))
	for _, t := range titles {
		duration, err := parseDuration(t.PlayDuration)
		if err != nil {
			c.logger.WithError(err).WithField("title_id", t.TitleID).Warn("PSN游玩时长解析失败，按0处理")
		}
		titleID := t.TitleID
		rec := &model.RawPlatformRecord{
			Platform:     model.PlatformPSN,
			DisplayName:  t.Name,
			PlayDuration: duration,
		}
		if titleID != "" {
			rec.ExternalID = &titleID
		}
		if i, ok := byKey[namekey.Normalize(t.Name)]; ok && !joined[i] {
			joined[i] = true
			rec.TitleName = trophies[i].TrophyTitleName
			rec.ProgressCount = trophies[i].EarnedTrophies.Total()
		}
		records = append(records, rec)
	}

	// 只有奖杯没有游玩记录的条目（PS3/Vita 等）：无外部ID，只带奖杯标题
	for i, tr := range trophies {
		if joined[i] {
			continue
		}
		records = append(records, &model.RawPlatformRecord{
			Platform:      model.PlatformPSN,
			TitleName:     tr.TrophyTitleName,
			ProgressCount: tr.EarnedTrophies.Total(),
		})
	}

	c.logger.WithFields(logrus.Fields{
		"user_id": link.UserID,
		"titles":  len(titles),
		"trophy":  len(trophies),
		"records": len(records),
	}).Info("PSN游戏记录采集完成")
	return records, nil
}

func (c *Collector) pageSize() int {
	if c.cfg.PageSize > 0 {
		return c.cfg.PageSize
	}
	return defaultPageSize
}

func (c *Collector) fetchTitles(ctx context.Context, token string) ([]model.PSNTitle, error) {
	var all []model.PSNTitle
	offset := 0
	for {
		var page model.PSNGameListResponse
		if err := c.getJSON(ctx, "/gamelist/v2/users/me/titles", token, url.Values{
			"categories": {"ps4_game,ps5_native_game"},
			"limit":      {strconv.Itoa(c.pageSize())},
			"offset":     {strconv.Itoa(offset)},
		}, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Titles...)
		if !hasNextPage(page.NextOffset, offset, len(page.Titles), page.TotalItemCount) {
			return all, nil
		}
		offset = page.NextOffset
	}
}

func (c *Collector) fetchTrophyTitles(ctx context.Context, token string) ([]model.PSNTrophyTitle, error) {
	var all []model.PSNTrophyTitle
	offset := 0
	for {
		var page model.PSNTrophyTitlesResponse
		if err := c.getJSON(ctx, "/trophy/v1/users/me/trophyTitles", token, url.Values{
			"limit":  {strconv.Itoa(c.pageSize())},
			"offset": {strconv.Itoa(offset)},
		}, &page); err != nil {
			return nil, err
		}
		all = append(all, page.TrophyTitles...)
		if !hasNextPage(page.NextOffset, offset, len(page.TrophyTitles), page.TotalItemCount) {
			return all, nil
		}
		offset = page.NextOffset
	}
}

// hasNextPage nextOffset 缺省或不前进即视为最后一页
func hasNextPage(next, current, got, total int) bool {
	if got == 0 || next <= current {
		return false
	}
	return total == 0 || next < total
}

func (c *Collector) getJSON(ctx context.Context, path, token string, query url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

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
		if len(body) > 256 {
			body = body[:256]
		}
		return fmt.Errorf("PSN接口返回状态码%d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}
