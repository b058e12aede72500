// Package catalog IGDB 目录客户端：外部ID交叉引用、名称模糊查询、令牌管理与限流
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"GameSync/internal/config"
	"GameSync/internal/metrics"
	"GameSync/internal/model"
	"GameSync/internal/utils/clock"
	"GameSync/internal/utils/httpclient"
	"GameSync/internal/utils/namekey"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// ErrCatalogUnavailable 目录暂时不可用（网络、鉴权、5xx、限流、熔断）。调用方可重试或降级
var ErrCatalogUnavailable = errors.New("目录服务不可用")

const (
	tokenRefreshBuffer   = 60 * time.Second
	defaultTokenLifetime = 3600
	breakerName          = "igdb"
)

// external_games.category：1 = Steam，36 = PlayStation Store
var externalCategories = map[model.PlatformType]int{
	model.PlatformSteam: 1,
	model.PlatformPSN:   36,
}

const gameFields = "fields name, summary, genres, platforms, game_modes, first_release_date, " +
	"involved_companies.company, involved_companies.developer, involved_companies.publisher, " +
	"cover.url, screenshots.url, total_rating, total_rating_count; "

// Client 并发安全；限流器与令牌都归客户端所有，所有调用共用一个请求节奏
type Client struct {
	cfg        *config.CatalogConfig
	httpClient *http.Client
	clock      clock.Clock
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	logger     *logrus.Logger

	mu            sync.Mutex
	accessToken   string
	tokenDeadline time.Time
}

// NewClient 创建目录客户端；clk 为 nil 时使用系统时钟
func NewClient(cfg *config.CatalogConfig, clk clock.Clock, logger *logrus.Logger) *Client {
	if clk == nil {
		clk = clock.Real()
	}
	limit := rate.Inf
	if cfg.RequestInterval > 0 {
		limit = rate.Every(cfg.RequestInterval)
	}
	c := &Client{
		cfg:        cfg,
		httpClient: httpclient.NewHTTPClient(httpclient.Options{Timeout: cfg.Timeout, Proxy: cfg.Proxy}, logger),
		clock:      clk,
		limiter:    rate.NewLimiter(limit, 1),
		logger:     logger,
	}

	metrics.CircuitBreakerState.WithLabelValues(breakerName).Set(0)
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// 调用方取消不算目录故障
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("目录熔断器状态变化")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(metrics.BreakerStateValue(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
		},
	})
	return c
}

// Lookup 查询规范元数据：有外部ID先走 external_games 交叉引用，否则（或未命中）按清洗后的名称模糊查询。
// 未找到返回 (nil, nil)；目录故障返回包装了 ErrCatalogUnavailable 的错误
func (c *Client) Lookup(ctx context.Context, name string, platform model.PlatformType, externalID *string) (*model.GameMetadata, error) {
	if externalID != nil && *externalID != "" {
		if category, ok := externalCategories[platform]; ok {
			gameID, err := c.resolveExternal(ctx, *externalID, category)
			if err != nil {
				return nil, err
			}
			if gameID > 0 {
				game, err := c.queryGame(ctx, fmt.Sprintf("where id = %d;", gameID))
				if err != nil {
					return nil, err
				}
				if game != nil {
					return toMetadata(game), nil
				}
			}
		}
	}

	cleaned := namekey.Clean(name)
	if cleaned == "" {
		return nil, nil
	}
	game, err := c.queryGame(ctx, fmt.Sprintf(`where name ~ *"%s"* & category = (0,8,9,10,11); limit 1;`, escapeQuery(cleaned)))
	if err != nil || game == nil {
		return nil, err
	}
	return toMetadata(game), nil
}

func (c *Client) resolveExternal(ctx context.Context, uid string, category int) (int64, error) {
	var refs []model.IGDBExternalGame
	query := fmt.Sprintf(`fields game; where uid = "%s" & category = %d; limit 1;`, escapeQuery(uid), category)
	if err := c.post(ctx, "external_games", query, &refs); err != nil {
		return 0, err
	}
	if len(refs) == 0 {
		return 0, nil
	}
	return refs[0].Game, nil
}

func (c *Client) queryGame(ctx context.Context, where string) (*model.IGDBGame, error) {
	var games []model.IGDBGame
	if err := c.post(ctx, "games", gameFields+where, &games); err != nil {
		return nil, err
	}
	if len(games) == 0 {
		return nil, nil
	}
	return &games[0], nil
}

// post 经过限流与熔断发送一次 Apicalypse 查询并解析响应
func (c *Client) post(ctx context.Context, endpoint, query string, out interface{}) error {
	start := c.clock.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, query)
	})
	metrics.CatalogRequestDuration.WithLabelValues(endpoint).Observe(c.clock.Now().Sub(start).Seconds())
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CatalogRequests.WithLabelValues(endpoint, "rejected").Inc()
			return fmt.Errorf("%w: 熔断器拒绝请求: %v", ErrCatalogUnavailable, err)
		}
		metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		metrics.CatalogRequests.WithLabelValues(endpoint, "error").Inc()
		return fmt.Errorf("%w: 解析%s响应失败: %v", ErrCatalogUnavailable, endpoint, err)
	}
	metrics.CatalogRequests.WithLabelValues(endpoint, "ok").Inc()
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, query string) ([]byte, error) {
	if err := c.pace(ctx); err != nil {
		return nil, err
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	endpointURL := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpointURL, strings.NewReader(query))
	if err != nil {
		return nil, fmt.Errorf("%w: 构建请求失败: %v", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Client-ID", c.cfg.ClientID)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: 请求%s失败: %v", ErrCatalogUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取%s响应失败: %v", ErrCatalogUnavailable, endpoint, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s返回状态码%d", ErrCatalogUnavailable, endpoint, resp.StatusCode)
	}
	return body, nil
}

// pace 按令牌桶节奏等待；睡眠不可取消，醒来后再检查 ctx
func (c *Client) pace(ctx context.Context) error {
	now := c.clock.Now()
	r := c.limiter.ReserveN(now, 1)
	if !r.OK() {
		return fmt.Errorf("%w: 限流器拒绝请求", ErrCatalogUnavailable)
	}
	c.clock.Sleep(r.DelayFrom(now))
	return ctx.Err()
}

// token 懒加载 Twitch client_credentials 令牌，过期前 60 秒刷新
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	if c.accessToken != "" && now.Before(c.tokenDeadline) {
		return c.accessToken, nil
	}
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return "", fmt.Errorf("%w: 未配置IGDB客户端凭据", ErrCatalogUnavailable)
	}

	form := fmt.Sprintf("client_id=%s&client_secret=%s&grant_type=client_credentials",
		urlEscape(c.cfg.ClientID), urlEscape(c.cfg.ClientSecret))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, bytes.NewBufferString(form))
	if err != nil {
		return "", fmt.Errorf("%w: 构建令牌请求失败: %v", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("%w: 获取访问令牌失败: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: 令牌接口返回状态码%d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var tok model.TwitchToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil || tok.AccessToken == "" {
		return "", fmt.Errorf("%w: 解析访问令牌失败: %v", ErrCatalogUnavailable, err)
	}
	lifetime := tok.ExpiresIn
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	c.accessToken = tok.AccessToken
	c.tokenDeadline = now.Add(time.Duration(lifetime)*time.Second - tokenRefreshBuffer)
	c.logger.WithField("expires_in", lifetime).Info("IGDB访问令牌已刷新")
	return c.accessToken, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = ""
}
