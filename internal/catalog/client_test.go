package catalog

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"GameSync/internal/config"
	"GameSync/internal/model"
	"GameSync/internal/testutil"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIGDB 记录收到的查询；handler 决定 games / external_games 的响应
type fakeIGDB struct {
	t *testing.T

	mu          sync.Mutex
	tokenCalls  int
	queries     map[string][]string
	gamesStatus int
	games       func(query string) string
	external    func(query string) string
}

func newFakeIGDB(t *testing.T) *fakeIGDB {
	return &fakeIGDB{t: t, queries: map[string][]string{}, gamesStatus: http.StatusOK}
}

func (f *fakeIGDB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/token":
		form, err := url.ParseQuery(string(body))
		require.NoError(f.t, err)
		assert.Equal(f.t, "client_credentials", form.Get("grant_type"))
		assert.Equal(f.t, "cid", form.Get("client_id"))
		f.tokenCalls++
		_, _ = w.Write([]byte(`{"access_token":"tok-` + string(rune('0'+f.tokenCalls)) + `","expires_in":3600,"token_type":"bearer"}`))
	case "/v4/external_games", "/v4/games":
		endpoint := strings.TrimPrefix(r.URL.Path, "/v4/")
		assert.Equal(f.t, "cid", r.Header.Get("Client-ID"))
		assert.True(f.t, strings.HasPrefix(r.Header.Get("Authorization"), "Bearer tok-"))
		f.queries[endpoint] = append(f.queries[endpoint], string(body))
		if endpoint == "external_games" {
			resp := "[]"
			if f.external != nil {
				resp = f.external(string(body))
			}
			_, _ = w.Write([]byte(resp))
			return
		}
		if f.gamesStatus != http.StatusOK {
			w.WriteHeader(f.gamesStatus)
			return
		}
		resp := "[]"
		if f.games != nil {
			resp = f.games(string(body))
		}
		_, _ = w.Write([]byte(resp))
	default:
		f.t.Errorf("unexpected path %s", r.URL.Path)
	}
}

func (f *fakeIGDB) count(endpoint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries[endpoint])
}

func (f *fakeIGDB) tokens() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokenCalls
}

func newTestClient(t *testing.T, f *fakeIGDB, interval time.Duration) (*Client, *testutil.FakeClock) {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	clk := testutil.NewFakeClock(t)
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c := NewClient(&config.CatalogConfig{
		BaseURL:         srv.URL + "/v4",
		TokenURL:        srv.URL + "/token",
		ClientID:        "cid",
		ClientSecret:    "secret",
		RequestInterval: interval,
	}, clk, logger)
	return c, clk
}

const portal2 = `[{"id":72,"name":"Portal 2","summary":"Puzzle","genres":[9,31],"platforms":[6,14],
	"game_modes":[1,2],"first_release_date":1303171200,
	"involved_companies":[{"company":56,"developer":true,"publisher":false},{"company":1,"developer":false,"publisher":true}],
	"cover":{"id":1,"url":"//images.igdb.com/igdb/image/upload/t_thumb/co1rs4.jpg"},
	"screenshots":[{"id":2,"url":"//images.igdb.com/s1.jpg"}],"total_rating":94.5,"total_rating_count":3000}]`

func TestLookupByExternalID(t *testing.T) {
	f := newFakeIGDB(t)
	f.external = func(q string) string {
		assert.Contains(t, q, `where uid = "620" & category = 1;`)
		return `[{"id":9,"game":72,"uid":"620"}]`
	}
	f.games = func(q string) string {
		assert.Contains(t, q, "where id = 72;")
		return portal2
	}
	c, _ := newTestClient(t, f, 0)

	ext := "620"
	meta, err := c.Lookup(context.Background(), "Portal 2", model.PlatformSteam, &ext)
	require.NoError(t, err)
	require.NotNil(t, meta)

	assert.Equal(t, int64(72), meta.CatalogID)
	assert.Equal(t, "Portal 2", meta.Name)
	assert.Equal(t, []int64{9, 31}, meta.Genres)
	assert.Equal(t, "https://images.igdb.com/igdb/image/upload/t_thumb/co1rs4.jpg", meta.CoverImage)
	assert.Equal(t, []string{"https://images.igdb.com/s1.jpg"}, meta.Screenshots)
	require.NotNil(t, meta.DeveloperID)
	assert.Equal(t, int64(56), *meta.DeveloperID)
	require.NotNil(t, meta.PublisherID)
	assert.Equal(t, int64(1), *meta.PublisherID)
	require.NotNil(t, meta.ReleaseDate)
	assert.Equal(t, 2011, meta.ReleaseDate.Year())
	assert.Equal(t, 1, f.count("games"))
}

func TestLookupPSNUsesPlayStationCategory(t *testing.T) {
	f := newFakeIGDB(t)
	f.external = func(q string) string {
		assert.Contains(t, q, "category = 36;")
		return `[]`
	}
	f.games = func(q string) string {
		assert.Contains(t, q, `where name ~ *"ASTRO BOT"*`)
		return `[{"id":5,"name":"Astro Bot"}]`
	}
	c, _ := newTestClient(t, f, 0)

	ext := "PPSA01"
	meta, err := c.Lookup(context.Background(), "ASTRO BOT Trophies", model.PlatformPSN, &ext)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, int64(5), meta.CatalogID)
	assert.Equal(t, 1, f.count("external_games"))
}

func TestLookupFallsBackToCleanedName(t *testing.T) {
	f := newFakeIGDB(t)
	f.games = func(q string) string {
		assert.Contains(t, q, `where name ~ *"Marvel's Spider-Man"* & category = (0,8,9,10,11); limit 1;`)
		return `[{"id":1,"name":"Marvel's Spider-Man"}]`
	}
	c, _ := newTestClient(t, f, 0)

	meta, err := c.Lookup(context.Background(), "Marvel's Spider-Man™ Trophies", model.PlatformPSN, nil)
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, "Marvel's Spider-Man", meta.Name)
	assert.Nil(t, meta.ReleaseDate)
	assert.Equal(t, 0, f.count("external_games"))
}

func TestLookupEscapesQuotes(t *testing.T) {
	f := newFakeIGDB(t)
	f.games = func(q string) string {
		assert.Contains(t, q, `*"The \"Quoted\" Game"*`)
		return `[]`
	}
	c, _ := newTestClient(t, f, 0)

	_, err := c.Lookup(context.Background(), `The "Quoted" Game`, model.PlatformSteam, nil)
	require.NoError(t, err)
}

func TestLookupNotFound(t *testing.T) {
	f := newFakeIGDB(t)
	c, _ := newTestClient(t, f, 0)

	meta, err := c.Lookup(context.Background(), "No Such Game", model.PlatformSteam, nil)
	require.NoError(t, err)
	assert.Nil(t, meta)

	meta, err = c.Lookup(context.Background(), "™", model.PlatformSteam, nil)
	require.NoError(t, err)
	assert.Nil(t, meta)
	assert.Equal(t, 1, f.count("games"), "unmatchable names never reach the catalog")
}

func TestLookupServerErrorIsUnavailable(t *testing.T) {
	f := newFakeIGDB(t)
	f.gamesStatus = http.StatusServiceUnavailable
	c, _ := newTestClient(t, f, 0)

	_, err := c.Lookup(context.Background(), "Portal 2", model.PlatformSteam, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestTokenReusedUntilRefreshWindow(t *testing.T) {
	f := newFakeIGDB(t)
	c, clk := newTestClient(t, f, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Lookup(ctx, "Portal", model.PlatformSteam, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, f.tokens())

	// 令牌 3600 秒有效，提前 60 秒刷新
	clk.Advance(3539 * time.Second)
	_, err := c.Lookup(ctx, "Portal", model.PlatformSteam, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.tokens())

	clk.Advance(2 * time.Second)
	_, err = c.Lookup(ctx, "Portal", model.PlatformSteam, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tokens())
}

func TestUnauthorizedInvalidatesToken(t *testing.T) {
	f := newFakeIGDB(t)
	f.gamesStatus = http.StatusUnauthorized
	c, _ := newTestClient(t, f, 0)

	_, err := c.Lookup(context.Background(), "Portal", model.PlatformSteam, nil)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)

	f.mu.Lock()
	f.gamesStatus = http.StatusOK
	f.mu.Unlock()
	_, err = c.Lookup(context.Background(), "Portal", model.PlatformSteam, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, f.tokens())
}

func TestRequestsArePacedThroughClock(t *testing.T) {
	f := newFakeIGDB(t)
	c, clk := newTestClient(t, f, time.Second)

	for i := 0; i < 3; i++ {
		_, err := c.Lookup(context.Background(), "Portal", model.PlatformSteam, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clk.Slept())
	assert.Equal(t, 3, f.count("games"))
}

func TestPacingChecksContextAfterSleep(t *testing.T) {
	f := newFakeIGDB(t)
	c, _ := newTestClient(t, f, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Lookup(ctx, "Portal", model.PlatformSteam, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, 0, f.count("games"))
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	f := newFakeIGDB(t)
	f.gamesStatus = http.StatusInternalServerError
	c, _ := newTestClient(t, f, 0)

	for i := 0; i < 5; i++ {
		_, err := c.Lookup(context.Background(), "Portal", model.PlatformSteam, nil)
		require.ErrorIs(t, err, ErrCatalogUnavailable)
	}
	_, err := c.Lookup(context.Background(), "Portal", model.PlatformSteam, nil)
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Contains(t, err.Error(), "熔断")
	assert.Equal(t, 5, f.count("games"))
}

func TestMissingCredentialsIsUnavailable(t *testing.T) {
	c := NewClient(&config.CatalogConfig{BaseURL: "http://127.0.0.1:1", TokenURL: "http://127.0.0.1:1"}, testutil.NewFakeClock(t), logrus.New())
	_, err := c.Lookup(context.Background(), "Portal", model.PlatformSteam, nil)
	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}
