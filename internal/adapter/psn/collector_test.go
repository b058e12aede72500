package psn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"GameSync/internal/config"
	"GameSync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	cases := map[string]int64{
		"":             0,
		"PT0S":         0,
		"PT45S":        45,
		"PT1H2M3S":     3723,
		"PT228H56M33S": 228*3600 + 56*60 + 33,
		"P1DT2H":       26 * 3600,
		"PT10.9S":      10,
		"PT30M":        1800,
	}
	for in, want := range cases {
		got, err := parseDuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"P", "PT", "12:00:00", "PT1X"} {
		_, err := parseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestHasNextPage(t *testing.T) {
	assert.True(t, hasNextPage(2, 0, 2, 5))
	assert.False(t, hasNextPage(0, 4, 1, 5))
	assert.False(t, hasNextPage(5, 4, 1, 5))
	assert.False(t, hasNextPage(2, 0, 0, 5))
	assert.True(t, hasNextPage(2, 0, 2, 0))
}

func TestFetchRecordsJoinsTrophiesAndPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/gamelist/v2/users/me/titles", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("offset") {
		case "0":
			_, _ = w.Write([]byte(`{"titles":[
				{"titleId":"PPSA01","name":"ASTRO BOT","category":"ps5_native_game","playDuration":"PT2H"},
				{"titleId":"CUSA02","name":"Marvel's Spider-Man","category":"ps4_game","playDuration":"PT1H30M"}
			],"nextOffset":2,"totalItemCount":3}`))
		case "2":
			_, _ = w.Write([]byte(`{"titles":[
				{"titleId":"CUSA03","name":"Unplayed Demo","category":"ps4_game","playDuration":"bogus"}
			],"totalItemCount":3}`))
		default:
			t.Errorf("unexpected offset %s", r.URL.Query().Get("offset"))
		}
	})
	mux.HandleFunc("/trophy/v1/users/me/trophyTitles", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"trophyTitles":[
			{"npCommunicationId":"NPWR1","trophyTitleName":"ASTRO BOT Trophies","earnedTrophies":{"bronze":10,"silver":3,"gold":1,"platinum":0}},
			{"npCommunicationId":"NPWR2","trophyTitleName":"Marvel's Spider-Man™","earnedTrophies":{"bronze":4}},
			{"npCommunicationId":"NPWR3","trophyTitleName":"Demon's Souls (PS3)","earnedTrophies":{"gold":2}}
		],"totalItemCount":3}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	c := NewPSNCollector(&config.PlatformConfig{BaseURL: srv.URL, PageSize: 2}, logger)

	records, err := c.FetchRecords(context.Background(), &model.PlatformLink{UserID: "u1", APIKey: "token-1"})
	require.NoError(t, err)
	require.Len(t, records, 4)

	assert.Equal(t, "PPSA01", *records[0].ExternalID)
	assert.Equal(t, "ASTRO BOT Trophies", records[0].TitleName)
	assert.Equal(t, int64(14), records[0].ProgressCount)
	assert.Equal(t, int64(7200), records[0].PlayDuration)

	assert.Equal(t, int64(4), records[1].ProgressCount)
	assert.Equal(t, int64(5400), records[1].PlayDuration)

	assert.Equal(t, "CUSA03", *records[2].ExternalID)
	assert.Equal(t, int64(0), records[2].PlayDuration)
	assert.Empty(t, records[2].TitleName)

	trophyOnly := records[3]
	assert.Nil(t, trophyOnly.ExternalID)
	assert.Empty(t, trophyOnly.DisplayName)
	assert.Equal(t, "Demon's Souls (PS3)", trophyOnly.TitleName)
	assert.Equal(t, int64(2), trophyOnly.ProgressCount)
}

func TestFetchRecordsAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewPSNCollector(&config.PlatformConfig{BaseURL: srv.URL}, logrus.New())
	_, err := c.FetchRecords(context.Background(), &model.PlatformLink{APIKey: "expired"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
