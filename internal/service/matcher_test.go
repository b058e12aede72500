package service

import (
	"testing"

	"GameSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexed(games ...*model.CanonicalGame) *GameIndex {
	for i, g := range games {
		g.ID = uint64(i + 1)
	}
	return NewGameIndex(games)
}

func TestMatchPrecedence(t *testing.T) {
	byExt := storedGame("Portal 2", strPtr("620"), nil, nil)
	byName := storedGame("Portal Two", nil, nil, nil)
	ix := indexed(byExt, byName)

	tests := []struct {
		name     string
		ext      *string
		key      string
		kind     MatchKind
		game     *model.CanonicalGame
		nameOnly bool
	}{
		{"external id wins over a different name", strPtr("620"), "portal two", MatchExisting, byExt, false},
		{"name without external id", nil, "portal two", MatchExisting, byName, true},
		{"name with unseen external id", strPtr("999"), "portal two", MatchExisting, byName, true},
		{"nothing matches", strPtr("1"), "half life", MatchNew, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := steamRec(tt.ext, "x", 0, 0)
			res := Match(rec, tt.key, ix, newPendingSet(model.PlatformSteam))
			assert.Equal(t, tt.kind, res.Kind)
			assert.Equal(t, tt.game, res.Game)
			assert.Equal(t, tt.nameOnly, res.NameOnly)
		})
	}
}

func TestMatchSkipsRowsWithConflictingExternalID(t *testing.T) {
	first := storedGame("Doom", strPtr("379720"), nil, nil)
	second := storedGame("Doom", nil, nil, nil)
	ix := indexed(first, second)

	res := Match(steamRec(strPtr("2280"), "Doom", 0, 0), "doom", ix, newPendingSet(model.PlatformSteam))
	require.Equal(t, MatchExisting, res.Kind)
	assert.Same(t, second, res.Game)

	only := indexed(storedGame("Doom", strPtr("379720"), nil, nil))
	res = Match(steamRec(strPtr("2280"), "Doom", 0, 0), "doom", only, newPendingSet(model.PlatformSteam))
	assert.Equal(t, MatchNew, res.Kind)
}

func TestMatchOriginalNameIsIndexed(t *testing.T) {
	g := storedGame("Final Fantasy VII Remake", nil, nil, i64Ptr(99))
	g.OriginalName = "FF7 Remake"
	ix := indexed(g)

	res := Match(steamRec(nil, "FF7 Remake", 0, 0), "ff7 remake", ix, newPendingSet(model.PlatformSteam))
	require.Equal(t, MatchExisting, res.Kind)
	assert.True(t, res.NameOnly)
}

func TestMatchEarliestRowWinsExternalID(t *testing.T) {
	a := storedGame("A", strPtr("7"), nil, nil)
	b := storedGame("B", strPtr("7"), nil, nil)
	ix := indexed(a, b)
	assert.Same(t, a, ix.ByExternal(model.PlatformSteam, "7"))
}

func TestMatchPendingCandidates(t *testing.T) {
	ix := indexed()
	pending := newPendingSet(model.PlatformSteam)
	c := &candidate{game: storedGame("Hades", strPtr("1145360"), nil, nil), key: "hades"}
	pending.add(c)

	res := Match(steamRec(strPtr("1145360"), "HADES™", 0, 0), "hades", ix, pending)
	require.Equal(t, MatchPending, res.Kind)
	assert.Same(t, c, res.Candidate)
	assert.False(t, res.NameOnly)

	res = Match(steamRec(nil, "Hades", 0, 0), "hades", ix, pending)
	require.Equal(t, MatchPending, res.Kind)
	assert.True(t, res.NameOnly)

	res = Match(steamRec(strPtr("2"), "Hades", 0, 0), "hades", ix, pending)
	assert.Equal(t, MatchNew, res.Kind, "different external id is a different game")
}

func TestPendingAdoptsExternalID(t *testing.T) {
	pending := newPendingSet(model.PlatformPSN)
	c := &candidate{game: storedGame("Bloodborne", nil, nil, nil), key: "bloodborne"}
	pending.add(c)
	pending.adoptExternalID(c, "CUSA00900")

	res := Match(&model.RawPlatformRecord{Platform: model.PlatformPSN, ExternalID: strPtr("CUSA00900"), DisplayName: "Other"}, "other", indexed(), pending)
	require.Equal(t, MatchPending, res.Kind)
	assert.Same(t, c, res.Candidate)
}

func TestCandidateFinalIDFollowsAliases(t *testing.T) {
	root := &candidate{resolvedID: 42}
	mid := &candidate{alias: root}
	leaf := &candidate{alias: mid}
	assert.Equal(t, uint64(42), leaf.finalID())
	assert.Zero(t, (&candidate{}).finalID())
}
