package catalog

import (
	"net/url"
	"strings"
	"time"

	"GameSync/internal/model"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// escapeQuery 转义 Apicalypse 字符串字面量
func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

func urlEscape(s string) string {
	return url.QueryEscape(s)
}

// imageURL IGDB 返回协议相对地址（//images.igdb.com/...），补全为 https
func imageURL(u string) string {
	if strings.HasPrefix(u, "//") {
		return "https:" + u
	}
	return u
}

func toMetadata(g *model.IGDBGame) *model.GameMetadata {
	meta := &model.GameMetadata{
		CatalogID:        g.ID,
		Name:             g.Name,
		Platforms:        g.Platforms,
		Genres:           g.Genres,
		GameModes:        g.GameModes,
		Description:      g.Summary,
		TotalRating:      g.TotalRating,
		TotalRatingCount: g.TotalRatingCount,
	}
	if g.FirstReleaseDate > 0 {
		t := time.Unix(g.FirstReleaseDate, 0).UTC()
		meta.ReleaseDate = &t
	}
	for _, ic := range g.InvolvedCompanies {
		company := ic.Company
		if ic.Developer && meta.DeveloperID == nil {
			meta.DeveloperID = &company
		}
		if ic.Publisher && meta.PublisherID == nil {
			meta.PublisherID = &company
		}
	}
	if g.Cover != nil {
		meta.CoverImage = imageURL(g.Cover.URL)
	}
	for _, s := range g.Screenshots {
		if s.URL != "" {
			meta.Screenshots = append(meta.Screenshots, imageURL(s.URL))
		}
	}
	return meta
}
