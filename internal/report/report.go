// Package report assembles the per-category output table: row merge,
// CSV encoding, and output naming.
package report

import (
	"strings"

	"github.com/biter777/countries"

	"github.com/storecrawl/topcharts/internal/chart"
	"github.com/storecrawl/topcharts/internal/enrich"
	"github.com/storecrawl/topcharts/internal/lookup"
)

// Context identifies the scope of one category's table.
type Context struct {
	Country  string
	Category string
	GenreID  int
}

// Row is one output record. Pointer fields render as empty cells when
// nil, matching a lookup that never answered.
type Row struct {
	Country           string
	CountryName       string
	Category          string
	GenreID           int
	Rank              int
	AppID             string
	AppName           string
	Developer         string
	URL               string
	Price             *float64
	AverageUserRating *float64
	UserRatingCount   *int64
	PrimaryGenreName  string
	Description       string
	LaunchDate        string
	UpdateDate        string
}

// BuildRow merges one chart entry with its lookup detail and optional
// enrichment. Lookup fields win; the chart display name and then the
// enrichment fill only fields the lookup left empty.
func BuildRow(rc Context, entry chart.RankedEntry, detail lookup.Detail, enr enrich.Result) Row {
	row := Row{
		Country:           rc.Country,
		CountryName:       CountryName(rc.Country),
		Category:          rc.Category,
		GenreID:           rc.GenreID,
		Rank:              entry.Rank,
		AppID:             entry.AppID,
		AppName:           detail.AppName,
		Developer:         detail.Developer,
		URL:               detail.URL,
		Price:             detail.Price,
		AverageUserRating: detail.AverageUserRating,
		UserRatingCount:   detail.UserRatingCount,
		PrimaryGenreName:  detail.PrimaryGenre,
		Description:       detail.Description,
		LaunchDate:        detail.LaunchDate,
		UpdateDate:        detail.UpdateDate,
	}

	if row.AppName == "" {
		row.AppName = entry.Name
	}
	if row.AppName == "" {
		row.AppName = enr.Title
	}
	if row.Developer == "" {
		row.Developer = enr.Developer
	}
	if row.URL == "" {
		row.URL = enr.CanonicalURL
	}
	if row.Description == "" {
		row.Description = enr.Description
	}
	return row
}

// CountryName resolves an ISO alpha-2 code to its English name.
// Unknown codes resolve to an empty string.
func CountryName(code string) string {
	c := countries.ByName(strings.ToUpper(strings.TrimSpace(code)))
	if c == countries.Unknown {
		return ""
	}
	return c.String()
}
