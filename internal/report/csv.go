package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Columns is the output header, in order. Consumers key on these names.
var Columns = []string{
	"country",
	"country_name",
	"category",
	"genre_id",
	"rank",
	"app_id",
	"app_name",
	"developer",
	"url",
	"price",
	"averageUserRating",
	"userRatingCount",
	"primaryGenreName",
	"description",
	"launch_date",
	"update_date",
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9 _-]`)

// Encode renders rows as a CSV document with the standard header. Zero
// rows produce a header-only document. Identical input always yields
// identical bytes.
func Encode(rows []Row) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row.record()); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func (r Row) record() []string {
	return []string{
		r.Country,
		r.CountryName,
		r.Category,
		strconv.Itoa(r.GenreID),
		strconv.Itoa(r.Rank),
		r.AppID,
		r.AppName,
		r.Developer,
		r.URL,
		formatFloat(r.Price),
		formatFloat(r.AverageUserRating),
		formatInt(r.UserRatingCount),
		r.PrimaryGenreName,
		r.Description,
		r.LaunchDate,
		r.UpdateDate,
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

// SafeName rewrites a category label into a filesystem-safe token:
// characters outside [A-Za-z0-9 _-] become underscores, then spaces
// become underscores.
func SafeName(category string) string {
	s := unsafeNameChars.ReplaceAllString(category, "_")
	return strings.ReplaceAll(s, " ", "_")
}

// Filename expands the output name template. {country} takes the raw
// country code and {category} the sanitized category label.
func Filename(template, country, category string) string {
	name := strings.ReplaceAll(template, "{country}", country)
	return strings.ReplaceAll(name, "{category}", SafeName(category))
}
