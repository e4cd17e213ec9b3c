package catalog

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// placeholderReleaseDate marks unreleased placeholder records upstream.
// Products dated here or later carry no usable metadata and are dropped.
var placeholderReleaseDate = time.Date(2200, 1, 1, 0, 0, 0, 0, time.UTC)

const podcastContentType = "Podcast"

// imageSizeToken matches the provider's size-suffix segment in image URLs,
// e.g. "._SL500_." in ".../51abcdef._SL500_.jpg".
var imageSizeToken = regexp.MustCompile(`\._[A-Za-z0-9,]+_\.`)

// Normalize converts one upstream catalog record into a Book with its
// related authors, narrators, genres and series memberships populated.
// It returns ok=false for records that fail the minimal validity check
// (no title, or a placeholder release date); such records must not be
// stored.
func Normalize(p RawProduct, region Region) (Book, bool) {
	title := cleanString(p.Title)
	if p.ASIN == "" || title == "" {
		return Book{}, false
	}

	book := Book{
		ASIN:                p.ASIN,
		Region:              region,
		Title:               title,
		Subtitle:            optString(p.Subtitle),
		Description:         optString(p.MerchandisingSummary),
		Summary:             optString(p.PublisherSummary),
		Publisher:           optString(p.PublisherName),
		Copyright:           optString(p.Copyright),
		ISBN:                optString(p.ISBN),
		Language:            optString(p.Language),
		Format:              optString(p.FormatType),
		Image:               largestImage(p.ProductImages),
		Explicit:            p.IsAdultProduct,
		HasPDF:              p.IsPDFURLAvailable,
		WhisperSync:         p.IsWS4VEnabled,
		LengthMinutes:       p.RuntimeLengthMin,
		ContentType:         optString(p.ContentType),
		ContentDeliveryType: optString(p.ContentDeliveryType),
		SKU:                 optString(p.SKU),
		SKUGroup:            optString(p.SKULite),
	}

	if p.ReleaseDate != "" {
		t, err := parseReleaseDate(p.ReleaseDate)
		if err == nil {
			if !t.Before(placeholderReleaseDate) {
				return Book{}, false
			}
			book.ReleaseDate = &t
		}
	}

	if p.Rating != nil {
		if avg, err := p.Rating.OverallDistribution.AverageRating.Float64(); err == nil && avg > 0 {
			book.Rating = &avg
		}
	}

	for _, a := range p.Authors {
		name := cleanString(a.Name)
		if name == "" {
			continue
		}
		author := Author{
			Region:      region,
			Name:        name,
			Description: optString(a.Description),
		}
		// Without a stable upstream identifier the trimmed name is the
		// key; see Author.Key.
		if asin := cleanString(a.ASIN); asin != "" {
			author.ASIN = &asin
		}
		book.Authors = append(book.Authors, author)
	}

	for _, n := range p.Narrators {
		name := cleanString(n.Name)
		if name == "" {
			continue
		}
		book.Narrators = append(book.Narrators, Narrator{Name: name})
	}

	for _, ladder := range p.CategoryLadders {
		for i, g := range ladder.Ladder {
			if g.ID == "" || cleanString(g.Name) == "" {
				continue
			}
			typ := GenreTypeGenre
			if i == 0 {
				typ = GenreTypeTag
			}
			book.Genres = append(book.Genres, Genre{
				ASIN: g.ID,
				Name: cleanString(g.Name),
				Type: typ,
			})
		}
	}

	book.Series = normalizeSeries(p)

	episode := episodeNumber(p)
	if episode != "" {
		book.EpisodeNumber = &episode
		book.EpisodeType = optString(p.ContentDeliveryType)
	}

	return book, true
}

func normalizeSeries(p RawProduct) []SeriesMembership {
	var memberships []SeriesMembership
	for _, s := range p.Series {
		if s.ASIN == "" {
			continue
		}
		memberships = append(memberships, SeriesMembership{
			Series:   Series{ASIN: s.ASIN, Title: cleanString(s.Title)},
			Position: optString(s.Sequence),
		})
	}

	// Podcast seasons live in the relationships array, positioned by the
	// sort field instead of a sequence.
	if p.ContentType == podcastContentType {
		for _, rel := range p.Relationships {
			if rel.RelationshipType != "series" || rel.ASIN == "" {
				continue
			}
			pos := rel.Sequence
			if pos == "" {
				pos = rel.Sort.String()
			}
			memberships = append(memberships, SeriesMembership{
				Series:   Series{ASIN: rel.ASIN, Title: cleanString(rel.Title)},
				Position: optString(pos),
			})
		}
	}
	return memberships
}

// episodeNumber derives a serialized episode position from the first
// positioned series membership of a podcast product.
func episodeNumber(p RawProduct) string {
	if p.ContentType != podcastContentType {
		return ""
	}
	for _, rel := range p.Relationships {
		if rel.RelationshipType == "episode" || rel.RelationshipType == "series" {
			if rel.Sort.String() != "" && rel.Sort.String() != "0" {
				return rel.Sort.String()
			}
			if rel.Sequence != "" {
				return rel.Sequence
			}
		}
	}
	return ""
}

func parseReleaseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// cleanString trims the value and collapses embedded control characters
// (upstream occasionally ships tab characters inside names) into single
// spaces.
func cleanString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// largestImage picks the URL under the numerically largest size key and
// strips the provider's size-suffix token so the URL serves the original.
func largestImage(images map[string]string) *string {
	best := -1
	var url string
	for k, v := range images {
		n, err := strconv.Atoi(k)
		if err != nil || v == "" {
			continue
		}
		if n > best {
			best, url = n, v
		}
	}
	if best < 0 {
		return nil
	}
	url = imageSizeToken.ReplaceAllString(url, ".")
	return &url
}

func optString(s string) *string {
	s = cleanString(s)
	if s == "" {
		return nil
	}
	return &s
}
