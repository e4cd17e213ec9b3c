// Package catalog defines the entities the reconciliation engine works on:
// books, authors, narrators, genres, series memberships and chapter tracks,
// together with the natural keys used to detect duplicates and the
// normalization of upstream records into that shape.
package catalog

import "time"

// Region selects the upstream marketplace and language. It is stored as
// metadata on entities, not used as a partition key: there is one row per
// ASIN regardless of how many regions it was requested from.
type Region string

// Supported marketplace regions.
const (
	RegionUS Region = "us"
	RegionCA Region = "ca"
	RegionUK Region = "uk"
	RegionAU Region = "au"
	RegionFR Region = "fr"
	RegionDE Region = "de"
	RegionJP Region = "jp"
	RegionIT Region = "it"
	RegionIN Region = "in"
	RegionES Region = "es"
	RegionBR Region = "br"
)

var allRegions = map[Region]bool{
	RegionUS: true, RegionCA: true, RegionUK: true, RegionAU: true,
	RegionFR: true, RegionDE: true, RegionJP: true, RegionIT: true,
	RegionIN: true, RegionES: true, RegionBR: true,
}

// ValidRegion reports whether r names a supported marketplace.
func ValidRegion(r Region) bool { return allRegions[r] }

// GenreType distinguishes the first rung of an upstream category ladder
// (a tag) from the remaining rungs (genres).
type GenreType string

// Genre classification values.
const (
	GenreTypeGenre GenreType = "genre"
	GenreTypeTag   GenreType = "tag"
)

// Book is one audiobook product. ASIN is the natural primary key; Region
// records the marketplace the data was last fetched from.
type Book struct {
	ASIN                string     `json:"asin"`
	Region              Region     `json:"region"`
	Title               string     `json:"title"`
	Subtitle            *string    `json:"subtitle,omitempty"`
	Description         *string    `json:"description,omitempty"`
	Summary             *string    `json:"summary,omitempty"`
	Publisher           *string    `json:"publisher,omitempty"`
	Copyright           *string    `json:"copyright,omitempty"`
	ISBN                *string    `json:"isbn,omitempty"`
	Language            *string    `json:"language,omitempty"`
	Format              *string    `json:"bookFormat,omitempty"`
	Image               *string    `json:"image,omitempty"`
	Rating              *float64   `json:"rating,omitempty"`
	ReleaseDate         *time.Time `json:"releaseDate,omitempty"`
	Explicit            bool       `json:"explicit"`
	HasPDF              bool       `json:"hasPdf"`
	WhisperSync         bool       `json:"whisperSync"`
	LengthMinutes       *int       `json:"lengthMinutes,omitempty"`
	ContentType         *string    `json:"contentType,omitempty"`
	ContentDeliveryType *string    `json:"contentDeliveryType,omitempty"`
	EpisodeNumber       *string    `json:"episodeNumber,omitempty"`
	EpisodeType         *string    `json:"episodeType,omitempty"`
	SKU                 *string    `json:"sku,omitempty"`
	SKUGroup            *string    `json:"skuGroup,omitempty"`

	Authors   []Author           `json:"authors"`
	Narrators []Narrator         `json:"narrators"`
	Genres    []Genre            `json:"genres"`
	Series    []SeriesMembership `json:"series"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Regions derives the single-element region list exposed on the API.
func (b Book) Regions() []Region { return []Region{b.Region} }

// Author is a book author. ASIN is nullable: some authors have no stable
// upstream identifier, in which case the trimmed name doubles as the key.
// NoDescription records that a detail fetch ran and genuinely found no
// description, as opposed to "never fetched".
type Author struct {
	ID            int64   `json:"id,omitempty"`
	ASIN          *string `json:"asin,omitempty"`
	Region        Region  `json:"region"`
	Name          string  `json:"name"`
	Description   *string `json:"description,omitempty"`
	Image         *string `json:"image,omitempty"`
	NoDescription bool    `json:"-"`
	Genres        []Genre `json:"genres,omitempty"`
}

// Key returns the author's natural key: (asin, name, region) when an ASIN is
// present, (name, region) otherwise.
func (a Author) Key() string {
	if a.ASIN != nil && *a.ASIN != "" {
		return *a.ASIN + "\x00" + a.Name + "\x00" + string(a.Region)
	}
	return a.Name + "\x00" + string(a.Region)
}

// Regions derives the single-element region list exposed on the API.
func (a Author) Regions() []Region { return []Region{a.Region} }

// Narrator has no upstream identifier; the name is the whole identity.
type Narrator struct {
	Name string `json:"name"`
}

// Genre is one rung of an upstream category ladder.
type Genre struct {
	ASIN string    `json:"asin"`
	Name string    `json:"name"`
	Type GenreType `json:"type"`
}

// Series groups serialized books. FetchedDescription carries the same
// confirmed-absent semantics as Author.NoDescription.
type Series struct {
	ASIN               string  `json:"asin"`
	Title              string  `json:"title"`
	Description        *string `json:"description,omitempty"`
	FetchedDescription bool    `json:"-"`
}

// SeriesMembership links a book into a series. Position is the free-form
// serialized position ("1", "1.5", "Book 2") and may be absent.
type SeriesMembership struct {
	Series
	Position *string `json:"position,omitempty"`
}

// Chapter is one chapter of a book's audio track.
type Chapter struct {
	Title          string `json:"title"`
	LengthMs       int64  `json:"lengthMs"`
	StartOffsetMs  int64  `json:"startOffsetMs"`
	StartOffsetSec int64  `json:"startOffsetSec"`
}

// Track is the chapter layout of one book, keyed by the book's ASIN.
type Track struct {
	ASIN            string    `json:"asin"`
	Chapters        []Chapter `json:"chapters"`
	IsAccurate      bool      `json:"isAccurate"`
	RuntimeLengthMs int64     `json:"runtimeLengthMs"`
}
