package catalog

import "encoding/json"

// RawProduct is one record from the upstream catalog products endpoint. Only
// the fields the normalizer consumes are declared; the upstream payload
// carries far more.
type RawProduct struct {
	ASIN                string             `json:"asin"`
	Title               string             `json:"title"`
	Subtitle            string             `json:"subtitle"`
	MerchandisingSummary string            `json:"merchandising_summary"`
	PublisherSummary    string             `json:"publisher_summary"`
	ExtendedDescription string             `json:"extended_product_description"`
	PublisherName       string             `json:"publisher_name"`
	Copyright           string             `json:"copyright"`
	ISBN                string             `json:"isbn"`
	Language            string             `json:"language"`
	FormatType          string             `json:"format_type"`
	RuntimeLengthMin    *int               `json:"runtime_length_min"`
	ReleaseDate         string             `json:"release_date"`
	IsAdultProduct      bool               `json:"is_adult_product"`
	IsPDFURLAvailable   bool               `json:"is_pdf_url_available"`
	IsWS4VEnabled       bool               `json:"is_ws4v_enabled"`
	ContentType         string             `json:"content_type"`
	ContentDeliveryType string             `json:"content_delivery_type"`
	EpisodeCount        *int               `json:"episode_count"`
	SKU                 string             `json:"sku"`
	SKULite             string             `json:"sku_lite"`
	ProductImages       map[string]string  `json:"product_images"`
	Rating              *RawRating         `json:"rating"`
	Authors             []RawPerson        `json:"authors"`
	Narrators           []RawPerson        `json:"narrators"`
	Series              []RawSeries        `json:"series"`
	Relationships       []RawRelationship  `json:"relationships"`
	CategoryLadders     []RawCategoryLadder `json:"category_ladders"`
}

// RawRating nests the average under an overall distribution.
type RawRating struct {
	OverallDistribution struct {
		AverageRating json.Number `json:"average_rating"`
	} `json:"overall_distribution"`
}

// RawPerson is an upstream author or narrator reference. ASIN is empty for
// narrators and for authors without a stable identifier.
type RawPerson struct {
	ASIN        string `json:"asin"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RawSeries is an upstream series reference on a product.
type RawSeries struct {
	ASIN     string `json:"asin"`
	Title    string `json:"title"`
	Sequence string `json:"sequence"`
}

// RawRelationship is one entry of the relationships response group. Podcast
// products express their season membership here rather than in the series
// array, with Sort carrying the episode position.
type RawRelationship struct {
	ASIN                  string      `json:"asin"`
	Title                 string      `json:"title"`
	RelationshipType      string      `json:"relationship_type"`
	RelationshipToProduct string      `json:"relationship_to_product"`
	Sequence              string      `json:"sequence"`
	Sort                  json.Number `json:"sort"`
}

// RawCategoryLadder is one category path; the first rung is a tag, the
// remaining rungs are genres.
type RawCategoryLadder struct {
	Root   string      `json:"root"`
	Ladder []RawGenre  `json:"ladder"`
}

// RawGenre is one rung of a category ladder.
type RawGenre struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
