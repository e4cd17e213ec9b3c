// Package audible talks to the upstream provider: the JSON catalog API for
// product metadata and chapters, and the HTML site for author detail pages.
package audible

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

// ErrNotFound signals the provider answered authoritatively that the
// requested record does not exist, as opposed to a transient failure.
var ErrNotFound = errors.New("upstream record not found")

// responseGroups selects the product fields the normalizer consumes.
const responseGroups = "category_ladders,contributors,media,product_attrs," +
	"product_desc,product_details,product_extended_attrs,rating,relationships,series,sku"

// ClientConfig controls the catalog API client.
type ClientConfig struct {
	// BaseURL overrides the per-region API host, mainly for tests.
	BaseURL        string
	Timeout        time.Duration
	RequestsPerSec float64
}

// Client is the catalog API collaborator. All calls wait on a shared rate
// limiter so bursts from chunked fetches stay within the provider's limits.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewClient constructs a catalog API client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), int(rps)),
		logger:     logger,
	}
}

func (c *Client) base(region catalog.Region) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return apiBase(region)
}

type productsResponse struct {
	Products          []catalog.RawProduct `json:"products"`
	Product           *catalog.RawProduct  `json:"product"`
	TotalResults      int                  `json:"total_results"`
	ContinuationToken string               `json:"continuation_token"`
}

// FetchCatalog loads the catalog records for up to one chunk of ASINs.
// Fewer records than requested is not an error: unknown ASINs are simply
// absent from the response.
func (c *Client) FetchCatalog(ctx context.Context, asins []string, region catalog.Region) ([]catalog.RawProduct, error) {
	if len(asins) == 0 {
		return nil, nil
	}
	params := url.Values{}
	params.Set("asins", strings.Join(asins, ","))
	params.Set("response_groups", responseGroups)
	params.Set("num_results", fmt.Sprint(len(asins)))

	var resp productsResponse
	if err := c.getJSON(ctx, region, "/1.0/catalog/products", params, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// FetchProduct loads one catalog record via the single-id convenience form.
func (c *Client) FetchProduct(ctx context.Context, asin string, region catalog.Region) (catalog.RawProduct, error) {
	params := url.Values{}
	params.Set("response_groups", responseGroups)

	var resp productsResponse
	err := c.getJSON(ctx, region, "/1.0/catalog/products/"+url.PathEscape(asin), params, &resp)
	if err != nil {
		return catalog.RawProduct{}, err
	}
	if resp.Product == nil || resp.Product.ASIN == "" {
		return catalog.RawProduct{}, fmt.Errorf("product %s: %w", asin, ErrNotFound)
	}
	return *resp.Product, nil
}

// SearchProducts runs a free-text catalog search by title and author.
func (c *Client) SearchProducts(ctx context.Context, title, author string, region catalog.Region, num int) ([]catalog.RawProduct, error) {
	if num <= 0 {
		num = 25
	}
	params := url.Values{}
	params.Set("response_groups", responseGroups)
	params.Set("num_results", fmt.Sprint(num))
	if title != "" {
		params.Set("title", title)
	}
	if author != "" {
		params.Set("author", author)
	}

	var resp productsResponse
	if err := c.getJSON(ctx, region, "/1.0/catalog/products", params, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

type chaptersResponse struct {
	ContentMetadata struct {
		ChapterInfo struct {
			Chapters []struct {
				Title          string `json:"title"`
				LengthMs       int64  `json:"length_ms"`
				StartOffsetMs  int64  `json:"start_offset_ms"`
				StartOffsetSec int64  `json:"start_offset_sec"`
			} `json:"chapters"`
			IsAccurate      bool  `json:"is_accurate"`
			RuntimeLengthMs int64 `json:"runtime_length_ms"`
		} `json:"chapter_info"`
	} `json:"content_metadata"`
}

// FetchChapters loads the chapter layout of one book.
func (c *Client) FetchChapters(ctx context.Context, asin string, region catalog.Region) (catalog.Track, error) {
	params := url.Values{}
	params.Set("response_groups", "chapter_info")

	var resp chaptersResponse
	err := c.getJSON(ctx, region, "/1.0/content/"+url.PathEscape(asin)+"/metadata", params, &resp)
	if err != nil {
		return catalog.Track{}, err
	}
	info := resp.ContentMetadata.ChapterInfo
	if len(info.Chapters) == 0 {
		return catalog.Track{}, fmt.Errorf("chapters for %s: %w", asin, ErrNotFound)
	}
	track := catalog.Track{
		ASIN:            asin,
		IsAccurate:      info.IsAccurate,
		RuntimeLengthMs: info.RuntimeLengthMs,
	}
	for _, ch := range info.Chapters {
		track.Chapters = append(track.Chapters, catalog.Chapter{
			Title:          ch.Title,
			LengthMs:       ch.LengthMs,
			StartOffsetMs:  ch.StartOffsetMs,
			StartOffsetSec: ch.StartOffsetSec,
		})
	}
	return track, nil
}

func (c *Client) getJSON(ctx context.Context, region catalog.Region, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	u := c.base(region) + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.logger.Debug("upstream response",
		zap.String("path", path),
		zap.String("region", string(region)),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s: %w", path, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("upstream %s returned status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("read upstream body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode upstream payload: %w", err)
	}
	return nil
}
