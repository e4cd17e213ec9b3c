package audible

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
)

// Author detail pages occasionally answer 503 under load and succeed on the
// next attempt; anything else is not worth retrying here.
const (
	maxScrapeAttempts = 5
	scrapeRetryBase   = 300 * time.Millisecond
	scrapeRetryJitter = 700 * time.Millisecond
)

var errServiceUnavailable = errors.New("upstream service unavailable")

// imageSizeSuffix matches the provider's size token in scraped image URLs.
var imageSizeSuffix = regexp.MustCompile(`\._[A-Za-z0-9,]+_\.`)

// categoryID extracts the numeric category id at the end of a genre link.
var categoryID = regexp.MustCompile(`/(\d+)(?:\?|$)`)

// ScraperConfig controls the HTML detail scraper.
type ScraperConfig struct {
	// BaseURL overrides the per-region site host, mainly for tests.
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Scraper fetches author detail pages from the provider's HTML site. The
// catalog API has no author endpoint, so description, image and genres only
// exist on the rendered page.
type Scraper struct {
	base    *colly.Collector
	baseURL string
	logger  *zap.Logger
}

// NewScraper constructs a configured detail scraper.
func NewScraper(cfg ScraperConfig, logger *zap.Logger) (*Scraper, error) {
	ua := cfg.UserAgent
	if ua == "" {
		ua = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	base := colly.NewCollector(colly.UserAgent(ua))
	base.AllowURLRevisit = true
	base.SetRequestTimeout(timeout)
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	})
	return &Scraper{base: base, baseURL: cfg.BaseURL, logger: logger}, nil
}

func (s *Scraper) site(region catalog.Region) string {
	if s.baseURL != "" {
		return s.baseURL
	}
	return siteBase(region)
}

// FetchAuthorDetail loads an author's detail page and extracts name,
// description, image and genre links. A page with no recognizable author
// heading maps to ErrNotFound.
func (s *Scraper) FetchAuthorDetail(ctx context.Context, asin string, region catalog.Region) (catalog.Author, error) {
	var lastErr error
	for attempt := 1; attempt <= maxScrapeAttempts; attempt++ {
		author, err := s.fetchOnce(ctx, asin, region)
		if err == nil {
			return author, nil
		}
		lastErr = err
		if !errors.Is(err, errServiceUnavailable) || attempt == maxScrapeAttempts {
			break
		}
		delay := scrapeRetryBase + time.Duration(rand.Int63n(int64(scrapeRetryJitter)))
		s.logger.Warn("author page unavailable, retrying",
			zap.String("asin", asin),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay))
		select {
		case <-ctx.Done():
			return catalog.Author{}, ctx.Err()
		case <-time.After(delay):
		}
	}
	return catalog.Author{}, lastErr
}

func (s *Scraper) fetchOnce(ctx context.Context, asin string, region catalog.Region) (catalog.Author, error) {
	c := s.base.Clone()

	var mu sync.Mutex
	var name, description, image string
	var genres []catalog.Genre
	var fetchErr error

	c.OnHTML("h1.bc-heading", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if name == "" {
			name = strings.Join(strings.Fields(e.Text), " ")
		}
	})
	c.OnHTML("div.bc-expander-content", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if description == "" {
			description = strings.Join(strings.Fields(e.Text), " ")
		}
	})
	c.OnHTML("img.author-image-outline", func(e *colly.HTMLElement) {
		mu.Lock()
		defer mu.Unlock()
		if src := e.Attr("src"); src != "" && image == "" {
			image = imageSizeSuffix.ReplaceAllString(src, ".")
		}
	})
	c.OnHTML(`a[href*="/cat/"]`, func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if u, err := url.Parse(href); err == nil {
			href = u.Path
		}
		m := categoryID.FindStringSubmatch(href)
		if m == nil {
			return
		}
		label := strings.Join(strings.Fields(e.Text), " ")
		if label == "" {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		for _, g := range genres {
			if g.ASIN == m[1] {
				return
			}
		}
		genres = append(genres, catalog.Genre{ASIN: m[1], Name: label, Type: catalog.GenreTypeGenre})
	})
	c.OnError(func(r *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r != nil && r.StatusCode == http.StatusServiceUnavailable:
			fetchErr = fmt.Errorf("author page %s: %w", asin, errServiceUnavailable)
		case r != nil && r.StatusCode == http.StatusNotFound:
			fetchErr = fmt.Errorf("author page %s: %w", asin, ErrNotFound)
		default:
			fetchErr = fmt.Errorf("author page %s: %w", asin, err)
		}
	})

	if err := c.Visit(s.site(region) + "/author/" + url.PathEscape(asin)); err != nil {
		return catalog.Author{}, fmt.Errorf("visit author page %s: %w", asin, err)
	}
	c.Wait()
	if err := ctx.Err(); err != nil {
		return catalog.Author{}, err
	}

	mu.Lock()
	defer mu.Unlock()
	if fetchErr != nil {
		return catalog.Author{}, fetchErr
	}
	if name == "" {
		return catalog.Author{}, fmt.Errorf("author page %s has no heading: %w", asin, ErrNotFound)
	}

	author := catalog.Author{
		ASIN:   &asin,
		Region: region,
		Name:   name,
		Genres: genres,
		// A successful fetch with an empty description is a confirmed
		// absence, which stops staleness-driven refetch loops.
		NoDescription: description == "",
	}
	if description != "" {
		author.Description = &description
	}
	if image != "" {
		author.Image = &image
	}
	return author, nil
}
