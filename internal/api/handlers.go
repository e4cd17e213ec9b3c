package api

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/audiobookdb/audiobookdb/internal/catalog"
	"github.com/audiobookdb/audiobookdb/internal/resolver"
	"github.com/audiobookdb/audiobookdb/internal/store"
)

const (
	// maxBulkASINs caps the ids accepted by the bulk book endpoint.
	maxBulkASINs = 50
	// minNameLength keeps name searches from degenerating into full scans.
	minNameLength = 3
)

// asinPattern accepts provider identifiers (ten uppercase alphanumerics)
// and bare numeric ISBN-style ids.
var asinPattern = regexp.MustCompile(`^(?:[A-Z0-9]{10}|[0-9]{10,12})$`)

func validASIN(asin string) bool {
	return asinPattern.MatchString(asin)
}

// requestRegion reads the region query parameter, defaulting to "us".
func requestRegion(r *http.Request) (catalog.Region, error) {
	raw := r.URL.Query().Get("region")
	if raw == "" {
		return catalog.RegionUS, nil
	}
	region := catalog.Region(strings.ToLower(raw))
	if !catalog.ValidRegion(region) {
		return "", fmt.Errorf("unknown region %q", raw)
	}
	return region, nil
}

// forceRefresh reads the update flag. Any value but "0"/"false" counts.
func forceRefresh(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("update")) {
	case "", "0", "false":
		return false
	default:
		return true
	}
}

// useCache reads the cache flag; the cache is on unless disabled.
func useCache(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("cache")) {
	case "0", "false":
		return false
	default:
		return true
	}
}

// respondError maps resolver and store failures onto HTTP statuses. Commit
// exhaustion keeps its correlation id in the payload so operators can match
// the response to the server log line.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var we *resolver.WriteError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(s.logger, w, http.StatusNotFound, "not found")
	case errors.As(err, &we):
		writeJSON(s.logger, w, http.StatusInternalServerError, map[string]string{
			"error":          "catalog write failed",
			"correlation_id": we.CorrelationID,
		})
	default:
		s.logger.Error("request failed",
			zap.String("request_id", RequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) getBook(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if !validASIN(asin) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid ASIN")
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	book, err := s.catalog.GetBook(r.Context(), asin, region, forceRefresh(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, book)
}

func (s *Server) getBooks(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("asins")
	if raw == "" {
		writeError(s.logger, w, http.StatusBadRequest, "asins parameter required")
		return
	}
	var asins []string
	for _, asin := range strings.Split(raw, ",") {
		asin = strings.TrimSpace(asin)
		if asin == "" {
			continue
		}
		if !validASIN(asin) {
			writeError(s.logger, w, http.StatusBadRequest, fmt.Sprintf("invalid ASIN %q", asin))
			return
		}
		asins = append(asins, asin)
	}
	if len(asins) == 0 {
		writeError(s.logger, w, http.StatusBadRequest, "asins parameter required")
		return
	}
	if len(asins) > maxBulkASINs {
		writeError(s.logger, w, http.StatusBadRequest,
			fmt.Sprintf("at most %d ASINs per request", maxBulkASINs))
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	books, err := s.catalog.ResolveBooks(r.Context(), asins, region, forceRefresh(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if books == nil {
		books = []catalog.Book{}
	}
	writeJSON(s.logger, w, http.StatusOK, books)
}

func (s *Server) getChapters(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if !validASIN(asin) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid ASIN")
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	track, err := s.catalog.GetChapters(r.Context(), asin, region, forceRefresh(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, track)
}

func (s *Server) getAuthor(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if !validASIN(asin) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid ASIN")
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	author, err := s.catalog.GetAuthor(r.Context(), asin, region, forceRefresh(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, author)
}

func (s *Server) getAuthorBooks(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if !validASIN(asin) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid ASIN")
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	books, err := s.catalog.AuthorBooks(r.Context(), asin, region, useCache(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if books == nil {
		books = []catalog.Book{}
	}
	writeJSON(s.logger, w, http.StatusOK, books)
}

func (s *Server) findAuthor(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if len(name) < minNameLength {
		writeError(s.logger, w, http.StatusBadRequest,
			fmt.Sprintf("name must be at least %d characters", minNameLength))
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	author, err := s.catalog.FindAuthor(r.Context(), name, region)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, author)
}

func (s *Server) getSeries(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if !validASIN(asin) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid ASIN")
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	series, err := s.catalog.GetSeries(r.Context(), asin, region, forceRefresh(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, series)
}

func (s *Server) getSeriesBooks(w http.ResponseWriter, r *http.Request) {
	asin := chi.URLParam(r, "asin")
	if !validASIN(asin) {
		writeError(s.logger, w, http.StatusBadRequest, "invalid ASIN")
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	books, err := s.catalog.SeriesBooks(r.Context(), asin, region, useCache(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	// Default ordering is series position; serialized content can ask for
	// episode order instead.
	if strings.ToLower(r.URL.Query().Get("sort")) == "episode" {
		catalog.SortByEpisode(books)
	}
	if books == nil {
		books = []catalog.Book{}
	}
	writeJSON(s.logger, w, http.StatusOK, books)
}

func (s *Server) findSeries(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	if len(title) < minNameLength {
		writeError(s.logger, w, http.StatusBadRequest,
			fmt.Sprintf("title must be at least %d characters", minNameLength))
		return
	}
	series, err := s.catalog.FindSeries(r.Context(), title)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if series == nil {
		series = []catalog.Series{}
	}
	writeJSON(s.logger, w, http.StatusOK, series)
}

func (s *Server) searchBooks(w http.ResponseWriter, r *http.Request) {
	title := strings.TrimSpace(r.URL.Query().Get("title"))
	author := strings.TrimSpace(r.URL.Query().Get("author"))
	if title == "" && author == "" {
		writeError(s.logger, w, http.StatusBadRequest, "title or author required")
		return
	}
	region, err := requestRegion(r)
	if err != nil {
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
		return
	}
	books, err := s.catalog.SearchBooks(r.Context(), title, author, region, useCache(r))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if books == nil {
		books = []catalog.Book{}
	}
	writeJSON(s.logger, w, http.StatusOK, books)
}
