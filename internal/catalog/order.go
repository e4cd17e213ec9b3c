package catalog

import (
	"math"
	"sort"
	"strconv"
)

// SortByRequested orders books to match the caller's requested ASIN order.
// Books whose ASIN was not requested sort last, keeping their relative
// order. The sort is stable so ties break on original index.
func SortByRequested(books []Book, asins []string) {
	index := make(map[string]int, len(asins))
	for i, a := range asins {
		index[a] = i
	}
	rank := func(b Book) int {
		if i, ok := index[b.ASIN]; ok {
			return i
		}
		return len(asins)
	}
	sort.SliceStable(books, func(i, j int) bool {
		return rank(books[i]) < rank(books[j])
	})
}

// SortByEpisode orders serialized content by episode number, parsed as a
// float. Books without a parseable episode number sort last; ties keep the
// incoming order.
func SortByEpisode(books []Book) {
	sort.SliceStable(books, func(i, j int) bool {
		return episodeRank(books[i]) < episodeRank(books[j])
	})
}

func episodeRank(b Book) float64 {
	if b.EpisodeNumber == nil {
		return math.Inf(1)
	}
	n, err := strconv.ParseFloat(*b.EpisodeNumber, 64)
	if err != nil {
		return math.Inf(1)
	}
	return n
}

// SortBySeriesPosition orders books by their position within the given
// series. Positions are free-form strings compared with numeric-aware
// ordering; "0" and absent positions sort last. Ties keep incoming order.
func SortBySeriesPosition(books []Book, seriesASIN string) {
	pos := func(b Book) (string, bool) {
		for _, m := range b.Series {
			if m.ASIN != seriesASIN {
				continue
			}
			if m.Position == nil || *m.Position == "" || *m.Position == "0" {
				return "", false
			}
			return *m.Position, true
		}
		return "", false
	}
	sort.SliceStable(books, func(i, j int) bool {
		pi, oki := pos(books[i])
		pj, okj := pos(books[j])
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		return naturalLess(pi, pj)
	})
}

// naturalLess compares strings treating digit runs as numbers, so that
// "2" < "10" and "1.2" < "1.10".
func naturalLess(a, b string) bool {
	for len(a) > 0 && len(b) > 0 {
		if isDigit(a[0]) && isDigit(b[0]) {
			na, ra := leadingInt(a)
			nb, rb := leadingInt(b)
			if na != nb {
				return na < nb
			}
			a, b = ra, rb
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func leadingInt(s string) (int64, string) {
	i := 0
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	n, err := strconv.ParseInt(s[:i], 10, 64)
	if err != nil {
		// Digit run too long to fit; saturate rather than fail.
		n = math.MaxInt64
	}
	return n, s[i:]
}
