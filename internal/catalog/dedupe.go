package catalog

// Batch is a deduplicated set of entities ready to be written as one
// logical unit. Books keep their relation slices; the flat entity slices
// are the distinct rows to upsert before relations are replaced.
type Batch struct {
	Books []Book

	Genres    []Genre
	Narrators []Narrator
	Series    []Series

	// Authors are partitioned because the two groups use different
	// natural keys (see Author.Key).
	AuthorsWithASIN []Author
	AuthorsNameOnly []Author
}

// Empty reports whether the batch holds no books at all.
func (b Batch) Empty() bool { return len(b.Books) == 0 }

// MergeBatch collapses duplicate entities across a batch of normalized
// books by natural key. Within one batch the last occurrence wins: upstream
// array order carries no meaning, so when the same key appears twice with
// conflicting data the ambiguity is inherent to the upstream and the later
// record is kept as a matter of policy, not correctness.
func MergeBatch(books []Book) Batch {
	batch := Batch{Books: books}

	genres := newKeyed[Genre]()
	narrators := newKeyed[Narrator]()
	series := newKeyed[Series]()
	authorsWithASIN := newKeyed[Author]()
	authorsNameOnly := newKeyed[Author]()

	for _, book := range books {
		for _, g := range book.Genres {
			genres.put(g.ASIN, g)
		}
		for _, n := range book.Narrators {
			narrators.put(n.Name, n)
		}
		for _, m := range book.Series {
			series.put(m.ASIN, m.Series)
		}
		for _, a := range book.Authors {
			if a.ASIN != nil && *a.ASIN != "" {
				authorsWithASIN.put(a.Key(), a)
			} else {
				authorsNameOnly.put(a.Key(), a)
			}
		}
	}

	batch.Genres = genres.values()
	batch.Narrators = narrators.values()
	batch.Series = series.values()
	batch.AuthorsWithASIN = authorsWithASIN.values()
	batch.AuthorsNameOnly = authorsNameOnly.values()
	return batch
}

// keyed is an insertion-ordered map used for duplicate collapsing. Repeated
// puts overwrite the value but keep the first occurrence's slot so output
// order stays deterministic.
type keyed[T any] struct {
	order []string
	items map[string]T
}

func newKeyed[T any]() *keyed[T] {
	return &keyed[T]{items: make(map[string]T)}
}

func (k *keyed[T]) put(key string, v T) {
	if _, seen := k.items[key]; !seen {
		k.order = append(k.order, key)
	}
	k.items[key] = v
}

func (k *keyed[T]) values() []T {
	if len(k.order) == 0 {
		return nil
	}
	out := make([]T, 0, len(k.order))
	for _, key := range k.order {
		out = append(out, k.items[key])
	}
	return out
}
