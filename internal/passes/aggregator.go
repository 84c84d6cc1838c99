package passes

import (
	"cmp"
	"slices"
)

// DefaultPageSize is the number of entries per page.
const DefaultPageSize = 5

// Entry is one pass in an aggregated listing.
type Entry struct {
	Satellite string `json:"satellite"`
	Pass      Pass   `json:"pass"`
}

// Merge flattens per-satellite passes into one list ordered by rise time,
// ties broken by satellite name. The result does not depend on map
// iteration order.
func Merge(bySatellite map[string][]Pass) []Entry {
	n := 0
	for _, ps := range bySatellite {
		n += len(ps)
	}
	entries := make([]Entry, 0, n)
	for name, ps := range bySatellite {
		for _, p := range ps {
			entries = append(entries, Entry{Satellite: name, Pass: p})
		}
	}
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if c := a.Pass.Rise.Time.Compare(b.Pass.Rise.Time); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Satellite, b.Satellite); c != 0 {
			return c
		}
		return a.Pass.Set.Time.Compare(b.Pass.Set.Time)
	})
	return entries
}

// Chunk splits entries into pages of size (DefaultPageSize when size <= 0).
// It returns nil for no entries.
func Chunk(entries []Entry, size int) [][]Entry {
	if size <= 0 {
		size = DefaultPageSize
	}
	if len(entries) == 0 {
		return nil
	}
	pages := make([][]Entry, 0, (len(entries)+size-1)/size)
	for page := range slices.Chunk(entries, size) {
		pages = append(pages, page)
	}
	return pages
}
