package cache

import (
	"slices"
	"strconv"
	"strings"

	"github.com/Forken21/botsat/internal/tle"
)

// Version identifies the catalog snapshots a prediction was computed from.
// It changes whenever any of the catalogs is refreshed, which retires every
// entry built from the previous snapshot on its next lookup.
func Version(cats ...*tle.Catalog) string {
	parts := make([]string, 0, len(cats))
	for _, cat := range cats {
		if cat == nil {
			continue
		}
		parts = append(parts, cat.Group+"@"+strconv.FormatInt(cat.FetchedAt.UnixNano(), 10))
	}
	slices.Sort(parts)
	return strings.Join(parts, ",")
}
