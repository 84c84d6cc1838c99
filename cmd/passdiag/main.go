// Command passdiag runs pass predictions and propagation checks from the
// command line against a local element file or a live catalog group.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Forken21/botsat/internal/tle"
	"github.com/Forken21/botsat/internal/transform"
)

var (
	tleFile   string
	groupName string
	sourceURL string
	latDeg    float64
	lonDeg    float64
	altM      float64
	startFlag string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "passdiag",
	Short: "Satellite pass prediction diagnostics",
	Long: `
Load a catalog from a local element file (--tle) or fetch one of the
configured groups (--group), then predict passes, compute look angles or
cross-check the propagator.

Examples:
  passdiag passes "ISS (ZARYA)" --group iss --lat 55.75 --lon 37.62
  passdiag look "NOAA 19" --tle weather.txt --lat 0 --lon 0 --at 2024-04-09T12:00:00Z
  passdiag compare --tle stations.txt --hours 48
`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&tleFile, "tle", "", "read element sets from this file instead of fetching")
	pf.StringVar(&groupName, "group", tle.GroupISS, "catalog group to fetch (iss, noaa, meteor)")
	pf.StringVar(&sourceURL, "url", "", "override the group's source URL")
	pf.Float64Var(&latDeg, "lat", 0, "observer latitude in degrees")
	pf.Float64Var(&lonDeg, "lon", 0, "observer longitude in degrees")
	pf.Float64Var(&altM, "alt", 0, "observer altitude in metres")
	pf.StringVar(&startFlag, "start", "", "search start, RFC 3339 (default now)")
	pf.BoolVarP(&verbose, "verbose", "v", false, "log fetch and parse details to stderr")

	rootCmd.AddCommand(passesCmd, lookCmd, catalogCmd, compareCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func logger() *slog.Logger {
	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func selectedGroup() (tle.Group, error) {
	for _, g := range tle.DefaultGroups() {
		if g.Name == groupName {
			if sourceURL != "" {
				g.URL = sourceURL
			}
			return g, nil
		}
	}
	if sourceURL != "" {
		return tle.Group{Name: groupName, URL: sourceURL}, nil
	}
	return tle.Group{}, fmt.Errorf("%w: %s", tle.ErrUnknownGroup, groupName)
}

// loadCatalog reads --tle when given, otherwise fetches the selected group.
func loadCatalog(ctx context.Context) (*tle.Catalog, error) {
	now := time.Now().UTC()
	if tleFile != "" {
		raw, err := os.ReadFile(tleFile)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", tleFile, err)
		}
		return tle.Load("file", tleFile, raw, now)
	}

	g, err := selectedGroup()
	if err != nil {
		return nil, err
	}
	raw, err := tle.NewFetcher(logger()).Fetch(ctx, g)
	if err != nil {
		return nil, err
	}
	cat, err := tle.Load(g.Name, g.URL, raw, now)
	if err != nil {
		return nil, err
	}
	return cat.Filter(g.Filter), nil
}

func observer() (transform.Observer, error) {
	return transform.NewObserver(latDeg, lonDeg, altM)
}

func startTime() (time.Time, error) {
	if startFlag == "" {
		return time.Now().UTC().Truncate(time.Second), nil
	}
	t, err := time.Parse(time.RFC3339, startFlag)
	if err != nil {
		return time.Time{}, fmt.Errorf("--start: %w", err)
	}
	return t.UTC(), nil
}

// lookup resolves the satellites named in args; no args selects every
// satellite whose name contains filter.
func lookup(cat *tle.Catalog, args []string, filter string) ([]*tle.ElementSet, error) {
	if len(args) == 0 {
		sets := cat.Match(filter)
		if len(sets) == 0 {
			return nil, fmt.Errorf("no satellites match %q", filter)
		}
		return sets, nil
	}
	sets := make([]*tle.ElementSet, 0, len(args))
	for _, name := range args {
		es, err := cat.Get(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		sets = append(sets, es)
	}
	return sets, nil
}
