package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Forken21/botsat/internal/passes"
	"github.com/Forken21/botsat/internal/propagation"
)

var (
	passCount  int
	minEl      float64
	nameFilter string
	jsonOutput bool
	lookAt     string
)

var passesCmd = &cobra.Command{
	Use:   "passes [satellite...]",
	Short: "Predict upcoming passes",
	Long: `Predict the next passes of the named satellites, or of every satellite
matching --filter, merged in rise order.`,
	RunE: runPasses,
}

var lookCmd = &cobra.Command{
	Use:   "look satellite",
	Short: "Print the look angle of a satellite at one instant",
	Args:  cobra.ExactArgs(1),
	RunE:  runLook,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Summarise a catalog: satellites, epochs and parse errors",
	Args:  cobra.NoArgs,
	RunE:  runCatalog,
}

func init() {
	passesCmd.Flags().IntVarP(&passCount, "count", "n", 5, "passes per satellite")
	passesCmd.Flags().Float64Var(&minEl, "min-el", 10, "minimum elevation in degrees")
	passesCmd.Flags().StringVar(&nameFilter, "filter", "", "name substring when no satellites are named")
	passesCmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of a table")

	lookCmd.Flags().StringVar(&lookAt, "at", "", "instant, RFC 3339 (default --start)")
	lookCmd.Flags().Float64Var(&minEl, "min-el", 10, "minimum elevation in degrees")
}

func runPasses(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}
	sets, err := lookup(cat, args, nameFilter)
	if err != nil {
		return err
	}
	obs, err := observer()
	if err != nil {
		return err
	}
	start, err := startTime()
	if err != nil {
		return err
	}

	prop := propagation.NewPropagator(propagation.Config{}, logger())
	finder := passes.NewFinder(passes.DefaultConfig(), prop)

	began := time.Now()
	res := finder.Predict(cmd.Context(), passes.Request{
		Observer:     obs,
		Sets:         sets,
		Start:        start,
		MinElevation: minEl,
		MaxPasses:    passCount,
	})

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("Observer %.4f, %.4f, %.0f m; start %s; min elevation %.1f°\n",
		obs.LatDeg, obs.LonDeg, obs.AltM, start.Format(time.RFC3339), minEl)
	fmt.Printf("%d satellites searched in %v\n\n", len(sets), time.Since(began).Round(time.Millisecond))
	for _, e := range res.Entries {
		p := e.Pass
		fmt.Printf("  %-24s rise %s az %5.1f  peak %5.1f° at %s  set %s  %4.0fs\n",
			e.Satellite,
			p.Rise.Time.Format("2006-01-02 15:04:05"), p.Rise.AzimuthDeg,
			p.PeakElevationDeg, p.Culmination.Time.Format("15:04:05"),
			p.Set.Time.Format("15:04:05"), p.DurationSeconds)
	}
	for _, f := range res.Failures {
		fmt.Printf("  %-24s ERROR (%s) %v\n", f.Name, f.Kind, f.Err)
	}
	fmt.Printf("\nTotal passes found: %d\n", len(res.Entries))
	return nil
}

func runLook(cmd *cobra.Command, args []string) error {
	cat, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}
	es, err := cat.Get(args[0])
	if err != nil {
		return err
	}
	obs, err := observer()
	if err != nil {
		return err
	}
	at, err := startTime()
	if err != nil {
		return err
	}
	if lookAt != "" {
		if at, err = time.Parse(time.RFC3339, lookAt); err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}

	la, err := propagation.Look(es, obs, at)
	if err != nil {
		return fmt.Errorf("%s (%s)", err, propagation.ErrorKind(err))
	}
	visible := "below"
	if la.ElevationDeg >= minEl {
		visible = "visible"
	}
	fmt.Printf("%s at %s (epoch age %v)\n", es.Name, at.UTC().Format(time.RFC3339), at.Sub(es.Epoch).Round(time.Minute))
	fmt.Printf("  azimuth    %8.3f°\n", la.AzimuthDeg)
	fmt.Printf("  elevation  %8.3f° (%s %.1f°)\n", la.ElevationDeg, visible, minEl)
	fmt.Printf("  range      %8.1f km\n", la.RangeKm)
	fmt.Printf("  range rate %8.3f km/s\n", la.RangeRateKmS)
	return nil
}

func runCatalog(cmd *cobra.Command, _ []string) error {
	cat, err := loadCatalog(cmd.Context())
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	fmt.Printf("Group %s from %s: %d satellites, %d parse errors\n", cat.Group, cat.Source, cat.Len(), len(cat.ParseErrors))
	for _, es := range cat.All() {
		fmt.Printf("  %-24s NORAD %6d  epoch %s  age %5.1fh  %.2f rev/day\n",
			es.Name, es.CatalogNumber, es.Epoch.Format(time.RFC3339), now.Sub(es.Epoch).Hours(), es.MeanMotion)
	}
	for _, perr := range cat.ParseErrors {
		fmt.Printf("  skipped: %v\n", perr)
	}
	return nil
}
