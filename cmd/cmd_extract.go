// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/JulianYG/GeoMemo/export"
	"github.com/JulianYG/GeoMemo/library"
	"github.com/JulianYG/GeoMemo/locations"
	"github.com/JulianYG/GeoMemo/panorama"
	"github.com/JulianYG/GeoMemo/utils/textutils"
	"github.com/spf13/cobra"
)

type extractOptions struct {
	Source           string
	LibraryPath      string
	CSVPath          string
	GeoJSONPath      string
	StartFrom        string
	EndOn            string
	IncludeNonCamera bool

	Dedupe         bool
	DedupeDistance float64

	FilterPanos     bool
	PanoMaxDistance float64
	PanoLimit       int
	PanoConcurrency int
	PanoRPS         float64
	PanoAttempts    int
	OutdoorOnly     bool

	ADCKeyName string
	ADCProject string

	EnableHTTPTrace     bool
	EnableHTTPBodyTrace bool

	// panoBaseURL overrides the metadata endpoint in tests.
	panoBaseURL string
}

var extractOpts = &extractOptions{}

var extractCmd = &cobra.Command{
	Use:   "extract [library...]",
	Short: "Extract photo locations and export them for GeoGuessr",
	Long: `
Reads every geotagged item of the given libraries (the system Photos library
when none is given), optionally merges locations closer than --dedupe-distance
and snaps the rest onto Street View panoramas, prints statistics and writes
the requested exports.

The Street View key is read from MAP_API_KEY or GOOGLE_MAPS_API_KEY (a .env
file in the working directory is loaded first) or, with --adc-key-name, from
the Google Cloud project of the Application Default Credentials.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		return runExtract(ctx, extractOpts, args, os.Stdout)
	},
}

// pipelineSummary holds the counts printed at the end of a run.
type pipelineSummary struct {
	extract      *library.ExtractMetrics
	deduplicated int
	validation   *panorama.Result
}

func runExtract(ctx context.Context, opts *extractOptions, args []string, out io.Writer) error {
	dates, err := library.ParseDateRange(opts.StartFrom, opts.EndOn)
	if err != nil {
		return err
	}

	if opts.Dedupe {
		if err := locations.RequirePositive("dedupe distance", opts.DedupeDistance); err != nil {
			return err
		}
	}

	// configuration problems surface before the library is read
	var validator *panorama.Validator
	if opts.FilterPanos {
		if validator, err = newValidator(ctx, opts); err != nil {
			return err
		}
	}

	sources, err := openSources(opts, args)
	if err != nil {
		return err
	}

	if !dates.IsZero() {
		log.Printf("Filtering by date range %s", dates)
	}

	bar := newProgressBar(-1, "Reading items")
	records, metrics, err := library.ExtractAll(ctx, sources, library.ExtractOptions{
		Dates:            dates,
		IncludeNonCamera: opts.IncludeNonCamera,
		OnItem: func(library.Item) {
			if bar != nil {
				_ = bar.Add(1)
			}
		},
	})

	if bar != nil {
		_ = bar.Finish()
	}

	if err != nil {
		return err
	}

	log.Printf("✅ Found %s items with location out of %s", textutils.FormatInt(int64(metrics.Extracted)), textutils.FormatInt(int64(metrics.Items)))

	summary := pipelineSummary{extract: metrics}

	if opts.Dedupe {
		deduped, err := locations.Deduplicate(records, opts.DedupeDistance)
		if err != nil {
			return err
		}

		summary.deduplicated = len(records) - len(deduped)
		log.Printf("Deduplicated (%gm): removed %d duplicate locations, %d unique locations remaining",
			opts.DedupeDistance, summary.deduplicated, len(deduped))

		records = deduped
	}

	if validator != nil {
		res, err := validate(ctx, validator, opts, records)
		if err != nil {
			if res != nil {
				summary.validation = res
				printSummary(out, res.Records, summary)
			}

			return err
		}

		summary.validation = res
		records = res.Records
	}

	printSummary(out, records, summary)

	return writeExports(out, opts, records)
}

func newValidator(ctx context.Context, opts *extractOptions) (*panorama.Validator, error) {
	key, err := panorama.ResolveAPIKey(ctx, panorama.KeyOptions{
		ADCKeyName: opts.ADCKeyName,
		ADCProject: opts.ADCProject,
	})
	if err != nil {
		if errors.Is(err, panorama.ErrMissingKey) {
			return nil, fmt.Errorf("--filter-panos needs a Street View key in %s: %w",
				strings.Join(panorama.KeyEnvVars, " or "), err)
		}

		return nil, err
	}

	client, err := panorama.NewClient(key, &panorama.ClientOptions{
		BaseURL:             opts.panoBaseURL,
		UserAgent:           userAgent(),
		OutdoorOnly:         opts.OutdoorOnly,
		EnableHTTPTrace:     opts.EnableHTTPTrace,
		EnableHTTPBodyTrace: opts.EnableHTTPBodyTrace,
	})
	if err != nil {
		return nil, err
	}

	return panorama.NewValidator(client, panorama.Options{
		MaxDistance:       opts.PanoMaxDistance,
		Limit:             opts.PanoLimit,
		MaxAttempts:       opts.PanoAttempts,
		RequestsPerSecond: opts.PanoRPS,
		Concurrency:       opts.PanoConcurrency,
	})
}

func openSources(opts *extractOptions, args []string) ([]library.Source, error) {
	paths := args
	if opts.LibraryPath != "" {
		paths = append([]string{opts.LibraryPath}, paths...)
	}

	kind := library.Kind(opts.Source)

	if len(paths) == 0 {
		if kind != library.KindPhotos {
			return nil, fmt.Errorf("%w: the %s source needs a path", locations.ErrInvalidParameter, kind)
		}

		paths = []string{library.DefaultPhotosLibrary()}
	}

	sources := make([]library.Source, 0, len(paths))

	for _, p := range paths {
		src, err := library.New(kind, p)
		if err != nil {
			return nil, err
		}

		sources = append(sources, src)
	}

	return sources, nil
}

func validate(ctx context.Context, v *panorama.Validator, opts *extractOptions, records []locations.Record) (*panorama.Result, error) {
	checked := len(records)
	if opts.PanoLimit > 0 && opts.PanoLimit < checked {
		checked = opts.PanoLimit
		log.Printf("Checking panoramas for the first %d of %d locations", checked, len(records))
	}

	bar := newProgressBar(checked, "Checking panoramas")

	v = v.WithOnDecided(func(int, locations.Record, panorama.Outcome) {
		if bar != nil {
			_ = bar.Add(1)
		}
	})

	res, err := v.Validate(ctx, records)

	if bar != nil {
		_ = bar.Finish()
	}

	if err != nil {
		if errors.Is(err, panorama.ErrAuth) {
			log.Printf("🛑 Street View rejected the key, %d locations were left unchecked", res.Unchecked)
		} else if errors.Is(err, context.Canceled) {
			log.Printf("🛑 Interrupted, %d locations were left unchecked", res.Unchecked)
		}

		return res, err
	}

	if res.Dropped > 0 {
		log.Printf("Filtered out %d locations without a Street View panorama within %gm", res.Dropped, opts.PanoMaxDistance)
	} else {
		log.Printf("✅ All %d checked locations have a Street View panorama", res.Checked)
	}

	if n := res.Exhausted + res.Unvalidated; n > 0 {
		log.Printf("⚠️  %d locations kept without a panorama check", n)
	}

	return res, nil
}

func printSummary(out io.Writer, records []locations.Record, s pipelineSummary) {
	stats := locations.ComputeStats(records)
	line := strings.Repeat("=", 50)

	count := func(n int) string { return textutils.FormatInt(int64(n)) }

	fmt.Fprintln(out)
	fmt.Fprintln(out, line)
	fmt.Fprintln(out, "STATISTICS")
	fmt.Fprintln(out, line)
	fmt.Fprintf(out, "Total photos/videos with location: %s\n", count(stats.Total))
	fmt.Fprintf(out, "  - Photos: %s\n", count(stats.Photos))
	fmt.Fprintf(out, "  - Videos: %s\n", count(stats.Videos))
	fmt.Fprintf(out, "  - Favorites: %s\n", count(stats.Favorites))
	fmt.Fprintf(out, "  - With description: %s\n", count(stats.WithDescription))

	if m := s.extract; m != nil {
		fmt.Fprintf(out, "Processed: %s items, %s with location\n", count(m.Items), count(m.Extracted))

		if m.InvalidCoordinates > 0 {
			fmt.Fprintf(out, "  - Null coordinates filtered: %s\n", count(m.InvalidCoordinates))
		}

		if m.OutsideDateRange > 0 {
			fmt.Fprintf(out, "  - Outside date range: %s\n", count(m.OutsideDateRange))
		}

		if m.NonCamera > 0 {
			fmt.Fprintf(out, "  - Screenshots/non-camera media: %s\n", count(m.NonCamera))
		}
	}

	fmt.Fprintf(out, "  - Duplicates removed: %s\n", count(s.deduplicated))

	if r := s.validation; r != nil {
		fmt.Fprintf(out, "  - Street View confirmed: %s\n", count(r.Confirmed))
		fmt.Fprintf(out, "  - No Street View panorama (or too far): %s\n", count(r.Dropped))
		fmt.Fprintf(out, "  - Kept after exhausting retries: %s\n", count(r.Exhausted))

		if r.Unvalidated > 0 {
			fmt.Fprintf(out, "  - Kept after a rejected request: %s\n", count(r.Unvalidated))
		}

		if r.Unchecked > 0 {
			fmt.Fprintf(out, "  - Not checked: %s\n", count(r.Unchecked))
		}
	}

	if stats.Earliest != nil {
		fmt.Fprintln(out, "\nDate range:")
		fmt.Fprintf(out, "  - Earliest: %s\n", stats.Earliest.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(out, "  - Latest: %s\n", stats.Latest.Format("2006-01-02 15:04:05"))
	}

	fmt.Fprintln(out, line)
	fmt.Fprintln(out)
}

func writeExports(out io.Writer, opts *extractOptions, records []locations.Record) error {
	if opts.CSVPath == "" && opts.GeoJSONPath == "" {
		fmt.Fprintln(out, "No output files specified. Use --csv and/or --geojson to export files.")

		return nil
	}

	if opts.CSVPath != "" {
		s, err := export.WriteCSVFile(opts.CSVPath, records)
		if err != nil {
			return err
		}

		if s.Skipped > 0 {
			log.Printf("Filtered out %d entries with invalid coordinates from CSV", s.Skipped)
		}

		fmt.Fprintf(out, "CSV file saved to: %s (%s locations)\n", opts.CSVPath, textutils.FormatInt(int64(s.Written)))
	}

	if opts.GeoJSONPath != "" {
		s, err := export.WriteGeoJSONFile(opts.GeoJSONPath, records)
		if err != nil {
			return err
		}

		if s.Skipped > 0 {
			log.Printf("Filtered out %d entries with invalid coordinates from GeoJSON", s.Skipped)
		}

		fmt.Fprintf(out, "GeoJSON file saved to: %s (%d regions)\n", opts.GeoJSONPath, s.Regions)
	}

	fmt.Fprintln(out, "\n✓ Export complete!")

	return nil
}

func init() {
	rootCmd.AddCommand(extractCmd)

	flags := extractCmd.Flags()
	flags.StringVar(
		&extractOpts.Source,
		"source",
		string(library.KindPhotos),
		"Library kind: photos (Photos.sqlite), catalog (CSV/JSON/Parquet export) or exif (directory of JPEG/TIFF)",
	)
	flags.StringVar(
		&extractOpts.LibraryPath,
		"photos-db",
		"",
		"Path to the library, defaults to the system Photos library",
	)
	flags.StringVar(&extractOpts.CSVPath, "csv", "", "Write Latitude,Longitude rows to this file")
	flags.StringVar(&extractOpts.GeoJSONPath, "geojson", "", "Write a GeoJSON FeatureCollection grouped by region to this file")
	flags.StringVar(&extractOpts.StartFrom, "start-from", "", "First day to include, YYYY-MM-DD")
	flags.StringVar(&extractOpts.EndOn, "end-on", "", "Last day to include, YYYY-MM-DD")
	flags.BoolVar(
		&extractOpts.IncludeNonCamera,
		"include-non-camera",
		false,
		"Keep screenshots and other media without camera metadata",
	)
	flags.BoolVar(&extractOpts.Dedupe, "dedupe", false, "Merge locations closer than --dedupe-distance, keeping the first")
	flags.Float64Var(&extractOpts.DedupeDistance, "dedupe-distance", 200, "Deduplication distance in meters")
	flags.BoolVar(
		&extractOpts.FilterPanos,
		"filter-panos",
		false,
		"Keep only locations with a Street View panorama nearby, moved onto the panorama",
	)
	flags.Float64Var(
		&extractOpts.PanoMaxDistance,
		"pano-max-distance",
		40,
		"Largest distance in meters between a location and its panorama",
	)
	flags.IntVar(&extractOpts.PanoLimit, "pano-limit", 0, "Check at most this many locations, 0 checks all")
	flags.IntVar(&extractOpts.PanoConcurrency, "pano-concurrency", 1, "Panorama lookups in flight")
	flags.Float64Var(&extractOpts.PanoRPS, "pano-rps", 0, "Panorama lookups per second, 0 for no limit")
	flags.IntVar(&extractOpts.PanoAttempts, "pano-attempts", 3, "Attempts per location on transient failures")
	flags.BoolVar(&extractOpts.OutdoorOnly, "pano-outdoor", false, "Only accept outdoor panoramas")
	flags.StringVar(
		&extractOpts.ADCKeyName,
		"adc-key-name",
		"",
		"Display name of an API key to fetch with Application Default Credentials when no key is in the environment",
	)
	flags.StringVar(&extractOpts.ADCProject, "adc-project", "", "Google Cloud project holding --adc-key-name")
	flags.BoolVar(&extractOpts.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	flags.BoolVar(&extractOpts.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
