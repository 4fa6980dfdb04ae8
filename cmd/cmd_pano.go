// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/JulianYG/GeoMemo/locations"
	"github.com/JulianYG/GeoMemo/panorama"
	"github.com/JulianYG/GeoMemo/spatial"
	"github.com/spf13/cobra"
)

var panoOpts = &extractOptions{}

var panoCmd = &cobra.Command{
	Use:   "pano <lat> <lng>",
	Short: "Look up the Street View panorama nearest to a point",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := parsePoint(args[0], args[1])
		if err != nil {
			return err
		}

		return runPano(cmd.Context(), panoOpts, p, os.Stdout)
	},
}

func parsePoint(lat, lng string) (spatial.Point, error) {
	var (
		p   spatial.Point
		err error
	)

	if p.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
		return p, fmt.Errorf("%w: latitude %q is not a number", locations.ErrInvalidParameter, lat)
	}

	if p.Lng, err = strconv.ParseFloat(lng, 64); err != nil {
		return p, fmt.Errorf("%w: longitude %q is not a number", locations.ErrInvalidParameter, lng)
	}

	if err := (locations.Record{Point: p, SourceID: "argument"}).Validate(); err != nil {
		return p, fmt.Errorf("%w: %w", locations.ErrInvalidParameter, err)
	}

	return p, nil
}

func runPano(ctx context.Context, opts *extractOptions, p spatial.Point, out io.Writer) error {
	if err := locations.RequirePositive("pano max distance", opts.PanoMaxDistance); err != nil {
		return err
	}

	key, err := panorama.ResolveAPIKey(ctx, panorama.KeyOptions{
		ADCKeyName: opts.ADCKeyName,
		ADCProject: opts.ADCProject,
	})
	if err != nil {
		return err
	}

	client, err := panorama.NewClient(key, &panorama.ClientOptions{
		BaseURL:             opts.panoBaseURL,
		UserAgent:           userAgent(),
		OutdoorOnly:         opts.OutdoorOnly,
		EnableHTTPTrace:     opts.EnableHTTPTrace,
		EnableHTTPBodyTrace: opts.EnableHTTPBodyTrace,
	})
	if err != nil {
		return err
	}

	pano, err := client.Lookup(ctx, p, opts.PanoMaxDistance)
	if err != nil {
		return err
	}

	if pano == nil {
		fmt.Fprintf(out, "No panorama within %gm of %s\n", opts.PanoMaxDistance, p)

		return nil
	}

	distance := p.HaversineDistance(pano.Point)

	fmt.Fprintf(out, "Panorama:  %s\n", pano.ID)
	fmt.Fprintf(out, "Location:  %s\n", pano.Point)
	fmt.Fprintf(out, "Distance:  %.1fm\n", distance)

	if pano.Date != "" {
		fmt.Fprintf(out, "Date:      %s\n", pano.Date)
	}

	if pano.Copyright != "" {
		fmt.Fprintf(out, "Copyright: %s\n", pano.Copyright)
	}

	if distance > opts.PanoMaxDistance {
		fmt.Fprintf(out, "The panorama is farther than %gm, extract --filter-panos would drop this location\n", opts.PanoMaxDistance)
	}

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "geomemo", Version)
	},
}

func init() {
	rootCmd.AddCommand(panoCmd)
	rootCmd.AddCommand(versionCmd)

	flags := panoCmd.Flags()
	flags.Float64Var(&panoOpts.PanoMaxDistance, "radius", 40, "Search radius in meters")
	flags.BoolVar(&panoOpts.OutdoorOnly, "outdoor", false, "Only accept outdoor panoramas")
	flags.StringVar(&panoOpts.ADCKeyName, "adc-key-name", "", "Display name of an API key to fetch with Application Default Credentials")
	flags.StringVar(&panoOpts.ADCProject, "adc-project", "", "Google Cloud project holding --adc-key-name")
	flags.BoolVar(&panoOpts.EnableHTTPTrace, "trace-http", false, "Display HTTP requests-responses")
	flags.BoolVar(&panoOpts.EnableHTTPBodyTrace, "trace-http-body", false, "Display HTTP requests-responses bodies")
}
