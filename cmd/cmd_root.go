// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type logWriter struct {
	writer io.Writer
}

func (w *logWriter) Write(bytes []byte) (int, error) {
	return fmt.Fprintf(w.writer, "%s %s", time.Now().Format("2006-01-02 15:04:05"), string(bytes))
}

func init() {
	log.SetFlags(0)
	log.SetOutput(&logWriter{writer: os.Stderr})
}

var envFile string

var rootCmd = &cobra.Command{
	Use:   "geomemo",
	Short: "turn geotagged photos into GeoGuessr maps",
	Long: `
geomemo reads the locations of your geotagged photos and videos, merges the
ones taken close to each other, optionally snaps them onto the nearest Street
View panorama, and writes them as CSV or GeoJSON ready to be imported into a
GeoGuessr custom map.
`,
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		return loadEnv(envFile)
	},
}

// loadEnv loads KEY=value pairs from path without overriding the
// environment. A missing file is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("loading %s: %w", path, err)
	}

	return nil
}

var Version = "dev"

func Execute(version string) {
	Version = version

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func userAgent() string {
	return fmt.Sprintf("geomemo/%s (+https://github.com/JulianYG/GeoMemo)", Version)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&envFile,
		"env-file",
		".env",
		"File with environment variables such as MAP_API_KEY",
	)
}
