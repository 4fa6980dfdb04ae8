// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package panorama

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(vars map[string]string) func(string) string {
	return func(name string) string { return vars[name] }
}

func TestResolveAPIKey(t *testing.T) {
	noFetch := func(context.Context, string, string) (string, error) {
		t.Fatal("ADC must not be consulted")

		return "", nil
	}

	tests := []struct {
		name    string
		opts    KeyOptions
		want    string
		wantErr error
	}{
		{
			name: "primary variable",
			opts: KeyOptions{Getenv: envOf(map[string]string{"MAP_API_KEY": "a", "GOOGLE_MAPS_API_KEY": "b"}), fetch: noFetch},
			want: "a",
		},
		{
			name: "fallback variable",
			opts: KeyOptions{Getenv: envOf(map[string]string{"GOOGLE_MAPS_API_KEY": "b"}), fetch: noFetch},
			want: "b",
		},
		{
			name:    "nothing configured",
			opts:    KeyOptions{Getenv: envOf(nil), fetch: noFetch},
			wantErr: ErrMissingKey,
		},
		{
			name: "environment wins over ADC",
			opts: KeyOptions{
				ADCKeyName: "maps",
				Getenv:     envOf(map[string]string{"MAP_API_KEY": "env"}),
				fetch:      noFetch,
			},
			want: "env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveAPIKey(context.Background(), tt.opts)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrAuth)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveAPIKeyFromADC(t *testing.T) {
	var gotProject, gotName string

	opts := KeyOptions{
		ADCKeyName: "geomemo-maps",
		ADCProject: "my-project",
		Getenv:     envOf(nil),
		fetch: func(_ context.Context, project, name string) (string, error) {
			gotProject, gotName = project, name

			return "adc-key", nil
		},
	}

	key, err := ResolveAPIKey(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "adc-key", key)
	assert.Equal(t, "my-project", gotProject)
	assert.Equal(t, "geomemo-maps", gotName)
}

func TestResolveAPIKeyADCFailure(t *testing.T) {
	boom := errors.New("permission denied")

	opts := KeyOptions{
		ADCKeyName: "geomemo-maps",
		Getenv:     envOf(nil),
		fetch: func(context.Context, string, string) (string, error) {
			return "", boom
		},
	}

	_, err := ResolveAPIKey(context.Background(), opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuth)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrMissingKey)
}
