// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package panorama

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	apikeys "cloud.google.com/go/apikeys/apiv2"
	"cloud.google.com/go/apikeys/apiv2/apikeyspb"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/iterator"
)

// KeyEnvVars are checked in order for the Maps API key.
var KeyEnvVars = []string{"MAP_API_KEY", "GOOGLE_MAPS_API_KEY"}

// KeyOptions drive ResolveAPIKey.
type KeyOptions struct {
	// ADCKeyName is the display name of an API key in the Google Cloud
	// project of the Application Default Credentials. When set and no
	// environment variable holds a key, the key string is fetched from there.
	ADCKeyName string

	// ADCProject overrides the project found in the credentials.
	ADCProject string

	// Getenv defaults to os.Getenv.
	Getenv func(string) string

	// fetch replaces the ADC lookup in tests.
	fetch func(ctx context.Context, project, displayName string) (string, error)
}

// ResolveAPIKey returns the Maps API key from the environment or, failing
// that, from Application Default Credentials. ErrMissingKey is returned when
// neither yields one.
func ResolveAPIKey(ctx context.Context, opts KeyOptions) (string, error) {
	getenv := opts.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	for _, name := range KeyEnvVars {
		if key := getenv(name); key != "" {
			return key, nil
		}
	}

	if opts.ADCKeyName == "" {
		return "", ErrMissingKey
	}

	log.Printf("No API key in %v. Attempting to retrieve %q via ADC...", KeyEnvVars, opts.ADCKeyName)

	fetch := opts.fetch
	if fetch == nil {
		fetch = apiKeyFromADC
	}

	key, err := fetch(ctx, opts.ADCProject, opts.ADCKeyName)
	if err != nil {
		return "", fmt.Errorf("%w: retrieving API key via ADC: %w", ErrAuth, err)
	}

	log.Println("✅ Retrieved Maps API key via ADC")

	return key, nil
}

func apiKeyFromADC(ctx context.Context, projectID, displayName string) (string, error) {
	if projectID == "" {
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			return "", fmt.Errorf("finding default credentials: %w", err)
		}

		projectID = creds.ProjectID
	}

	if projectID == "" {
		// user credentials without a quota project carry none
		return "", errors.New("no project in default credentials, use --adc-project")
	}

	client, err := apikeys.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("creating apikeys client: %w", err)
	}
	defer client.Close()

	it := client.ListKeys(ctx, &apikeyspb.ListKeysRequest{
		Parent: fmt.Sprintf("projects/%s/locations/global", projectID),
	})

	for {
		key, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}

		if err != nil {
			return "", fmt.Errorf("listing keys: %w", err)
		}

		if key.DisplayName != displayName {
			continue
		}

		// ListKeys redacts the secret, GetKeyString returns it
		resp, err := client.GetKeyString(ctx, &apikeyspb.GetKeyStringRequest{Name: key.Name})
		if err != nil {
			return "", fmt.Errorf("getting key string: %w", err)
		}

		if resp.KeyString == "" {
			return "", fmt.Errorf("key %q has an empty key string", displayName)
		}

		return resp.KeyString, nil
	}

	return "", fmt.Errorf("key with display name %q not found in project %s", displayName, projectID)
}
