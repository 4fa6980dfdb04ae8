// Copyright 2026 The GeoMemo Authors
// SPDX-License-Identifier: Apache-2.0

package panorama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/JulianYG/GeoMemo/spatial"
	"github.com/JulianYG/GeoMemo/utils/httputils"
	"github.com/go-resty/resty/v2"
)

// DefaultBaseURL is the Street View Static API metadata endpoint. Metadata
// requests are not billed.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/streetview/metadata"

// ClientOptions configuration for Client.
type ClientOptions struct {
	// BaseURL overrides the metadata endpoint, mostly for tests
	BaseURL string

	// UserAgent is the User-Agent header to use in HTTP requests
	UserAgent string

	// Timeout for a single request, 10s when zero
	Timeout time.Duration

	// OutdoorOnly restricts results to outdoor panoramas
	OutdoorOnly bool

	// Enables light tracing of HTTP requests and responses
	EnableHTTPTrace bool

	// Enables full HTTP body tracing
	EnableHTTPBodyTrace bool
}

// Client looks up panoramas with the Street View metadata API.
type Client struct {
	apiKey  string
	baseURL string
	outdoor bool
	rest    *resty.Client
}

// NewClient creates a Street View metadata client. The key is required.
func NewClient(apiKey string, options *ClientOptions) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingKey
	}

	if options == nil {
		options = &ClientOptions{}
	}

	var httpLogWriter io.Writer
	if options.EnableHTTPTrace || options.EnableHTTPBodyTrace {
		httpLogWriter = os.Stderr
	}

	transport := &http.Transport{
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   4,
		MaxConnsPerHost:       4,
		IdleConnTimeout:       30 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
	}

	loggingTransport := &httputils.LoggingRoundTripper{
		Writer:    httpLogWriter,
		DumpBody:  options.EnableHTTPBodyTrace,
		Transport: transport,
	}

	userAgent := "geomemo/unknown"
	if options.UserAgent != "" {
		userAgent = options.UserAgent
	}

	headerTransport := &httputils.AppendRequestHeadersRoundTripper{
		Headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/json",
		},
		Transport: loggingTransport,
	}

	timeout := options.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	baseURL := DefaultBaseURL
	if options.BaseURL != "" {
		baseURL = options.BaseURL
	}

	// retries belong to the Validator
	rest := resty.NewWithClient(&http.Client{
		Timeout:   timeout,
		Transport: headerTransport,
	}).SetRetryCount(0)

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		outdoor: options.OutdoorOnly,
		rest:    rest,
	}, nil
}

type metadataResponse struct {
	Status       string `json:"status"` // OK, ZERO_RESULTS, NOT_FOUND, OVER_QUERY_LIMIT, REQUEST_DENIED, ...
	ErrorMessage string `json:"error_message"`
	PanoID       string `json:"pano_id"`
	Date         string `json:"date"`
	Copyright    string `json:"copyright"`
	Location     *struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	} `json:"location"`
}

// Lookup implements Lookuper.
func (c *Client) Lookup(ctx context.Context, p spatial.Point, radius float64) (*Panorama, error) {
	params := map[string]string{
		"location": strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64),
		"radius":   strconv.Itoa(int(math.Ceil(radius))),
		"key":      c.apiKey,
	}

	if c.outdoor {
		params["source"] = "outdoor"
	}

	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(c.baseURL)
	if err != nil {
		return nil, &LookupError{
			Type:    ErrorTypeNetwork,
			Message: "street view request failed",
			Err:     err,
		}
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, ClassifyHTTPError(resp.StatusCode())
	}

	var meta metadataResponse
	if err := json.Unmarshal(resp.Body(), &meta); err != nil {
		return nil, &LookupError{
			Type:    ErrorTypeMalformed,
			Message: "decoding street view response",
			Err:     err,
		}
	}

	switch meta.Status {
	case "OK":
		if meta.Location == nil || meta.Location.Lat == nil || meta.Location.Lng == nil {
			// coverage claimed without a coordinate, never guess one
			return nil, &LookupError{
				Type:    ErrorTypeMalformed,
				Message: fmt.Sprintf("street view reported pano %q without a location", meta.PanoID),
			}
		}

		return &Panorama{
			ID:        meta.PanoID,
			Point:     spatial.Point{Lat: *meta.Location.Lat, Lng: *meta.Location.Lng},
			Date:      meta.Date,
			Copyright: meta.Copyright,
		}, nil
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, nil
	default:
		return nil, ClassifyStatus(meta.Status, meta.ErrorMessage)
	}
}
