// Package provider contains one fetcher per external exchange-rate source.
// Every fetcher performs a single HTTP call and extracts one UAH rate.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

// Source names as stored in the rates table.
const (
	SourceNBU        = "NBU"
	SourcePrivatBank = "PrivatBank"
	SourceMonobank   = "Monobank"
	SourceMinfin     = "Minfin"
)

// ErrRateNotFound is returned when a response parses but holds no rate for the currency.
var ErrRateNotFound = errors.New("rate not found in response")

// RatesProvider defines an interface for fetching exchange rates from external sources.
type RatesProvider interface {
	// Name is the source identity recorded with each observation.
	Name() string
	// GetRate returns the price of one unit of currency in UAH.
	GetRate(ctx context.Context, currency string) (float64, error)
}

func newHTTPClient(timeoutSec int, userAgent string) *resty.Client {
	c := resty.New().
		SetTimeout(time.Duration(timeoutSec) * time.Second).
		SetHeader("Accept", "application/json")
	if userAgent != "" {
		c.SetHeader("User-Agent", userAgent)
	}
	return c
}

// fetchBody performs a GET and returns the body of a 2xx response.
func fetchBody(ctx context.Context, client *resty.Client, source, url string) ([]byte, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", source, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%s returned status %d: %s", source, resp.StatusCode(), truncate(resp.String(), 200))
	}
	return resp.Body(), nil
}

func fetchJSON(ctx context.Context, client *resty.Client, source, url string, out any) error {
	body, err := fetchBody(ctx, client, source, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", source, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
