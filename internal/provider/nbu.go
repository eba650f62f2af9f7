package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

var _ RatesProvider = (*NBUProvider)(nil)

// NBUProvider fetches the official rate from the National Bank of Ukraine.
type NBUProvider struct {
	url    string
	client *resty.Client
}

// NewNBUProvider creates a new NBUProvider.
func NewNBUProvider(url string, timeoutSec int) *NBUProvider {
	if url == "" {
		url = "https://bank.gov.ua/NBUStatService/v1/statdirectory/exchange?json"
	}
	return &NBUProvider{url: url, client: newHTTPClient(timeoutSec, "")}
}

type nbuRate struct {
	CC           string  `json:"cc"`
	Rate         float64 `json:"rate"`
	ExchangeDate string  `json:"exchangedate"`
}

func (p *NBUProvider) Name() string { return SourceNBU }

// GetRate selects the entry whose cc matches currency. The provider's exchangedate is ignored.
func (p *NBUProvider) GetRate(ctx context.Context, currency string) (float64, error) {
	var rates []nbuRate
	if err := fetchJSON(ctx, p.client, SourceNBU, p.url, &rates); err != nil {
		return 0, err
	}

	for _, r := range rates {
		if strings.EqualFold(r.CC, currency) {
			if r.Rate <= 0 {
				return 0, fmt.Errorf("nbu: non-positive rate %v for %s: %w", r.Rate, currency, ErrRateNotFound)
			}
			return r.Rate, nil
		}
	}
	return 0, fmt.Errorf("nbu: %s: %w", currency, ErrRateNotFound)
}
