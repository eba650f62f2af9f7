package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

var _ RatesProvider = (*MonobankProvider)(nil)

// ISO 4217 numeric codes used by the Monobank API.
var isoNumeric = map[string]int{
	"USD": 840,
	"EUR": 978,
	"GBP": 826,
	"PLN": 985,
	"UAH": 980,
}

// MonobankProvider fetches rates from Monobank's public currency endpoint.
type MonobankProvider struct {
	url    string
	client *resty.Client
}

// NewMonobankProvider creates a new MonobankProvider.
func NewMonobankProvider(url string, timeoutSec int) *MonobankProvider {
	if url == "" {
		url = "https://api.monobank.ua/bank/currency"
	}
	return &MonobankProvider{url: url, client: newHTTPClient(timeoutSec, "")}
}

type monoRate struct {
	CurrencyCodeA int      `json:"currencyCodeA"`
	CurrencyCodeB int      `json:"currencyCodeB"`
	Date          int64    `json:"date"`
	RateSell      *float64 `json:"rateSell"`
	RateBuy       *float64 `json:"rateBuy"`
	RateCross     *float64 `json:"rateCross"`
}

func (p *MonobankProvider) Name() string { return SourceMonobank }

// GetRate prefers rateSell and falls back to rateCross when the sell rate is absent or zero.
func (p *MonobankProvider) GetRate(ctx context.Context, currency string) (float64, error) {
	code, ok := isoNumeric[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("monobank: no ISO code for %s: %w", currency, ErrRateNotFound)
	}

	var rates []monoRate
	if err := fetchJSON(ctx, p.client, SourceMonobank, p.url, &rates); err != nil {
		return 0, err
	}

	uah := isoNumeric[baseCurrency]
	for _, r := range rates {
		if r.CurrencyCodeA != code || r.CurrencyCodeB != uah {
			continue
		}
		if r.RateSell != nil && *r.RateSell > 0 {
			return *r.RateSell, nil
		}
		if r.RateCross != nil && *r.RateCross > 0 {
			return *r.RateCross, nil
		}
		return 0, fmt.Errorf("monobank: no sell or cross rate for %s: %w", currency, ErrRateNotFound)
	}
	return 0, fmt.Errorf("monobank: %d/%d: %w", code, uah, ErrRateNotFound)
}
