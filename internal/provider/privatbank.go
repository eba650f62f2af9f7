package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

var _ RatesProvider = (*PrivatBankProvider)(nil)

const baseCurrency = "UAH"

// PrivatBankProvider fetches the cash sale rate from PrivatBank's public API.
type PrivatBankProvider struct {
	url    string
	client *resty.Client
}

// NewPrivatBankProvider creates a new PrivatBankProvider.
func NewPrivatBankProvider(url string, timeoutSec int) *PrivatBankProvider {
	if url == "" {
		url = "https://api.privatbank.ua/p24api/pubinfo?json&exchange&coursid=5"
	}
	return &PrivatBankProvider{url: url, client: newHTTPClient(timeoutSec, "")}
}

// privatRate carries rates as decimal strings, e.g. "41.40000".
type privatRate struct {
	Ccy     string `json:"ccy"`
	BaseCcy string `json:"base_ccy"`
	Buy     string `json:"buy"`
	Sale    string `json:"sale"`
}

func (p *PrivatBankProvider) Name() string { return SourcePrivatBank }

func (p *PrivatBankProvider) GetRate(ctx context.Context, currency string) (float64, error) {
	var rates []privatRate
	if err := fetchJSON(ctx, p.client, SourcePrivatBank, p.url, &rates); err != nil {
		return 0, err
	}

	for _, r := range rates {
		if !strings.EqualFold(r.Ccy, currency) || !strings.EqualFold(r.BaseCcy, baseCurrency) {
			continue
		}
		sale, err := decimal.NewFromString(strings.TrimSpace(r.Sale))
		if err != nil {
			return 0, fmt.Errorf("privatbank: invalid sale %q for %s: %w", r.Sale, currency, err)
		}
		if !sale.IsPositive() {
			return 0, fmt.Errorf("privatbank: non-positive sale for %s: %w", currency, ErrRateNotFound)
		}
		return sale.InexactFloat64(), nil
	}
	return 0, fmt.Errorf("privatbank: %s/%s: %w", currency, baseCurrency, ErrRateNotFound)
}
