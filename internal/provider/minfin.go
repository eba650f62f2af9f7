package provider

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

var _ RatesProvider = (*MinfinProvider)(nil)

// MinfinProvider scrapes the market rate from the Minfin currency page.
// The selector tracks the page's current markup and breaks when the layout changes;
// a miss is reported as ErrRateNotFound like any other absent rate.
type MinfinProvider struct {
	urlFormat string
	selector  string
	client    *resty.Client
}

// NewMinfinProvider creates a new MinfinProvider. urlFormat takes the lower-case currency code.
func NewMinfinProvider(urlFormat, selector, userAgent string, timeoutSec int) *MinfinProvider {
	if urlFormat == "" {
		urlFormat = "https://minfin.com.ua/ua/currency/%s/"
	}
	if selector == "" {
		selector = "div.sc-1x32wa2-9"
	}
	if userAgent == "" {
		userAgent = "Mozilla/5.0"
	}
	client := newHTTPClient(timeoutSec, userAgent).SetHeader("Accept", "text/html")
	return &MinfinProvider{urlFormat: urlFormat, selector: selector, client: client}
}

func (p *MinfinProvider) Name() string { return SourceMinfin }

func (p *MinfinProvider) GetRate(ctx context.Context, currency string) (float64, error) {
	url := fmt.Sprintf(p.urlFormat, strings.ToLower(currency))
	body, err := fetchBody(ctx, p.client, SourceMinfin, url)
	if err != nil {
		return 0, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("minfin: failed to parse html: %w", err)
	}

	sel := doc.Find(p.selector).First()
	if sel.Length() == 0 {
		return 0, fmt.Errorf("minfin: selector %q matched nothing: %w", p.selector, ErrRateNotFound)
	}
	return parseMinfinText(sel.Text())
}

// parseMinfinText reads the leading number of a cell such as "41,35" or "41,35 +0,05".
func parseMinfinText(text string) (float64, error) {
	text = strings.NewReplacer("\u00a0", " ", "\u202f", " ").Replace(text)
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 0, fmt.Errorf("minfin: empty rate cell: %w", ErrRateNotFound)
	}
	v, err := decimal.NewFromString(strings.ReplaceAll(fields[0], ",", "."))
	if err != nil {
		return 0, fmt.Errorf("minfin: invalid rate %q: %w", fields[0], err)
	}
	if !v.IsPositive() {
		return 0, fmt.Errorf("minfin: non-positive rate %q: %w", fields[0], ErrRateNotFound)
	}
	return v.InexactFloat64(), nil
}
