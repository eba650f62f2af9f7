package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"ratebot/internal/provider"
	"ratebot/internal/service"
)

const (
	defaultHistoryLimit = 7
	maxHistoryLimit     = 366
)

// RateReader is the read side of service.Store exposed over HTTP.
type RateReader interface {
	LatestRate(ctx context.Context, currency, source string) (service.Observation, bool)
	History(ctx context.Context, currency, source string, limit int) []service.Observation
}

// StatsReader is the admin view of service.Store exposed over HTTP.
type StatsReader interface {
	AllUsage(ctx context.Context) map[string]int64
	ActiveSubscribers(ctx context.Context) []int64
}

// RateResponse represents one stored observation
type RateResponse struct {
	Date     string  `json:"date" example:"2024-05-02"`
	Currency string  `json:"currency" example:"USD"`
	Source   string  `json:"source" example:"NBU"`
	Rate     float64 `json:"rate" example:"39.4"`
}

// HistoryResponse represents a series of observations, oldest first
type HistoryResponse struct {
	Currency string         `json:"currency" example:"USD"`
	Source   string         `json:"source" example:"NBU"`
	Items    []RateResponse `json:"items"`
}

// StatsResponse represents command usage and subscriber counts
type StatsResponse struct {
	Subscribers int              `json:"subscribers" example:"12"`
	Commands    map[string]int64 `json:"commands"`
}

// HandleGetLatestRate godoc
// @Summary Get latest stored rate
// @Description Returns the most recently stored observation for a currency and source. Does NOT trigger a fetch.
// @Tags rates
// @Produce json
// @Param currency query string true "Currency code (3 letters)" minlength(3) maxlength(3)
// @Param source query string false "Source name" default(NBU)
// @Success 200 {object} RateResponse "Latest rate found"
// @Failure 400 {object} ErrorResponse "Invalid currency code format"
// @Failure 404 {object} ErrorResponse "No rate stored"
// @Router /rates/latest [get]
func HandleGetLatestRate(store RateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currency, source, ok := rateParams(w, r)
		if !ok {
			return
		}

		obs, found := store.LatestRate(r.Context(), currency, source)
		if !found {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "No rate stored for " + currency + " from " + source})
			return
		}
		writeJSON(w, http.StatusOK, toRateResponse(obs))
	}
}

// HandleGetRateHistory godoc
// @Summary Get stored rate history
// @Description Returns up to limit most recent observations in chronological order.
// @Tags rates
// @Produce json
// @Param currency query string true "Currency code (3 letters)" minlength(3) maxlength(3)
// @Param source query string false "Source name" default(NBU)
// @Param limit query int false "Maximum number of observations" default(7) minimum(1) maximum(366)
// @Success 200 {object} HistoryResponse "History, possibly empty"
// @Failure 400 {object} ErrorResponse "Invalid parameters"
// @Router /rates/history [get]
func HandleGetRateHistory(store RateReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		currency, source, ok := rateParams(w, r)
		if !ok {
			return
		}

		limit := defaultHistoryLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxHistoryLimit {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be between 1 and " + strconv.Itoa(maxHistoryLimit)})
				return
			}
			limit = n
		}

		history := store.History(r.Context(), currency, source, limit)
		items := make([]RateResponse, 0, len(history))
		for _, o := range history {
			items = append(items, toRateResponse(o))
		}
		writeJSON(w, http.StatusOK, HistoryResponse{Currency: currency, Source: source, Items: items})
	}
}

// HandleGetStats godoc
// @Summary Get usage statistics
// @Description Returns the per-command usage counters and the number of active subscribers.
// @Tags stats
// @Produce json
// @Success 200 {object} StatsResponse "Usage statistics"
// @Router /stats [get]
func HandleGetStats(store StatsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StatsResponse{
			Subscribers: len(store.ActiveSubscribers(r.Context())),
			Commands:    store.AllUsage(r.Context()),
		})
	}
}

func rateParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	q := r.URL.Query()
	if q.Get("currency") == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "currency query param is required"})
		return "", "", false
	}
	currency, err := service.NormalizeCurrency(q.Get("currency"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidCurrencyCode) {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		} else {
			writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
		}
		return "", "", false
	}

	source := strings.TrimSpace(q.Get("source"))
	if source == "" {
		source = provider.SourceNBU
	}
	return currency, source, true
}

func toRateResponse(o service.Observation) RateResponse {
	return RateResponse{Date: o.Date, Currency: o.Currency, Source: o.Source, Rate: o.Rate}
}
