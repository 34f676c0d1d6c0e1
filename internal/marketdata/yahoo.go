package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"financehub/types"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// YahooClient fetches daily bars and exchange rates from the Yahoo Finance
// chart API. It covers both US tickers and suffixed foreign listings
// (e.g. 005930.KS).
type YahooClient struct {
	httpClient *http.Client
	baseURL    string
}

func NewYahooClient() *YahooClient {
	return &YahooClient{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    defaultBaseURL,
	}
}

// NewYahooClientWithBaseURL exists for tests pointed at a local server.
func NewYahooClientWithBaseURL(baseURL string, client *http.Client) *YahooClient {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &YahooClient{httpClient: client, baseURL: baseURL}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error any `json:"error"`
	} `json:"chart"`
}

// FetchBars returns the daily bars for a ticker between start and end,
// ordered by date. A ticker with no data in the window yields an empty slice
// and a nil error.
func (y *YahooClient) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]types.Candle, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d",
		y.baseURL, url.PathEscape(ticker), start.Unix(), end.Unix())

	resp, err := y.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", ticker, err)
	}

	if len(resp.Chart.Result) == 0 || len(resp.Chart.Result[0].Indicators.Quote) == 0 {
		return []types.Candle{}, nil
	}
	result := resp.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	candles := make([]types.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		candles = append(candles, types.Candle{
			Ticker: ticker,
			Date:   time.Unix(ts, 0).UTC(),
			Open:   decimal.NewFromFloat(at(quote.Open, i)),
			High:   decimal.NewFromFloat(at(quote.High, i)),
			Low:    decimal.NewFromFloat(at(quote.Low, i)),
			Close:  decimal.NewFromFloat(quote.Close[i]),
			Volume: atInt(quote.Volume, i),
		})
	}
	return candles, nil
}

// FetchExchangeRate resolves a currency pair via the FROMTO=X synthetic
// ticker, retrying the inverse pair when the direct one has no quote.
func (y *YahooClient) FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	rate, err := y.latestClose(ctx, from+to+"=X")
	if err == nil {
		return rate, nil
	}

	inverse, invErr := y.latestClose(ctx, to+from+"=X")
	if invErr != nil || inverse.IsZero() {
		log.Warn().Str("from", from).Str("to", to).Err(err).
			Msg("exchange rate unavailable for both pair directions")
		return decimal.Zero, fmt.Errorf("exchange rate %s/%s: %w", from, to, ErrNoRate)
	}
	return decimal.NewFromInt(1).Div(inverse), nil
}

func (y *YahooClient) latestClose(ctx context.Context, ticker string) (decimal.Decimal, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -5)
	candles, err := y.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return decimal.Zero, err
	}
	if len(candles) == 0 {
		return decimal.Zero, fmt.Errorf("ticker %s: %w", ticker, ErrNoBars)
	}
	return candles[len(candles)-1].Close, nil
}

func (y *YahooClient) get(ctx context.Context, u string) (*chartResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)")
	req.Header.Set("Accept", "application/json")

	resp, err := y.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		preview := body
		if len(preview) > 120 {
			preview = preview[:120]
		}
		return nil, fmt.Errorf("yahoo returned %d: %s", resp.StatusCode, preview)
	}

	var parsed chartResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse chart response: %w", err)
	}
	return &parsed, nil
}

func at(xs []float64, i int) float64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}

func atInt(xs []int64, i int) int64 {
	if i < len(xs) {
		return xs[i]
	}
	return 0
}
