// Package weatherapi implements domain.WeatherLookup against WeatherAPI.com.
package weatherapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/click-weather/internal/domain"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultBaseURL is the current-conditions endpoint.
const DefaultBaseURL = "https://api.weatherapi.com/v1/current.json"

// consecutiveFailuresToTrip opens the breaker after this many failed calls in a row.
const consecutiveFailuresToTrip = 5

// Client implements domain.WeatherLookup. Each FetchWeather call issues at
// most one HTTP request; the circuit breaker only ever skips a request, it
// never repeats one.
type Client struct {
	apiKey     string
	httpClient *http.Client
	baseURL    string
	breaker    *gobreaker.CircuitBreaker
	logger     *slog.Logger
}

// NewClient creates a WeatherAPI.com client.
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL: baseURL,
		breaker: newBreaker(logger),
		logger:  logger,
	}
}

func newBreaker(logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "weatherapi",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= consecutiveFailuresToTrip
		},
		IsSuccessful: func(err error) bool {
			// Cancelled calls and client errors (e.g. no location over open sea)
			// say nothing about provider health.
			var se *statusError
			if errors.As(err, &se) {
				return se.code < http.StatusInternalServerError && se.code != http.StatusTooManyRequests
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}

// FetchWeather returns current conditions at the given coordinate.
func (c *Client) FetchWeather(ctx context.Context, at domain.Coordinate) (domain.WeatherReport, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, at)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.WeatherReport{}, domain.NewLookupError(at, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err))
		}
		return domain.WeatherReport{}, domain.NewLookupError(at, err)
	}
	report, ok := result.(domain.WeatherReport)
	if !ok {
		return domain.WeatherReport{}, domain.NewLookupError(at, errors.New("unexpected result type from circuit breaker"))
	}
	return report, nil
}

// CheckReadiness reports an error while the provider circuit is open.
func (c *Client) CheckReadiness(_ context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return domain.ErrProviderUnavailable
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, at domain.Coordinate) (domain.WeatherReport, error) {
	params := url.Values{
		"key": {c.apiKey},
		"q":   {formatQuery(at)},
		"aqi": {"no"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.WeatherReport{}, fmt.Errorf("weather request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.WeatherReport{}, &statusError{code: resp.StatusCode, message: providerMessage(body)}
	}

	var payload response
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.WeatherReport{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	return payload.report()
}

// formatQuery renders the "lat,lng" query value with the shortest exact decimals.
func formatQuery(at domain.Coordinate) string {
	return strconv.FormatFloat(at.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(at.Lng, 'f', -1, 64)
}

type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", domain.ErrProviderStatus, e.code, e.message)
}

func (e *statusError) Is(target error) bool { return target == domain.ErrProviderStatus }

// providerMessage extracts the provider's error message, falling back to the raw body.
func providerMessage(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error.Message != "" {
		return fmt.Sprintf("%s (code %d)", e.Error.Message, e.Error.Code)
	}
	return string(body)
}

// WeatherAPI response types. Pointers distinguish absent fields from zero values.

type response struct {
	Current *struct {
		TempC     *float64 `json:"temp_c"`
		Condition *struct {
			Text *string `json:"text"`
		} `json:"condition"`
	} `json:"current"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (r response) report() (domain.WeatherReport, error) {
	switch {
	case r.Current == nil:
		return domain.WeatherReport{}, fmt.Errorf("%w: current", domain.ErrMissingField)
	case r.Current.Condition == nil || r.Current.Condition.Text == nil:
		return domain.WeatherReport{}, fmt.Errorf("%w: current.condition.text", domain.ErrMissingField)
	case r.Current.TempC == nil:
		return domain.WeatherReport{}, fmt.Errorf("%w: current.temp_c", domain.ErrMissingField)
	}
	return domain.WeatherReport{
		Condition:    *r.Current.Condition.Text,
		TemperatureC: *r.Current.TempC,
	}, nil
}
