package climate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/lox/harvesthorizon/internal/httputil"
	"github.com/lox/harvesthorizon/internal/metrics"
	"github.com/lox/harvesthorizon/internal/models"
)

const (
	// DefaultBaseURL is the NASA POWER daily point endpoint.
	DefaultBaseURL = "https://power.larc.nasa.gov/api/temporal/daily/point"

	DefaultWindowDays = 30
	RequestTimeout    = 10 * time.Second

	paramTemperature   = "T2M"
	paramPrecipitation = "PRECTOTCORR"
	paramSoilMoisture  = "GWETROOT"
	paramSolar         = "ALLSKY_SFC_SW_DWN"

	defaultFillValue = -999.0
	dateLayout       = "20060102"
)

var parameters = []string{paramTemperature, paramPrecipitation, paramSoilMoisture, paramSolar}

// Source tells callers where a series came from.
type Source string

const (
	SourceLive      Source = "live"
	SourceSynthetic Source = "synthetic"
)

var (
	ErrUpstreamUnavailable = errors.New("climate: upstream unavailable")
	ErrInvalidCoordinates  = errors.New("climate: invalid coordinates")
)

// Result is a climate series plus its provenance. Upstream is set when the
// series is synthetic and explains why live data was not used.
type Result struct {
	Series   models.ClimateSeries
	Source   Source
	Upstream error
}

// FetchRecord describes a single upstream attempt for auditing.
type FetchRecord struct {
	LocationID   string
	WindowStart  time.Time
	WindowEnd    time.Time
	StartedAt    time.Time
	FinishedAt   time.Time
	HTTPStatus   int
	ResponseSize int
	DaysParsed   int
	Success      bool
	Error        string
}

// Archive persists upstream attempts and their raw bodies.
type Archive interface {
	ArchiveFetch(rec FetchRecord, payload []byte) error
}

type cacheKey struct {
	lat, lon float64
	days     int
}

func (k cacheKey) String() string {
	return fmt.Sprintf("%.4f,%.4f/%dd", k.lat, k.lon, k.days)
}

// Provider fetches daily climate series from NASA POWER. Live results are
// cached for the lifetime of the provider; failures fall back to Synthetic.
type Provider struct {
	client  *http.Client
	baseURL string
	breaker *gobreaker.CircuitBreaker
	archive Archive
	now     func() time.Time

	mu    sync.RWMutex
	cache map[cacheKey]models.ClimateSeries
}

func NewProvider(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nasa-power",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// A caller hanging up says nothing about the upstream.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("climate: breaker %s: %s -> %s", name, from, to)
			metrics.ClimateBreakerState.Set(float64(to))
		},
	})
	return &Provider{
		client:  httputil.NewClient(RequestTimeout),
		baseURL: baseURL,
		breaker: cb,
		now:     time.Now,
		cache:   make(map[cacheKey]models.ClimateSeries),
	}
}

// SetArchive configures where upstream attempts are recorded.
func (p *Provider) SetArchive(a Archive) {
	p.archive = a
}

// Fetch returns the climate series for the windowDays days ending today.
// It never fails because of the upstream API; the error is only for invalid input.
func (p *Provider) Fetch(ctx context.Context, lat, lon float64, windowDays int) (Result, error) {
	return p.fetch(ctx, lat, lon, windowDays, true)
}

// Refresh is Fetch without the cache read. A live result replaces the cached entry.
func (p *Provider) Refresh(ctx context.Context, lat, lon float64, windowDays int) (Result, error) {
	return p.fetch(ctx, lat, lon, windowDays, false)
}

func (p *Provider) fetch(ctx context.Context, lat, lon float64, windowDays int, useCache bool) (Result, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Result{}, fmt.Errorf("%w: lat=%v lon=%v", ErrInvalidCoordinates, lat, lon)
	}
	if windowDays < 1 {
		windowDays = DefaultWindowDays
	}
	key := cacheKey{lat: lat, lon: lon, days: windowDays}

	if useCache {
		p.mu.RLock()
		series, ok := p.cache[key]
		p.mu.RUnlock()
		if ok {
			metrics.ClimateFetchesTotal.WithLabelValues("cache").Inc()
			return Result{Series: series, Source: SourceLive}, nil
		}
	}

	end := p.now().UTC()
	start := end.AddDate(0, 0, -(windowDays - 1))

	series, err := p.fetchLive(ctx, lat, lon, start, end)
	if err != nil {
		log.Printf("climate: %s: using synthetic series: %v", key, err)
		metrics.ClimateFetchesTotal.WithLabelValues(string(SourceSynthetic)).Inc()
		return Result{
			Series:   Synthetic(end, windowDays),
			Source:   SourceSynthetic,
			Upstream: fmt.Errorf("%w: %w", ErrUpstreamUnavailable, err),
		}, nil
	}

	p.mu.Lock()
	p.cache[key] = series
	p.mu.Unlock()

	log.Printf("climate: %s: fetched %d days", key, series.Len())
	metrics.ClimateFetchesTotal.WithLabelValues(string(SourceLive)).Inc()
	return Result{Series: series, Source: SourceLive}, nil
}

func (p *Provider) requestURL(lat, lon float64, start, end time.Time) string {
	values := url.Values{}
	values.Set("parameters", strings.Join(parameters, ","))
	values.Set("community", "AG")
	values.Set("longitude", strconv.FormatFloat(lon, 'f', 4, 64))
	values.Set("latitude", strconv.FormatFloat(lat, 'f', 4, 64))
	values.Set("start", start.Format(dateLayout))
	values.Set("end", end.Format(dateLayout))
	values.Set("format", "JSON")
	return p.baseURL + "?" + values.Encode()
}

type download struct {
	status int
	body   []byte
}

func (p *Provider) fetchLive(ctx context.Context, lat, lon float64, start, end time.Time) (models.ClimateSeries, error) {
	if err := ctx.Err(); err != nil {
		return models.ClimateSeries{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	rec := FetchRecord{
		LocationID:  fmt.Sprintf("%.4f,%.4f", lat, lon),
		WindowStart: start,
		WindowEnd:   end,
		StartedAt:   time.Now().UTC(),
	}

	dl := &download{}
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.download(ctx, p.requestURL(lat, lon, start, end))
	})
	if d, ok := result.(*download); ok && d != nil {
		dl = d
	}

	var series models.ClimateSeries
	if err == nil {
		series, err = parseResponse(dl.body)
	}

	rec.FinishedAt = time.Now().UTC()
	rec.HTTPStatus = dl.status
	rec.ResponseSize = len(dl.body)
	rec.DaysParsed = series.Len()
	rec.Success = err == nil
	if err != nil {
		rec.Error = err.Error()
	}
	// Refused by the breaker or abandoned by the caller: not an upstream attempt.
	skipped := errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) ||
		errors.Is(err, context.Canceled)
	if p.archive != nil && !skipped {
		if archiveErr := p.archive.ArchiveFetch(rec, dl.body); archiveErr != nil {
			log.Printf("climate: archive fetch: %v", archiveErr)
		}
	}

	return series, err
}

// download performs the GET, retrying only when the API asks us to slow down.
func (p *Provider) download(ctx context.Context, u string) (*download, error) {
	dl := &download{}
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("User-Agent", "HarvestHorizon/1.0")

		started := time.Now()
		resp, err := p.client.Do(req)
		metrics.ClimateAPILatency.Observe(time.Since(started).Seconds())
		if err != nil {
			metrics.ClimateAPICallsTotal.WithLabelValues("error").Inc()
			return backoff.Permanent(fmt.Errorf("fetch climate: %w", err))
		}
		defer resp.Body.Close()

		dl.status = resp.StatusCode
		metrics.ClimateAPICallsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			return fmt.Errorf("rate limited: status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		dl.body = body

		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("fetch climate: status %d", resp.StatusCode))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = RequestTimeout
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return dl, err
	}
	return dl, nil
}

type powerResponse struct {
	Header struct {
		FillValue *float64 `json:"fill_value"`
	} `json:"header"`
	Properties struct {
		Parameter map[string]map[string]float64 `json:"parameter"`
	} `json:"properties"`
}

// parseResponse converts the POWER date->value maps into a series. Days where
// any variable is missing or holds the fill value are dropped.
func parseResponse(body []byte) (models.ClimateSeries, error) {
	var data powerResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return models.ClimateSeries{}, fmt.Errorf("unmarshal: %w", err)
	}

	fill := defaultFillValue
	if data.Header.FillValue != nil {
		fill = *data.Header.FillValue
	}

	values := make([]map[string]float64, len(parameters))
	for i, name := range parameters {
		v, ok := data.Properties.Parameter[name]
		if !ok || len(v) == 0 {
			return models.ClimateSeries{}, fmt.Errorf("missing parameter %s", name)
		}
		values[i] = v
	}

	dates := make([]string, 0, len(values[0]))
	for d := range values[0] {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var series models.ClimateSeries
	for _, d := range dates {
		date, err := time.Parse(dateLayout, d)
		if err != nil {
			continue
		}

		var day [4]float64
		usable := true
		for i := range values {
			v, ok := values[i][d]
			if !ok || v == fill {
				usable = false
				break
			}
			day[i] = v
		}
		if !usable {
			continue
		}

		series.Dates = append(series.Dates, date)
		series.Temperature = append(series.Temperature, day[0])
		series.Precipitation = append(series.Precipitation, day[1])
		series.SoilMoisture = append(series.SoilMoisture, day[2])
		series.SolarRadiation = append(series.SolarRadiation, day[3])
	}

	if series.Len() == 0 {
		return models.ClimateSeries{}, errors.New("no usable days in response")
	}
	return series, nil
}
