package climate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)

const threeDayResponse = `{
  "header": {"fill_value": -999.0},
  "properties": {
    "parameter": {
      "T2M":               {"20250313": 21.5, "20250314": 23.0, "20250315": 24.5},
      "PRECTOTCORR":       {"20250313": 0.0,  "20250314": 4.2,  "20250315": 1.1},
      "GWETROOT":          {"20250313": 0.41, "20250314": 0.44, "20250315": 0.43},
      "ALLSKY_SFC_SW_DWN": {"20250313": 5.9,  "20250314": 4.8,  "20250315": 6.1}
    }
  }
}`

func newTestProvider(t *testing.T, handler http.HandlerFunc) (*Provider, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	p := NewProvider(srv.URL)
	p.now = func() time.Time { return fixedNow }
	return p, &hits
}

func TestFetch_Live(t *testing.T) {
	var gotQuery map[string]string
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = map[string]string{
			"parameters": q.Get("parameters"),
			"community":  q.Get("community"),
			"start":      q.Get("start"),
			"end":        q.Get("end"),
			"latitude":   q.Get("latitude"),
			"longitude":  q.Get("longitude"),
			"format":     q.Get("format"),
		}
		fmt.Fprint(w, threeDayResponse)
	})

	res, err := p.Fetch(context.Background(), 37.5, -95.5, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceLive {
		t.Fatalf("Source = %s, want %s (upstream: %v)", res.Source, SourceLive, res.Upstream)
	}
	if res.Upstream != nil {
		t.Errorf("Upstream = %v, want nil", res.Upstream)
	}

	wantQuery := map[string]string{
		"parameters": "T2M,PRECTOTCORR,GWETROOT,ALLSKY_SFC_SW_DWN",
		"community":  "AG",
		"start":      "20250313",
		"end":        "20250315",
		"latitude":   "37.5000",
		"longitude":  "-95.5000",
		"format":     "JSON",
	}
	for k, want := range wantQuery {
		if gotQuery[k] != want {
			t.Errorf("query %s = %q, want %q", k, gotQuery[k], want)
		}
	}

	s := res.Series
	if s.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", s.Len())
	}
	if s.Temperature[0] != 21.5 || s.Temperature[2] != 24.5 {
		t.Errorf("Temperature = %v, want ascending by date", s.Temperature)
	}
	if s.Precipitation[1] != 4.2 {
		t.Errorf("Precipitation[1] = %v, want 4.2", s.Precipitation[1])
	}
	if s.SoilMoisture[2] != 0.43 {
		t.Errorf("SoilMoisture[2] = %v, want 0.43", s.SoilMoisture[2])
	}
	if s.SolarRadiation[0] != 5.9 {
		t.Errorf("SolarRadiation[0] = %v, want 5.9", s.SolarRadiation[0])
	}
	if got := s.Dates[0].Format("2006-01-02"); got != "2025-03-13" {
		t.Errorf("Dates[0] = %s, want 2025-03-13", got)
	}
}

func TestFetch_DropsFillValueDays(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
  "header": {"fill_value": -999.0},
  "properties": {"parameter": {
    "T2M":               {"20250313": 21.5, "20250314": 23.0, "20250315": 24.5},
    "PRECTOTCORR":       {"20250313": 0.0,  "20250314": 4.2,  "20250315": -999.0},
    "GWETROOT":          {"20250313": 0.41, "20250314": 0.44, "20250315": 0.43},
    "ALLSKY_SFC_SW_DWN": {"20250313": 5.9,  "20250314": 4.8}
  }}
}`)
	})

	res, err := p.Fetch(context.Background(), 10, 10, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceLive {
		t.Fatalf("Source = %s, want live", res.Source)
	}
	if res.Series.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (last day has a fill value)", res.Series.Len())
	}
}

func TestFetch_CachesLiveResults(t *testing.T) {
	p, hits := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threeDayResponse)
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := p.Fetch(ctx, 37.5, -95.5, 3); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if got := atomic.LoadInt32(hits); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}

	// Different window is a different key.
	if _, err := p.Fetch(ctx, 37.5, -95.5, 5); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 2 {
		t.Errorf("upstream hits = %d, want 2", got)
	}

	if _, err := p.Refresh(ctx, 37.5, -95.5, 3); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Errorf("upstream hits after Refresh = %d, want 3", got)
	}
}

func TestFetch_FallsBackToSynthetic(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"properties": {"parameter": `)
			},
		},
		{
			name: "missing variable",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"properties": {"parameter": {"T2M": {"20250315": 20.0}}}}`)
			},
		},
		{
			name: "only fill values",
			handler: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"properties": {"parameter": {
  "T2M": {"20250315": -999}, "PRECTOTCORR": {"20250315": -999},
  "GWETROOT": {"20250315": -999}, "ALLSKY_SFC_SW_DWN": {"20250315": -999}}}}`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, hits := newTestProvider(t, tt.handler)

			res, err := p.Fetch(context.Background(), 42.0, -93.5, 30)
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if res.Source != SourceSynthetic {
				t.Fatalf("Source = %s, want synthetic", res.Source)
			}
			if !errors.Is(res.Upstream, ErrUpstreamUnavailable) {
				t.Errorf("Upstream = %v, want ErrUpstreamUnavailable", res.Upstream)
			}
			if res.Series.Len() != 30 {
				t.Errorf("Len() = %d, want 30", res.Series.Len())
			}

			// Synthetic results are not cached.
			if _, err := p.Fetch(context.Background(), 42.0, -93.5, 30); err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if got := atomic.LoadInt32(hits); got != 2 {
				t.Errorf("upstream hits = %d, want 2", got)
			}
		})
	}
}

func TestFetch_FallbackIsDeterministic(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	ctx := context.Background()

	a, _ := p.Fetch(ctx, 39.0, -121.5, 14)
	b, _ := p.Fetch(ctx, 39.0, -121.5, 14)

	if a.Series.Len() != b.Series.Len() {
		t.Fatalf("lengths differ: %d vs %d", a.Series.Len(), b.Series.Len())
	}
	for i := range a.Series.Temperature {
		if a.Series.Temperature[i] != b.Series.Temperature[i] ||
			a.Series.Precipitation[i] != b.Series.Precipitation[i] ||
			a.Series.SoilMoisture[i] != b.Series.SoilMoisture[i] ||
			a.Series.SolarRadiation[i] != b.Series.SolarRadiation[i] {
			t.Fatalf("day %d differs between fallback calls", i)
		}
	}
}

func TestFetch_CancelledContext(t *testing.T) {
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, threeDayResponse)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := p.Fetch(ctx, 37.5, -95.5, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceSynthetic {
		t.Errorf("Source = %s, want synthetic", res.Source)
	}
}

func TestFetch_RetriesRateLimit(t *testing.T) {
	var calls int32
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, threeDayResponse)
	})

	res, err := p.Fetch(context.Background(), 37.5, -95.5, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceLive {
		t.Errorf("Source = %s, want live after retry (upstream: %v)", res.Source, res.Upstream)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFetch_BreakerOpensAfterFailures(t *testing.T) {
	p, hits := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res, err := p.Fetch(ctx, 37.5, -95.5, 3)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if res.Source != SourceSynthetic {
			t.Fatalf("Source = %s, want synthetic", res.Source)
		}
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Errorf("upstream hits = %d, want 3 (breaker should open)", got)
	}
}

func TestFetch_InvalidCoordinates(t *testing.T) {
	p := NewProvider("http://127.0.0.1:0")

	tests := []struct {
		name     string
		lat, lon float64
	}{
		{"lat too low", -90.1, 0},
		{"lat too high", 91, 0},
		{"lon too low", 0, -180.5},
		{"lon too high", 0, 181},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Fetch(context.Background(), tt.lat, tt.lon, 30)
			if !errors.Is(err, ErrInvalidCoordinates) {
				t.Errorf("err = %v, want ErrInvalidCoordinates", err)
			}
		})
	}
}

func TestFetch_DefaultWindow(t *testing.T) {
	var start, end string
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		start = r.URL.Query().Get("start")
		end = r.URL.Query().Get("end")
		w.WriteHeader(http.StatusInternalServerError)
	})

	res, err := p.Fetch(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if start != "20250214" || end != "20250315" {
		t.Errorf("window = %s..%s, want 20250214..20250315", start, end)
	}
	if res.Series.Len() != DefaultWindowDays {
		t.Errorf("Len() = %d, want %d", res.Series.Len(), DefaultWindowDays)
	}
}

type recordingArchive struct {
	mu       sync.Mutex
	records  []FetchRecord
	payloads [][]byte
}

func (a *recordingArchive) ArchiveFetch(rec FetchRecord, payload []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	a.payloads = append(a.payloads, payload)
	return nil
}

func TestFetch_ArchivesAttempts(t *testing.T) {
	var fail atomic.Bool
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "nope", http.StatusNotFound)
			return
		}
		fmt.Fprint(w, threeDayResponse)
	})
	archive := &recordingArchive{}
	p.SetArchive(archive)

	if _, err := p.Fetch(context.Background(), 37.5, -95.5, 3); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	fail.Store(true)
	if _, err := p.Refresh(context.Background(), 37.5, -95.5, 3); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	if len(archive.records) != 2 {
		t.Fatalf("records = %d, want 2", len(archive.records))
	}

	ok := archive.records[0]
	if !ok.Success || ok.HTTPStatus != 200 || ok.DaysParsed != 3 {
		t.Errorf("first record = %+v, want success with 3 days", ok)
	}
	if ok.LocationID != "37.5000,-95.5000" {
		t.Errorf("LocationID = %q", ok.LocationID)
	}
	if string(archive.payloads[0]) != threeDayResponse {
		t.Error("payload was not passed through unchanged")
	}

	failed := archive.records[1]
	if failed.Success || failed.HTTPStatus != 404 || failed.Error == "" {
		t.Errorf("second record = %+v, want failure with status 404", failed)
	}
}

func TestFetch_LiveAPI(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping live NASA POWER test in short mode")
	}

	p := NewProvider("")
	res, err := p.Fetch(context.Background(), 37.5, -95.5, 7)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceLive {
		t.Skipf("NASA POWER unavailable: %v", res.Upstream)
	}
	if res.Series.Len() == 0 {
		t.Error("expected at least one day of data")
	}
}

func TestFetch_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	var slow atomic.Bool
	slow.Store(true)
	p, _ := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if slow.Load() {
			<-r.Context().Done()
			return
		}
		fmt.Fprint(w, threeDayResponse)
	})
	archive := &recordingArchive{}
	p.SetArchive(archive)

	// Already cancelled: no request is made.
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if res, _ := p.Fetch(ctx, 37.5, -95.5, 3); res.Source != SourceSynthetic {
			t.Fatalf("Source = %s, want synthetic", res.Source)
		}
	}
	if len(archive.records) != 0 {
		t.Errorf("records = %d, want 0 for requests never sent", len(archive.records))
	}

	// Cancelled while the request is in flight.
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)
		if res, _ := p.Fetch(ctx, 37.5, -95.5, 3); res.Source != SourceSynthetic {
			t.Fatalf("Source = %s, want synthetic", res.Source)
		}
		cancel()
	}

	slow.Store(false)
	res, err := p.Fetch(context.Background(), 37.5, -95.5, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if res.Source != SourceLive {
		t.Errorf("Source = %s, want live (upstream: %v)", res.Source, res.Upstream)
	}
}

func TestFetch_OpenBreakerIsNotArchived(t *testing.T) {
	p, hits := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	archive := &recordingArchive{}
	p.SetArchive(archive)

	for i := 0; i < 5; i++ {
		if _, err := p.Fetch(context.Background(), 37.5, -95.5, 3); err != nil {
			t.Fatalf("Fetch: %v", err)
		}
	}
	if got := atomic.LoadInt32(hits); got != 3 {
		t.Fatalf("upstream hits = %d, want 3", got)
	}
	if len(archive.records) != 3 {
		t.Errorf("records = %d, want 3 (one per request sent)", len(archive.records))
	}
}
