// Package ingest keeps the climate cache warm on a schedule.
package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lox/harvesthorizon/internal/climate"
	"github.com/lox/harvesthorizon/internal/imagegen"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scoring"
)

const (
	DefaultRefreshSchedule = "0 5 * * *"
	DefaultCleanupSchedule = "30 3 * * 0"
	DefaultRetentionDays   = 90
)

// Refresher re-fetches a climate window, bypassing any cache.
type Refresher interface {
	Refresh(ctx context.Context, lat, lon float64, windowDays int) (climate.Result, error)
}

// PayloadCleaner deletes archived payloads past retention.
type PayloadCleaner interface {
	CleanupOldRawPayloads(retentionDays int) (int64, error)
}

type Config struct {
	RefreshSchedule string
	CleanupSchedule string
	RetentionDays   int
	WindowDays      int
}

type Scheduler struct {
	climate   Refresher
	cleaner   PayloadCleaner
	scenarios []models.ScenarioConfig
	cfg       Config
	images    *imagegen.Service
	cron      *cron.Cron
}

func NewScheduler(refresher Refresher, cleaner PayloadCleaner, scenarios []models.ScenarioConfig, cfg Config) *Scheduler {
	if cfg.RefreshSchedule == "" {
		cfg.RefreshSchedule = DefaultRefreshSchedule
	}
	if cfg.CleanupSchedule == "" {
		cfg.CleanupSchedule = DefaultCleanupSchedule
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = DefaultRetentionDays
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = climate.DefaultWindowDays
	}
	return &Scheduler{
		climate:   refresher,
		cleaner:   cleaner,
		scenarios: scenarios,
		cfg:       cfg,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger))),
	}
}

// SetImageService enables banner pre-generation after each refresh.
func (s *Scheduler) SetImageService(images *imagegen.Service) {
	s.images = images
}

// Run warms the cache, then runs the scheduled jobs until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.cfg.RefreshSchedule, func() { s.RefreshAll(ctx) }); err != nil {
		return fmt.Errorf("add refresh job: %w", err)
	}
	if s.cleaner != nil {
		if _, err := s.cron.AddFunc(s.cfg.CleanupSchedule, func() { s.Cleanup() }); err != nil {
			return fmt.Errorf("add cleanup job: %w", err)
		}
	}

	s.RefreshAll(ctx)

	log.Printf("ingest: scheduler started (refresh %q, cleanup %q)", s.cfg.RefreshSchedule, s.cfg.CleanupSchedule)
	s.cron.Start()

	<-ctx.Done()
	log.Println("ingest: shutting down")
	<-s.cron.Stop().Done()
	return nil
}

// RefreshResult reports one scenario's refresh.
type RefreshResult struct {
	ScenarioID string
	Source     climate.Source
	Days       int
	Flagged    int
	Err        error
}

// RefreshAll refreshes every scenario's climate window in order.
func (s *Scheduler) RefreshAll(ctx context.Context) []RefreshResult {
	started := time.Now()
	results := make([]RefreshResult, 0, len(s.scenarios))
	live := 0

	for _, sc := range s.scenarios {
		if ctx.Err() != nil {
			break
		}
		res, err := s.climate.Refresh(ctx, sc.Location.Lat, sc.Location.Lon, s.cfg.WindowDays)
		r := RefreshResult{ScenarioID: sc.ID, Source: res.Source, Days: res.Series.Len(), Err: err}

		switch {
		case err != nil:
			log.Printf("ingest: refresh %s: %v", sc.ID, err)
		case res.Source == climate.SourceLive:
			live++
			for _, d := range ValidateSeries(res.Series) {
				log.Printf("ingest: %s %s flagged %s", sc.ID, d.Date.Format("2006-01-02"), QualityFlagsToJSON(d.Flags))
				r.Flagged++
			}
		default:
			log.Printf("ingest: refresh %s: %v", sc.ID, res.Upstream)
		}

		results = append(results, r)
		if err == nil {
			s.ensureBanner(ctx, sc, res.Series)
		}
	}

	log.Printf("ingest: refreshed %d/%d scenarios live in %s", live, len(s.scenarios), time.Since(started).Round(time.Millisecond))
	return results
}

func (s *Scheduler) ensureBanner(ctx context.Context, sc models.ScenarioConfig, series models.ClimateSeries) {
	if !s.images.Enabled() {
		return
	}
	summary, err := scoring.Summarize(series)
	if err != nil {
		return
	}
	b := imagegen.Banner{Scenario: sc, Regime: scoring.RegimeOf(summary)}
	if _, err := s.images.Banner(ctx, b); err != nil {
		log.Printf("ingest: banner %s: %v", b.Key(), err)
	}
}

// Cleanup removes archived payloads older than the retention period.
func (s *Scheduler) Cleanup() {
	if s.cleaner == nil {
		return
	}
	n, err := s.cleaner.CleanupOldRawPayloads(s.cfg.RetentionDays)
	if err != nil {
		log.Printf("ingest: cleanup raw payloads: %v", err)
		return
	}
	log.Printf("ingest: removed %d raw payloads older than %d days", n, s.cfg.RetentionDays)
}
