// Package farm runs single-player harvest rounds: fetch the climate for a
// scenario, show what it means, then score the player's decision.
package farm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lox/harvesthorizon/internal/climate"
	"github.com/lox/harvesthorizon/internal/metrics"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/scoring"
)

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=./mocks/farm_mock.go -package=mocks . ClimateSource,HarvestLog

var ErrSessionNotFound = errors.New("session not found")

// ClimateSource is satisfied by *climate.Provider.
type ClimateSource interface {
	Fetch(ctx context.Context, lat, lon float64, windowDays int) (climate.Result, error)
}

// HarvestLog persists scored rounds.
type HarvestLog interface {
	InsertHarvest(h models.Harvest) error
}

// Session is one round in progress. The series is owned by the session and
// never modified after Start.
type Session struct {
	ID              string
	Scenario        models.ScenarioConfig
	Series          models.ClimateSeries
	Source          climate.Source
	Notice          string
	Summary         models.ConditionSummary
	Recommendations []scoring.Recommendation
	StartedAt       time.Time
}

// Start fetches climate data for the scenario and prepares the round.
func Start(ctx context.Context, src ClimateSource, sc models.ScenarioConfig, windowDays int) (*Session, error) {
	res, err := src.Fetch(ctx, sc.Location.Lat, sc.Location.Lon, windowDays)
	if err != nil {
		return nil, fmt.Errorf("fetch climate for %s: %w", sc.ID, err)
	}

	summary, err := scoring.Summarize(res.Series)
	if err != nil {
		return nil, fmt.Errorf("summarize %s: %w", sc.ID, err)
	}

	s := &Session{
		ID:              uuid.NewString(),
		Scenario:        sc,
		Series:          res.Series,
		Source:          res.Source,
		Summary:         summary,
		Recommendations: scoring.Recommend(summary),
		StartedAt:       time.Now().UTC(),
	}
	if res.Source == climate.SourceSynthetic {
		s.Notice = "NASA POWER data is unavailable right now; this round uses simulated conditions."
	}
	return s, nil
}

// Harvest validates and scores a decision for this round.
func (s *Session) Harvest(d models.Decision) (models.Harvest, error) {
	if err := scoring.ValidateDecision(d); err != nil {
		return models.Harvest{}, err
	}
	return models.Harvest{
		ID:            uuid.NewString(),
		ScenarioID:    s.Scenario.ID,
		Decision:      d,
		Summary:       s.Summary,
		Result:        scoring.Score(s.Summary, d, s.Scenario.Optimal),
		ClimateSource: string(s.Source),
		CreatedAt:     time.Now().UTC(),
	}, nil
}

const DefaultMaxSessions = 256

// Manager keeps recent sessions in memory for the web flow and records
// harvests in the log when one is configured.
type Manager struct {
	src         ClimateSource
	harvests    HarvestLog
	windowDays  int
	maxSessions int

	mu       sync.Mutex
	sessions map[string]*Session
	order    []string
}

func NewManager(src ClimateSource, harvests HarvestLog, windowDays int) *Manager {
	return &Manager{
		src:         src,
		harvests:    harvests,
		windowDays:  windowDays,
		maxSessions: DefaultMaxSessions,
		sessions:    make(map[string]*Session),
	}
}

// Start begins a round for the named scenario.
func (m *Manager) Start(ctx context.Context, scenarioID string) (*Session, error) {
	sc, err := scenario.Get(scenarioID)
	if err != nil {
		return nil, err
	}
	s, err := Start(ctx, m.src, sc, m.windowDays)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.order = append(m.order, s.ID)
	for len(m.order) > m.maxSessions {
		delete(m.sessions, m.order[0])
		m.order = m.order[1:]
	}
	m.mu.Unlock()

	log.Printf("farm: session %s started for %s (%s data)", s.ID, sc.ID, s.Source)
	return s, nil
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Harvest scores a decision for a running session and records it.
func (m *Manager) Harvest(id string, d models.Decision) (models.Harvest, error) {
	s, ok := m.Get(id)
	if !ok {
		return models.Harvest{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return m.record(s, d)
}

// Play runs a whole round in one call.
func (m *Manager) Play(ctx context.Context, scenarioID string, d models.Decision) (*Session, models.Harvest, error) {
	if err := scoring.ValidateDecision(d); err != nil {
		return nil, models.Harvest{}, err
	}
	s, err := m.Start(ctx, scenarioID)
	if err != nil {
		return nil, models.Harvest{}, err
	}
	h, err := m.record(s, d)
	return s, h, err
}

func (m *Manager) record(s *Session, d models.Decision) (models.Harvest, error) {
	h, err := s.Harvest(d)
	if err != nil {
		return models.Harvest{}, err
	}

	metrics.HarvestsScored.WithLabelValues(h.ScenarioID).Inc()
	metrics.HarvestYield.Observe(h.Result.YieldPercent)
	log.Printf("farm: harvest %s: %s irrigation=%d fertilizer=%d yield=%.1f%%",
		h.ID, h.ScenarioID, d.Irrigation, d.Fertilizer, h.Result.YieldPercent)

	if m.harvests != nil {
		if err := m.harvests.InsertHarvest(h); err != nil {
			log.Printf("farm: record harvest %s: %v", h.ID, err)
		}
	}
	return h, nil
}
