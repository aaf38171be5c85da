// Package api serves the web dashboard and the JSON API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/harvesthorizon/internal/board"
	"github.com/lox/harvesthorizon/internal/climate"
	"github.com/lox/harvesthorizon/internal/farm"
	"github.com/lox/harvesthorizon/internal/imagegen"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/store"
)

const (
	DefaultPort         = "8080"
	defaultBoardPoll    = 2 * time.Second
	harvestCardTTL      = 10 * time.Minute
	defaultHistoryLimit = 20
)

// Config wires the server to the rest of the application. Images and Game
// are optional.
type Config struct {
	Port       string
	Store      *store.Store
	Climate    farm.ClimateSource
	Game       *board.Game
	Images     *imagegen.Service
	WindowDays int

	// BoardPollInterval is how often /ws/board checks the state file.
	BoardPollInterval time.Duration
}

type Server struct {
	store      *store.Store
	climate    farm.ClimateSource
	sessions   *farm.Manager
	game       *board.Game
	images     *imagegen.Service
	cards      *imagegen.CardCache
	port       string
	windowDays int
	boardPoll  time.Duration
	tmpl       *template.Template
	started    time.Time
}

func NewServer(cfg Config) *Server {
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = climate.DefaultWindowDays
	}
	if cfg.BoardPollInterval <= 0 {
		cfg.BoardPollInterval = defaultBoardPoll
	}
	if cfg.Images == nil {
		cfg.Images = imagegen.NewService(nil, imagegen.NewCache(imagegen.DefaultCacheDir, 0))
	}

	var harvests farm.HarvestLog
	if cfg.Store != nil {
		harvests = cfg.Store
	}

	return &Server{
		store:      cfg.Store,
		climate:    cfg.Climate,
		sessions:   farm.NewManager(cfg.Climate, harvests, cfg.WindowDays),
		game:       cfg.Game,
		images:     cfg.Images,
		cards:      imagegen.NewCardCache(harvestCardTTL),
		port:       cfg.Port,
		windowDays: cfg.WindowDays,
		boardPoll:  cfg.BoardPollInterval,
		tmpl:       newTemplates(),
		started:    time.Now(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /play", s.handleStartPlay)
	mux.HandleFunc("GET /play/{id}", s.handlePlay)
	mux.HandleFunc("POST /play/{id}/harvest", s.handlePlayHarvest)
	mux.HandleFunc("GET /harvests/{id}", s.handleHarvestPage)
	mux.HandleFunc("GET /board", s.handleBoardPage)

	mux.HandleFunc("GET /api/scenarios", s.handleAPIScenarios)
	mux.HandleFunc("GET /api/scenarios/{id}/climate", s.handleAPIClimate)
	mux.HandleFunc("POST /api/harvest", s.handleAPIHarvest)
	mux.HandleFunc("GET /api/harvests", s.handleAPIHarvests)
	mux.HandleFunc("GET /api/stats", s.handleAPIStats)

	mux.HandleFunc("GET /api/board", s.handleAPIBoard)
	mux.HandleFunc("POST /api/board/roll", s.handleBoardAction(actionRoll))
	mux.HandleFunc("POST /api/board/choose", s.handleBoardAction(actionChoose))
	mux.HandleFunc("POST /api/board/buy", s.handleBoardAction(actionBuy))
	mux.HandleFunc("POST /api/board/skip", s.handleBoardAction(actionSkip))
	mux.HandleFunc("POST /api/board/reset", s.handleBoardAction(actionReset))
	mux.HandleFunc("GET /ws/board", s.handleBoardStream)

	mux.HandleFunc("GET /scenario-image/{id}", s.handleScenarioImage)
	mux.HandleFunc("GET /harvest-card/{id}", s.handleHarvestCard)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /health", s.handleHealth)
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("api: listening on :%s", s.port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type HealthStatus struct {
	Status           string   `json:"status"`
	Uptime           string   `json:"uptime"`
	MigrationVersion int      `json:"migration_version,omitempty"`
	Scenarios        []string `json:"scenarios"`
	ImagesEnabled    bool     `json:"images_enabled"`
	BoardEnabled     bool     `json:"board_enabled"`
	Error            string   `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthStatus{
		Status:        "ok",
		Uptime:        time.Since(s.started).Round(time.Second).String(),
		Scenarios:     scenario.IDs(),
		ImagesEnabled: s.images.Enabled(),
		BoardEnabled:  s.game != nil,
	}

	status := http.StatusOK
	if s.store != nil {
		if err := s.store.Ping(); err != nil {
			health.Status = "error"
			health.Error = err.Error()
			status = http.StatusServiceUnavailable
		} else if v, err := s.store.MigrationVersion(); err == nil {
			health.MigrationVersion = v
		}
	}

	writeJSON(w, status, health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: encode response: %v", err)
	}
}

type errorResponse struct {
	Error       string   `json:"error"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func writeError(w http.ResponseWriter, status int, err error) {
	resp := errorResponse{Error: err.Error()}
	var unknown *scenario.UnknownError
	if errors.As(err, &unknown) {
		resp.Suggestions = unknown.Suggestions
	}
	writeJSON(w, status, resp)
}
