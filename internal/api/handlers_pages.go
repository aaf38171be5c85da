package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/lox/harvesthorizon/internal/farm"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/scoring"
)

const recentOnIndex = 10

func (s *Server) render(w http.ResponseWriter, status int, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		log.Printf("api: template %s: %v", name, err)
	}
}

func (s *Server) indexData() IndexData {
	data := IndexData{
		Palette:       DefaultPalette,
		Scenarios:     scenario.All(),
		ImagesEnabled: s.images.Enabled(),
	}
	if s.store == nil {
		return data
	}

	recent, err := s.store.RecentHarvests(recentOnIndex)
	if err != nil {
		log.Printf("api: recent harvests: %v", err)
	}
	data.Recent = recent

	stats, err := s.store.HarvestStatsByScenario()
	if err != nil {
		log.Printf("api: harvest stats: %v", err)
	}
	data.Stats = stats
	return data
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "index.html", s.indexData())
}

func (s *Server) handleStartPlay(w http.ResponseWriter, r *http.Request) {
	if s.climate == nil {
		http.Error(w, errNoClimate.Error(), http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	session, err := s.sessions.Start(r.Context(), r.FormValue("scenario"))
	if err != nil {
		data := s.indexData()
		data.Error = err.Error()
		status := http.StatusInternalServerError
		var unknown *scenario.UnknownError
		if errors.As(err, &unknown) {
			data.Suggestions = unknown.Suggestions
			status = http.StatusBadRequest
		}
		s.render(w, status, "index.html", data)
		return
	}

	http.Redirect(w, r, "/play/"+session.ID, http.StatusSeeOther)
}

func (s *Server) playData(session *farm.Session, d models.Decision) PlayData {
	regime := scoring.RegimeOf(session.Summary)
	return PlayData{
		Palette:       PaletteFor(regime),
		Session:       session,
		Regime:        regime,
		Days:          dayRows(session.Series),
		Decision:      d,
		ImagesEnabled: s.images.Enabled(),
	}
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	s.render(w, http.StatusOK, "play.html", s.playData(session, models.Decision{Irrigation: 50, Fertilizer: 50}))
}

func (s *Server) handlePlayHarvest(w http.ResponseWriter, r *http.Request) {
	session, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	irrigation, errI := strconv.Atoi(r.FormValue("irrigation"))
	fertilizer, errF := strconv.Atoi(r.FormValue("fertilizer"))
	d := models.Decision{Irrigation: irrigation, Fertilizer: fertilizer}
	if errI != nil || errF != nil {
		data := s.playData(session, d)
		data.Error = "Irrigation and fertilizer must be whole numbers."
		s.render(w, http.StatusBadRequest, "play.html", data)
		return
	}

	h, err := s.sessions.Harvest(session.ID, d)
	switch {
	case errors.Is(err, scoring.ErrInvalidDecision):
		data := s.playData(session, d)
		data.Error = err.Error()
		s.render(w, http.StatusBadRequest, "play.html", data)
		return
	case errors.Is(err, farm.ErrSessionNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.render(w, http.StatusOK, "result.html", resultData(h, session.Scenario, session.Notice))
}

func (s *Server) handleHarvestPage(w http.ResponseWriter, r *http.Request) {
	h, err := s.lookupHarvest(r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if h == nil {
		http.NotFound(w, r)
		return
	}

	sc, err := scenario.Get(h.ScenarioID)
	if err != nil {
		sc = models.ScenarioConfig{ID: h.ScenarioID, Name: h.ScenarioID}
	}
	s.render(w, http.StatusOK, "result.html", resultData(*h, sc, ""))
}

func resultData(h models.Harvest, sc models.ScenarioConfig, notice string) ResultData {
	regime := scoring.RegimeOf(h.Summary)
	return ResultData{
		Palette:  PaletteFor(regime),
		Harvest:  h,
		Scenario: sc,
		Regime:   regime,
		Notice:   notice,
		CardURL:  "/harvest-card/" + h.ID,
	}
}

func (s *Server) handleBoardPage(w http.ResponseWriter, r *http.Request) {
	if s.game == nil {
		http.Error(w, errNoBoard.Error(), http.StatusServiceUnavailable)
		return
	}
	view, err := s.boardView()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.render(w, http.StatusOK, "board.html", BoardPageData{
		Palette: DefaultPalette,
		State:   view.State,
		Content: view.Content,
		Tiles:   tileViews(view.State, view.Content),
		Current: view.State.Current(),
	})
}
