package farm_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/lox/harvesthorizon/internal/climate"
	"github.com/lox/harvesthorizon/internal/farm"
	"github.com/lox/harvesthorizon/internal/farm/mocks"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/scoring"
)

func drySeries() models.ClimateSeries {
	return models.ClimateSeries{
		Temperature:    []float64{31, 33, 32},
		Precipitation:  []float64{1, 2, 1.5},
		SoilMoisture:   []float64{0.2, 0.3, 0.25},
		SolarRadiation: []float64{6, 6.5, 7},
	}
}

func TestStart(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockClimateSource(ctrl)

	sc, _ := scenario.Get("wheat_kansas")
	src.EXPECT().
		Fetch(gomock.Any(), 37.5, -95.5, 30).
		Return(climate.Result{Series: drySeries(), Source: climate.SourceLive}, nil)

	s, err := farm.Start(context.Background(), src, sc, 30)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.ID == "" {
		t.Error("session has no ID")
	}
	if s.Source != climate.SourceLive || s.Notice != "" {
		t.Errorf("Source = %s, Notice = %q; want live with no notice", s.Source, s.Notice)
	}
	if s.Summary.Days != 3 || s.Summary.AvgTemperature != 32 {
		t.Errorf("Summary = %+v", s.Summary)
	}

	want := []scoring.Kind{scoring.KindLowSoilMoisture, scoring.KindLowRainfall, scoring.KindHighTemperature}
	if len(s.Recommendations) != len(want) {
		t.Fatalf("Recommendations = %v, want kinds %v", s.Recommendations, want)
	}
	for i, k := range want {
		if s.Recommendations[i].Kind != k {
			t.Errorf("Recommendations[%d] = %s, want %s", i, s.Recommendations[i].Kind, k)
		}
	}
}

func TestStart_SyntheticNotice(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockClimateSource(ctrl)

	sc, _ := scenario.Get("corn_iowa")
	src.EXPECT().
		Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(climate.Result{
			Series:   drySeries(),
			Source:   climate.SourceSynthetic,
			Upstream: climate.ErrUpstreamUnavailable,
		}, nil)

	s, err := farm.Start(context.Background(), src, sc, 30)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Source != climate.SourceSynthetic || s.Notice == "" {
		t.Errorf("Source = %s, Notice = %q; want synthetic with a notice", s.Source, s.Notice)
	}
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name    string
		result  climate.Result
		err     error
		wantErr error
	}{
		{
			name:    "invalid coordinates",
			err:     climate.ErrInvalidCoordinates,
			wantErr: climate.ErrInvalidCoordinates,
		},
		{
			name:    "empty series",
			result:  climate.Result{Source: climate.SourceLive},
			wantErr: scoring.ErrEmptySeries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			src := mocks.NewMockClimateSource(ctrl)
			src.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(tt.result, tt.err)

			sc, _ := scenario.Get("rice_california")
			_, err := farm.Start(context.Background(), src, sc, 30)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSessionHarvest(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockClimateSource(ctrl)
	src.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(climate.Result{Series: drySeries(), Source: climate.SourceLive}, nil)

	sc, _ := scenario.Get("wheat_kansas")
	s, err := farm.Start(context.Background(), src, sc, 30)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	h, err := s.Harvest(models.Decision{Irrigation: 60, Fertilizer: 50})
	if err != nil {
		t.Fatalf("Harvest: %v", err)
	}
	if h.Result.YieldPercent != 140 {
		t.Errorf("YieldPercent = %v, want 140", h.Result.YieldPercent)
	}
	if h.ID == "" || h.ScenarioID != "wheat_kansas" || h.ClimateSource != "live" {
		t.Errorf("harvest = %+v", h)
	}

	if _, err := s.Harvest(models.Decision{Irrigation: 150}); !errors.Is(err, scoring.ErrInvalidDecision) {
		t.Errorf("err = %v, want ErrInvalidDecision", err)
	}
}

func TestManager(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockClimateSource(ctrl)
	harvests := mocks.NewMockHarvestLog(ctrl)

	src.EXPECT().Fetch(gomock.Any(), 42.0, -93.5, 14).
		Return(climate.Result{Series: drySeries(), Source: climate.SourceLive}, nil)
	harvests.EXPECT().InsertHarvest(gomock.Any()).DoAndReturn(func(h models.Harvest) error {
		if h.ScenarioID != "corn_iowa" {
			t.Errorf("InsertHarvest scenario = %s, want corn_iowa", h.ScenarioID)
		}
		return nil
	})

	m := farm.NewManager(src, harvests, 14)
	s, err := m.Start(context.Background(), "corn_iowa")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got, ok := m.Get(s.ID); !ok || got != s {
		t.Fatalf("Get(%s) = %v, %v", s.ID, got, ok)
	}

	if _, err := m.Harvest(s.ID, models.Decision{Irrigation: 60, Fertilizer: 55}); err != nil {
		t.Fatalf("Harvest: %v", err)
	}

	if _, err := m.Harvest("nope", models.Decision{}); !errors.Is(err, farm.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_LogFailureDoesNotFailHarvest(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockClimateSource(ctrl)
	harvests := mocks.NewMockHarvestLog(ctrl)

	src.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(climate.Result{Series: drySeries(), Source: climate.SourceLive}, nil)
	harvests.EXPECT().InsertHarvest(gomock.Any()).Return(errors.New("disk full"))

	m := farm.NewManager(src, harvests, 30)
	_, h, err := m.Play(context.Background(), "wheat_kansas", models.Decision{Irrigation: 60, Fertilizer: 50})
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if h.Result.YieldPercent != 140 {
		t.Errorf("YieldPercent = %v, want 140", h.Result.YieldPercent)
	}
}

func TestManager_PlayRejectsBeforeFetching(t *testing.T) {
	ctrl := gomock.NewController(t)
	src := mocks.NewMockClimateSource(ctrl)

	m := farm.NewManager(src, nil, 30)

	if _, _, err := m.Play(context.Background(), "wheat_kansas", models.Decision{Fertilizer: -5}); !errors.Is(err, scoring.ErrInvalidDecision) {
		t.Errorf("err = %v, want ErrInvalidDecision", err)
	}
	if _, _, err := m.Play(context.Background(), "barley", models.Decision{}); !errors.Is(err, scenario.ErrUnknownScenario) {
		t.Errorf("err = %v, want ErrUnknownScenario", err)
	}
}
