package api

import (
	"time"

	"github.com/lox/harvesthorizon/internal/board"
	"github.com/lox/harvesthorizon/internal/farm"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scoring"
	"github.com/lox/harvesthorizon/internal/store"
)

// IndexData is the scenario picker plus the harvest log.
type IndexData struct {
	Palette       Palette
	Scenarios     []models.ScenarioConfig
	Recent        []models.Harvest
	Stats         []store.HarvestStats
	ImagesEnabled bool
	Error         string
	Suggestions   []string
}

// PlayData is one round waiting for a decision.
type PlayData struct {
	Palette       Palette
	Session       *farm.Session
	Regime        scoring.Regime
	Days          []DayRow
	Decision      models.Decision
	ImagesEnabled bool
	Error         string
}

// DayRow is one day of the climate table.
type DayRow struct {
	Date           time.Time
	Temperature    float64
	Precipitation  float64
	SoilMoisture   float64
	SolarRadiation float64
}

// ResultData shows a scored harvest.
type ResultData struct {
	Palette  Palette
	Harvest  models.Harvest
	Scenario models.ScenarioConfig
	Regime   scoring.Regime
	Notice   string
	CardURL  string
}

// BoardPageData renders the board game.
type BoardPageData struct {
	Palette Palette
	State   *board.State
	Content *board.Content
	Tiles   []TileView
	Current *board.Player
}

// TileView is a board tile with the players standing on it.
type TileView struct {
	Index   int
	Tile    board.Tile
	Players []string
}

func dayRows(s models.ClimateSeries) []DayRow {
	rows := make([]DayRow, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		row := DayRow{
			Temperature:    s.Temperature[i],
			Precipitation:  s.Precipitation[i],
			SoilMoisture:   s.SoilMoisture[i],
			SolarRadiation: s.SolarRadiation[i],
		}
		if i < len(s.Dates) {
			row.Date = s.Dates[i]
		}
		rows = append(rows, row)
	}
	return rows
}

func tileViews(st *board.State, content *board.Content) []TileView {
	tiles := make([]TileView, len(content.Tiles))
	for i, t := range content.Tiles {
		tiles[i] = TileView{Index: i, Tile: t}
	}
	for _, p := range st.Players {
		if p.Position >= 0 && p.Position < len(tiles) {
			tiles[p.Position].Players = append(tiles[p.Position].Players, p.Name)
		}
	}
	return tiles
}
