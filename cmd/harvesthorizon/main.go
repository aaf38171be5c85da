package main

import (
	"fmt"
	"log"
	"os"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"

	"github.com/lox/harvesthorizon/internal/board"
	"github.com/lox/harvesthorizon/internal/climate"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/store"
)

// Globals are shared by every command.
type Globals struct {
	DB           string `help:"Path to SQLite database." default:"data/harvesthorizon.db" env:"HARVEST_DB"`
	PowerURL     string `help:"NASA POWER daily point endpoint." default:"${power_url}" env:"POWER_BASE_URL"`
	WindowDays   int    `help:"Days of climate history per round." default:"30" env:"WINDOW_DAYS"`
	BoardState   string `help:"Board game state file." default:"data/game_state.json" env:"BOARD_STATE"`
	BoardContent string `help:"Board content YAML; the built-in board is used when empty." env:"BOARD_CONTENT"`
}

type CLI struct {
	Globals

	Serve     ServeCmd     `cmd:"" help:"Run the web dashboard and the climate refresh scheduler."`
	Scenarios ScenariosCmd `cmd:"" help:"List the farm scenarios."`
	Climate   ClimateCmd   `cmd:"" help:"Show the climate summary and recommendations for a scenario."`
	Play      PlayCmd      `cmd:"" help:"Play one round from the command line."`
	Board     BoardCmd     `cmd:"" help:"Play the board game."`
	History   HistoryCmd   `cmd:"" help:"Show recorded harvests."`
	Fetches   FetchesCmd   `cmd:"" help:"Show NASA POWER fetch health and the payload archive."`
	Payload   PayloadCmd   `cmd:"" help:"Print an archived NASA POWER response."`
}

func main() {
	log.SetOutput(os.Stderr)

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("harvesthorizon"),
		kong.Description("A farming game driven by NASA POWER climate data."),
		kong.UsageOnError(),
		kong.Vars{
			"power_url":        climate.DefaultBaseURL,
			"default_scenario": scenario.DefaultID,
		},
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)
	ctx.FatalIfErrorf(ctx.Run(&cli.Globals))
}

func (g *Globals) openStore() (*store.Store, error) {
	st, err := store.Open(g.DB)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

// provider returns a NASA POWER client that archives every attempt in st.
func (g *Globals) provider(st *store.Store) *climate.Provider {
	p := climate.NewProvider(g.PowerURL)
	if st != nil {
		p.SetArchive(st)
	}
	return p
}

func (g *Globals) game() (*board.Game, error) {
	content, err := board.DefaultContent()
	if g.BoardContent != "" {
		content, err = board.LoadContent(g.BoardContent)
	}
	if err != nil {
		return nil, fmt.Errorf("load board content: %w", err)
	}
	return board.NewGame(content, board.NewFileStore(g.BoardState)), nil
}
