package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/lox/harvesthorizon/internal/farm"
	"github.com/lox/harvesthorizon/internal/models"
	"github.com/lox/harvesthorizon/internal/scenario"
	"github.com/lox/harvesthorizon/internal/scoring"
	"github.com/lox/harvesthorizon/internal/store"
)

var stdout io.Writer = os.Stdout

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

type ScenariosCmd struct{}

func (c *ScenariosCmd) Run(g *Globals) error {
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDIFFICULTY\tLOCATION\tOPTIMAL (IRR/FERT)")
	for _, sc := range scenario.All() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.1f, %.1f\t%d/%d\n",
			sc.ID, sc.Name, sc.Difficulty, sc.Location.Lat, sc.Location.Lon, sc.Optimal.Irrigation, sc.Optimal.Fertilizer)
	}
	return tw.Flush()
}

type ClimateCmd struct {
	Scenario string `arg:"" optional:"" help:"Scenario ID." default:"${default_scenario}"`
	Days     int    `help:"Window length in days; defaults to --window-days."`
	JSON     bool   `help:"Print the full series as JSON."`
}

func (c *ClimateCmd) Run(g *Globals) error {
	sc, err := scenario.Get(c.Scenario)
	if err != nil {
		return err
	}
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	days := c.Days
	if days <= 0 {
		days = g.WindowDays
	}

	ctx, cancel := signalContext()
	defer cancel()

	session, err := farm.Start(ctx, g.provider(st), sc, days)
	if err != nil {
		return err
	}

	if c.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"scenario":        sc,
			"source":          session.Source,
			"series":          session.Series,
			"summary":         session.Summary,
			"regime":          scoring.RegimeOf(session.Summary),
			"recommendations": session.Recommendations,
		})
	}

	printSession(session)
	return nil
}

func printSession(s *farm.Session) {
	fmt.Fprintf(stdout, "%s (%s data, %d days)\n", s.Scenario.Name, s.Source, s.Summary.Days)
	if s.Notice != "" {
		fmt.Fprintf(stdout, "Note: %s\n", s.Notice)
	}
	fmt.Fprintf(stdout, "  Avg Temperature:   %.1f°C\n", s.Summary.AvgTemperature)
	fmt.Fprintf(stdout, "  Avg Precipitation: %.2f mm/day\n", s.Summary.AvgPrecipitation)
	fmt.Fprintf(stdout, "  Avg Soil Moisture: %.2f (%s)\n", s.Summary.AvgSoilMoisture, scoring.RegimeOf(s.Summary))
	fmt.Fprintf(stdout, "  Avg Solar:         %.2f kWh/m²/day\n", s.Summary.AvgSolarRadiation)
	fmt.Fprintln(stdout, "Recommendations:")
	for _, msg := range scoring.Messages(s.Recommendations) {
		fmt.Fprintf(stdout, "  - %s\n", msg)
	}
}

type PlayCmd struct {
	Scenario   string `arg:"" optional:"" help:"Scenario ID." default:"${default_scenario}"`
	Irrigation int    `short:"i" required:"" help:"Irrigation level, 0-100."`
	Fertilizer int    `short:"f" required:"" help:"Fertilizer level, 0-100."`
}

func (c *PlayCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, cancel := signalContext()
	defer cancel()

	m := farm.NewManager(g.provider(st), st, g.WindowDays)
	session, h, err := m.Play(ctx, c.Scenario, models.Decision{Irrigation: c.Irrigation, Fertilizer: c.Fertilizer})
	if err != nil {
		return err
	}

	printSession(session)
	fmt.Fprintln(stdout)
	fmt.Fprintf(stdout, "Yield: %.1f%%\n", h.Result.YieldPercent)
	for _, line := range h.Result.Feedback {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintf(stdout, "Water used: %d L, fertilizer cost: $%d\n", h.Result.WaterUsage, h.Result.FertilizerCost)
	fmt.Fprintf(stdout, "Harvest %s recorded.\n", h.ID)
	return nil
}

type HistoryCmd struct {
	Scenario string `help:"Show the best harvests for this scenario instead of the most recent."`
	Limit    int    `help:"Number of harvests to show." default:"10"`
}

func (c *HistoryCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var harvests []models.Harvest
	if c.Scenario != "" {
		sc, err := scenario.Get(c.Scenario)
		if err != nil {
			return err
		}
		harvests, err = st.TopHarvests(sc.ID, c.Limit)
		if err != nil {
			return fmt.Errorf("top harvests: %w", err)
		}
	} else {
		harvests, err = st.RecentHarvests(c.Limit)
		if err != nil {
			return fmt.Errorf("recent harvests: %w", err)
		}
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tSCENARIO\tIRR\tFERT\tYIELD\tDATA")
	for _, h := range harvests {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%.1f%%\t%s\n",
			h.CreatedAt.Local().Format("2006-01-02 15:04"), h.ScenarioID, h.Decision.Irrigation, h.Decision.Fertilizer,
			h.Result.YieldPercent, h.ClimateSource)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	stats, err := st.HarvestStatsByScenario()
	if err != nil {
		return fmt.Errorf("harvest stats: %w", err)
	}
	if len(stats) == 0 {
		return nil
	}
	fmt.Fprintln(stdout)
	tw = tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tROUNDS\tAVG\tBEST\tAVG WATER\tSIMULATED")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%.1f%%\t%.0f L\t%.0f%%\n",
			s.ScenarioID, s.Rounds, s.AvgYield, s.BestYield, s.AvgWaterUse, s.SyntheticPct)
	}
	return tw.Flush()
}

type FetchesCmd struct {
	Days     int `help:"Days of fetch history to summarise." default:"7"`
	Errors   int `help:"Number of recent errors to show." default:"5"`
	Payloads int `help:"Number of recent archived payloads to list." default:"5"`
}

func (c *FetchesCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	health, err := st.FetchHealth(c.Days)
	if err != nil {
		return fmt.Errorf("fetch health: %w", err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tLOCATION\tRUNS\tOK\tFAILED\tDAYS")
	for _, h := range health {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", h.Date, h.LocationID, h.TotalRuns, h.SuccessRuns, h.FailedRuns, h.DaysParsed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	runs, err := st.RecentFetchErrors(c.Errors)
	if err != nil {
		return fmt.Errorf("recent fetch errors: %w", err)
	}
	if len(runs) > 0 {
		fmt.Fprintln(stdout, "\nRecent errors:")
		for _, r := range runs {
			fmt.Fprintf(stdout, "  %s %s: %s\n", r.StartedAt.Local().Format("2006-01-02 15:04"), r.LocationID,
				strings.TrimSpace(r.ErrorMessage.String))
		}
	}

	return c.printArchive(st)
}

func (c *FetchesCmd) printArchive(st *store.Store) error {
	stats, err := st.GetRawPayloadStats()
	if err != nil {
		return fmt.Errorf("raw payload stats: %w", err)
	}
	fmt.Fprintf(stdout, "\nArchive: %d payloads, %.1f KB compressed\n", stats.TotalCount, float64(stats.TotalSizeBytes)/1024)
	if stats.TotalCount == 0 {
		return nil
	}
	fmt.Fprintf(stdout, "  %s .. %s\n", stats.OldestFetchedAt.Local().Format("2006-01-02"),
		stats.NewestFetchedAt.Local().Format("2006-01-02"))
	locations := make([]string, 0, len(stats.CountByLocation))
	for loc := range stats.CountByLocation {
		locations = append(locations, loc)
	}
	sort.Strings(locations)
	for _, loc := range locations {
		fmt.Fprintf(stdout, "  %s: %d\n", loc, stats.CountByLocation[loc])
	}

	payloads, err := st.RecentRawPayloads(c.Payloads)
	if err != nil {
		return fmt.Errorf("recent payloads: %w", err)
	}
	if len(payloads) == 0 {
		return nil
	}
	fmt.Fprintln(stdout)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFETCHED\tLOCATION\tSHA256")
	for _, p := range payloads {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", p.ID, p.FetchedAt.Local().Format("2006-01-02 15:04"), p.LocationID, p.PayloadHash[:12])
	}
	return tw.Flush()
}

// PayloadCmd prints an archived NASA POWER response so it can be replayed.
type PayloadCmd struct {
	Ref string `arg:"" help:"Payload ID, or the sha256 of the body (a prefix is not enough)."`
}

func (c *PayloadCmd) Run(g *Globals) error {
	st, err := g.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := strconv.ParseInt(c.Ref, 10, 64)
	if err != nil {
		p, err := st.GetRawPayloadByHash(c.Ref)
		if err != nil {
			return fmt.Errorf("lookup payload: %w", err)
		}
		if p == nil {
			return fmt.Errorf("no archived payload with hash %s", c.Ref)
		}
		id = p.ID
	}

	body, err := st.GetRawPayload(id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("no archived payload %d", id)
	}
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	_, err = stdout.Write(body)
	return err
}
