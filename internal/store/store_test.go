package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/harvesthorizon/internal/climate"
	"github.com/lox/harvesthorizon/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testHarvest(id, scenarioID string, yield float64, createdAt time.Time) models.Harvest {
	return models.Harvest{
		ID:         id,
		ScenarioID: scenarioID,
		Decision:   models.Decision{Irrigation: 60, Fertilizer: 50},
		Summary: models.ConditionSummary{
			AvgTemperature:    32.1,
			AvgPrecipitation:  1.5,
			AvgSoilMoisture:   0.25,
			AvgSolarRadiation: 6.2,
			Days:              30,
		},
		Result: models.YieldResult{
			YieldPercent:         yield,
			IrrigationAdjustment: 15,
			FertilizerAdjustment: 25,
			WaterUsage:           600,
			FertilizerCost:       250,
			Feedback:             []string{"Outstanding!", "Irrigation: 60 units"},
		},
		ClimateSource: "live",
		CreatedAt:     createdAt,
	}
}

func TestMigrationVersion(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("MigrationVersion = %d, want %d", version, len(migrations))
	}

	// Idempotent.
	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "harvest.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if err := store.Ping(); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestInsertAndGetHarvest(t *testing.T) {
	store := setupTestStore(t)

	created := time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)
	h := testHarvest("h-1", "wheat_kansas", 140, created)
	if err := store.InsertHarvest(h); err != nil {
		t.Fatalf("InsertHarvest: %v", err)
	}
	// Duplicate is ignored.
	if err := store.InsertHarvest(h); err != nil {
		t.Fatalf("InsertHarvest duplicate: %v", err)
	}

	got, err := store.GetHarvest("h-1")
	if err != nil {
		t.Fatalf("GetHarvest: %v", err)
	}
	if got == nil {
		t.Fatal("GetHarvest returned nil")
	}
	if got.ScenarioID != "wheat_kansas" || got.Result.YieldPercent != 140 {
		t.Errorf("harvest = %+v", got)
	}
	if got.Decision != h.Decision {
		t.Errorf("Decision = %+v, want %+v", got.Decision, h.Decision)
	}
	if got.Summary != h.Summary {
		t.Errorf("Summary = %+v, want %+v", got.Summary, h.Summary)
	}
	if len(got.Result.Feedback) != 2 || got.Result.Feedback[1] != "Irrigation: 60 units" {
		t.Errorf("Feedback = %v", got.Result.Feedback)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, created)
	}
	if got.ClimateSource != "live" {
		t.Errorf("ClimateSource = %q, want live", got.ClimateSource)
	}
}

func TestGetHarvest_NotFound(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetHarvest("missing")
	if err != nil {
		t.Fatalf("GetHarvest: %v", err)
	}
	if got != nil {
		t.Errorf("GetHarvest = %+v, want nil", got)
	}
}

func TestRecentAndTopHarvests(t *testing.T) {
	store := setupTestStore(t)

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := []models.Harvest{
		testHarvest("a", "wheat_kansas", 95, base),
		testHarvest("b", "wheat_kansas", 140, base.Add(time.Hour)),
		testHarvest("c", "corn_iowa", 120, base.Add(2*time.Hour)),
		testHarvest("d", "wheat_kansas", 140, base.Add(3*time.Hour)),
	}
	for _, h := range rows {
		if err := store.InsertHarvest(h); err != nil {
			t.Fatalf("InsertHarvest(%s): %v", h.ID, err)
		}
	}

	recent, err := store.RecentHarvests(2)
	if err != nil {
		t.Fatalf("RecentHarvests: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "d" || recent[1].ID != "c" {
		t.Errorf("RecentHarvests = %v, want [d c]", ids(recent))
	}

	top, err := store.TopHarvests("wheat_kansas", 10)
	if err != nil {
		t.Fatalf("TopHarvests: %v", err)
	}
	want := []string{"b", "d", "a"}
	got := ids(top)
	if len(got) != len(want) {
		t.Fatalf("TopHarvests = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TopHarvests = %v, want %v", got, want)
			break
		}
	}
}

func ids(hs []models.Harvest) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.ID
	}
	return out
}

func TestHarvestStatsByScenario(t *testing.T) {
	store := setupTestStore(t)

	now := time.Now().UTC()
	synthetic := testHarvest("s", "corn_iowa", 80, now)
	synthetic.ClimateSource = "synthetic"
	for _, h := range []models.Harvest{
		testHarvest("l", "corn_iowa", 120, now),
		synthetic,
	} {
		if err := store.InsertHarvest(h); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.HarvestStatsByScenario()
	if err != nil {
		t.Fatalf("HarvestStatsByScenario: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("len(stats) = %d, want 1", len(stats))
	}
	st := stats[0]
	if st.Rounds != 2 || st.AvgYield != 100 || st.BestYield != 120 || st.SyntheticPct != 50 {
		t.Errorf("stats = %+v", st)
	}
}

func TestArchiveFetch_Success(t *testing.T) {
	store := setupTestStore(t)

	payload := []byte(`{"properties":{"parameter":{}}}`)
	now := time.Now().UTC()
	rec := climate.FetchRecord{
		LocationID:   "37.5000,-95.5000",
		WindowStart:  now.AddDate(0, 0, -29),
		WindowEnd:    now,
		StartedAt:    now,
		FinishedAt:   now.Add(300 * time.Millisecond),
		HTTPStatus:   200,
		ResponseSize: len(payload),
		DaysParsed:   30,
		Success:      true,
	}
	if err := store.ArchiveFetch(rec, payload); err != nil {
		t.Fatalf("ArchiveFetch: %v", err)
	}
	// Same body again: new fetch run, no new payload.
	if err := store.ArchiveFetch(rec, payload); err != nil {
		t.Fatalf("ArchiveFetch again: %v", err)
	}

	sum := sha256.Sum256(payload)
	p, err := store.GetRawPayloadByHash(hex.EncodeToString(sum[:]))
	if err != nil {
		t.Fatalf("GetRawPayloadByHash: %v", err)
	}
	if p == nil {
		t.Fatal("payload not archived")
	}
	if !p.FetchRunID.Valid || p.LocationID != rec.LocationID {
		t.Errorf("payload = %+v", p)
	}

	body, err := store.GetRawPayload(p.ID)
	if err != nil {
		t.Fatalf("GetRawPayload: %v", err)
	}
	if string(body) != string(payload) {
		t.Errorf("payload = %q, want %q", body, payload)
	}

	stats, err := store.GetRawPayloadStats()
	if err != nil {
		t.Fatalf("GetRawPayloadStats: %v", err)
	}
	if stats.TotalCount != 1 || stats.CountByLocation[rec.LocationID] != 1 {
		t.Errorf("stats = %+v, want one payload", stats)
	}

	recent, err := store.RecentRawPayloads(10)
	if err != nil {
		t.Fatalf("RecentRawPayloads: %v", err)
	}
	if len(recent) != 1 || recent[0].ID != p.ID || recent[0].PayloadHash != p.PayloadHash || recent[0].PayloadCompressed != nil {
		t.Errorf("RecentRawPayloads = %+v", recent)
	}

	health, err := store.FetchHealth(1)
	if err != nil {
		t.Fatalf("FetchHealth: %v", err)
	}
	if len(health) != 1 || health[0].TotalRuns != 2 || health[0].SuccessRuns != 2 || health[0].DaysParsed != 60 {
		t.Errorf("FetchHealth = %+v", health)
	}
}

func TestArchiveFetch_Failure(t *testing.T) {
	store := setupTestStore(t)

	now := time.Now().UTC()
	if err := store.ArchiveFetch(climate.FetchRecord{
		LocationID:  "42.0000,-93.5000",
		WindowStart: now.AddDate(0, 0, -29),
		WindowEnd:   now,
		StartedAt:   now,
		FinishedAt:  now,
		HTTPStatus:  503,
		Error:       "rate limited: status 503",
	}, []byte("Service Unavailable")); err != nil {
		t.Fatalf("ArchiveFetch: %v", err)
	}
	if err := store.ArchiveFetch(climate.FetchRecord{
		LocationID:  "42.0000,-93.5000",
		WindowStart: now.AddDate(0, 0, -29),
		WindowEnd:   now,
		StartedAt:   now.Add(time.Second),
		HTTPStatus:  200,
		DaysParsed:  30,
		Success:     true,
	}, nil); err != nil {
		t.Fatalf("ArchiveFetch: %v", err)
	}

	errs, err := store.RecentFetchErrors(10)
	if err != nil {
		t.Fatalf("RecentFetchErrors: %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("len(errs) = %d, want 1", len(errs))
	}
	if errs[0].ErrorMessage.String != "rate limited: status 503" || errs[0].HTTPStatus.Int64 != 503 {
		t.Errorf("error run = %+v", errs[0])
	}

	stats, err := store.GetRawPayloadStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalCount != 0 {
		t.Errorf("TotalCount = %d, want 0 (failed bodies are not archived)", stats.TotalCount)
	}

	health, err := store.FetchHealth(1)
	if err != nil {
		t.Fatalf("FetchHealth: %v", err)
	}
	if len(health) != 1 || health[0].TotalRuns != 2 || health[0].FailedRuns != 1 || health[0].SuccessRuns != 1 {
		t.Errorf("FetchHealth = %+v", health)
	}
}

func TestCleanupOldRawPayloads(t *testing.T) {
	store := setupTestStore(t)

	if _, err := store.StoreRawPayload(nil, "a", []byte("fresh")); err != nil {
		t.Fatal(err)
	}
	id, err := store.StoreRawPayload(nil, "b", []byte("stale"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.db.Exec(`UPDATE raw_payloads SET fetched_at = ? WHERE id = ?`,
		time.Now().UTC().AddDate(0, 0, -100), id); err != nil {
		t.Fatal(err)
	}

	n, err := store.CleanupOldRawPayloads(90)
	if err != nil {
		t.Fatalf("CleanupOldRawPayloads: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	dup, err := store.StoreRawPayload(nil, "a", []byte("fresh"))
	if err != nil {
		t.Fatal(err)
	}
	if dup != 0 {
		t.Errorf("duplicate payload id = %d, want 0", dup)
	}
}
