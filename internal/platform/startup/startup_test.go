package startup

import (
	"context"
	"testing"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/database/dbtest"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
)

var catalog = []candidate.SeedEntry{
	{ID: "alpha", Name: "Alpha", Category: candidate.CategoryTTS},
	{ID: "beta", Name: "Beta", Category: candidate.CategoryTTS},
	{ID: "gamma", Name: "Gamma", Category: candidate.CategoryConversational},
}

func TestInitializeIsIdempotent(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()

	res, err := Initialize(ctx, db, logger.Nop(), catalog)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if res.Seeded != 3 || len(res.Inconsistent) != 0 {
		t.Fatalf("first run = %+v", res)
	}

	res, err = Initialize(ctx, db, logger.Nop(), catalog)
	if err != nil {
		t.Fatalf("second Initialize() error = %v", err)
	}
	if res.Seeded != 0 {
		t.Errorf("second run seeded %d, want 0", res.Seeded)
	}

	var n int64
	db.Model(&candidate.Candidate{}).Count(&n)
	if n != 3 {
		t.Errorf("candidates = %d, want 3", n)
	}
}

func TestInitializeReportsDrift(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	if _, err := Initialize(ctx, db, logger.Nop(), catalog); err != nil {
		t.Fatal(err)
	}

	engine := rating.NewEngine(db, logger.Nop(), nil)
	if _, err := engine.RecordOutcome(ctx, rating.Outcome{
		Input: "hello", WinnerID: "alpha", LoserID: "beta", Category: candidate.CategoryTTS,
	}); err != nil {
		t.Fatal(err)
	}
	if err := db.Model(&candidate.Candidate{}).Where("id = ?", "beta").Update("rating", 1700.0).Error; err != nil {
		t.Fatal(err)
	}

	res, err := Initialize(ctx, db, logger.Nop(), catalog)
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if len(res.Inconsistent) != 1 {
		t.Fatalf("inconsistent = %d reports, want 1", len(res.Inconsistent))
	}
	report := res.Inconsistent[0]
	if report.Category != candidate.CategoryTTS || len(report.Drifts) != 1 || report.Drifts[0].CandidateID != "beta" {
		t.Errorf("report = %+v", report)
	}
}
