// Package startup prepares the database before the server accepts traffic.
package startup

import (
	"context"
	"fmt"

	"github.com/SlpAus/arena-ranking-backend/internal/candidate"
	"github.com/SlpAus/arena-ranking-backend/internal/integrity"
	"github.com/SlpAus/arena-ranking-backend/internal/platform/logger"
	"github.com/SlpAus/arena-ranking-backend/internal/rating"
	"github.com/SlpAus/arena-ranking-backend/internal/voter"
	"gorm.io/gorm"
)

// Result summarises one Initialize run.
type Result struct {
	Seeded       int
	Inconsistent []*rating.LedgerReport
}

// Models lists every table the server owns.
func Models() []any {
	models := []any{&candidate.Candidate{}, &voter.Voter{}, &integrity.Denial{}}
	return append(models, rating.Models()...)
}

// Initialize migrates the schema, seeds the candidate catalog and replays
// the vote ledger of every category. A ledger that disagrees with the
// stored ratings is logged and reported but does not stop the server.
func Initialize(ctx context.Context, db *gorm.DB, log *logger.Logger, catalog []candidate.SeedEntry) (*Result, error) {
	log.Info("initializing application")

	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	seeded, err := candidate.NewRepository(db).Seed(ctx, catalog)
	if err != nil {
		return nil, fmt.Errorf("seed candidates: %w", err)
	}
	if seeded > 0 {
		log.Info("seeded candidates", "created", seeded)
	}

	res := &Result{Seeded: seeded}
	engine := rating.NewEngine(db, log, nil)
	for _, category := range candidate.Categories {
		report, err := engine.VerifyLedger(ctx, category)
		if err != nil {
			return nil, fmt.Errorf("verify %s ledger: %w", category, err)
		}
		if !report.Consistent() {
			log.Warn("vote ledger disagrees with stored ratings",
				"category", category,
				"drifts", len(report.Drifts),
				"historyMismatches", report.HistoryMismatches,
				"missingHistory", report.MissingHistory)
			res.Inconsistent = append(res.Inconsistent, report)
			continue
		}
		log.Info("vote ledger verified", "category", category, "votes", report.Votes)
	}

	log.Info("application initialized")
	return res, nil
}
