package infra

import (
	"fmt"

	"github.com/augustodevcode/bidexpert-engine/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate to
// create / update all tables, then applies the idempotent SQL patches that GORM
// cannot express (partial indexes, composite orderings).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}

	return db, nil
}

// RunMigrations creates the schema. Shared with the integration test harness.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Auction{},
		&model.AuctionStage{},
		&model.Lot{},
		&model.Bid{},
		&model.AutoBid{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot express.
// Each statement uses IF NOT EXISTS semantics so re-running on an
// already-patched DB is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Partial index for the resolver's BestEligible scan: only active
		// proxies matter, ordered by ceiling then registration time.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_auto_bids_eligible') THEN
		    CREATE INDEX idx_auto_bids_eligible
		        ON auto_bids (lot_id, max_amount DESC, created_at ASC)
		        WHERE active = true;
		  END IF;
		END $$`,
		// Composite index backing both bid history orderings and the
		// winner lookup at finalization.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_bids_lot_ranking') THEN
		    CREATE INDEX idx_bids_lot_ranking
		        ON bids (lot_id, amount DESC, created_at ASC);
		  END IF;
		END $$`,
		// Partial index for the finalization cron's due-lot scan.
		`DO $$ BEGIN
		  IF NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_lots_open') THEN
		    CREATE INDEX idx_lots_open
		        ON lots (auction_id)
		        WHERE status = 'open_for_bids';
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
