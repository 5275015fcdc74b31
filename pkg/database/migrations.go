package database

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/aldoetobex/claims-backend/pkg/models"
)

// migrationsList holds all migrations in apply order.
var migrationsList = []*gormigrate.Migration{
	{
		ID: "202610150001_create_claims_schema",
		Migrate: func(tx *gorm.DB) error {
			return tx.AutoMigrate(
				&models.User{}, &models.Policy{}, &models.Claim{},
				&models.StatusHistory{}, &models.Document{},
			)
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("documents", "status_histories", "claims", "policies", "users")
		},
	},
	{
		// History is append-only: reject UPDATE and DELETE at the database level too.
		ID: "202610150002_status_history_append_only",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				CREATE OR REPLACE FUNCTION status_histories_append_only() RETURNS trigger AS $$
				BEGIN
					RAISE EXCEPTION 'status_histories is append-only';
				END;
				$$ LANGUAGE plpgsql;

				DROP TRIGGER IF EXISTS trg_status_histories_append_only ON status_histories;
				CREATE TRIGGER trg_status_histories_append_only
					BEFORE UPDATE OR DELETE ON status_histories
					FOR EACH ROW EXECUTE FUNCTION status_histories_append_only();
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`
				DROP TRIGGER IF EXISTS trg_status_histories_append_only ON status_histories;
				DROP FUNCTION IF EXISTS status_histories_append_only();
			`).Error
		},
	},
	{
		ID: "202610150003_claim_amount_checks",
		Migrate: func(tx *gorm.DB) error {
			return tx.Exec(`
				ALTER TABLE claims DROP CONSTRAINT IF EXISTS chk_claims_amounts;
				ALTER TABLE claims ADD CONSTRAINT chk_claims_amounts CHECK (
					claim_amount > 0
					AND (approved_amount IS NULL OR (approved_amount > 0 AND approved_amount <= claim_amount))
					AND NOT (approved_amount IS NOT NULL AND rejection_reason <> '')
				);
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`ALTER TABLE claims DROP CONSTRAINT IF EXISTS chk_claims_amounts`).Error
		},
	},
}

// Migrate applies every pending migration.
func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, migrationsList).Migrate()
}
