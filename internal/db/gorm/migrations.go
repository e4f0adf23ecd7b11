package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: trust tables (config, history, projection)
		{
			ID: "001_trust_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&TrustConfig{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&TrustScoreHistory{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&MemberTrust{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("trust_configs", "trust_score_history", "member_trust")
			},
		},

		// Migration 002: intelligence tables (config, profiles)
		{
			ID: "002_intelligence_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&IntelligenceConfig{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&MemberIntelligence{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("intelligence_configs", "member_intelligence")
			},
		},
	})

	return m.Migrate()
}
