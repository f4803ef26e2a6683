package database

import (
	"gorm.io/gorm"

	"github.com/charlesng35/authflow/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Account{}); err != nil {
		return err
	}
	return normalizeLegacyEmails(db)
}

// normalizeLegacyEmails lower-cases addresses written before lookups became
// case-insensitive. Rows that would collide after folding are left untouched.
func normalizeLegacyEmails(db *gorm.DB) error {
	var accounts []models.Account
	if err := db.Select("id", "email").
		Where("email <> LOWER(TRIM(email))").
		Find(&accounts).Error; err != nil {
		return err
	}

	for _, account := range accounts {
		normalized := models.NormalizeEmail(account.Email)

		var clashes int64
		if err := db.Model(&models.Account{}).
			Where("email = ? AND id <> ?", normalized, account.ID).
			Count(&clashes).Error; err != nil {
			return err
		}
		if clashes > 0 {
			continue
		}

		if err := db.Model(&models.Account{}).
			Where("id = ?", account.ID).
			UpdateColumn("email", normalized).Error; err != nil {
			return err
		}
	}
	return nil
}
