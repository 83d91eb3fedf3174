package main

import (
	"log"

	"subguard-be/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedProviderCapabilities populates the capability catalog with well-known
// providers. Unknown providers fall back to the manual-only default at
// assessment time, so this seed only needs the common names.
func SeedProviderCapabilities(db *gorm.DB) {
	capabilities := []model.ProviderCapability{
		{
			NormalizedProvider:    "netflix",
			DisplayName:           "Netflix",
			ApiEndpoint:           "https://api.netflix.com/v1/account/cancel",
			ApiSuccessRate:        0.92,
			ApiAvgSeconds:         20,
			AutomationProfile:     "netflix-cancel-v2",
			AutomationSuccessRate: 0.81,
			AutomationAvgSeconds:  180,
			ManualAvgSeconds:      600,
			Difficulty:            "easy",
		},
		{
			NormalizedProvider:    "spotify",
			DisplayName:           "Spotify",
			ApiEndpoint:           "https://api.spotify.com/v1/subscription/cancel",
			ApiSuccessRate:        0.89,
			ApiAvgSeconds:         25,
			AutomationProfile:     "spotify-cancel-v1",
			AutomationSuccessRate: 0.78,
			AutomationAvgSeconds:  200,
			ManualAvgSeconds:      600,
			Difficulty:            "easy",
		},
		{
			NormalizedProvider:    "hulu",
			DisplayName:           "Hulu",
			AutomationProfile:     "hulu-cancel-v1",
			AutomationSuccessRate: 0.72,
			AutomationAvgSeconds:  240,
			ManualAvgSeconds:      900,
			Difficulty:            "medium",
			HasRetentionOffers:    true,
		},
		{
			NormalizedProvider:    "adobe",
			DisplayName:           "Adobe Creative Cloud",
			AutomationProfile:     "adobe-cancel-v3",
			AutomationSuccessRate: 0.61,
			AutomationAvgSeconds:  360,
			ManualAvgSeconds:      1800,
			Difficulty:            "hard",
			RequiresTwoFactor:     true,
			HasRetentionOffers:    true,
		},
		{
			NormalizedProvider: "planet fitness",
			DisplayName:        "Planet Fitness",
			ManualAvgSeconds:   3600,
			Difficulty:         "hard",
			HasRetentionOffers: true,
		},
		{
			NormalizedProvider:    "nytimes",
			DisplayName:           "The New York Times",
			AutomationProfile:     "nytimes-cancel-v1",
			AutomationSuccessRate: 0.68,
			AutomationAvgSeconds:  300,
			ManualAvgSeconds:      1200,
			Difficulty:            "hard",
			HasRetentionOffers:    true,
		},
		{
			NormalizedProvider: "amazon prime",
			DisplayName:        "Amazon Prime",
			ApiEndpoint:        "https://api.amazon.com/prime/v1/cancel",
			ApiSuccessRate:     0.87,
			ApiAvgSeconds:      30,
			ManualAvgSeconds:   900,
			Difficulty:         "medium",
			HasRetentionOffers: true,
		},
	}

	for _, capability := range capabilities {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "normalized_provider"}},
			UpdateAll: true,
		}).Create(&capability).Error
		if err != nil {
			log.Printf("Warn: Failed to seed capability %s: %v", capability.NormalizedProvider, err)
			continue
		}
		log.Printf("Seeded capability: %s", capability.NormalizedProvider)
	}
}
