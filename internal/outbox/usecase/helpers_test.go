package usecase

import (
	"time"

	keysDomain "github.com/allisson/cardvault/internal/keys/domain"
)

func rotationNotice() keysDomain.RotationNotice {
	return keysDomain.RotationNotice{
		KeyID:          "01929a1c-0000-7000-8000-000000000001",
		Purpose:        keysDomain.PurposePayment,
		Version:        1,
		Age:            91 * 24 * time.Hour,
		RotationPeriod: 90 * 24 * time.Hour,
		DetectedAt:     time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}
}
