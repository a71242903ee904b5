package station

import (
	"testing"
	"time"

	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validOffer() domain.OfferFrame {
	return domain.OfferFrame{
		Type:                  domain.MsgNewJobOffer,
		JobID:                 "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11",
		TrackingCode:          "SP-1A2B3C4D",
		FileName:              "doc.pdf",
		PrintSpecs:            domain.PrintSpecs{Copies: 1, PaperSize: "A4"},
		TotalPrice:            50,
		Earnings:              40,
		CreatedAt:             time.Now(),
		OfferExpiresInSeconds: 90,
	}
}

func TestValidateOffer(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(f *domain.OfferFrame)
		wantErr bool
	}{
		{
			name:   "valid offer",
			mutate: func(*domain.OfferFrame) {},
		},
		{
			name:   "zero earnings is allowed",
			mutate: func(f *domain.OfferFrame) { f.Earnings = 0 },
		},
		{
			name:    "job id not a uuid",
			mutate:  func(f *domain.OfferFrame) { f.JobID = "job-1" },
			wantErr: true,
		},
		{
			name:    "missing tracking code",
			mutate:  func(f *domain.OfferFrame) { f.TrackingCode = "" },
			wantErr: true,
		},
		{
			name:    "missing file name",
			mutate:  func(f *domain.OfferFrame) { f.FileName = "" },
			wantErr: true,
		},
		{
			name:    "zero total price",
			mutate:  func(f *domain.OfferFrame) { f.TotalPrice = 0 },
			wantErr: true,
		},
		{
			name:    "absurd total price",
			mutate:  func(f *domain.OfferFrame) { f.TotalPrice = 1e9 },
			wantErr: true,
		},
		{
			name:    "negative earnings",
			mutate:  func(f *domain.OfferFrame) { f.Earnings = -1 },
			wantErr: true,
		},
		{
			name:    "zero expiry",
			mutate:  func(f *domain.OfferFrame) { f.OfferExpiresInSeconds = 0 },
			wantErr: true,
		},
		{
			name:    "expiry beyond the window cap",
			mutate:  func(f *domain.OfferFrame) { f.OfferExpiresInSeconds = 3600 },
			wantErr: true,
		},
		{
			name:    "missing created at",
			mutate:  func(f *domain.OfferFrame) { f.CreatedAt = time.Time{} },
			wantErr: true,
		},
		{
			name:    "zero copies",
			mutate:  func(f *domain.OfferFrame) { f.PrintSpecs.Copies = 0 },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := validOffer()
			tt.mutate(&frame)

			err := ValidateOffer(&frame, 0)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, domain.ErrInvalidMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateOfferCustomPriceCap(t *testing.T) {
	frame := validOffer()
	frame.TotalPrice = 200

	assert.Error(t, ValidateOffer(&frame, 100))
	assert.NoError(t, ValidateOffer(&frame, 500))
}

func TestValidateCancel(t *testing.T) {
	assert.NoError(t, ValidateCancel(&domain.CancelFrame{
		Type:  domain.MsgOfferCancelled,
		JobID: "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11",
	}))

	err := ValidateCancel(&domain.CancelFrame{JobID: "not-a-uuid"})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)
}

func TestOfferDeadline(t *testing.T) {
	frame := validOffer()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	deadline := offerDeadline(&frame, now)
	assert.Equal(t, now.Add(90*time.Second), deadline)
}
