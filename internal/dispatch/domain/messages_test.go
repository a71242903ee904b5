package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOfferFrameWireFormat(t *testing.T) {
	frame := &OfferFrame{
		Type:         MsgNewJobOffer,
		JobID:        "6c5f0c1e-9f6b-4f7a-8f33-b30d2f9f8a11",
		TrackingCode: "SP-1A2B3C4D",
		FileName:     "thesis.pdf",
		Customer:     "",
		PrintSpecs: PrintSpecs{
			Copies:      2,
			Color:       true,
			PaperSize:   "A4",
			DoubleSided: true,
		},
		TotalPrice:            120.0,
		Earnings:              96.0,
		CreatedAt:             time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC),
		IsAnonymous:           true,
		OfferExpiresInSeconds: 90,
	}

	data, err := json.Marshal(frame)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	assert.Equal(t, "NEW_JOB_OFFER", raw["type"])
	assert.Equal(t, "SP-1A2B3C4D", raw["trackingCode"])
	assert.Equal(t, true, raw["isAnonymous"])
	assert.Equal(t, float64(90), raw["offerExpiresInSeconds"])

	specs, ok := raw["printSpecs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), specs["copies"])
	assert.Equal(t, "A4", specs["paperSize"])
	assert.Equal(t, true, specs["doubleSided"])

	var decoded OfferFrame
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, *frame, decoded)
}

func TestAckFrameOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(&AckFrame{
		Type:    MsgJobAccepted,
		JobID:   "job-1",
		Message: "job assigned",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "error")

	data, err = json.Marshal(&AckFrame{
		Type:  MsgJobResponseError,
		JobID: "job-1",
		Error: "offer is no longer available",
	})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "message")
}

func TestDecodeInbound(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		kind     InboundKind
		wantErr  bool
		checkOut func(t *testing.T, frame *InboundFrame)
	}{
		{
			name:    "job response",
			payload: `{"jobId":"job-1","response":"accept","vendorId":"v1"}`,
			kind:    KindJobResponse,
			checkOut: func(t *testing.T, frame *InboundFrame) {
				resp := frame.JobResponse()
				assert.Equal(t, "job-1", resp.JobID)
				assert.Equal(t, ResponseAccept, resp.Response)
				assert.Equal(t, "v1", resp.VendorID)
			},
		},
		{
			name:    "heartbeat",
			payload: `{"vendorId":"v1","isAvailable":true,"businessName":"Print Hub"}`,
			kind:    KindHeartbeat,
			checkOut: func(t *testing.T, frame *InboundFrame) {
				hb := frame.Heartbeat()
				assert.Equal(t, "v1", hb.VendorID)
				assert.True(t, hb.IsAvailable)
				assert.Equal(t, "Print Hub", hb.BusinessName)
			},
		},
		{
			name:    "heartbeat with false availability still classifies",
			payload: `{"vendorId":"v1","isAvailable":false}`,
			kind:    KindHeartbeat,
			checkOut: func(t *testing.T, frame *InboundFrame) {
				assert.False(t, frame.Heartbeat().IsAvailable)
			},
		},
		{
			name:    "response presence wins over availability",
			payload: `{"jobId":"job-1","response":"decline","vendorId":"v1","isAvailable":true}`,
			kind:    KindJobResponse,
		},
		{
			name:    "heartbeat missing vendor id",
			payload: `{"isAvailable":true}`,
			kind:    KindUnknown,
			wantErr: true,
		},
		{
			name:    "unrecognized shape",
			payload: `{"foo":"bar"}`,
			kind:    KindUnknown,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `NEW_JOB_OFFER`,
			kind:    KindUnknown,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, frame, err := DecodeInbound([]byte(tt.payload))

			assert.Equal(t, tt.kind, kind)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMessage)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, frame)
			if tt.checkOut != nil {
				tt.checkOut(t, frame)
			}
		})
	}
}

func TestJobResponseValidate(t *testing.T) {
	tests := []struct {
		name    string
		resp    JobResponse
		wantErr bool
	}{
		{
			name: "valid accept",
			resp: JobResponse{JobID: "job-1", Response: ResponseAccept, VendorID: "v1"},
		},
		{
			name: "valid decline",
			resp: JobResponse{JobID: "job-1", Response: ResponseDecline, VendorID: "v1"},
		},
		{
			name:    "missing job id",
			resp:    JobResponse{Response: ResponseAccept, VendorID: "v1"},
			wantErr: true,
		},
		{
			name:    "missing vendor id",
			resp:    JobResponse{JobID: "job-1", Response: ResponseAccept},
			wantErr: true,
		},
		{
			name:    "unknown response value",
			resp:    JobResponse{JobID: "job-1", Response: "maybe", VendorID: "v1"},
			wantErr: true,
		},
		{
			name:    "uppercase response is rejected",
			resp:    JobResponse{JobID: "job-1", Response: "ACCEPT", VendorID: "v1"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidMessage)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJobIsAnonymous(t *testing.T) {
	assert.True(t, (&Job{}).IsAnonymous())
	assert.False(t, (&Job{CustomerID: "cust-1"}).IsAnonymous())
}
