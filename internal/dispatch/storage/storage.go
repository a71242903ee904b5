package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
)

// Storage handles all database operations for the dispatch service
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// GetJobByID retrieves a job from the database by its ID
func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
		SELECT job_id, tracking_code, customer_id, file_name,
		       copies, color, paper_size, double_sided, page_count,
		       pickup_latitude, pickup_longitude,
		       status, assigned_vendor_id, total_price, earnings,
		       created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	var job domain.Job
	var customerID, vendorID sql.NullString
	var status string

	err := s.db.QueryRowContext(ctx, query, jobID).Scan(
		&job.ID,
		&job.TrackingCode,
		&customerID,
		&job.FileName,
		&job.Specs.Copies,
		&job.Specs.Color,
		&job.Specs.PaperSize,
		&job.Specs.DoubleSided,
		&job.PageCount,
		&job.PickupLatitude,
		&job.PickupLongitude,
		&status,
		&vendorID,
		&job.TotalPrice,
		&job.Earnings,
		&job.CreatedAt,
		&job.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	job.Status = domain.JobStatus(status)
	if customerID.Valid {
		job.CustomerID = customerID.String
	}
	if vendorID.Valid {
		job.AssignedVendorID = vendorID.String
	}

	return &job, nil
}

// UpdateJobStatus durably mirrors a state-machine transition. The guard on
// the previous status makes the write compare-and-set: a concurrent writer
// that already moved the job on sees zero rows and gets ErrStaleResponse.
func (s *Storage) UpdateJobStatus(ctx context.Context, jobID string, from, to domain.JobStatus, vendorID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    assigned_vendor_id = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
	`

	result, err := s.db.ExecContext(ctx, query, string(to), vendorID, jobID, string(from))
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to update job status: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return domain.NewRetryableError(fmt.Errorf("failed to get rows affected: %w", err))
	}
	if rows == 0 {
		return fmt.Errorf("%w: job %s not in status %s", domain.ErrStaleResponse, jobID, from)
	}

	s.logger.Info("Job status updated",
		slog.String("job_id", jobID),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	return nil
}

// FlagForReview marks a job whose transition could not be durably persisted
// after all retries so an operator can reconcile it by hand.
func (s *Storage) FlagForReview(ctx context.Context, jobID, reason string) error {
	query := `
		UPDATE jobs
		SET needs_review = TRUE,
		    review_reason = $1,
		    updated_at = NOW()
		WHERE job_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, reason, jobID); err != nil {
		return fmt.Errorf("failed to flag job for review: %w", err)
	}

	s.logger.Warn("Job flagged for manual review",
		slog.String("job_id", jobID),
		slog.String("reason", reason),
	)

	return nil
}

// RecordOffer appends an entry to the job's ordered offer history
func (s *Storage) RecordOffer(ctx context.Context, rec *domain.OfferRecord) error {
	query := `
		INSERT INTO job_offers (job_id, vendor_id, offered_at, outcome)
		VALUES ($1, $2, $3, $4)
	`

	_, err := s.db.ExecContext(ctx, query, rec.JobID, rec.VendorID, rec.OfferedAt, string(rec.Outcome))
	if err != nil {
		return fmt.Errorf("failed to record offer: %w", err)
	}

	return nil
}

// FinalizeOffer sets the outcome of a pending offer history entry
func (s *Storage) FinalizeOffer(ctx context.Context, jobID, vendorID string, outcome domain.OfferOutcome) error {
	query := `
		UPDATE job_offers
		SET outcome = $1
		WHERE job_id = $2
		  AND vendor_id = $3
		  AND outcome = $4
	`

	_, err := s.db.ExecContext(ctx, query, string(outcome), jobID, vendorID, string(domain.OfferPending))
	if err != nil {
		return fmt.Errorf("failed to finalize offer: %w", err)
	}

	return nil
}

// RecoverableJobs returns ids of jobs whose matching was in flight when the
// previous process stopped. Their intake deliveries were acknowledged long
// ago, so only this scan brings them back into the offer loop.
func (s *Storage) RecoverableJobs(ctx context.Context) ([]string, error) {
	query := `
		SELECT job_id
		FROM jobs
		WHERE status = ANY($1)
		ORDER BY created_at
	`

	statuses := pq.Array([]string{
		string(domain.StatusProcessing),
		string(domain.StatusAwaitingAcceptance),
		string(domain.StatusVendorRejected),
		string(domain.StatusVendorTimeout),
	})

	rows, err := s.db.QueryContext(ctx, query, statuses)
	if err != nil {
		return nil, fmt.Errorf("failed to query interrupted jobs: %w", err)
	}
	defer rows.Close()

	var jobIDs []string
	for rows.Next() {
		var jobID string
		if err := rows.Scan(&jobID); err != nil {
			return nil, fmt.Errorf("failed to scan job id: %w", err)
		}
		jobIDs = append(jobIDs, jobID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interrupted jobs: %w", err)
	}

	return jobIDs, nil
}

// PendingOfferVendor returns the vendor holding the job's open offer history
// entry, or empty when no offer is pending.
func (s *Storage) PendingOfferVendor(ctx context.Context, jobID string) (string, error) {
	query := `
		SELECT vendor_id
		FROM job_offers
		WHERE job_id = $1
		  AND outcome = $2
		ORDER BY offered_at DESC
		LIMIT 1
	`

	var vendorID string
	err := s.db.QueryRowContext(ctx, query, jobID, string(domain.OfferPending)).Scan(&vendorID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query pending offer: %w", err)
	}

	return vendorID, nil
}

// CandidateVendors returns the read snapshot ranking consults. No lock is
// held during ranking; availability may drift until the offer is pushed.
func (s *Storage) CandidateVendors(ctx context.Context) ([]domain.VendorSnapshot, error) {
	query := `
		SELECT vendor_id, business_name, capabilities,
		       latitude, longitude, price_per_page, color_surcharge,
		       is_open, is_connected
		FROM vendors
		WHERE is_open = TRUE AND is_connected = TRUE
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to query vendors: %w", err))
	}
	defer rows.Close()

	var vendors []domain.VendorSnapshot
	for rows.Next() {
		var v domain.VendorSnapshot
		if err := rows.Scan(
			&v.ID,
			&v.BusinessName,
			pq.Array(&v.Capabilities),
			&v.Latitude,
			&v.Longitude,
			&v.PricePerPage,
			&v.ColorSurcharge,
			&v.IsOpen,
			&v.IsConnected,
		); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewRetryableError(fmt.Errorf("failed to read vendors: %w", err))
	}

	return vendors, nil
}

// SetVendorConnected tracks live channel presence for a vendor
func (s *Storage) SetVendorConnected(ctx context.Context, vendorID string, connected bool) error {
	query := `
		UPDATE vendors
		SET is_connected = $1,
		    last_seen_at = CASE WHEN $1 THEN NOW() ELSE last_seen_at END,
		    updated_at = NOW()
		WHERE vendor_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, connected, vendorID); err != nil {
		return fmt.Errorf("failed to update vendor connectivity: %w", err)
	}

	return nil
}

// SetVendorOpen applies a status heartbeat to the vendor record
func (s *Storage) SetVendorOpen(ctx context.Context, vendorID string, open bool) error {
	query := `
		UPDATE vendors
		SET is_open = $1,
		    last_seen_at = NOW(),
		    updated_at = NOW()
		WHERE vendor_id = $2
	`

	if _, err := s.db.ExecContext(ctx, query, open, vendorID); err != nil {
		return fmt.Errorf("failed to update vendor availability: %w", err)
	}

	return nil
}

// VendorQueue returns the jobs currently assigned to or offered to a vendor.
// Station clients fetch this on reconnect to reconcile local offer state.
func (s *Storage) VendorQueue(ctx context.Context, vendorID string) ([]domain.Job, error) {
	query := `
		SELECT j.job_id, j.tracking_code, j.file_name, j.status,
		       COALESCE(j.assigned_vendor_id, ''), j.total_price, j.earnings,
		       j.created_at, j.updated_at
		FROM jobs j
		WHERE j.assigned_vendor_id = $1
		   OR (j.status = $2 AND EXISTS (
		         SELECT 1 FROM job_offers o
		         WHERE o.job_id = j.job_id
		           AND o.vendor_id = $1
		           AND o.outcome = $3
		   ))
		ORDER BY j.created_at
	`

	rows, err := s.db.QueryContext(ctx, query, vendorID,
		string(domain.StatusAwaitingAcceptance), string(domain.OfferPending))
	if err != nil {
		return nil, fmt.Errorf("failed to query vendor queue: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		var job domain.Job
		var status string
		if err := rows.Scan(
			&job.ID,
			&job.TrackingCode,
			&job.FileName,
			&status,
			&job.AssignedVendorID,
			&job.TotalPrice,
			&job.Earnings,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		job.Status = domain.JobStatus(status)
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vendor queue: %w", err)
	}

	return jobs, nil
}

// touchTimeout bounds individual maintenance writes issued off event paths.
const touchTimeout = 5 * time.Second

// MarkVendorsStale closes connectivity for vendors not seen within the
// cutoff. Run periodically so a silently-dead channel eventually drops the
// vendor out of ranking.
func (s *Storage) MarkVendorsStale(ctx context.Context, cutoff time.Duration) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, touchTimeout)
	defer cancel()

	query := `
		UPDATE vendors
		SET is_connected = FALSE,
		    updated_at = NOW()
		WHERE is_connected = TRUE
		  AND last_seen_at < NOW() - $1::interval
	`

	result, err := s.db.ExecContext(ctx, query, fmt.Sprintf("%d seconds", int(cutoff.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to mark stale vendors: %w", err)
	}

	return result.RowsAffected()
}
