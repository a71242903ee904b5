package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spoolr-in/spoolr/internal/api/model"
	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
	"github.com/spoolr-in/spoolr/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, tracking_code, customer_id, file_name,
			copies, color, paper_size, double_sided, page_count,
			pickup_latitude, pickup_longitude,
			status, total_price, earnings, created_at, updated_at
		) VALUES (
			$1, $2, NULLIF($3, ''), $4,
			$5, $6, $7, $8, $9,
			$10, $11,
			$12, $13, $14, $15, $16
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.TrackingCode,
		job.CustomerID,
		job.FileName,
		job.Copies,
		job.Color,
		job.PaperSize,
		job.DoubleSided,
		job.PageCount,
		job.PickupLatitude,
		job.PickupLongitude,
		job.Status,
		job.TotalPrice,
		job.Earnings,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT
			job_id, tracking_code, COALESCE(customer_id, '') AS customer_id,
			file_name, copies, color, paper_size, double_sided, page_count,
			pickup_latitude, pickup_longitude,
			status, COALESCE(assigned_vendor_id, '') AS assigned_vendor_id,
			total_price, earnings, needs_review, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

type JobFilter struct {
	CustomerID string
	Status     string
	PageSize   int
	Cursor     *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `
        SELECT
            job_id, tracking_code, COALESCE(customer_id, '') AS customer_id,
            file_name, copies, color, paper_size, double_sided, page_count,
            pickup_latitude, pickup_longitude,
            status, COALESCE(assigned_vendor_id, '') AS assigned_vendor_id,
            total_price, earnings, needs_review, created_at, updated_at
        FROM jobs
        WHERE 1=1
    `
	args := []interface{}{}
	argIdx := 1

	// Filters
	if filter.CustomerID != "" {
		query += fmt.Sprintf(" AND customer_id = $%d", argIdx)
		args = append(args, filter.CustomerID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// VendorQueue returns the authoritative queue for one vendor: jobs assigned
// to it plus its at-most-one pending offer. Station agents fetch this after
// every (re)connect to reconcile local state.
func (s *Storage) VendorQueue(ctx context.Context, vendorID string) ([]model.Job, error) {
	query := `
		SELECT
			j.job_id, j.tracking_code, COALESCE(j.customer_id, '') AS customer_id,
			j.file_name, j.copies, j.color, j.paper_size, j.double_sided, j.page_count,
			j.pickup_latitude, j.pickup_longitude,
			j.status, COALESCE(j.assigned_vendor_id, '') AS assigned_vendor_id,
			j.total_price, j.earnings, j.needs_review, j.created_at, j.updated_at
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

	var jobs []model.Job
	err := s.db.SelectContext(ctx, &jobs, query, vendorID,
		string(domain.StatusAwaitingAcceptance), string(domain.OfferPending))
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor queue: %w", err)
	}

	return jobs, nil
}

// CancelJob moves a job to CANCELLED if it has not yet been accepted
func (s *Storage) CancelJob(ctx context.Context, jobID string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    updated_at = NOW()
		WHERE job_id = $2
		  AND status IN ($3, $4, $5)
	`

	result, err := s.db.ExecContext(ctx, query,
		string(domain.StatusCancelled), jobID,
		string(domain.StatusUploaded), string(domain.StatusProcessing),
		string(domain.StatusAwaitingAcceptance))
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: job %s cannot be cancelled", domain.ErrIllegalTransition, jobID)
	}

	return nil
}
