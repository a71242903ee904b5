package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spoolr-in/spoolr/internal/api/dto"
	"github.com/spoolr-in/spoolr/internal/api/model"
	"github.com/spoolr-in/spoolr/internal/api/storage"
	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
	"github.com/spoolr-in/spoolr/internal/dispatch/lifecycle"
)

// CreateJob handles POST /api/v1/jobs
// Persists a new print job as UPLOADED and publishes its id to the intake
// queue so the dispatch service picks it up.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	now := time.Now()
	job := model.Job{
		JobID:           uuid.New().String(),
		TrackingCode:    newTrackingCode(),
		CustomerID:      req.CustomerID,
		FileName:        req.FileName,
		Copies:          req.Copies,
		Color:           req.Color,
		PaperSize:       strings.ToLower(req.PaperSize),
		DoubleSided:     req.DoubleSided,
		PageCount:       req.PageCount,
		PickupLatitude:  req.PickupLatitude,
		PickupLongitude: req.PickupLongitude,
		Status:          string(domain.StatusUploaded),
		TotalPrice:      req.TotalPrice,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	body, _ := json.Marshal(map[string]string{"job_id": job.JobID})
	if err := h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		// The job row exists; dispatch will pick it up once the queue
		// recovers or an operator requeues it.
		h.logger.Error("Failed to publish job to intake queue",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
	}

	h.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("tracking_code", job.TrackingCode),
	)

	c.JSON(http.StatusCreated, toJobDTO(&job))
}

// GetJob handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(job))
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := storage.JobFilter{
		CustomerID: req.CustomerID,
		Status:     req.Status,
		PageSize:   req.PageSize,
		Cursor:     cursor,
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(jobs))
	for i := range jobs {
		jobResponse[i] = toJobDTO(&jobs[i])
	}

	var nextCursor string
	if hasMore {
		lastJob := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: lastJob.CreatedAt,
			JobID:     lastJob.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}

// CancelJob handles POST /api/v1/jobs/:job_id/cancel
// Cancels a job that has not yet been accepted by a vendor
func (h *JobHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if err := h.storage.CancelJob(c.Request.Context(), jobID); err != nil {
		if errors.Is(err, domain.ErrIllegalTransition) {
			c.JSON(http.StatusConflict, gin.H{
				"error": "Job can no longer be cancelled",
			})
			return
		}
		h.logger.Error("Failed to cancel job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to cancel job",
		})
		return
	}

	h.logger.Info("Job cancelled", slog.String("job_id", jobID))

	c.JSON(http.StatusOK, gin.H{
		"job_id": jobID,
		"status": string(domain.StatusCancelled),
	})
}

// VendorQueue handles GET /api/v1/vendors/:vendor_id/queue
// Returns the vendor's authoritative job queue; station agents call this on
// every (re)connect to reconcile local offer state.
func (h *JobHandler) VendorQueue(c *gin.Context) {
	vendorID := c.Param("vendor_id")
	if vendorID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "vendor_id is required",
		})
		return
	}

	jobs, err := h.storage.VendorQueue(c.Request.Context(), vendorID)
	if err != nil {
		h.logger.Error("Failed to get vendor queue",
			slog.String("vendor_id", vendorID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get vendor queue",
		})
		return
	}

	queue := make([]dto.QueueJobDTO, len(jobs))
	for i, job := range jobs {
		queue[i] = dto.QueueJobDTO{
			JobID:        job.JobID,
			TrackingCode: job.TrackingCode,
			FileName:     job.FileName,
			Status:       job.Status,
			TotalPrice:   job.TotalPrice,
			Earnings:     job.Earnings,
			CreatedAt:    job.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, dto.VendorQueueResponse{
		VendorID: vendorID,
		Jobs:     queue,
	})
}

// toJobDTO maps a job row to its API shape, including the presentation
// label for the status
func toJobDTO(job *model.Job) dto.JobDTO {
	return dto.JobDTO{
		JobID:            job.JobID,
		TrackingCode:     job.TrackingCode,
		CustomerID:       job.CustomerID,
		FileName:         job.FileName,
		Copies:           job.Copies,
		Color:            job.Color,
		PaperSize:        job.PaperSize,
		DoubleSided:      job.DoubleSided,
		PageCount:        job.PageCount,
		Status:           job.Status,
		StatusLabel:      lifecycle.Label(domain.JobStatus(job.Status)),
		AssignedVendorID: job.AssignedVendorID,
		TotalPrice:       job.TotalPrice,
		CreatedAt:        job.CreatedAt.Format(time.RFC3339),
		UpdatedAt:        job.UpdatedAt.Format(time.RFC3339),
	}
}

// newTrackingCode builds the short opaque code customers use to look up a
// job without an account
func newTrackingCode() string {
	return fmt.Sprintf("SP-%s", strings.ToUpper(uuid.New().String()[:8]))
}
