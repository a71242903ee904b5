// Package coordinator drives the offer/timeout/reassignment loop. All offer
// state lives here and is reached only through typed event handlers; other
// components never touch it directly.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
	"github.com/spoolr-in/spoolr/internal/dispatch/lifecycle"
	"github.com/spoolr-in/spoolr/internal/dispatch/ranker"
)

// JobStore is the persistence surface the coordinator needs. Every
// state-machine transition is durably mirrored so a restart resumes from the
// last known status.
type JobStore interface {
	GetJobByID(ctx context.Context, jobID string) (*domain.Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, from, to domain.JobStatus, vendorID string) error
	FlagForReview(ctx context.Context, jobID, reason string) error
	RecordOffer(ctx context.Context, rec *domain.OfferRecord) error
	FinalizeOffer(ctx context.Context, jobID, vendorID string, outcome domain.OfferOutcome) error
	CandidateVendors(ctx context.Context) ([]domain.VendorSnapshot, error)
	SetVendorConnected(ctx context.Context, vendorID string, connected bool) error
	SetVendorOpen(ctx context.Context, vendorID string, open bool) error
	RecoverableJobs(ctx context.Context) ([]string, error)
	PendingOfferVendor(ctx context.Context, jobID string) (string, error)
}

// Pusher delivers frames on a vendor's push channel
type Pusher interface {
	Push(vendorID string, payload any) error
}

// Config holds coordinator settings; all named values, never hardcoded
type Config struct {
	OfferWindow     time.Duration
	ServiceRadiusKm float64
	MaxAttempts     int
	PersistAttempts int
	PersistBackoff  time.Duration
	OpTimeout       time.Duration
}

// run is the dispatch attempt for one job: its cumulative exclusions, the
// attempt count, and the at-most-one outstanding offer with its expiry
// timer. Guarded by Coordinator.mu. issued flips once the offer's
// AWAITING_ACCEPTANCE write has landed; responses arriving before that are
// stale.
type run struct {
	job      *domain.Job
	excluded map[string]bool
	attempts int
	offer    *domain.Offer
	issued   bool
	timer    *time.Timer
}

// Coordinator matches jobs to vendors through sequential single-candidate
// offers with a server-authoritative expiry timer per offer.
type Coordinator struct {
	logger *slog.Logger
	store  JobStore
	push   Pusher
	config Config

	mu      sync.Mutex
	runs    map[string]*run   // job id -> active dispatch
	holders map[string]string // vendor id -> job id it currently holds an offer for
	closed  bool
}

// New creates a new Coordinator instance
func New(config Config, store JobStore, push Pusher, logger *slog.Logger) *Coordinator {
	if config.OfferWindow <= 0 {
		config.OfferWindow = 90 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 10
	}
	if config.PersistAttempts <= 0 {
		config.PersistAttempts = 3
	}
	if config.PersistBackoff <= 0 {
		config.PersistBackoff = 200 * time.Millisecond
	}
	if config.OpTimeout <= 0 {
		config.OpTimeout = 10 * time.Second
	}

	return &Coordinator{
		logger:  logger,
		store:   store,
		push:    push,
		config:  config,
		runs:    make(map[string]*run),
		holders: make(map[string]string),
	}
}

// Dispatch starts (or resumes) the offer loop for a job. Called by the
// worker pool when a job id arrives from the intake queue; redelivery of a
// job that is already dispatching or past PROCESSING is a no-op.
func (c *Coordinator) Dispatch(ctx context.Context, jobID string) error {
	job, err := c.store.GetJobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job: %w", err)
	}

	excluded := make(map[string]bool)

	switch job.Status {
	case domain.StatusUploaded:
		if err := c.persistTransition(ctx, job, domain.StatusProcessing, ""); err != nil {
			return err
		}
	case domain.StatusProcessing:
		// Resuming after a restart; the status write already happened.
	case domain.StatusAwaitingAcceptance:
		// The expiry timer for the in-flight offer died with the previous
		// process. Treat the interrupted offer as expired and resume
		// matching without that vendor.
		vendorID := c.expireInterruptedOffer(ctx, job)
		if err := c.persistTransition(ctx, job, domain.StatusVendorTimeout, ""); err != nil {
			return err
		}
		if err := c.persistTransition(ctx, job, domain.StatusProcessing, ""); err != nil {
			return err
		}
		if vendorID != "" {
			excluded[vendorID] = true
		}
	case domain.StatusVendorRejected, domain.StatusVendorTimeout:
		// A restart hit between the transient write and re-entering matching.
		if err := c.persistTransition(ctx, job, domain.StatusProcessing, ""); err != nil {
			return err
		}
	default:
		c.logger.Info("Skipping dispatch for job not awaiting matching",
			slog.String("job_id", jobID),
			slog.String("status", string(job.Status)),
		)
		return nil
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("coordinator is closed")
	}
	if _, exists := c.runs[jobID]; exists {
		c.mu.Unlock()
		c.logger.Info("Job already dispatching, ignoring duplicate",
			slog.String("job_id", jobID),
		)
		return nil
	}
	r := &run{job: job, excluded: excluded}
	c.runs[jobID] = r
	c.mu.Unlock()

	c.offerNext(ctx, r)
	return nil
}

// Recover resumes jobs whose matching was interrupted by a restart. Their
// intake deliveries were acknowledged before the process died, so the queue
// never redelivers them; this scan runs once at startup, before consuming.
func (c *Coordinator) Recover(ctx context.Context) error {
	jobIDs, err := c.store.RecoverableJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to scan for interrupted jobs: %w", err)
	}

	for _, jobID := range jobIDs {
		if err := c.Dispatch(ctx, jobID); err != nil {
			c.logger.Error("Failed to resume interrupted job",
				slog.String("job_id", jobID),
				slog.Any("error", err),
			)
		}
	}

	if len(jobIDs) > 0 {
		c.logger.Info("Resumed interrupted jobs",
			slog.Int("count", len(jobIDs)),
		)
	}

	return nil
}

// expireInterruptedOffer finalizes the offer that was pending when the
// previous process died and notifies its vendor, whose client may still show
// a countdown. Returns the vendor id, or empty when no pending offer exists.
func (c *Coordinator) expireInterruptedOffer(ctx context.Context, job *domain.Job) string {
	vendorID, err := c.store.PendingOfferVendor(ctx, job.ID)
	if err != nil {
		c.logger.Warn("Could not look up interrupted offer",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return ""
	}
	if vendorID == "" {
		return ""
	}

	if err := c.store.FinalizeOffer(ctx, job.ID, vendorID, domain.OfferExpired); err != nil {
		c.logger.Error("Failed to finalize interrupted offer",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}

	if err := c.push.Push(vendorID, &domain.CancelFrame{
		Type:    domain.MsgOfferCancelled,
		JobID:   job.ID,
		Message: "offer expired without a response",
	}); err != nil {
		c.logger.Debug("Could not notify vendor of interrupted offer",
			slog.String("vendor_id", vendorID),
			slog.Any("error", err),
		)
	}

	return vendorID
}

// offerNext ranks with the job's cumulative exclusions and offers the head
// candidate, or terminates the job when candidates are exhausted. The caller
// must be the sole owner of the run's forward progress (fresh dispatch, or
// the winner of a resolve).
func (c *Coordinator) offerNext(ctx context.Context, r *run) {
	job := r.job

	if r.attempts >= c.config.MaxAttempts {
		c.logger.Warn("Job exceeded max reassignment attempts",
			slog.String("job_id", job.ID),
			slog.Int("attempts", r.attempts),
		)
		c.finishNoVendors(ctx, r, "")
		return
	}

	vendors, err := c.snapshotVendors(ctx)
	if err != nil {
		c.logger.Error("Ranking snapshot failed after retries",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		c.finishNoVendors(ctx, r, fmt.Sprintf("ranking failed: %s", err))
		return
	}

	quotes := ranker.Rank(vendors, requirementsFor(job), ranker.Location{
		Latitude:  job.PickupLatitude,
		Longitude: job.PickupLongitude,
	}, c.config.ServiceRadiusKm, r.excluded)

	offer, quote := c.claimCandidate(r, quotes)
	if offer == nil {
		c.logger.Info("No candidate vendors for job",
			slog.String("job_id", job.ID),
			slog.Int("excluded", len(r.excluded)),
		)
		c.finishNoVendors(ctx, r, "")
		return
	}

	if err := c.persistTransition(ctx, job, domain.StatusAwaitingAcceptance, ""); err != nil {
		c.abandonOffer(r, offer)
		return
	}

	// The offer becomes resolvable only now that the status write landed; a
	// response racing the persist must not resolve it (and then attempt a
	// transition the state machine rejects).
	c.mu.Lock()
	if r.offer == offer {
		r.issued = true
	}
	c.mu.Unlock()

	if err := c.store.RecordOffer(ctx, &domain.OfferRecord{
		JobID:     offer.JobID,
		VendorID:  offer.VendorID,
		OfferedAt: offer.IssuedAt,
		Outcome:   domain.OfferPending,
	}); err != nil {
		c.logger.Error("Failed to record offer history",
			slog.String("job_id", offer.JobID),
			slog.String("vendor_id", offer.VendorID),
			slog.Any("error", err),
		)
	}

	frame := &domain.OfferFrame{
		Type:                  domain.MsgNewJobOffer,
		JobID:                 job.ID,
		TrackingCode:          job.TrackingCode,
		FileName:              job.FileName,
		Customer:              job.CustomerID,
		PrintSpecs:            job.Specs,
		TotalPrice:            job.TotalPrice,
		Earnings:              quote.Price,
		CreatedAt:             job.CreatedAt,
		IsAnonymous:           job.IsAnonymous(),
		OfferExpiresInSeconds: int(c.config.OfferWindow.Seconds()),
	}
	if err := c.push.Push(offer.VendorID, frame); err != nil {
		// Transport failure: the push is dropped and the server timer still
		// reassigns, so this is not fatal.
		c.logger.Warn("Failed to push offer to vendor",
			slog.String("job_id", job.ID),
			slog.String("vendor_id", offer.VendorID),
			slog.Any("error", err),
		)
	}

	c.armTimer(r, offer)

	c.logger.Info("Offer issued",
		slog.String("job_id", job.ID),
		slog.String("vendor_id", offer.VendorID),
		slog.Float64("earnings", quote.Price),
		slog.Time("expires_at", offer.ExpiresAt),
		slog.Int("attempt", r.attempts),
	)
}

// claimCandidate picks the first ranked candidate not already holding an
// offer for another job and records the new pending offer under the lock.
func (c *Coordinator) claimCandidate(r *run, quotes []domain.CandidateQuote) (*domain.Offer, *domain.CandidateQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range quotes {
		q := &quotes[i]
		if held, busy := c.holders[q.VendorID]; busy && held != r.job.ID {
			continue
		}

		now := time.Now()
		offer := &domain.Offer{
			JobID:     r.job.ID,
			VendorID:  q.VendorID,
			IssuedAt:  now,
			ExpiresAt: now.Add(c.config.OfferWindow),
			Outcome:   domain.OfferPending,
		}
		r.offer = offer
		r.issued = false
		r.attempts++
		c.holders[q.VendorID] = r.job.ID
		return offer, q
	}

	return nil, nil
}

// armTimer schedules the server-side expiry for the offer. The timer, not
// the client countdown, is authoritative.
func (c *Coordinator) armTimer(r *run, offer *domain.Offer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || r.offer != offer || offer.Outcome != domain.OfferPending {
		return
	}
	jobID, vendorID := offer.JobID, offer.VendorID
	r.timer = time.AfterFunc(c.config.OfferWindow, func() {
		c.handleTimeout(jobID, vendorID)
	})
}

// abandonOffer rolls back a claimed candidate whose offer could never be
// issued (persistence exhausted). The job is already flagged for review.
func (c *Coordinator) abandonOffer(r *run, offer *domain.Offer) {
	c.mu.Lock()
	offer.Outcome = domain.OfferSuperseded
	if c.holders[offer.VendorID] == offer.JobID {
		delete(c.holders, offer.VendorID)
	}
	delete(c.runs, offer.JobID)
	c.mu.Unlock()
}

// resolve atomically flips a pending offer to a terminal outcome. Exactly
// one caller wins a near-simultaneous accept-versus-timeout race; losers get
// won=false and treat it as a no-op.
func (c *Coordinator) resolve(jobID, vendorID string, outcome domain.OfferOutcome) (*run, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.runs[jobID]
	if r == nil || r.offer == nil || !r.issued {
		return nil, false
	}
	offer := r.offer
	if offer.Outcome != domain.OfferPending || offer.VendorID != vendorID {
		return nil, false
	}

	offer.Outcome = outcome
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
	if c.holders[vendorID] == jobID {
		delete(c.holders, vendorID)
	}

	return r, true
}

// removeRun drops a finished dispatch
func (c *Coordinator) removeRun(jobID string) {
	c.mu.Lock()
	delete(c.runs, jobID)
	c.mu.Unlock()
}

// HandleJobResponse routes a vendor's accept/decline. Part of the channel
// router's event sink.
func (c *Coordinator) HandleJobResponse(ctx context.Context, resp *domain.JobResponse) {
	switch resp.Response {
	case domain.ResponseAccept:
		c.handleAccept(ctx, resp.JobID, resp.VendorID)
	case domain.ResponseDecline:
		c.handleDecline(ctx, resp.JobID, resp.VendorID)
	}
}

// handleAccept finalizes the offer as accepted and assigns the vendor. A
// stale or duplicate accept is a logged no-op, never an error surfaced to
// the vendor beyond the error ack.
func (c *Coordinator) handleAccept(ctx context.Context, jobID, vendorID string) {
	r, won := c.resolve(jobID, vendorID, domain.OfferAccepted)
	if !won {
		c.logger.Info("Stale accept discarded",
			slog.String("job_id", jobID),
			slog.String("vendor_id", vendorID),
		)
		_ = c.push.Push(vendorID, &domain.AckFrame{
			Type:  domain.MsgJobResponseError,
			JobID: jobID,
			Error: "offer is no longer available",
		})
		return
	}

	if err := c.store.FinalizeOffer(ctx, jobID, vendorID, domain.OfferAccepted); err != nil {
		c.logger.Error("Failed to finalize offer history",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}

	if err := c.persistTransition(ctx, r.job, domain.StatusAccepted, vendorID); err != nil {
		c.removeRun(jobID)
		return
	}

	_ = c.push.Push(vendorID, &domain.AckFrame{
		Type:    domain.MsgJobAccepted,
		JobID:   jobID,
		Message: "job assigned",
	})

	c.logger.Info("Job accepted",
		slog.String("job_id", jobID),
		slog.String("vendor_id", vendorID),
	)

	c.removeRun(jobID)
}

// handleDecline finalizes the offer as declined, excludes the vendor, and
// re-enters the offer loop.
func (c *Coordinator) handleDecline(ctx context.Context, jobID, vendorID string) {
	r, won := c.resolve(jobID, vendorID, domain.OfferDeclined)
	if !won {
		c.logger.Info("Stale decline discarded",
			slog.String("job_id", jobID),
			slog.String("vendor_id", vendorID),
		)
		_ = c.push.Push(vendorID, &domain.AckFrame{
			Type:  domain.MsgJobResponseError,
			JobID: jobID,
			Error: "offer is no longer available",
		})
		return
	}

	if err := c.store.FinalizeOffer(ctx, jobID, vendorID, domain.OfferDeclined); err != nil {
		c.logger.Error("Failed to finalize offer history",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}

	_ = c.push.Push(vendorID, &domain.AckFrame{
		Type:    domain.MsgJobDeclined,
		JobID:   jobID,
		Message: "decline recorded",
	})

	c.logger.Info("Offer declined, reassigning",
		slog.String("job_id", jobID),
		slog.String("vendor_id", vendorID),
	)

	c.reassign(ctx, r, vendorID, domain.StatusVendorRejected)
}

// handleTimeout fires from the server-side expiry timer. Handled like a
// decline, plus an OFFER_CANCELLED push in case the vendor's client still
// shows the expired offer.
func (c *Coordinator) handleTimeout(jobID, vendorID string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.OpTimeout)
	defer cancel()

	r, won := c.resolve(jobID, vendorID, domain.OfferExpired)
	if !won {
		// The vendor responded just before the timer fired; the response won.
		return
	}

	if err := c.store.FinalizeOffer(ctx, jobID, vendorID, domain.OfferExpired); err != nil {
		c.logger.Error("Failed to finalize offer history",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}

	if err := c.push.Push(vendorID, &domain.CancelFrame{
		Type:    domain.MsgOfferCancelled,
		JobID:   jobID,
		Message: "offer expired without a response",
	}); err != nil {
		c.logger.Debug("Could not notify vendor of expired offer",
			slog.String("vendor_id", vendorID),
			slog.Any("error", err),
		)
	}

	c.logger.Info("Offer expired, reassigning",
		slog.String("job_id", jobID),
		slog.String("vendor_id", vendorID),
	)

	c.reassign(ctx, r, vendorID, domain.StatusVendorTimeout)
}

// reassign records the transient status, re-enters PROCESSING with the
// vendor excluded, and offers the next candidate.
func (c *Coordinator) reassign(ctx context.Context, r *run, vendorID string, transient domain.JobStatus) {
	c.mu.Lock()
	r.excluded[vendorID] = true
	r.offer = nil
	r.issued = false
	c.mu.Unlock()

	if err := c.persistTransition(ctx, r.job, transient, ""); err != nil {
		c.removeRun(r.job.ID)
		return
	}
	if err := c.persistTransition(ctx, r.job, domain.StatusProcessing, ""); err != nil {
		c.removeRun(r.job.ID)
		return
	}

	c.offerNext(ctx, r)
}

// finishNoVendors terminates the job. An empty candidate list is a valid
// outcome, not an error; annotation is set when ranking itself failed.
func (c *Coordinator) finishNoVendors(ctx context.Context, r *run, annotation string) {
	if err := c.persistTransition(ctx, r.job, domain.StatusNoVendors, ""); err == nil && annotation != "" {
		if reviewErr := c.store.FlagForReview(ctx, r.job.ID, annotation); reviewErr != nil {
			c.logger.Error("Failed to flag job for review",
				slog.String("job_id", r.job.ID),
				slog.Any("error", reviewErr),
			)
		}
	}

	c.logger.Info("Job has no vendors available",
		slog.String("job_id", r.job.ID),
		slog.Int("attempts", r.attempts),
	)

	c.removeRun(r.job.ID)
}

// persistTransition validates the transition, durably mirrors it with
// bounded backoff, and updates the in-memory job. After exhaustion the job
// is flagged for manual review rather than silently losing its assignment.
func (c *Coordinator) persistTransition(ctx context.Context, job *domain.Job, to domain.JobStatus, vendorID string) error {
	if _, err := lifecycle.Transition(job.Status, to); err != nil {
		c.logger.Error("Refusing illegal transition",
			slog.String("job_id", job.ID),
			slog.String("from", string(job.Status)),
			slog.String("to", string(to)),
		)
		return err
	}

	var lastErr error
	for attempt := 0; attempt < c.config.PersistAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.config.PersistBackoff * time.Duration(uint(1)<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = c.store.UpdateJobStatus(ctx, job.ID, job.Status, to, vendorID)
		if lastErr == nil {
			job.Status = to
			if vendorID != "" {
				job.AssignedVendorID = vendorID
			}
			return nil
		}

		var retryable *domain.RetryableError
		if !errors.As(lastErr, &retryable) {
			break
		}

		c.logger.Warn("Transient failure persisting job status, retrying",
			slog.String("job_id", job.ID),
			slog.Int("attempt", attempt+1),
			slog.Any("error", lastErr),
		)
	}

	c.logger.Error("Failed to persist job status",
		slog.String("job_id", job.ID),
		slog.String("to", string(to)),
		slog.Any("error", lastErr),
	)

	// A stale CAS means someone else legally moved the job (e.g. a customer
	// cancellation); that is a lost race, not a lost write.
	if errors.Is(lastErr, domain.ErrStaleResponse) {
		return lastErr
	}

	if err := c.store.FlagForReview(ctx, job.ID,
		fmt.Sprintf("failed to persist transition %s -> %s: %s", job.Status, to, lastErr)); err != nil {
		c.logger.Error("Failed to flag job for review",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
	}

	return lastErr
}

// snapshotVendors fetches the availability snapshot with bounded backoff
func (c *Coordinator) snapshotVendors(ctx context.Context) ([]domain.VendorSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt < c.config.PersistAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.config.PersistBackoff * time.Duration(uint(1)<<uint(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		vendors, err := c.store.CandidateVendors(ctx)
		if err == nil {
			return vendors, nil
		}
		lastErr = err

		var retryable *domain.RetryableError
		if !errors.As(err, &retryable) {
			break
		}
	}
	return nil, lastErr
}

// HandleHeartbeat applies a vendor status heartbeat. Part of the channel
// router's event sink.
func (c *Coordinator) HandleHeartbeat(ctx context.Context, hb *domain.StatusHeartbeat) {
	if err := c.store.SetVendorOpen(ctx, hb.VendorID, hb.IsAvailable); err != nil {
		c.logger.Warn("Failed to apply vendor heartbeat",
			slog.String("vendor_id", hb.VendorID),
			slog.Any("error", err),
		)
	}
}

// VendorConnected marks live channel presence
func (c *Coordinator) VendorConnected(ctx context.Context, vendorID string) {
	if err := c.store.SetVendorConnected(ctx, vendorID, true); err != nil {
		c.logger.Warn("Failed to mark vendor connected",
			slog.String("vendor_id", vendorID),
			slog.Any("error", err),
		)
	}
}

// VendorDisconnected clears live channel presence. Any outstanding offer is
// left to the server timer; disconnection alone never resolves an offer.
func (c *Coordinator) VendorDisconnected(ctx context.Context, vendorID string) {
	if err := c.store.SetVendorConnected(ctx, vendorID, false); err != nil {
		c.logger.Warn("Failed to mark vendor disconnected",
			slog.String("vendor_id", vendorID),
			slog.Any("error", err),
		)
	}
}

// Close stops all expiry timers and refuses new dispatches
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for _, r := range c.runs {
		if r.timer != nil {
			r.timer.Stop()
			r.timer = nil
		}
	}
}

// ActiveOffers reports the number of outstanding offers; used by the health
// endpoint.
func (c *Coordinator) ActiveOffers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.runs {
		if r.offer != nil && r.offer.Outcome == domain.OfferPending {
			n++
		}
	}
	return n
}

// requirementsFor derives the capability set a job needs from its specs
func requirementsFor(job *domain.Job) ranker.Requirements {
	caps := []string{job.Specs.PaperSize}
	if job.Specs.Color {
		caps = append(caps, "color")
	}
	if job.Specs.DoubleSided {
		caps = append(caps, "duplex")
	}
	return ranker.Requirements{
		Capabilities: caps,
		Specs:        job.Specs,
		PageCount:    job.PageCount,
	}
}
