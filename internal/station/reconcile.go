package station

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spoolr-in/spoolr/internal/dispatch/domain"
)

// queueSnapshot mirrors the API's vendor queue response
type queueSnapshot struct {
	VendorID string `json:"vendor_id"`
	Jobs     []struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	} `json:"jobs"`
}

// reconcile fetches the backend's authoritative queue for this vendor and
// discards any locally held offer it no longer lists. This covers an
// OFFER_CANCELLED missed during an outage: after reconnecting, the stale
// local offer disappears instead of being double-counted.
func (c *Client) reconcile(ctx context.Context) error {
	url := fmt.Sprintf("%s/api/v1/vendors/%s/queue", c.config.APIBaseURL, c.config.VendorID)

	reqCtx, cancel := context.WithTimeout(ctx, c.config.MessageTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build queue request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch queue snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("queue snapshot returned status %d", resp.StatusCode)
	}

	var snapshot queueSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode queue snapshot: %w", err)
	}

	c.applySnapshot(&snapshot)
	return nil
}

// applySnapshot compares the local offer against the authoritative queue
func (c *Client) applySnapshot(snapshot *queueSnapshot) {
	c.mu.Lock()
	offer := c.offer
	c.mu.Unlock()

	if offer == nil {
		return
	}

	for _, job := range snapshot.Jobs {
		if job.JobID == offer.jobID && job.Status == string(domain.StatusAwaitingAcceptance) {
			c.logger.Info("Local offer confirmed by backend queue",
				slog.String("job_id", offer.jobID),
			)
			return
		}
	}

	if c.clearOffer(offer.jobID) {
		c.logger.Info("Dropping stale local offer after reconciliation",
			slog.String("job_id", offer.jobID),
		)
		c.emit(OfferWithdrawn{
			JobID:  offer.jobID,
			Reason: "offer no longer in backend queue",
		})
	}
}
