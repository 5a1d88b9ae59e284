// HTTP adapter for the browser automation worker.
//
// The actual clicking of calendar cells happens in a separate headless
// browser process that exposes a single endpoint. This driver translates a
// BlockDates call into one POST against it and maps the response onto the
// transient/permanent taxonomy.
package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pkaratz/go-calsync-backend/internal/domain"
)

// HTTPDriver calls a browser-driver sidecar over HTTP. One request per
// BlockDates invocation; retrying is the scheduler's job, never the
// driver's.
type HTTPDriver struct {
	baseURL string
	client  *http.Client
}

// NewHTTPDriver builds a driver for the worker at baseURL (e.g.
// "http://automation:9400"). timeout bounds the full block operation,
// including the login the worker performs.
func NewHTTPDriver(baseURL string, timeout time.Duration) *HTTPDriver {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &HTTPDriver{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type blockRequest struct {
	Platform         domain.Platform `json:"platform"`
	Checkin          string          `json:"checkin"`
	Checkout         string          `json:"checkout"`
	ConfirmationCode string          `json:"confirmation_code"`
}

// BlockDates implements Capability.
func (d *HTTPDriver) BlockDates(ctx context.Context, platform domain.Platform, checkin, checkout time.Time, confirmationCode string) error {
	body, err := json.Marshal(blockRequest{
		Platform:         platform,
		Checkin:          checkin.Format("2006-01-02"),
		Checkout:         checkout.Format("2006-01-02"),
		ConfirmationCode: confirmationCode,
	})
	if err != nil {
		return NewPermanent(fmt.Sprintf("encode block request: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/block", bytes.NewReader(body))
	if err != nil {
		return NewPermanent(fmt.Sprintf("build block request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return NewTransient(fmt.Sprintf("automation worker unreachable: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		log.Debug().
			Str("platform", string(platform)).
			Str("confirmation_code", confirmationCode).
			Msg("dates blocked")
		return nil
	}

	detail := readDetail(resp.Body)
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
		// Credential or validation problems; retrying repeats the failure.
		return NewPermanent(fmt.Sprintf("worker rejected block (%d): %s", resp.StatusCode, detail))
	default:
		return NewTransient(fmt.Sprintf("worker error (%d): %s", resp.StatusCode, detail))
	}
}

// readDetail extracts a short failure description from the worker response,
// capped to keep last_error columns reasonable.
func readDetail(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(b) == 0 {
		return "no detail"
	}
	return string(b)
}
