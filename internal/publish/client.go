package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"brandops/internal/job"
	logx "brandops/pkg/logx"
)

// Client posts submissions and status updates as JSON.
//
// All calls share one rate limiter so a large batch doesn't burst the
// platform's API.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger
}

func NewClient(cfg Config, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 5
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Submit hands one post to the platform. A nil error means the platform
// accepted it and owns delivery at s.ScheduleTime.
func (c *Client) Submit(ctx context.Context, s Submission) error {
	url := strings.TrimSpace(c.cfg.SubmitURL)
	if url == "" {
		return ErrNoEndpoint
	}
	start := time.Now()
	if err := c.post(ctx, url, s.wire()); err != nil {
		return err
	}
	c.log.Debug("submission accepted", logx.String("brand", s.Brand), logx.Time("at", s.ScheduleTime), logx.Duration("took", time.Since(start)))
	return nil
}

// UpdateStatus records a brand's new status for a job on the platform side.
func (c *Client) UpdateStatus(ctx context.Context, jobID, brandID string, st job.Status) error {
	url := strings.TrimSpace(c.cfg.StatusURL)
	if url == "" {
		return ErrNoEndpoint
	}
	return c.post(ctx, url, statusWire{JobID: jobID, Brand: brandID, Status: string(st)})
}

func (c *Client) post(ctx context.Context, url string, payload any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	return nil
}
