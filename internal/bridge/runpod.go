// Package bridge offloads the photo batch to a remote serverless GPU worker
// (RunPod-style API). Photos travel base64-encoded in the job payload; the
// worker answers with a base64 ZIP of the cleaned set.
package bridge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/daniarmadeit/idi-motors-bot/internal/config"
)

var (
	// ErrJobFailed means the worker reported failure, either at the
	// transport level or inside the job output.
	ErrJobFailed = errors.New("remote job failed")
	// ErrJobTimeout means the worker did not reach a terminal state within
	// the wait budget. Distinct from ErrJobFailed so callers can tell
	// "worker errored" from "worker too slow".
	ErrJobTimeout = errors.New("remote job timed out")
)

const (
	statusCompleted = "COMPLETED"
	statusFailed    = "FAILED"

	submitTimeout = 30 * time.Second
	pollTimeout   = 15 * time.Second

	// progress is reported to the caller every Nth poll, coarser than the
	// poll interval itself
	progressEvery = 3
)

type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client

	sync         bool
	pollInterval time.Duration
	maxWait      time.Duration
	photoLimit   int
}

func NewClient(httpClient *http.Client, cfg config.RunPodConfig) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 300
	}
	return &Client{
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		client:       httpClient,
		sync:         cfg.Sync,
		pollInterval: cfg.PollInterval * time.Second,
		maxWait:      cfg.MaxWait * time.Second,
		photoLimit:   cfg.PhotoLimit,
	}
}

type JobInput struct {
	PhotoURLs []string `json:"photo_urls"`
}

type JobRequest struct {
	Input JobInput `json:"input"`
}

// JobOutput is the application-level result inside a COMPLETED job. Its own
// Status field is independent of the transport-level job status; both must
// be checked.
type JobOutput struct {
	Status    string `json:"status"`
	ZipBase64 string `json:"zip_base64"`
	Error     string `json:"error,omitempty"`
}

// Archive validates the application status and decodes the result ZIP.
func (o *JobOutput) Archive() ([]byte, error) {
	if o.Status != "success" {
		msg := o.Error
		if msg == "" {
			msg = "worker reported " + o.Status
		}
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, msg)
	}
	raw, err := base64.StdEncoding.DecodeString(o.ZipBase64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode result archive: %v", ErrJobFailed, err)
	}
	return raw, nil
}

type jobStatus struct {
	ID     string     `json:"id"`
	Status string     `json:"status"`
	Output *JobOutput `json:"output,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// Process ships the photos to the worker and returns the cleaned ZIP bytes.
// The payload is capped at the bridge's own photo limit, which is stricter
// than the batch cap because of platform payload limits.
func (c *Client) Process(ctx context.Context, photos [][]byte, progress func(done, total int)) ([]byte, int, error) {
	if c.photoLimit > 0 && len(photos) > c.photoLimit {
		log.Printf("[bridge] capping %d photos to payload limit %d", len(photos), c.photoLimit)
		photos = photos[:c.photoLimit]
	}

	payload := JobRequest{}
	for _, p := range photos {
		payload.Input.PhotoURLs = append(payload.Input.PhotoURLs, base64.StdEncoding.EncodeToString(p))
	}

	var out *JobOutput
	var err error
	if c.sync {
		out, err = c.RunSync(ctx, payload)
	} else {
		var jobID string
		jobID, err = c.SubmitJob(ctx, payload)
		if err == nil {
			out, err = c.Await(ctx, jobID, progress)
		}
	}
	if err != nil {
		return nil, 0, err
	}

	zipBytes, err := out.Archive()
	if err != nil {
		return nil, 0, err
	}
	return zipBytes, len(photos), nil
}

// SubmitJob enqueues an asynchronous job and returns its id.
func (c *Client) SubmitJob(ctx context.Context, payload JobRequest) (string, error) {
	var status jobStatus
	if err := c.post(ctx, "/run", payload, submitTimeout, &status); err != nil {
		return "", err
	}
	if status.ID == "" {
		return "", fmt.Errorf("%w: submit returned no job id", ErrJobFailed)
	}
	return status.ID, nil
}

// RunSync blocks on the gateway until the job finishes or the gateway's own
// timeout elapses.
func (c *Client) RunSync(ctx context.Context, payload JobRequest) (*JobOutput, error) {
	var status jobStatus
	if err := c.post(ctx, "/runsync", payload, c.maxWait, &status); err != nil {
		return nil, err
	}
	return terminalOutput(&status)
}

// Await polls the job status until it is terminal or the wall-clock wait
// budget elapses; the budget covers the polls themselves, not just the
// sleeps between them. Progress is emitted every few polls so the reporting
// channel is not hammered at the poll rate.
func (c *Client) Await(ctx context.Context, jobID string, progress func(done, total int)) (*JobOutput, error) {
	start := time.Now()
	budget := int(c.maxWait.Seconds())

	for poll := 1; ; poll++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		if progress != nil && poll%progressEvery == 0 {
			progress(int(time.Since(start).Seconds()), budget)
		}

		status, err := c.pollStatus(ctx, jobID)
		if err != nil {
			// transient poll errors just burn budget
			log.Printf("[bridge] poll %s: %v", jobID, err)
		} else {
			log.Printf("[bridge] job %s status=%s", jobID, status.Status)
			switch status.Status {
			case statusCompleted, statusFailed:
				return terminalOutput(status)
			}
		}

		if elapsed := time.Since(start); elapsed >= c.maxWait {
			return nil, fmt.Errorf("%w after %s", ErrJobTimeout, elapsed.Round(time.Millisecond))
		}
	}
}

func (c *Client) pollStatus(ctx context.Context, jobID string) (*jobStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, pollTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+jobID, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status poll: HTTP %d", resp.StatusCode)
	}

	var status jobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, timeout time.Duration, into *jobStatus) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJobFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: HTTP %d: %s", ErrJobFailed, resp.StatusCode, snippet)
	}

	return json.NewDecoder(resp.Body).Decode(into)
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// terminalOutput maps a terminal job status onto its application output.
func terminalOutput(status *jobStatus) (*JobOutput, error) {
	if status.Status == statusFailed {
		msg := status.Error
		if msg == "" {
			msg = "no error detail"
		}
		return nil, fmt.Errorf("%w: %s", ErrJobFailed, msg)
	}
	if status.Output == nil {
		return nil, fmt.Errorf("%w: completed without output", ErrJobFailed)
	}
	return status.Output, nil
}
