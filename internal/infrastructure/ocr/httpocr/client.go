// Package httpocr talks to the asynchronous text-detection service. Jobs are
// started with a storage reference, polled by remote job ID and fetched once
// the service reports a terminal status.
package httpocr

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/archive-assistant/internal/core/domain"
	"github.com/kirillkom/archive-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	APIKey             string
	RequestTimeout     time.Duration
	ResilienceExecutor *resilience.Executor
}

func New(baseURL string, options Options) *Client {
	timeout := options.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     options.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.ResilienceExecutor,
	}
}

// StartJob submits a detection job and returns the remote job ID.
func (c *Client) StartJob(ctx context.Context, sourceRef string, mode domain.OCRMode) (string, error) {
	request := map[string]any{
		"source_ref": sourceRef,
		"mode":       string(mode),
	}

	var response struct {
		JobID string `json:"job_id"`
	}
	err := c.execute(ctx, "ocr.start_job", func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/jobs", request, &response, "start_job")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("ocr start job", err)
	}
	if response.JobID == "" {
		return "", fmt.Errorf("ocr start_job: empty job id in response")
	}
	return response.JobID, nil
}

func (c *Client) GetStatus(ctx context.Context, remoteJobID string) (domain.JobStatus, error) {
	var response struct {
		Status string `json:"status"`
	}
	err := c.execute(ctx, "ocr.get_status", func(ctx context.Context) error {
		return c.getJSON(ctx, "/v1/jobs/"+remoteJobID, &response, "get_status")
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("ocr get status", err)
	}

	status := domain.JobStatus(strings.ToUpper(strings.TrimSpace(response.Status)))
	switch status {
	case domain.JobInProgress, domain.JobSucceeded, domain.JobFailed, domain.JobPartialSuccess:
		return status, nil
	default:
		return "", fmt.Errorf("ocr get_status: unknown status %q", response.Status)
	}
}

func (c *Client) GetResult(ctx context.Context, remoteJobID string) (*domain.OCRPayload, error) {
	var payload domain.OCRPayload
	err := c.execute(ctx, "ocr.get_result", func(ctx context.Context) error {
		return c.getJSON(ctx, "/v1/jobs/"+remoteJobID+"/result", &payload, "get_result")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("ocr get result", err)
	}
	return &payload, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor != nil {
		return c.executor.Execute(ctx, operation, call, resilience.ClassifyHTTPError)
	}
	return call(ctx)
}
