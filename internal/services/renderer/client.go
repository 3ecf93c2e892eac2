// Package renderer is the HTTP client for the external render service. The
// renderer is expensive and cannot be cancelled mid-frame, so submission is
// treated as committing to the job; everything else is pull-based status.
package renderer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyreel/internal/compiler"
	"storyreel/internal/services"
)

// Phase is the renderer's view of a submitted job.
type Phase string

const (
	PhaseQueued    Phase = "queued"
	PhaseRendering Phase = "rendering"
	PhaseUploading Phase = "uploading"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseCancelled Phase = "cancelled"
)

// Status is one pull of a remote job's state.
type Status struct {
	Phase     Phase   `json:"phase"`
	Progress  float64 `json:"progress"`
	OutputURL string  `json:"output_url,omitempty"`
	Message   string  `json:"message,omitempty"`
}

// Client talks to the render service.
type Client interface {
	Submit(ctx context.Context, spec *compiler.RenderSpec) (string, error)
	Status(ctx context.Context, remoteID string) (Status, error)
	Cancel(ctx context.Context, remoteID string) error
}

// HTTPDoer describes the HTTP client used by the service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpClient struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewClient builds a renderer client. An injectable doer keeps tests off the
// network.
func NewClient(baseURL, apiKey string, doer HTTPDoer) Client {
	if doer == nil {
		doer = &http.Client{Timeout: 30 * time.Second}
	}
	return &httpClient{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  doer,
	}
}

// Submit posts the render spec and returns the renderer's job id. The spec
// hash doubles as the renderer-side idempotency token so a resubmitted
// identical spec never renders twice.
func (c *httpClient) Submit(ctx context.Context, spec *compiler.RenderSpec) (string, error) {
	payload, err := json.Marshal(spec)
	if err != nil {
		return "", services.Wrap(services.ErrInternal, "renderer", "submit", "marshal spec", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/renders", bytes.NewReader(payload))
	if err != nil {
		return "", services.Wrap(services.ErrInternal, "renderer", "submit", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", spec.Hash)
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "renderer", "submit", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", services.Wrap(services.ErrTransient, "renderer", "submit", fmt.Sprintf("renderer returned %d", resp.StatusCode), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", services.Wrap(services.ErrValidation, "renderer", "submit", fmt.Sprintf("renderer rejected spec with %d", resp.StatusCode), nil)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", services.Wrap(services.ErrTransient, "renderer", "submit", "decode response", err)
	}
	if body.ID == "" {
		return "", services.Wrap(services.ErrTransient, "renderer", "submit", "renderer returned no job id", nil)
	}
	return body.ID, nil
}

// Status pulls the remote job state.
func (c *httpClient) Status(ctx context.Context, remoteID string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/renders/"+remoteID, nil)
	if err != nil {
		return Status{}, services.Wrap(services.ErrInternal, "renderer", "status", "build request", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "renderer", "status", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Status{}, services.Wrap(services.ErrNotFound, "renderer", "status", fmt.Sprintf("remote job %s", remoteID), nil)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return Status{}, services.Wrap(services.ErrTransient, "renderer", "status", fmt.Sprintf("renderer returned %d", resp.StatusCode), nil)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return Status{}, services.Wrap(services.ErrTransient, "renderer", "status", "decode response", err)
	}
	return status, nil
}

// Cancel asks the renderer to stop a job that has not entered its
// non-cancellable window.
func (c *httpClient) Cancel(ctx context.Context, remoteID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/renders/"+remoteID+"/cancel", nil)
	if err != nil {
		return services.Wrap(services.ErrInternal, "renderer", "cancel", "build request", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "renderer", "cancel", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusConflict {
		return services.Wrap(services.ErrTransient, "renderer", "cancel", fmt.Sprintf("renderer returned %d", resp.StatusCode), nil)
	}
	return nil
}

func (c *httpClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
