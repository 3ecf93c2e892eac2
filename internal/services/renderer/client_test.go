package renderer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"storyreel/internal/compiler"
	"storyreel/internal/services"
)

type scriptedDoer struct {
	status int
	body   string
	err    error

	lastRequest *http.Request
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.lastRequest = req
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: d.status,
		Body:       io.NopCloser(bytes.NewBufferString(d.body)),
	}, nil
}

func testSpec() *compiler.RenderSpec {
	return &compiler.RenderSpec{Version: compiler.SpecVersion, ProjectID: "p1", Hash: "abc123"}
}

func TestSubmitSendsIdempotencyKey(t *testing.T) {
	doer := &scriptedDoer{status: http.StatusCreated, body: `{"id": "remote-7"}`}
	client := NewClient("https://render.example.com/", "secret", doer)

	remoteID, err := client.Submit(context.Background(), testSpec())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if remoteID != "remote-7" {
		t.Fatalf("remote id = %s", remoteID)
	}

	req := doer.lastRequest
	if req.URL.String() != "https://render.example.com/v1/renders" {
		t.Fatalf("url = %s", req.URL)
	}
	if got := req.Header.Get("Idempotency-Key"); got != "abc123" {
		t.Fatalf("Idempotency-Key = %q, want the spec hash", got)
	}
	if got := req.Header.Get("Authorization"); got != "Bearer secret" {
		t.Fatalf("Authorization = %q", got)
	}
}

func TestSubmitServerErrorIsTransient(t *testing.T) {
	doer := &scriptedDoer{status: http.StatusServiceUnavailable, body: "{}"}
	client := NewClient("https://render.example.com", "", doer)

	_, err := client.Submit(context.Background(), testSpec())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
}

func TestSubmitRejectionIsValidation(t *testing.T) {
	doer := &scriptedDoer{status: http.StatusUnprocessableEntity, body: "{}"}
	client := NewClient("https://render.example.com", "", doer)

	_, err := client.Submit(context.Background(), testSpec())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestSubmitNetworkErrorIsTransient(t *testing.T) {
	doer := &scriptedDoer{err: errors.New("connection refused")}
	client := NewClient("https://render.example.com", "", doer)

	_, err := client.Submit(context.Background(), testSpec())
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want ErrTransient", err)
	}
}

func TestStatusParsesPhase(t *testing.T) {
	doer := &scriptedDoer{status: http.StatusOK, body: `{"phase": "rendering", "progress": 62.5}`}
	client := NewClient("https://render.example.com", "", doer)

	status, err := client.Status(context.Background(), "remote-7")
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Phase != PhaseRendering || status.Progress != 62.5 {
		t.Fatalf("status = %+v", status)
	}
	if doer.lastRequest.URL.Path != "/v1/renders/remote-7" {
		t.Fatalf("path = %s", doer.lastRequest.URL.Path)
	}
}

func TestStatusNotFound(t *testing.T) {
	doer := &scriptedDoer{status: http.StatusNotFound, body: "{}"}
	client := NewClient("https://render.example.com", "", doer)

	_, err := client.Status(context.Background(), "gone")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCancelToleratesConflict(t *testing.T) {
	// The renderer answers 409 when a job passed its cancellable window; that
	// is not an error for the caller.
	doer := &scriptedDoer{status: http.StatusConflict, body: "{}"}
	client := NewClient("https://render.example.com", "", doer)

	if err := client.Cancel(context.Background(), "remote-7"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if doer.lastRequest.URL.Path != "/v1/renders/remote-7/cancel" {
		t.Fatalf("path = %s", doer.lastRequest.URL.Path)
	}
}
