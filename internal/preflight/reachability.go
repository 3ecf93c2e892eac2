package preflight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Prober checks whether a locator is fetchable. A nil error means reachable.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

// HTTPProber probes locators with HEAD requests. Not-found, forbidden, and
// timeout all count as unreachable.
type HTTPProber struct {
	Client  *http.Client
	Timeout time.Duration
}

// NewHTTPProber builds a prober with a per-probe timeout.
func NewHTTPProber(timeout time.Duration) *HTTPProber {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPProber{Client: &http.Client{Timeout: timeout}, Timeout: timeout}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, rawURL string) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || probeCtx.Err() != nil {
			return errors.New("probe timed out")
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("probe returned %d", resp.StatusCode)
	}
	return nil
}

// defaultProbeConcurrency bounds the probe fan-out when the caller does not
// set one.
const defaultProbeConcurrency = 4

type probeTarget struct {
	ordinal int
	url     string
}

type probeFailure struct {
	ordinal int
	err     error
}

// probeAll checks all targets with bounded concurrency and returns failures
// ordered by scene so repeated preflight runs report identically.
func probeAll(ctx context.Context, prober Prober, targets []probeTarget, concurrency int) []probeFailure {
	if prober == nil {
		return nil
	}
	if concurrency <= 0 {
		concurrency = defaultProbeConcurrency
	}

	var (
		mu       sync.Mutex
		failures []probeFailure
		wg       sync.WaitGroup
	)
	slots := make(chan struct{}, concurrency)

	for _, target := range targets {
		wg.Add(1)
		go func(target probeTarget) {
			defer wg.Done()
			slots <- struct{}{}
			defer func() { <-slots }()

			if err := prober.Probe(ctx, target.url); err != nil {
				mu.Lock()
				failures = append(failures, probeFailure{ordinal: target.ordinal, err: err})
				mu.Unlock()
			}
		}(target)
	}
	wg.Wait()

	sort.Slice(failures, func(i, j int) bool { return failures[i].ordinal < failures[j].ordinal })
	return failures
}
