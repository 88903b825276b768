// Package dedup fetches the cross-service registries of already-uploaded
// identifiers that the CSV pipeline validates against.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	// CheckerCTC and CheckerElicitation name the two registries in errors.
	CheckerCTC         = "CTC"
	CheckerElicitation = "Elicitation"
)

// UnavailableError reports that one of the dedup checkers could not be
// reached or answered with a failure status. It is terminal for the upload.
type UnavailableError struct {
	Checker string
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s Deduplicator checker unavailable. Retry later!", e.Checker)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Registry holds the identifier sets fetched for a single upload request.
// It is a value passed through the pipeline, never shared across requests.
type Registry struct {
	// CTCNumbers is the set of already-uploaded client CTC numbers.
	CTCNumbers map[string]struct{}
	// Elicitations maps already-uploaded elicitation numbers to whether
	// results have been registered against them.
	Elicitations map[string]bool
}

// HasCTC reports whether the CTC number is already uploaded.
func (r *Registry) HasCTC(n string) bool {
	_, ok := r.CTCNumbers[n]
	return ok
}

// HasElicitation reports whether the elicitation number is already uploaded.
func (r *Registry) HasElicitation(n string) bool {
	_, ok := r.Elicitations[n]
	return ok
}

// HasResults reports whether the elicitation number already carries results.
func (r *Registry) HasResults(n string) bool { return r.Elicitations[n] }

// Client fetches both registries from their configured endpoints.
type Client struct {
	ctcURL         string
	elicitationURL string
	timeout        time.Duration
	hc             *http.Client
}

// NewClient builds a registry client. timeout bounds the combined fetch;
// zero means the 10s default.
func NewClient(ctcURL, elicitationURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		ctcURL:         ctcURL,
		elicitationURL: elicitationURL,
		timeout:        timeout,
		hc:             &http.Client{},
	}
}

type ctcEntry struct {
	CTCNumber string `json:"ctc_number"`
}

type elicitationEntry struct {
	ElicitationNumber string `json:"elicitation_number"`
	HasResults        bool   `json:"has_results"`
}

// Fetch retrieves both registries concurrently. Both calls share one
// deadline; if either times out or reports failure the whole fetch fails
// with an *UnavailableError naming the checker.
func (c *Client) Fetch(ctx context.Context) (*Registry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reg := &Registry{
		CTCNumbers:   map[string]struct{}{},
		Elicitations: map[string]bool{},
	}

	errCh := make(chan error, 2)

	go func() {
		var entries []ctcEntry
		if err := c.getJSON(ctx, c.ctcURL, &entries); err != nil {
			errCh <- &UnavailableError{Checker: CheckerCTC, Err: err}
			return
		}
		for _, e := range entries {
			reg.CTCNumbers[e.CTCNumber] = struct{}{}
		}
		errCh <- nil
	}()

	go func() {
		var entries []elicitationEntry
		if err := c.getJSON(ctx, c.elicitationURL, &entries); err != nil {
			errCh <- &UnavailableError{Checker: CheckerElicitation, Err: err}
			return
		}
		for _, e := range entries {
			reg.Elicitations[e.ElicitationNumber] = e.HasResults
		}
		errCh <- nil
	}()

	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return reg, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("fetch %s: timed out after %s", url, c.timeout)
		}
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s: %w", url, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}
