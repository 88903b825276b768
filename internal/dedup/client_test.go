package dedup

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func ctcServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_BothRegistries(t *testing.T) {
	ctc := ctcServer(t, `[{"ctc_number":"01-02-3456-789012"},{"ctc_number":"11-22-3333-444455"}]`)
	elic := ctcServer(t, `[{"elicitation_number":"EL-1","has_results":false},{"elicitation_number":"EL-2","has_results":true}]`)

	c := NewClient(ctc.URL, elic.URL, time.Second)
	reg, err := c.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !reg.HasCTC("01-02-3456-789012") || !reg.HasCTC("11-22-3333-444455") {
		t.Error("ctc numbers missing from registry")
	}
	if reg.HasCTC("99-99-9999-999999") {
		t.Error("unexpected ctc number present")
	}
	if !reg.HasElicitation("EL-1") || reg.HasResults("EL-1") {
		t.Error("EL-1 should exist without results")
	}
	if !reg.HasResults("EL-2") {
		t.Error("EL-2 should carry results")
	}
}

func TestFetch_CTCCheckerDown(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer down.Close()
	elic := ctcServer(t, `[]`)

	c := NewClient(down.URL, elic.URL, time.Second)
	_, err := c.Fetch(context.Background())
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if ue.Checker != CheckerCTC {
		t.Errorf("expected CTC checker named, got %q", ue.Checker)
	}
	if ue.Error() != "CTC Deduplicator checker unavailable. Retry later!" {
		t.Errorf("unexpected message %q", ue.Error())
	}
}

func TestFetch_ElicitationCheckerTimeout(t *testing.T) {
	ctc := ctcServer(t, `[]`)
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`[]`))
	}))
	defer slow.Close()

	c := NewClient(ctc.URL, slow.URL, 50*time.Millisecond)
	start := time.Now()
	_, err := c.Fetch(context.Background())
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if ue.Checker != CheckerElicitation {
		t.Errorf("expected Elicitation checker named, got %q", ue.Checker)
	}
	if elapsed := time.Since(start); elapsed > 400*time.Millisecond {
		t.Errorf("fetch did not respect timeout, took %s", elapsed)
	}
}

func TestFetch_MalformedBody(t *testing.T) {
	ctc := ctcServer(t, `{"not":"an array"}`)
	elic := ctcServer(t, `[]`)

	c := NewClient(ctc.URL, elic.URL, time.Second)
	if _, err := c.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for malformed registry body")
	}
}
