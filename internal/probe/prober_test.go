package probe

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/talkincode/toughwatch/internal/domain"
)

func probeOne(t *testing.T, srv domain.Service, opts Options) domain.Measurement {
	t.Helper()
	probers, err := NewProbers([]domain.Service{srv}, opts)
	if err != nil {
		t.Fatal(err)
	}
	return probers[srv.Name].Probe(context.Background(), srv)
}

func httpService(name, url string) domain.Service {
	return domain.Service{Name: name, URL: url, Type: domain.CheckTypeHTTP, Method: http.MethodGet, ExpectedStatus: 200}
}

func TestProbeSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	m := probeOne(t, httpService("ok", ts.URL), Options{Timeout: 2 * time.Second})
	if !m.Success {
		t.Fatalf("success = false, error %q", m.Error)
	}
	if m.StatusCode == nil || *m.StatusCode != 200 {
		t.Fatalf("status code = %v, want 200", m.StatusCode)
	}
	if m.Latency <= 0 {
		t.Fatal("latency not recorded")
	}
	if m.Timestamp.IsZero() {
		t.Fatal("timestamp not recorded")
	}
}

func TestProbeServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	m := probeOne(t, httpService("err", ts.URL), Options{Timeout: 2 * time.Second})
	if m.Success {
		t.Fatal("500 counted as success")
	}
	if m.Error != "HTTP 500" {
		t.Fatalf("error = %q, want HTTP 500", m.Error)
	}
	if m.StatusCode == nil || *m.StatusCode != 500 {
		t.Fatalf("status code = %v, want 500", m.StatusCode)
	}
}

func TestProbeExpectedStatusOverride(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	srv := httpService("gone", ts.URL)
	srv.ExpectedStatus = 404
	m := probeOne(t, srv, Options{Timeout: 2 * time.Second})
	if !m.Success {
		t.Fatalf("expected 404 not counted as success, error %q", m.Error)
	}
}

func TestProbeAnySuccessClassCounts(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	m := probeOne(t, httpService("nocontent", ts.URL), Options{Timeout: 2 * time.Second})
	if !m.Success {
		t.Fatalf("204 with expected 200 must still succeed, error %q", m.Error)
	}
}

func TestProbeTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer ts.Close()

	timeout := 50 * time.Millisecond
	m := probeOne(t, httpService("slow", ts.URL), Options{Timeout: timeout})
	if m.Success {
		t.Fatal("timeout counted as success")
	}
	if m.Error != "request timed out" {
		t.Fatalf("error = %q, want request timed out", m.Error)
	}
	if m.Latency != timeout {
		t.Fatalf("latency = %v, want the timeout %v", m.Latency, timeout)
	}
	if m.StatusCode != nil {
		t.Fatalf("status code = %d on timeout, want none", *m.StatusCode)
	}
}

func TestProbeConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	m := probeOne(t, httpService("dead", url), Options{Timeout: 2 * time.Second})
	if m.Success {
		t.Fatal("refused connection counted as success")
	}
	if m.Error == "" {
		t.Fatal("connection error not captured")
	}
	if m.StatusCode != nil {
		t.Fatal("status code set without a response")
	}
}

func TestProbeErrorTruncated(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL + "/" + strings.Repeat("a", 200)
	ts.Close()

	m := probeOne(t, httpService("dead", url), Options{Timeout: 2 * time.Second})
	if m.Error == "" {
		t.Fatal("error not captured")
	}
	if n := utf8.RuneCountInString(m.Error); n > maxErrorLen {
		t.Fatalf("error length = %d, want at most %d", n, maxErrorLen)
	}
}

func TestProbeReusesConnections(t *testing.T) {
	var conns int32
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	}))
	ts.Config.ConnState = func(c net.Conn, state http.ConnState) {
		if state == http.StateNew {
			atomic.AddInt32(&conns, 1)
		}
	}
	ts.Start()
	defer ts.Close()

	srv := httpService("pool", ts.URL)
	probers, err := NewProbers([]domain.Service{srv}, Options{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	p := probers[srv.Name]
	for i := 0; i < 3; i++ {
		if m := p.Probe(context.Background(), srv); !m.Success {
			t.Fatalf("probe %d failed: %q", i, m.Error)
		}
	}
	if got := atomic.LoadInt32(&conns); got != 1 {
		t.Fatalf("connections = %d, want 1 reused across probes", got)
	}
}

func TestAPIProbeContentType(t *testing.T) {
	var gotAccept string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		switch r.URL.Path {
		case "/json":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"ok":true}`))
		default:
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html></html>"))
		}
	}))
	defer ts.Close()

	srv := domain.Service{Name: "api", URL: ts.URL + "/json", Type: domain.CheckTypeAPI, Method: http.MethodGet, ExpectedStatus: 200}
	m := probeOne(t, srv, Options{Timeout: 2 * time.Second})
	if !m.Success {
		t.Fatalf("json response rejected: %q", m.Error)
	}
	if gotAccept != "application/json" {
		t.Fatalf("accept header = %q, want application/json", gotAccept)
	}

	srv.URL = ts.URL + "/html"
	m = probeOne(t, srv, Options{Timeout: 2 * time.Second})
	if m.Success {
		t.Fatal("html response accepted by the api prober")
	}
	if !strings.Contains(m.Error, "unexpected content type") {
		t.Fatalf("error = %q, want a content type complaint", m.Error)
	}
}

func TestNewProbersRejectsUnknownType(t *testing.T) {
	_, err := NewProbers([]domain.Service{{Name: "x", URL: "http://example.com", Type: "ftp"}}, Options{})
	if err == nil {
		t.Fatal("unknown check type accepted")
	}
}
