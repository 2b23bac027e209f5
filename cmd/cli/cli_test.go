package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader("typed-secret\n"))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestStats_SendsBearerAndPrints(t *testing.T) {
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/network-stats/" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		auth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"Good","ping":12.5}`))
	}))
	defer ts.Close()

	out, err := run(t, "--api", ts.URL, "--token", "tok123", "stats")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if auth != "Bearer tok123" {
		t.Fatalf("Authorization=%q", auth)
	}
	if !strings.Contains(out, `"status": "Good"`) {
		t.Fatalf("output not pretty-printed: %q", out)
	}
}

func TestStats_APIErrorSurfaced(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"Unable to retrieve speedtest configuration or server list."}`))
	}))
	defer ts.Close()

	_, err := run(t, "--api", ts.URL, "--token", "x", "stats")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusServiceUnavailable {
		t.Fatalf("want APIError 503, got %v", err)
	}
}

func TestLogin_PromptsForPasswordAndPrintsExport(t *testing.T) {
	var got map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"user":{"id":"1"},"tokens":{"refresh":"r1","access":"a1"}}`))
	}))
	defer ts.Close()

	out, err := run(t, "--api", ts.URL, "login", "--email", "a@example.com", "--password", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got["password"] != "typed-secret" || got["email"] != "a@example.com" {
		t.Fatalf("payload=%v", got)
	}
	if !strings.Contains(out, "export NETMANAGER_TOKEN=a1") {
		t.Fatalf("output=%q", out)
	}
}

func TestPretty_NonJSONPassthrough(t *testing.T) {
	if got := pretty([]byte("plain")); got != "plain" {
		t.Fatalf("pretty=%q", got)
	}
}
