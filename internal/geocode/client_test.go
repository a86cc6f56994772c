package geocode

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/config"
)

func testConfig(baseURL string) config.GeocodeConfig {
	return config.GeocodeConfig{
		BaseURL:     baseURL,
		UserAgent:   "disaster-warehouse-test/1.0",
		Timeout:     5 * time.Second,
		MaxRetries:  3,
		RatePerSec:  1000,
		InitialWait: time.Millisecond,
		MaxWait:     5 * time.Millisecond,
	}
}

func TestClient_Lookup(t *testing.T) {
	var gotQuery url.Values
	var gotAgent string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `[{"lat":"9.9312","lon":"76.2673","display_name":"Kochi, Kerala, India","address":{"country":"India","country_code":"in"}}]`)
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL))

	res, err := client.Lookup(context.Background(), "Kochi, India")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}

	if gotQuery.Get("q") != "Kochi, India" {
		t.Errorf("unexpected query %q", gotQuery.Get("q"))
	}
	if gotQuery.Get("format") != "json" {
		t.Errorf("expected format=json, got %q", gotQuery.Get("format"))
	}
	if gotQuery.Get("limit") != "1" {
		t.Errorf("expected limit=1, got %q", gotQuery.Get("limit"))
	}
	if gotAgent != "disaster-warehouse-test/1.0" {
		t.Errorf("unexpected User-Agent %q", gotAgent)
	}

	if res.Latitude != 9.9312 || res.Longitude != 76.2673 {
		t.Errorf("unexpected coordinates (%v, %v)", res.Latitude, res.Longitude)
	}
	if res.DisplayName != "Kochi, Kerala, India" {
		t.Errorf("unexpected display name %q", res.DisplayName)
	}
	if res.CountryCode != "in" {
		t.Errorf("unexpected country code %q", res.CountryCode)
	}
}

func TestClient_Lookup_NotFound(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `[]`)
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL))

	_, err := client.Lookup(context.Background(), "Atlantis")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	// A definitive miss is permanent, not transient.
	if calls != 1 {
		t.Errorf("expected 1 request, got %d", calls)
	}
}

func TestClient_Lookup_RetriesServerError(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `[{"lat":"35.6762","lon":"139.6503","display_name":"Tokyo, Japan","address":{"country_code":"jp"}}]`)
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL))

	res, err := client.Lookup(context.Background(), "Tokyo")
	if err != nil {
		t.Fatalf("Lookup failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 requests, got %d", calls)
	}
	if res.CountryCode != "jp" {
		t.Errorf("unexpected country code %q", res.CountryCode)
	}
}

func TestClient_Lookup_EmptyQuery(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer ts.Close()

	client := NewClient(testConfig(ts.URL))

	if _, err := client.Lookup(context.Background(), "   "); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for blank query, got %v", err)
	}
	if calls != 0 {
		t.Errorf("expected no requests for blank query, got %d", calls)
	}
}
