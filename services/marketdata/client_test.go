package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchDailyPrices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/stock_prices" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol = %q, want AAPL", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[
			{"symbol":"AAPL","date":"2026-08-20","open":229.1,"high":231.9,"low":228.4,"close":230.5,"volume":51234567},
			{"symbol":"AAPL","date":"2026-08-19","open":227.0,"high":229.5,"low":226.1,"close":229.0,"volume":48000000}
		],"totalElements":2}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	prices, err := client.FetchDailyPrices(context.Background(), "AAPL", 270)
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(prices) != 2 {
		t.Fatalf("got %d records, want 2", len(prices))
	}
	if prices[0].Close != 230.5 {
		t.Errorf("close = %v, want 230.5", prices[0].Close)
	}
	if prices[0].Date != "2026-08-20" {
		t.Errorf("date = %q, want 2026-08-20", prices[0].Date)
	}
}

func TestFetchEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[],"totalElements":0}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	_, err := client.FetchProfile(context.Background(), "AAPL")
	if !errors.Is(err, ErrEmptyPayload) {
		t.Errorf("err = %v, want ErrEmptyPayload", err)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if _, err := client.FetchRatings(context.Background(), "AAPL", 10); err == nil {
		t.Error("expected an error for a 429 response")
	}
}

func TestFetchMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": not json`))
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	if _, err := client.FetchEarnings(context.Background(), "AAPL", 8); err == nil {
		t.Error("expected an error for a malformed body")
	}
}

func TestFetchRespectsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.FetchProfile(ctx, "AAPL"); err == nil {
		t.Error("expected an error when the context deadline passes")
	}
}
