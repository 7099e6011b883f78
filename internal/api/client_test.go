package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatbridge/internal/api"
)

func TestClientSendsAccountAndToken(t *testing.T) {
	var gotAuth, gotAccount string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != api.PathStats {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		gotAccount = r.URL.Query().Get("account")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.StatsResponse{Account: "ops", SentRecords: 4})
	}))
	defer srv.Close()

	client := api.NewClient(strings.TrimPrefix(srv.URL, "http://"), "tok", time.Second)
	stats, err := client.Stats(context.Background(), "ops")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Account != "ops" || stats.SentRecords != 4 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if gotAuth != "Bearer tok" || gotAccount != "ops" {
		t.Fatalf("auth=%q account=%q", gotAuth, gotAccount)
	}
}

func TestClientDecodesErrorResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{
			Error:   "invalid request",
			Details: map[string]string{"ids[0]": "ids[0] must be greater than 0"},
		})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "", time.Second)
	_, err := client.Resend(context.Background(), "", api.ResendRequest{IDs: []int64{0}})
	var statusErr *api.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.Status != http.StatusBadRequest || statusErr.Message != "invalid request" || statusErr.Details["ids[0]"] == "" {
		t.Fatalf("unexpected error: %+v", statusErr)
	}
}

func TestClientPostsResendBody(t *testing.T) {
	var body api.ResendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != api.PathQueueResend {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.ResendResponse{Account: "default", IDs: []int64{10, 11}})
	}))
	defer srv.Close()

	client := api.NewClient(srv.URL, "", time.Second)
	resp, err := client.Resend(context.Background(), "", api.ResendRequest{IDs: []int64{1, 2}})
	if err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if len(resp.IDs) != 2 || len(body.IDs) != 2 || body.IDs[0] != 1 {
		t.Fatalf("unexpected response %+v (body %+v)", resp, body)
	}
}
