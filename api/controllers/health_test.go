package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/salesrank-backend/pkg/config"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "dev"}}
}

func TestHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(testConfig()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	if resp.Header().Get(envHeader) != "dev" {
		t.Fatalf("unexpected env header %q", resp.Header().Get(envHeader))
	}
}

func TestHealthReadyAllUp(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	handler := HealthReady(testConfig(), nil, map[string]Pinger{"db": ok, "redis": nil})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}

	var envelope struct {
		Data struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.Status != "ready" || envelope.Data.Checks["db"] != "up" {
		t.Fatalf("unexpected payload %+v", envelope.Data)
	}
	if _, ok := envelope.Data.Checks["redis"]; ok {
		t.Fatal("nil pinger should be skipped")
	}
}

func TestHealthReadyReportsFailure(t *testing.T) {
	handler := HealthReady(testConfig(), nil, map[string]Pinger{
		"db":       pingerFunc(func(context.Context) error { return nil }),
		"bigquery": pingerFunc(func(context.Context) error { return errors.New("403") }),
	})

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}

	var envelope struct {
		Error struct {
			Details struct {
				Checks map[string]string `json:"checks"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Details.Checks["bigquery"] != "down" || envelope.Error.Details.Checks["db"] != "up" {
		t.Fatalf("unexpected checks %+v", envelope.Error.Details.Checks)
	}
}
