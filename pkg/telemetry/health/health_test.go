package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"parchment-hq/parchment/pkg/blob"
)

func TestChecker_ReadinessAggregation(t *testing.T) {
	c := New(time.Second)
	c.Register("good", func(ctx context.Context) error { return nil })

	status := c.Readiness(context.Background())
	if status.Status != "ready" {
		t.Errorf("expected ready, got %s", status.Status)
	}

	c.Register("bad", func(ctx context.Context) error { return errors.New("down") })
	status = c.Readiness(context.Background())
	if status.Status != "degraded" {
		t.Errorf("one failing check should degrade, got %s", status.Status)
	}
	if status.Checks["bad"].Message != "down" {
		t.Errorf("failure message missing: %+v", status.Checks["bad"])
	}
}

func TestChecker_Timeout(t *testing.T) {
	c := New(20 * time.Millisecond)
	c.Register("slow", func(ctx context.Context) error {
		select {
		case <-time.After(time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	status := c.Readiness(context.Background())
	if status.Checks["slow"].Status != "unhealthy" {
		t.Errorf("slow check should time out: %+v", status.Checks["slow"])
	}
}

func TestReadinessHandler_StatusCodes(t *testing.T) {
	c := New(time.Second)
	c.Register("good", func(ctx context.Context) error { return nil })

	rr := httptest.NewRecorder()
	c.ReadinessHandler()(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rr.Code)
	}

	c.Register("bad", func(ctx context.Context) error { return errors.New("down") })
	rr = httptest.NewRecorder()
	c.ReadinessHandler()(rr, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rr.Code)
	}

	var status Status
	if err := json.Unmarshal(rr.Body.Bytes(), &status); err != nil {
		t.Fatalf("response is not JSON: %v", err)
	}
	if status.Status != "degraded" {
		t.Errorf("expected degraded body, got %+v", status)
	}
}

func TestBlobCheck(t *testing.T) {
	check := BlobCheck(blob.NewMemoryGateway())
	if err := check(context.Background()); err != nil {
		t.Errorf("probe against an empty gateway should pass: %v", err)
	}
}
