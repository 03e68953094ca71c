package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yomu-app/yomu/internal/health"
)

func TestHealthz(t *testing.T) {
	t.Parallel()
	h := health.New()

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status field = %q, want ok", body.Status)
	}
}

func TestReadyz_AllPass(t *testing.T) {
	t.Parallel()
	h := health.New(
		health.Checker{Name: "vocab", Check: func(context.Context) error { return nil }},
		health.Checker{Name: "recognizer", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Checks["vocab"] != "ok" || body.Checks["recognizer"] != "ok" {
		t.Errorf("checks = %v", body.Checks)
	}
}

func TestReadyz_FailingCheck(t *testing.T) {
	t.Parallel()
	h := health.New(
		health.Checker{Name: "vocab", Check: func(context.Context) error { return errors.New("api unreachable") }},
		health.Checker{Name: "other", Check: func(context.Context) error { return nil }},
	)

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Status != "fail" {
		t.Errorf("status field = %q, want fail", body.Status)
	}
	if body.Checks["vocab"] != "api unreachable" {
		t.Errorf("vocab check = %q", body.Checks["vocab"])
	}
	if body.Checks["other"] != "ok" {
		t.Errorf("other check = %q, want ok", body.Checks["other"])
	}
}
