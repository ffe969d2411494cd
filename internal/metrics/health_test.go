package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func resetHealthState() {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.storageOK = false
	state.message = ""
	state.version = ""
	state.startTime = time.Now()
}

func TestSetStorageHealthHealthy(t *testing.T) {
	resetHealthState()
	SetStorageHealth(true, "ready")

	health := GetHealth()
	if health.Status != "healthy" {
		t.Errorf("expected status 'healthy', got '%s'", health.Status)
	}
	if health.Message != "ready" {
		t.Errorf("expected message 'ready', got '%s'", health.Message)
	}
}

func TestSetStorageHealthUnhealthy(t *testing.T) {
	resetHealthState()
	SetStorageHealth(false, "database open failed")

	health := GetHealth()
	if health.Status != "unhealthy" {
		t.Errorf("expected status 'unhealthy', got '%s'", health.Status)
	}
	if health.Message != "database open failed" {
		t.Errorf("expected message 'database open failed', got '%s'", health.Message)
	}
}

func TestGetHealthReportsVersion(t *testing.T) {
	resetHealthState()
	SetVersion("1.0.0")
	SetStorageHealth(true, "")

	health := GetHealth()
	if health.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got '%s'", health.Version)
	}
}

func TestHealthHandler(t *testing.T) {
	resetHealthState()
	SetVersion("test")
	SetStorageHealth(true, "")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	HealthHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %s", health.Status)
	}
	if health.Version != "test" {
		t.Errorf("expected version 'test', got %s", health.Version)
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	resetHealthState()
	SetStorageHealth(false, "broken")

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	HealthHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}

	var health HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if health.Status != "unhealthy" {
		t.Errorf("expected unhealthy status, got %s", health.Status)
	}
}

func TestReadyHandlerMirrorsHealth(t *testing.T) {
	resetHealthState()
	SetStorageHealth(true, "")

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var readiness HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&readiness); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if readiness.Status != "healthy" {
		t.Errorf("expected healthy status, got %s", readiness.Status)
	}
}

func TestReadyHandlerNotReadyBeforeStorageRegisters(t *testing.T) {
	resetHealthState()
	// SetStorageHealth never called: storageOK defaults to false.

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()

	ReadyHandler()(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

func TestLivenessHandler(t *testing.T) {
	resetHealthState()

	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()

	LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "alive" {
		t.Errorf("expected status 'alive', got '%s'", response["status"])
	}
	if response["uptime"] == "" {
		t.Error("uptime should not be empty")
	}
}

func TestLivenessHandlerAliveEvenWhenStorageUnhealthy(t *testing.T) {
	resetHealthState()
	SetStorageHealth(false, "broken")

	req := httptest.NewRequest("GET", "/live", nil)
	w := httptest.NewRecorder()

	LivenessHandler()(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("liveness should stay 200 even when storage is unhealthy, got %d", w.Code)
	}
}
