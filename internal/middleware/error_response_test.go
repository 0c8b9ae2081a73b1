package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/salonbook/internal/model"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeUnauthenticated, http.StatusUnauthorized},
		{model.ErrCodeValidationFailed, http.StatusBadRequest},
		{model.ErrCodeRateLimited, http.StatusTooManyRequests},
		{model.ErrCodeStoreUnavailable, http.StatusServiceUnavailable},
		{model.ErrCodeInternal, http.StatusInternalServerError},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusFor(tt.code); got != tt.want {
				t.Errorf("StatusFor(%q) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func TestWriteError_Body(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, model.NewStoreUnavailableError())

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var raw map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	want := model.NewStoreUnavailableError()
	if raw["code"] != want.Code || raw["message"] != want.Message ||
		raw["category"] != want.Category || raw["action"] != want.Action {
		t.Errorf("body = %v, want fields of %+v", raw, want)
	}
}

func TestWriteError_InternalHidesDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, model.NewInternalError())

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeInternal || body.Category != "system" {
		t.Errorf("body = %+v", body)
	}
}
