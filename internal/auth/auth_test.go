package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"printshop-workflow/internal/models"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	id := Identity{ID: "W-17", Role: models.RoleDesigner, Name: "Asha"}
	token, err := Sign("secret", id, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	got, err := Verify("secret", token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got != id {
		t.Fatalf("identity mismatch: got %+v want %+v", got, id)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, err := Sign("secret", Identity{ID: "W-17", Role: models.RoleDesigner}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify("other", token); err != ErrUnauthenticated {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	token, err := Sign("secret", Identity{ID: "W-17", Role: models.RoleDesigner}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Verify("secret", token); err != ErrUnauthenticated {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	var seen Identity
	handler := Middleware("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := FromContext(r.Context())
		if !ok {
			t.Fatal("identity missing from context")
		}
		seen = id
		w.WriteHeader(http.StatusNoContent)
	}))

	token, err := Sign("secret", Identity{ID: "W-1", Role: models.RoleAttendant, Name: "Front Desk"}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/pool", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("want 204, got %d", rec.Code)
	}
	if seen.ID != "W-1" || seen.Role != models.RoleAttendant {
		t.Fatalf("wrong identity seen: %+v", seen)
	}
}

func TestMiddlewareRejections(t *testing.T) {
	handler := Middleware("secret")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/pool", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("want 401, got %d", rec.Code)
			}
		})
	}
}
