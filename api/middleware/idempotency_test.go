package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type fakeIdempotencyStore struct {
	values map[string]string
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{values: map[string]string{}}
}

func (f *fakeIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, exists := f.values[key]; exists {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (f *fakeIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"data":{"ok":true}}`))
	})

	handler := Idempotency(store, testLogger())(next)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(`{"amount":"100"}`))
		req.Header.Set("Idempotency-Key", "key-1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	first := send()
	second := send()

	if calls != 1 {
		t.Fatalf("handler calls = %d, want 1", calls)
	}
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("statuses = %d, %d, want 201 both times", first.Code, second.Code)
	}
	if first.Body.String() != second.Body.String() {
		t.Fatal("replayed body differs from original")
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newFakeIdempotencyStore()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{}`))
	})

	handler := Idempotency(store, testLogger())(next)

	first := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(`{"amount":"100"}`))
	first.Header.Set("Idempotency-Key", "key-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(`{"amount":"999"}`))
	second.Header.Set("Idempotency-Key", "key-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, second)

	if resp.Code != http.StatusConflict {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestIdempotencyRequiresHeaderOnGuardedRoute(t *testing.T) {
	store := newFakeIdempotencyStore()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()
	Idempotency(store, testLogger())(next).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", resp.Code)
	}
}

func TestIdempotencySkipsUnguardedRoutes(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/wallet", nil)
	Idempotency(store, testLogger())(next).ServeHTTP(httptest.NewRecorder(), req)

	if calls != 1 {
		t.Fatal("unguarded route should pass through")
	}
}

func TestIdempotencyGuardsGroupMountedRoutes(t *testing.T) {
	store := newFakeIdempotencyStore()
	calls := 0

	// Mounted with a group-level Use, the middleware runs before the
	// subrouter resolves the route, so matching must work off the raw path.
	router := chi.NewRouter()
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(Idempotency(store, testLogger()))
		r.Route("/wallet", func(r chi.Router) {
			r.Post("/topup", func(w http.ResponseWriter, req *http.Request) {
				calls++
				w.WriteHeader(http.StatusCreated)
			})
		})
	})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(`{"amount":"100"}`))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 without Idempotency-Key", resp.Code)
	}
	if calls != 0 {
		t.Fatalf("handler ran %d times, want 0", calls)
	}

	keyed := httptest.NewRequest(http.MethodPost, "/api/v1/wallet/topup", strings.NewReader(`{"amount":"100"}`))
	keyed.Header.Set("Idempotency-Key", "key-1")
	router.ServeHTTP(httptest.NewRecorder(), keyed)

	if calls != 1 {
		t.Fatalf("handler ran %d times with key, want 1", calls)
	}
}
