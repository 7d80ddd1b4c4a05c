package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func idemRouter(lookup IdempotencyLookup, probe func(c *gin.Context)) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(IdempotencyValidator(IdempotencyOptions{}, lookup))
	r.POST("/", func(c *gin.Context) {
		if probe != nil {
			probe(c)
		}
		c.Status(http.StatusOK)
	})
	return r
}

func TestIdempotencyValidator_NoHeaderNoOp(t *testing.T) {
	var sawKey bool
	r := idemRouter(nil, func(c *gin.Context) {
		_, sawKey = GetIdempotencyKey(c)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	if w.Code != http.StatusOK || sawKey {
		t.Fatalf("absent header must be a no-op: code=%d sawKey=%v", w.Code, sawKey)
	}
}

func TestIdempotencyValidator_RejectsMalformedKey(t *testing.T) {
	r := idemRouter(nil, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, "bad key with spaces")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "bad_idempotency_key") {
		t.Fatalf("body: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, strings.Repeat("a", 201))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("overlong key: %d", w.Code)
	}
}

func TestIdempotencyValidator_MarksReplay(t *testing.T) {
	lookup := func(ctx context.Context, key string, now time.Time) (bool, error) {
		return key == "seen-before", nil
	}

	var replay, bypass bool
	r := idemRouter(lookup, func(c *gin.Context) {
		replay = IsReplay(c)
		bypass = IsRateBypass(c)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, "seen-before")
	r.ServeHTTP(w, req)

	if !replay || !bypass {
		t.Fatalf("replay=%v bypass=%v, want both true", replay, bypass)
	}

	// Fresh keys pass through unmarked.
	replay, bypass = false, false
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(HeaderIdempotencyKey, "fresh")
	r.ServeHTTP(w, req)
	if replay || bypass {
		t.Fatalf("fresh key must not be marked: replay=%v bypass=%v", replay, bypass)
	}
}
