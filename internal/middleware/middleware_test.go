package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/deal-finder/internal/config"
	"github.com/iliyamo/deal-finder/internal/utils"
)

const testSecret = "middleware-secret"

func whoami(c echo.Context) error {
	id, ok := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"auth": ok, "id": id, "username": Username(c), "role": Role(c)})
}

func serve(e *echo.Echo, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	good, _ := utils.NewAccessToken(testSecret, 7, "alice", "ADMIN", 5)
	forged, _ := utils.NewAccessToken("other", 7, "alice", "ADMIN", 5)

	if rec := serve(e, http.MethodGet, "/me", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("missing token: %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/me", forged.Token); rec.Code != http.StatusUnauthorized {
		t.Errorf("forged token: %d", rec.Code)
	}
	rec := serve(e, http.MethodGet, "/me", good.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token: %d %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"id":7`) || !strings.Contains(rec.Body.String(), `"role":"ADMIN"`) {
		t.Errorf("claims not propagated: %s", rec.Body)
	}
}

func TestOptionalJWT(t *testing.T) {
	e := echo.New()
	e.GET("/deals", whoami, OptionalJWT(testSecret))

	rec := serve(e, http.MethodGet, "/deals", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"auth":false`) {
		t.Errorf("anonymous: %d %s", rec.Code, rec.Body)
	}
	if rec := serve(e, http.MethodGet, "/deals", "garbage"); rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", rec.Code)
	}
	good, _ := utils.NewAccessToken(testSecret, 3, "bob", "USER", 5)
	rec = serve(e, http.MethodGet, "/deals", good.Token)
	if !strings.Contains(rec.Body.String(), `"auth":true`) {
		t.Errorf("authenticated: %s", rec.Body)
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/stores", whoami, JWTAuth(testSecret), RequireRole("ADMIN"))

	user, _ := utils.NewAccessToken(testSecret, 2, "bob", "USER", 5)
	admin, _ := utils.NewAccessToken(testSecret, 1, "root", "ADMIN", 5)
	if rec := serve(e, http.MethodGet, "/stores", user.Token); rec.Code != http.StatusForbidden {
		t.Errorf("user: %d", rec.Code)
	}
	if rec := serve(e, http.MethodGet, "/stores", admin.Token); rec.Code != http.StatusOK {
		t.Errorf("admin: %d", rec.Code)
	}
}

func TestCacheKey(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "p", KeyStrategy: "route_query"}
	key := func(target string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, target, nil), httptest.NewRecorder())
		c.SetPath("/api/dealsFiltered")
		return cacheKey(cfg, c)
	}
	a := key("/api/dealsFiltered?store=GOG&page=2")
	b := key("/api/dealsFiltered?page=2&store=GOG")
	c := key("/api/dealsFiltered?page=3&store=GOG")
	if a != b {
		t.Errorf("parameter order should not matter: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different queries share a key")
	}
	if !strings.HasPrefix(a, "p:") {
		t.Errorf("key %q lacks prefix", a)
	}
}

func TestPassThroughWithoutRedis(t *testing.T) {
	e := echo.New()
	cache := NewRedisCache(config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}}, nil, nil)
	limit := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, nil)
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, cache, limit)

	for i := 0; i < 3; i++ {
		rec := serve(e, http.MethodGet, "/x", "")
		if rec.Code != http.StatusOK || rec.Header().Get("X-Cache") != "" {
			t.Fatalf("request %d: %d cache=%q", i, rec.Code, rec.Header().Get("X-Cache"))
		}
	}
}

func TestCaptureWriter_Overflow(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}
	cw.Write([]byte("abc"))
	cw.Write([]byte("def"))
	if !cw.overflow || cw.buf.Len() != 0 {
		t.Errorf("overflow=%v buffered=%d", cw.overflow, cw.buf.Len())
	}
	if rec.Body.String() != "abcdef" {
		t.Errorf("client body = %q", rec.Body)
	}
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/signin", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/api/signin")

	if got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip_route"}, c); got != "rl:ip:10.0.0.1:route:POST /api/signin" {
		t.Errorf("ip_route key = %q", got)
	}
	c.Set(ctxUserID, uint64(9))
	if got := rateKey(config.RateLimitConfig{Prefix: "rl", KeyStrategy: "user"}, c); got != "rl:user:9" {
		t.Errorf("user key = %q", got)
	}
}

func TestParseBucketResult(t *testing.T) {
	res, ok := parseBucketResult([]interface{}{int64(0), int64(0), int64(2500)})
	if !ok || res.allowed || res.retryMs != 2500 {
		t.Fatalf("res = %+v ok=%v", res, ok)
	}
	if retryAfterSeconds(res.retryMs) != 3 || retryAfterSeconds(0) != 1 {
		t.Error("retry-after rounding")
	}
	if _, ok := parseBucketResult("nope"); ok {
		t.Error("malformed reply accepted")
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/missing", func(c echo.Context) error { return c.JSON(http.StatusNotFound, echo.Map{"error": "x"}) })

	serve(e, http.MethodGet, "/missing", "")
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "status=404") || !strings.Contains(out, "user=anon") {
		t.Errorf("log line = %q", out)
	}
}
