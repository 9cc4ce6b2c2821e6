package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"satchel/internal/config"
	"satchel/internal/http/handlers"
	"satchel/internal/repos"
)

// newTestApp builds the full router over a fresh in-memory database.
func newTestApp(t *testing.T) (*fiber.App, *handlers.Deps, *sqlx.DB) {
	t.Helper()
	cfg := config.Defaults()
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	app, deps := handlers.NewApp(cfg, db, prometheus.NewRegistry())
	t.Cleanup(func() {
		deps.Reconciler.Wait()
		_ = db.Close()
	})
	return app, deps, db
}

type logEntry struct {
	Level  string                 `json:"level"`
	Action string                 `json:"action"`
	UserID string                 `json:"user_id"`
	Fields map[string]interface{} `json:"fields"`
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (lw *lockedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.Write(p)
}

// captureLogs temporarily replaces the standard logger output and returns
// the JSON entries written while fn ran.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	var buf bytes.Buffer
	var mu sync.Mutex
	oldW := log.Writer()
	oldFlags := log.Flags()
	log.SetOutput(&lockedWriter{w: &buf, mu: &mu})
	log.SetFlags(0) // remove timestamps to make JSON parseable
	defer func() {
		log.SetOutput(oldW)
		log.SetFlags(oldFlags)
	}()

	fn()

	mu.Lock()
	raw := buf.String()
	mu.Unlock()
	var entries []logEntry
	for _, line := range strings.Split(strings.TrimSpace(raw), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var e logEntry
		if err := json.Unmarshal([]byte(line), &e); err == nil {
			entries = append(entries, e)
		}
	}
	return entries
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}

func extractCookie(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

// csrfToken fetches the login page to obtain a csrf cookie.
func csrfToken(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", "/login", nil), 5000)
	if err != nil {
		t.Fatal(err)
	}
	tok := extractCookie(resp, "csrf_")
	if tok == "" {
		t.Fatal("csrf token missing")
	}
	return tok
}

// postForm sends a back-office form with the csrf token and optional sid.
func postForm(t *testing.T, app *fiber.App, path, csrfTok, sid, form string) *http.Response {
	t.Helper()
	body := "csrf=" + csrfTok
	if form != "" {
		body += "&" + form
	}
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: csrfTok})
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: sid})
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

type apiCall struct {
	method string
	path   string
	body   any
	token  string
	sid    string
}

// doJSON performs an API call and decodes the JSON response into a map.
func doJSON(t *testing.T, app *fiber.App, call apiCall) (*http.Response, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if call.body != nil {
		switch b := call.body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			if err != nil {
				t.Fatalf("marshal body: %v", err)
			}
			rdr = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(call.method, call.path, rdr)
	if rdr != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if call.token != "" {
		req.Header.Set("Authorization", "Bearer "+call.token)
	}
	if call.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: call.sid})
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", call.method, call.path, err)
	}
	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out)
	}
	return resp, out
}

// tokenFor signs a seeded customer in through the token endpoint.
func tokenFor(t *testing.T, app *fiber.App, email string) string {
	t.Helper()
	resp, body := doJSON(t, app, apiCall{
		method: "POST",
		path:   "/api/v1/auth/token",
		body:   map[string]string{"email": email, "password": "Passw0rd!"},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("token for %s: status %d body=%v", email, resp.StatusCode, body)
	}
	tok, _ := body["token"].(string)
	if tok == "" {
		t.Fatalf("token missing in %v", body)
	}
	return tok
}

func shipping() map[string]string {
	return map[string]string{
		"name":       "Asha Rao",
		"line1":      "12 MG Road",
		"city":       "Bengaluru",
		"state":      "KA",
		"postalCode": "560001",
		"country":    "IN",
		"phone":      "+91 98450 12345",
	}
}

func item(productID string, qty int, color any) map[string]any {
	it := map[string]any{"productId": productID, "quantity": qty}
	if color != nil {
		it["color"] = color
	}
	return it
}

func checkoutBody(items ...map[string]any) map[string]any {
	if items == nil {
		items = []map[string]any{}
	}
	return map[string]any{
		"items":           items,
		"shippingAddress": shipping(),
		"paymentMethod":   "cod",
	}
}

func stockOf(t *testing.T, db *sqlx.DB, productID, color string) int {
	t.Helper()
	var n int
	var err error
	if color == "" {
		err = db.Get(&n, `SELECT stock FROM products WHERE id = ?`, productID)
	} else {
		err = db.Get(&n, `SELECT stock FROM color_variants WHERE product_id = ? AND name = ?`, productID, color)
	}
	if err != nil {
		t.Fatalf("stock of %s/%s: %v", productID, color, err)
	}
	return n
}

// doForm posts a form body without any cookies.
func doForm(t *testing.T, app *fiber.App, path string, body io.Reader) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", path, body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// doJSONWithCSRF is doJSON for back-office JSON endpoints, which sit behind
// the csrf check.
func doJSONWithCSRF(t *testing.T, app *fiber.App, call apiCall, csrfTok string) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(call.body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(call.method, call.path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Csrf-Token", csrfTok)
	req.AddCookie(&http.Cookie{Name: "csrf_", Value: csrfTok})
	if call.sid != "" {
		req.AddCookie(&http.Cookie{Name: "sid", Value: call.sid})
	}
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", call.method, call.path, err)
	}
	body, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	_ = json.Unmarshal(body, &out)
	return resp, out
}
