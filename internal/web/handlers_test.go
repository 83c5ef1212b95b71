package web

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/smoky1337/PfotenRegister/internal/config"
	"github.com/smoky1337/PfotenRegister/internal/core"
	"github.com/smoky1337/PfotenRegister/internal/core/coretest"
	"github.com/smoky1337/PfotenRegister/internal/storage/memory"
)

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"STORAGE_DRIVER":     "memory",
		"IMPORT_TEMP_DIR":    t.TempDir(),
		"RATE_LIMIT_ENABLED": "false",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadFrom(func(k string) string { return base[k] })
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, env map[string]string) (*Server, *memory.Store) {
	t.Helper()
	cfg := testConfig(t, env)
	store := memory.New()
	svc, err := core.NewService(store, core.ServiceOptions{
		UploadDir:   cfg.Import.TempDir,
		MaxFileSize: cfg.Import.MaxFileSize,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { srv.Shutdown(t.Context()) })
	return srv, store
}

func do(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/import/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func workbookBytes(t *testing.T, sheets ...coretest.Sheet) []byte {
	t.Helper()
	data, err := os.ReadFile(coretest.Workbook(t, sheets...))
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func guests(rows ...[]any) coretest.Sheet {
	return coretest.Sheet{Name: core.SheetGuests, Rows: append([][]any{coretest.GuestHeader}, rows...)}
}

func animals(rows ...[]any) coretest.Sheet {
	return coretest.Sheet{Name: core.SheetAnimals, Rows: append([][]any{coretest.AnimalHeader}, rows...)}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func upload(t *testing.T, srv *Server, content []byte) string {
	t.Helper()
	rec := do(t, srv, uploadRequest(t, "gaeste.xlsx", content))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body)
	}
	return decode[UploadResponse](t, rec).File
}

func TestImportFlow(t *testing.T) {
	srv, store := newTestServer(t, nil)

	file := upload(t, srv, workbookBytes(t,
		guests([]any{"A1", "Ann", "Lee"}, []any{"A2", "Bob", "Kim"}),
		animals([]any{"A1", "Rex", "Hund"}),
	))

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/import/preview?file="+file, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d, body %s", rec.Code, rec.Body)
	}
	preview := decode[core.Preview](t, rec)
	if !preview.CanImport || len(preview.Guests) != 2 {
		t.Errorf("preview = %+v", preview)
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/import/confirm?file="+file, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm status = %d, body %s", rec.Code, rec.Body)
	}
	result := decode[core.ImportResult](t, rec)
	if result.ImportedGuests != 2 || result.ImportedAnimals != 1 {
		t.Errorf("result = %+v", result)
	}
	if len(store.Guests()) != 2 {
		t.Errorf("stored guests = %d, want 2", len(store.Guests()))
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/guests", nil))
	if list := decode[GuestList](t, rec); list.Count != 2 || list.Guests[0].LastName != "Kim" {
		t.Errorf("guest list = %+v", list)
	}

	// The upload is consumed by a successful import.
	rec = do(t, srv, httptest.NewRequest(http.MethodPost, "/api/import/confirm?file="+file, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second confirm status = %d, want 404", rec.Code)
	}
	if code := decode[ErrorResponse](t, rec).Code; code != "UPL003" {
		t.Errorf("second confirm code = %q, want UPL003", code)
	}
}

func TestConfirm_RejectsDuplicateNumbers(t *testing.T) {
	srv, store := newTestServer(t, nil)
	file := upload(t, srv, workbookBytes(t,
		guests([]any{"A1", "Ann", "Lee"}, []any{"A1", "Bob", "Kim"}),
		animals(),
	))

	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/import/confirm?file="+file, nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body %s", rec.Code, rec.Body)
	}
	var body struct {
		Code       string   `json:"code"`
		Duplicates []string `json:"duplicate_numbers"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != "VAL001" || len(body.Duplicates) != 1 || body.Duplicates[0] != "A1" {
		t.Errorf("body = %+v", body)
	}
	if len(store.Guests()) != 0 {
		t.Error("guests stored despite duplicates")
	}
}

func TestUpload_Errors(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"IMPORT_MAX_FILE_SIZE": "64"})

	noFile := httptest.NewRequest(http.MethodPost, "/api/import/upload", strings.NewReader("x"))
	noFile.Header.Set("Content-Type", "text/plain")

	tests := []struct {
		name       string
		req        *http.Request
		wantStatus int
		wantCode   string
	}{
		{"wrong type", uploadRequest(t, "gaeste.csv", []byte("a,b")), http.StatusBadRequest, "FILE002"},
		{"empty", uploadRequest(t, "gaeste.xlsx", nil), http.StatusBadRequest, "FILE005"},
		{"too large", uploadRequest(t, "gaeste.xlsx", bytes.Repeat([]byte("x"), 65)), http.StatusRequestEntityTooLarge, "FILE001"},
		{"not multipart", noFile, http.StatusBadRequest, "FILE004"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, tt.req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body %s", rec.Code, tt.wantStatus, rec.Body)
			}
			if code := decode[ErrorResponse](t, rec).Code; code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestPreview_PathErrors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		file       string
		wantStatus int
		wantCode   string
	}{
		{"", http.StatusBadRequest, "FILE003"},
		{"..%2Fsecret.xlsx", http.StatusBadRequest, "FILE003"},
		{"%2Fetc%2Fpasswd", http.StatusBadRequest, "FILE003"},
		{"gone.xlsx", http.StatusNotFound, "UPL003"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/import/preview?file="+tt.file, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if code := decode[ErrorResponse](t, rec).Code; code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestPreview_MissingSheet(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	file := upload(t, srv, workbookBytes(t, guests([]any{"A1", "Ann", "Lee"})))

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/import/preview?file="+file, nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if code := decode[ErrorResponse](t, rec).Code; code != "IMP001" {
		t.Errorf("code = %q, want IMP001", code)
	}
}

func TestExport(t *testing.T) {
	srv, store := newTestServer(t, nil)
	day := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.AddGuest(core.Guest{
		ID: "AAAAAA", Number: "A1", FirstName: "Ann", LastName: "Lee",
		Gender: core.Unknown, Status: true, MemberSince: day, CreatedOn: day, UpdatedOn: day,
	})

	body := `{"tables":[{"table":"gaeste","columns":["nummer","nachname"]}],"include_header":true}`
	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	wantDisposition := fmt.Sprintf("attachment; filename=%q", core.ExportFileName(time.Now()))
	if cd := rec.Header().Get("Content-Disposition"); cd != wantDisposition {
		t.Errorf("Content-Disposition = %q, want %q", cd, wantDisposition)
	}

	rows := readRows(t, rec.Body, core.SheetGuests)
	if len(rows) != 2 || strings.Join(rows[1], ",") != "A1,Lee" {
		t.Errorf("rows = %v", rows)
	}
}

func TestExport_Errors(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{"tables":`, "EXP002"},
		{"unknown columns only", `{"tables":[{"table":"tiere","columns":["bogus"]}]}`, "EXP001"},
		{"no tables", `{"tables":[]}`, "EXP001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if code := decode[ErrorResponse](t, rec).Code; code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
		})
	}
}

func TestTemplate(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/import/template", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	rows := readRows(t, rec.Body, core.SheetAnimals)
	if len(rows) != 1 || strings.Join(rows[0], ",") != strings.Join(core.AnimalSheet.Columns(), ",") {
		t.Errorf("template rows = %v", rows)
	}
}

func TestNextNumberAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := do(t, srv, httptest.NewRequest(http.MethodPost, "/api/guests/next-number", nil))
	want := fmt.Sprintf("GT-%d-0001", time.Now().Year())
	if got := decode[map[string]string](t, rec)["number"]; got != want {
		t.Errorf("number = %q, want %q", got, want)
	}

	rec = do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	health := decode[HealthResponse](t, rec)
	if health.Status != "ok" || health.Imports.MaxConcurrent != core.DefaultMaxConcurrentImports {
		t.Errorf("health = %+v", health)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"REQUIRE_API_KEY": "true", "API_KEYS": "k1,k2"})

	tests := []struct {
		key  string
		want int
	}{
		{"", http.StatusUnauthorized},
		{"nope", http.StatusForbidden},
		{"k2", http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/guests", nil)
		if tt.key != "" {
			req.Header.Set("X-API-Key", tt.key)
		}
		if rec := do(t, srv, req); rec.Code != tt.want {
			t.Errorf("key %q: status = %d, want %d", tt.key, rec.Code, tt.want)
		}
	}

	if rec := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Errorf("healthz without key = %d, want 200", rec.Code)
	}
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()
	rl.now = func() time.Time { return now }

	got := []bool{rl.allow("a"), rl.allow("a"), rl.allow("a"), rl.allow("b")}
	want := []bool{true, true, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d allowed = %v, want %v", i, got[i], want[i])
		}
	}

	now = now.Add(2 * time.Minute)
	if !rl.allow("a") {
		t.Error("not allowed after the window passed")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	srv, _ := newTestServer(t, map[string]string{"RATE_LIMIT_ENABLED": "true", "RATE_LIMIT_REQUESTS_PER_MINUTE": "1"})

	first := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	second := do(t, srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if first.Code != http.StatusOK || second.Code != http.StatusTooManyRequests {
		t.Fatalf("statuses = %d, %d; want 200, 429", first.Code, second.Code)
	}
	if code := decode[ErrorResponse](t, second).Code; code != "RATE001" {
		t.Errorf("code = %q, want RATE001", code)
	}
}

func readRows(t *testing.T, r io.Reader, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(r)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", sheet, err)
	}
	return rows
}
