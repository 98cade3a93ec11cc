package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"dochelper/internal/config"
	"dochelper/internal/docx/docxtest"
	"dochelper/internal/edit"
	"dochelper/internal/engine"
	"dochelper/internal/errinfo"
)

func pendingFixes() []edit.Fix {
	return []edit.Fix{
		{Search: "erors", Replace: "errors"},
		{Search: "xyz", Replace: "abc"},
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DownloadDir:      filepath.Join(t.TempDir(), "downloads"),
		MaxFileSizeBytes: 10 << 20,
		MaxContentChars:  15000,
		AIMaxTokens:      2500,
		AIRequestTimeout: 5 * time.Second,
		SessionWarning:   300 * time.Second,
		SessionExpire:    420 * time.Second,
		IdleTimeout:      600 * time.Second,
		SweepInterval:    30 * time.Second,
		UsageLimit:       10,
		UsageWarnAt:      8,
		UsageWindow:      7 * 24 * time.Hour,
		// Throttling off so handler tests can fire requests back to back;
		// the middleware has its own test.
		ThrottleInterval:       0,
		ThrottleUploadInterval: 0,
	}
}

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()
	cfg := testConfig(t)
	eng, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	t.Cleanup(eng.Close)
	return New(cfg, eng), eng
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func uploadDocument(t *testing.T, s *Server, user string, archive []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "report.docx")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(archive); err != nil {
		t.Fatalf("write part: %v", err)
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+user+"/document", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	return resp
}

func startWithDocument(t *testing.T, s *Server, user string, blocks ...string) {
	t.Helper()
	resp := doJSON(t, s, http.MethodPost, "/api/v1/sessions/"+user, map[string]string{"mode": "edit"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session: status %d", resp.StatusCode)
	}
	resp.Body.Close()
	resp = uploadDocument(t, s, user, docxtest.Document(blocks...))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestHealthy(t *testing.T) {
	s, _ := newTestServer(t)
	resp := doJSON(t, s, http.MethodGet, "/check/healthy", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	startWithDocument(t, s, "alice", docxtest.Para(docxtest.Plain("Hello there.")))

	var status struct {
		HasFile          bool `json:"has_file"`
		TimeoutRemaining int  `json:"timeout_remaining_seconds"`
	}
	decode(t, doJSON(t, s, http.MethodGet, "/api/v1/sessions/alice", nil), &status)
	if !status.HasFile || status.TimeoutRemaining <= 400 || status.TimeoutRemaining > 420 {
		t.Fatalf("status = %+v", status)
	}

	resp := doJSON(t, s, http.MethodDelete, "/api/v1/sessions/alice", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doJSON(t, s, http.MethodGet, "/api/v1/sessions/alice", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status after cancel = %d, want 404", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decode(t, resp, &body)
	if body.Code != errinfo.CodeSessionNotFound {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestStartSessionValidation(t *testing.T) {
	s, _ := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice", map[string]string{"mode": "bogus"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body struct {
		Errors map[string]string `json:"errors"`
	}
	decode(t, resp, &body)
	if _, ok := body.Errors["Mode"]; !ok {
		t.Fatalf("errors = %v, want a Mode entry", body.Errors)
	}
}

func TestUploadRejectsNonDocx(t *testing.T) {
	s, _ := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice", map[string]string{"mode": "edit"})
	resp.Body.Close()

	resp = uploadDocument(t, s, "alice", []byte("not a zip at all"))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Code        string `json:"code"`
		UserMessage string `json:"user_message"`
	}
	decode(t, resp, &body)
	if body.Code != errinfo.CodeValidationFailed || body.UserMessage == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestFindAndReplaceFlow(t *testing.T) {
	s, _ := newTestServer(t)
	startWithDocument(t, s, "alice", docxtest.Para(docxtest.Plain("Fix teh typo. Another teh here.")))

	var found struct {
		Found       bool `json:"found"`
		Count       int  `json:"count"`
		Occurrences []struct {
			Index    int    `json:"index"`
			Sentence string `json:"sentence"`
		} `json:"occurrences"`
	}
	decode(t, doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice/find",
		map[string]string{"search": "teh"}), &found)
	if !found.Found || found.Count != 2 {
		t.Fatalf("found = %+v", found)
	}
	for i, occ := range found.Occurrences {
		if occ.Index != i {
			t.Fatalf("indices not strictly increasing from 0: %+v", found.Occurrences)
		}
	}

	var replaced struct {
		Found bool `json:"found"`
		Count int  `json:"count"`
	}
	decode(t, doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice/replace",
		map[string]string{"search": "teh", "replace": "the"}), &replaced)
	if !replaced.Found || replaced.Count != 2 {
		t.Fatalf("replaced = %+v", replaced)
	}

	// A search that matches nothing is a 200 with found=false, not an error.
	decode(t, doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice/replace",
		map[string]string{"search": "teh", "replace": "the"}), &replaced)
	if replaced.Found {
		t.Fatalf("second replace = %+v, want found=false", replaced)
	}
}

func TestDownloadRevisedDocument(t *testing.T) {
	s, _ := newTestServer(t)
	startWithDocument(t, s, "alice", docxtest.Para(docxtest.Plain("Hello.")))

	resp := doJSON(t, s, http.MethodGet, "/api/v1/sessions/alice/document", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "report_revisi.docx") {
		t.Fatalf("content-disposition = %q", cd)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil || len(data) == 0 {
		t.Fatalf("body read: %v, %d bytes", err, len(data))
	}
}

func TestFindWithoutDocument(t *testing.T) {
	s, _ := newTestServer(t)
	resp := doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice", map[string]string{"mode": "edit"})
	resp.Body.Close()

	resp = doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice/find", map[string]string{"search": "x"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decode(t, resp, &body)
	if body.Code != errinfo.CodeDocumentMissing {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestAnalyzeWithoutProvider(t *testing.T) {
	s, _ := newTestServer(t)
	startWithDocument(t, s, "alice", docxtest.Para(docxtest.Plain("Hello.")))

	resp := doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice/analyze", map[string]string{"kind": "grammar"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	var body struct {
		Code string `json:"code"`
	}
	decode(t, resp, &body)
	if body.Code != errinfo.CodeProviderNotConfigured {
		t.Fatalf("code = %q", body.Code)
	}
}

func TestApplyFixesOverHTTP(t *testing.T) {
	s, eng := newTestServer(t)
	startWithDocument(t, s, "alice", docxtest.Para(docxtest.Plain("Some erors here.")))
	eng.Sessions().SetPendingFixes("alice", pendingFixes())

	var res struct {
		AppliedCount int  `json:"applied_count"`
		SkippedCount int  `json:"skipped_count"`
		NewArtifact  bool `json:"new_artifact"`
	}
	decode(t, doJSON(t, s, http.MethodPost, "/api/v1/sessions/alice/fixes/apply", nil), &res)
	if res.AppliedCount != 1 || res.SkippedCount != 1 || !res.NewArtifact {
		t.Fatalf("res = %+v", res)
	}
}

func TestUsageEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	var usage struct {
		Used  int `json:"used"`
		Limit int `json:"limit"`
	}
	decode(t, doJSON(t, s, http.MethodGet, "/api/v1/sessions/alice/usage", nil), &usage)
	if usage.Used != 0 || usage.Limit != 10 {
		t.Fatalf("usage = %+v", usage)
	}
}
