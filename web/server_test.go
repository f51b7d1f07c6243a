// ABOUTME: Tests for the graph HTTP server and chi router.
// ABOUTME: Covers health, uploads, graph reads, resource queries, validation, and the report page.
package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/2389-research/trunkline/graph"
)

const uploadTemplate = `
Resources:
    Fn:
        Type: AWS::Lambda::Function
        Properties:
            Environment:
                Variables:
                    TABLE: !Ref Table
    Table:
        Type: AWS::DynamoDB::Table
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("unexpected error creating server: %v", err)
	}
	return srv
}

func postTemplate(t *testing.T, srv *Server, body, account string) uploadResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/templates?account="+account, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestServerHealth(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status %q, got %q", "ok", body["status"])
	}
}

func TestUploadRawTemplate(t *testing.T) {
	srv := newTestServer(t)

	resp := postTemplate(t, srv, uploadTemplate, "prod")
	if resp.Passes != 1 {
		t.Errorf("expected 1 pass, got %d", resp.Passes)
	}
	if len(resp.Failures) != 0 {
		t.Errorf("expected no failures, got %v", resp.Failures)
	}
	if resp.Nodes != 2 || resp.Edges != 1 {
		t.Errorf("expected 2 nodes / 1 edge, got %d / %d", resp.Nodes, resp.Edges)
	}
	if len(resp.UploadID) != 36 {
		t.Errorf("expected UUID upload id, got %q", resp.UploadID)
	}
}

func TestUploadMultipartTemplates(t *testing.T) {
	srv := newTestServer(t)

	second := `
Resources:
    Other:
        Type: AWS::Lambda::Function
`
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, file := range []struct{ name, content string }{
		{"one.yaml", uploadTemplate},
		{"two.yaml", second},
	} {
		fw, err := mw.CreateFormFile("template", file.name)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := fw.Write([]byte(file.content)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/templates?account=prod", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Passes != 2 {
		t.Errorf("expected 2 passes, got %d", resp.Passes)
	}
	if resp.Nodes != 3 {
		t.Errorf("expected 3 nodes after merge, got %d", resp.Nodes)
	}
}

func TestUploadEmptyBodyRejected(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/templates", strings.NewReader("   \n"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rec.Code)
	}
}

func TestUploadReportsParseFailures(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/templates", strings.NewReader("Resources: [unclosed\n"))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp uploadResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Passes != 0 {
		t.Errorf("expected 0 passes, got %d", resp.Passes)
	}
	if len(resp.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %v", resp.Failures)
	}
	if !strings.HasPrefix(resp.Failures[0], "upload: ") {
		t.Errorf("failure should name the input, got %q", resp.Failures[0])
	}
}

func TestUploadMergesIntoSeededGraph(t *testing.T) {
	seed := graph.New()
	seed.AddNode("Existing", &graph.Node{Type: "Lambda Function", AccountName: "dev"})
	srv, err := NewServer(ServerConfig{Graph: seed})
	if err != nil {
		t.Fatalf("unexpected error creating server: %v", err)
	}

	resp := postTemplate(t, srv, uploadTemplate, "prod")
	if resp.Nodes != 3 {
		t.Errorf("expected 3 nodes (seed + upload), got %d", resp.Nodes)
	}
}

func TestGraphEndpoint(t *testing.T) {
	srv := newTestServer(t)
	postTemplate(t, srv, uploadTemplate, "prod")

	req := httptest.NewRequest(http.MethodGet, "/api/graph", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var g graph.Graph
	if err := json.Unmarshal(rec.Body.Bytes(), &g); err != nil {
		t.Fatalf("response is not a graph: %v", err)
	}
	fn := g.FindNode("Fn")
	if fn == nil || !fn.HasInvoke("Table") {
		t.Error("uploaded edge missing from served graph")
	}
	// Uploads derive the reciprocal direction immediately.
	if table := g.FindNode("Table"); table == nil || !table.HasInvokedBy("Fn") {
		t.Error("invoked_by not derived on upload")
	}
}

func TestGraphDOTEndpoint(t *testing.T) {
	srv := newTestServer(t)
	postTemplate(t, srv, uploadTemplate, "prod")

	req := httptest.NewRequest(http.MethodGet, "/api/graph.dot", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("Content-Type = %q, want text/vnd.graphviz", ct)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "digraph invocations {") {
		t.Errorf("expected DOT output, got %q", body)
	}
	if !strings.Contains(body, `"Fn" -> "Table"`) {
		t.Errorf("expected edge in DOT output, got %q", body)
	}
}

func TestResourceListEndpoint(t *testing.T) {
	srv := newTestServer(t)
	postTemplate(t, srv, uploadTemplate, "prod")

	req := httptest.NewRequest(http.MethodGet, "/api/resources", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var list []resourceSummary
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(list))
	}
	if list[0].Name != "Fn" || list[1].Name != "Table" {
		t.Errorf("resources out of order: %v", list)
	}
	if list[0].InvokeCount != 1 || list[1].InvokedByCount != 1 {
		t.Errorf("edge counts wrong: %v", list)
	}
}

func TestResourceDetailEndpoint(t *testing.T) {
	srv := newTestServer(t)
	postTemplate(t, srv, uploadTemplate, "prod")

	req := httptest.NewRequest(http.MethodGet, "/api/resources/Fn", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var detail resourceDetail
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if detail.Name != "Fn" || detail.Type != "Lambda Function" {
		t.Errorf("detail = %+v", detail)
	}
	if len(detail.Invokes) != 1 || detail.Invokes[0].Name != "Table" {
		t.Errorf("invokes = %v, want [Table]", detail.Invokes)
	}
}

func TestResourceDetailNotFound(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/resources/Ghost", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}
}

func TestValidateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	postTemplate(t, srv, uploadTemplate, "prod")

	req := httptest.NewRequest(http.MethodGet, "/api/validate", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp validateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !resp.Valid || len(resp.Violations) != 0 {
		t.Errorf("derived graph should validate cleanly, got %+v", resp)
	}
}

func TestValidateEndpointReportsViolations(t *testing.T) {
	// Seed a graph where the reciprocal edge is missing.
	bad := graph.New()
	a := &graph.Node{Type: "Lambda Function", AccountName: "prod"}
	a.AddInvoke(graph.Edge{Name: "B", Type: "Lambda Function", AccountName: "prod"})
	bad.AddNode("A", a)
	bad.AddNode("B", &graph.Node{Type: "Lambda Function", AccountName: "prod"})

	srv, err := NewServer(ServerConfig{Graph: bad})
	if err != nil {
		t.Fatalf("unexpected error creating server: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/validate", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	var resp validateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Valid || len(resp.Violations) == 0 {
		t.Errorf("expected violations, got %+v", resp)
	}
}

func TestReportPage(t *testing.T) {
	srv := newTestServer(t)
	postTemplate(t, srv, uploadTemplate, "prod")

	req := httptest.NewRequest(http.MethodGet, "/report", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") {
		t.Error("report missing HTML shell")
	}
	if !strings.Contains(body, "<h1") || !strings.Contains(body, "Invocation Graph") {
		t.Errorf("report missing rendered heading: %q", body)
	}
	if !strings.Contains(body, "Fn") {
		t.Error("report missing resource section")
	}
}

func TestServerServeHTTP(t *testing.T) {
	srv := newTestServer(t)

	// Use the server with httptest.Server to prove it works as an http.Handler.
	ts := httptest.NewServer(srv)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}
}
