// ABOUTME: Handlers for the graph API: template uploads, graph and resource reads,
// ABOUTME: and reciprocity validation.
package web

import (
	"bytes"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/2389-research/trunkline/export"
	"github.com/2389-research/trunkline/extract"
	"github.com/2389-research/trunkline/graph"
	"github.com/2389-research/trunkline/store"
)

// maxUploadBytes caps template upload bodies.
const maxUploadBytes = 10 << 20

// uploadResponse reports the outcome of a template upload.
type uploadResponse struct {
	UploadID string   `json:"upload_id"`
	Passes   int      `json:"passes"`
	Failures []string `json:"failures,omitempty"`
	Nodes    int      `json:"nodes"`
	Edges    int      `json:"edges"`
}

// resourceSummary is one row of the resource listing.
type resourceSummary struct {
	Name           string `json:"name"`
	Type           string `json:"type"`
	AccountName    string `json:"account_name"`
	InvokeCount    int    `json:"invoke_count"`
	InvokedByCount int    `json:"invoked_by_count"`
}

// resourceDetail is the full view of one resource.
type resourceDetail struct {
	Name        string       `json:"name"`
	Type        string       `json:"type"`
	AccountName string       `json:"account_name"`
	Invokes     []graph.Edge `json:"invokes"`
	InvokedBy   []graph.Edge `json:"invoked_by"`
}

// validateResponse reports reciprocity validation results.
type validateResponse struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// handleTemplateUpload accepts one or more templates (multipart field
// "template", or a raw body) plus an ?account= label, runs an extraction pass
// per template, and merges the results into the held graph.
func (s *Server) handleTemplateUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	account := r.URL.Query().Get("account")
	if account == "" {
		account = graph.UnknownMeta
	}

	inputs, err := readTemplateInputs(r, account)
	if err != nil {
		if isMaxBytesError(err) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	merged, result := s.engine.Run(inputs, s.current)
	s.engine.Derive(merged)
	s.current = merged
	nodes, edges := merged.Len(), merged.EdgeCount()
	s.mu.Unlock()

	if s.graphPath != "" {
		if err := store.SaveGraph(s.graphPath, merged); err != nil {
			log.Printf("upload: failed to persist graph to %s: %v", s.graphPath, err)
		}
	}

	resp := uploadResponse{
		UploadID: uuid.New().String(),
		Passes:   result.Passes,
		Nodes:    nodes,
		Edges:    edges,
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, f.Name+": "+f.Err.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

// readTemplateInputs extracts template sources from a multipart form or a raw
// request body.
func readTemplateInputs(r *http.Request, account string) ([]extract.PassInput, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return nil, err
		}
		files := r.MultipartForm.File["template"]
		if len(files) == 0 {
			return nil, errors.New("no files in field \"template\"")
		}
		var inputs []extract.PassInput
		for _, fh := range files {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			inputs = append(inputs, extract.PassInput{Name: fh.Filename, Source: data, Account: account})
		}
		return inputs, nil
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errors.New("empty request body")
	}
	return []extract.PassInput{{Name: "upload", Source: data, Account: account}}, nil
}

// isMaxBytesError reports whether err (or any error in its chain) is an
// *http.MaxBytesError, indicating the request body exceeded the size limit.
func isMaxBytesError(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// handleGraph returns the held graph as canonical JSON.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	data, err := export.JSON(s.current)
	s.mu.RUnlock()
	if err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// handleGraphDOT returns the held graph in DOT format.
func (s *Server) handleGraphDOT(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	out := export.DOT(s.current)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out))
}

// handleResourceList returns sorted summaries of every resource in the graph.
func (s *Server) handleResourceList(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	summaries := make([]resourceSummary, 0, s.current.Len())
	for _, id := range s.current.NodeIDs() {
		node := s.current.FindNode(id)
		summaries = append(summaries, resourceSummary{
			Name:           id,
			Type:           node.Type,
			AccountName:    node.AccountName,
			InvokeCount:    len(node.Invokes),
			InvokedByCount: len(node.InvokedBy),
		})
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, summaries)
}

// handleResourceDetail returns one resource with its full edge lists, or 404
// for an unknown name.
func (s *Server) handleResourceDetail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.RLock()
	node := s.current.FindNode(name)
	var detail resourceDetail
	if node != nil {
		detail = resourceDetail{
			Name:        name,
			Type:        node.Type,
			AccountName: node.AccountName,
			Invokes:     append([]graph.Edge{}, node.Invokes...),
			InvokedBy:   append([]graph.Edge{}, node.InvokedBy...),
		}
	}
	s.mu.RUnlock()

	if node == nil {
		http.Error(w, "resource not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// handleValidate checks the held graph for reciprocity violations.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	violations := graph.Validate(s.current)
	s.mu.RUnlock()

	resp := validateResponse{Valid: len(violations) == 0, Violations: make([]string, 0, len(violations))}
	for _, v := range violations {
		resp.Violations = append(resp.Violations, v.String())
	}
	writeJSON(w, http.StatusOK, resp)
}
