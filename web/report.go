// ABOUTME: Renders the Markdown graph report as an HTML page via goldmark.
package web

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"github.com/yuin/goldmark"

	"github.com/2389-research/trunkline/export"
)

const reportShellHead = `<!DOCTYPE html><html><head><meta charset="utf-8"><title>Invocation Graph Report</title><style>body{font-family:sans-serif;max-width:72rem;margin:0 auto;padding:2rem;background:#fdfdfd;color:#1a1a2e}h1,h2{border-bottom:1px solid #ddd;padding-bottom:.3rem}blockquote{color:#555;border-left:3px solid #ccc;margin-left:0;padding-left:1rem}code{background:#f0f0f0;padding:.1rem .3rem}</style></head><body>`

const reportShellFoot = `</body></html>`

// handleReport renders the Markdown report for the held graph as HTML.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	md := export.Markdown(s.current)
	s.mu.RUnlock()

	html, err := markdownToHTML(md)
	if err != nil {
		log.Printf("report: markdown conversion failed: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(reportShellHead))
	_, _ = w.Write([]byte(html))
	_, _ = w.Write([]byte(reportShellFoot))
}

// markdownToHTML converts a markdown string to HTML using goldmark. The
// report is generated server-side, so raw HTML passthrough stays disabled.
func markdownToHTML(input string) (string, error) {
	var buf bytes.Buffer
	md := goldmark.New()
	if err := md.Convert([]byte(input), &buf); err != nil {
		return template.HTMLEscapeString(input), err
	}
	return buf.String(), nil
}
