// Package web serves a single-page browser client for the progress stream.
//
// The page opens an EventSource against the SSE route, shows each counter value
// as it arrives and can cancel its own session through the sessions API. It is
// rendered once from an embedded [html/template] at startup.
//
// # Routes
//
//	GET /  → the page
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
)

//go:embed templates/index.html
var templates embed.FS

// Page configures what the rendered page points at.
type Page struct {
	Title        string
	StreamPath   string
	SessionsPath string
}

// DefaultPage targets the routes registered by the server package.
func DefaultPage() Page {
	return Page{Title: "pulse", StreamPath: "/sse", SessionsPath: "/sessions"}
}

// Handler renders page and returns a handler serving it.
func Handler(page Page) (http.Handler, error) {
	tmpl, err := template.ParseFS(templates, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	body := buf.Bytes()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(body)
	}), nil
}
