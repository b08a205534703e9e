package handlers

import (
	"bytes"
	_ "embed"
	"html/template"
	"net/http"
	"time"
)

//go:embed openapi.json
var openAPIDocument []byte

// Process start stands in for the mtime of the embedded document.
var openAPIModified = time.Now()

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
  <head>
    <meta charset="utf-8" />
    <title>{{.Title}}</title>
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <style>body { margin: 0; } redoc { display: block; height: 100vh; }</style>
  </head>
  <body>
    <redoc spec-url="{{.SpecURL}}"></redoc>
    <script src="https://cdn.jsdelivr.net/npm/redoc@2.2.0/bundles/redoc.standalone.js"></script>
  </body>
</html>`))

// OpenAPIJSON serves the API description with conditional GET support.
func (a *App) OpenAPIJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, "openapi.json", openAPIModified, bytes.NewReader(openAPIDocument))
}

// OpenAPIDocs renders a Redoc page pointing at OpenAPIJSON.
func (a *App) OpenAPIDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err := docsPage.Execute(w, struct {
		Lang, Title, SpecURL string
	}{
		Lang:    "en",
		Title:   "PromptMaster API",
		SpecURL: "/v1/openapi.json",
	})
	if err != nil {
		a.Logger.Error().Err(err).Msg("render docs page")
	}
}
