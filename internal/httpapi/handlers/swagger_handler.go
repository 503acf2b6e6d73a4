package handlers

import (
	_ "embed"
	"html/template"
	"net/http"
)

//go:embed spec/openapi.json
var openapiSpec []byte

var docsPage = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        window.ui = SwaggerUIBundle({
          url: {{.SpecURL}},
          dom_id: '#swagger-ui',
          presets: [SwaggerUIBundle.presets.apis],
          deepLinking: true
        })
      }
    </script>
  </body>
</html>`))

// DocsHandler serves the OpenAPI document and a Swagger UI page for it.
type DocsHandler struct {
	title   string
	specURL string
}

// NewDocsHandler returns a handler whose UI loads the document from specURL.
func NewDocsHandler(title, specURL string) *DocsHandler {
	return &DocsHandler{title: title, specURL: specURL}
}

// Spec serves the embedded OpenAPI document.
func (h *DocsHandler) Spec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(openapiSpec)
}

// UI serves the Swagger UI page.
func (h *DocsHandler) UI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = docsPage.Execute(w, struct{ Title, SpecURL string }{h.title, h.specURL})
}
