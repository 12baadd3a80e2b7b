package handlers

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openapiSpec []byte

// apiInfo is the part of the OpenAPI document the docs page shows.
type apiInfo struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	Version     string `yaml:"version"`
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}{{with .Version}} v{{.}}{{end}} API Docs</title>
  {{with .Description}}<meta name="description" content="{{.}}">{{end}}
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/openapi.yaml",
      dom_id: "#swagger-ui",
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: "BaseLayout",
      deepLinking: true,
    });
  </script>
</body>
</html>`))

// docsPage renders the Swagger UI page once, titled from the embedded
// document's info block.
var docsPage = sync.OnceValues(func() ([]byte, error) {
	return renderDocs(openapiSpec)
})

func renderDocs(spec []byte) ([]byte, error) {
	var doc struct {
		Info apiInfo `yaml:"info"`
	}
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if doc.Info.Title == "" {
		doc.Info.Title = "Service"
	}
	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, doc.Info); err != nil {
		return nil, fmt.Errorf("render docs page: %w", err)
	}
	return buf.Bytes(), nil
}

// OpenAPISpec handles GET /openapi.yaml and serves the raw OpenAPI document.
func OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(openapiSpec)
}

// Docs handles GET /docs with the Swagger UI page.
func Docs(w http.ResponseWriter, r *http.Request) {
	page, err := docsPage()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render docs")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(page)
}
