package main

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Ixotic27/certifyhub/contracts"
	platformlogging "github.com/Ixotic27/certifyhub/platform/go/logging"
)

const swaggerUITemplate = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>CertifyHub API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
    <style>body{margin:0} #swagger-ui{max-width:1400px;margin:0 auto}</style>
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-standalone-preset.js"></script>
    <script>
      const urls = [/*__SPECS__*/];
      window.ui = SwaggerUIBundle({
        urls: urls,
        "urls.primaryName": urls[0] ? urls[0].name : '',
        dom_id: '#swagger-ui',
        deepLinking: true,
        presets: [SwaggerUIBundle.presets.apis, SwaggerUIStandalonePreset],
        layout: 'StandaloneLayout'
      });
    </script>
  </body>
</html>`

func registerDocsRoutes(router chi.Router, logger *zap.Logger) {
	router.Get("/docs", docsUIHandler())
	router.Get("/openapi/{name}.json", openapiJSONHandler(logger))
}

func docsUIHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.Replace(swaggerUITemplate, "/*__SPECS__*/", buildDocSpecsList(), 1)))
	}
}

func openapiJSONHandler(logger *zap.Logger) http.HandlerFunc {
	known := map[string]bool{}
	for _, name := range contracts.Names() {
		known[name] = true
	}
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if !known[name] {
			http.NotFound(w, r)
			return
		}

		doc, err := contracts.Load(name)
		if err == nil {
			var b []byte
			if b, err = doc.MarshalJSON(); err == nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write(b)
				return
			}
		}
		platformlogging.FromRequest(r, logger).Error("serve openapi json", zap.String("name", name), zap.Error(err))
		http.Error(w, "failed to marshal OpenAPI", http.StatusInternalServerError)
	}
}

func buildDocSpecsList() string {
	var builder strings.Builder
	for i, name := range contracts.Names() {
		if i > 0 {
			builder.WriteString(",\n")
		}
		builder.WriteString(fmt.Sprintf("        { url: '/openapi/%s.json', name: '%s' }", name, name))
	}
	return builder.String()
}
