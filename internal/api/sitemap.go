package api

import (
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Endpoint represents an API endpoint with its documentation
type Endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

func (s *Server) endpoints() []Endpoint {
	endpoints := []Endpoint{
		{Path: "/", Method: "GET", Description: "This sitemap - lists all available API endpoints"},
		{Path: "/health", Method: "GET", Description: "Health check endpoint - returns {\"status\": \"ok\"}"},
		{Path: "/api/services", Method: "GET", Description: "List registered services"},
		{Path: "/api/services/{domain}/{service}", Method: "POST", Description: "Call a service; add ?return_response for response data"},
		{Path: "/api/ai_task/preferences", Method: "GET", Description: "Get the preferred entity per task kind"},
		{Path: "/api/ai_task/preferences", Method: "POST", Description: "Update preference slots (partial)"},
		{Path: "/api/ai_task/entities", Method: "GET", Description: "List handling entities and their features"},
	}
	if s.opts.Metrics != nil {
		endpoints = append(endpoints, Endpoint{Path: "/metrics", Method: "GET", Description: "Prometheus metrics"})
	}
	if s.opts.Media != nil {
		for _, name := range s.opts.Media.DirNames() {
			endpoints = append(endpoints, Endpoint{
				Path:        "/media/" + name + "/{path}",
				Method:      "GET",
				Description: "Files of media directory " + name,
			})
		}
	}
	return endpoints
}

// handleSitemap lists the API endpoints as HTML for browsers, plain text otherwise
func (s *Server) handleSitemap(w http.ResponseWriter, r *http.Request) {
	endpoints := s.endpoints()
	preferHTML := strings.Contains(r.Header.Get("Accept"), "text/html")

	if preferHTML {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `<!DOCTYPE html>
<html>
<head>
    <title>AI Task API</title>
    <style>
        body { font-family: monospace; margin: 40px; background: #1e1e1e; color: #d4d4d4; }
        h1 { color: #4ec9b0; }
        h2 { color: #569cd6; margin-top: 30px; }
        .endpoint { background: #2d2d2d; padding: 15px; margin: 10px 0; border-left: 3px solid #007acc; }
        .method { color: #4ec9b0; font-weight: bold; }
        .path { color: #ce9178; }
        .description { color: #9cdcfe; margin-top: 5px; }
    </style>
</head>
<body>
    <h1>AI Task API</h1>
    <p>Runs data generation tasks on configured AI entities.</p>
    <h2>Available Endpoints</h2>
`)
		for _, ep := range endpoints {
			fmt.Fprintf(w, `    <div class="endpoint">
        <div><span class="method">%s</span> <span class="path">%s</span></div>
        <div class="description">%s</div>
    </div>
`, ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "</body>\n</html>\n")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "AI Task API\n")
		fmt.Fprintf(w, "===========\n\n")
		fmt.Fprintf(w, "Available endpoints:\n\n")
		for _, ep := range endpoints {
			fmt.Fprintf(w, "  %-6s %-36s %s\n", ep.Method, ep.Path, ep.Description)
		}
		fmt.Fprintf(w, "\nExample:\n\n")
		fmt.Fprintf(w, "  curl -X POST 'http://localhost:8080/api/services/ai_task/generate_data?return_response' \\\n")
		fmt.Fprintf(w, "    -d '{\"task_name\": \"Porch\", \"instructions\": \"Is anyone on the porch?\"}'\n\n")
	}

	s.logger.Debug("Sitemap request served",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Bool("html_format", preferHTML))
}
