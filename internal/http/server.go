package http

import (
	"net/http"

	"github.com/chainguard-dev/clog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux wires the API, metrics and static file routes. An empty webDir
// serves no static files; a nil gatherer disables /metrics.
func NewMux(chat *ChatServer, gatherer prometheus.Gatherer, webDir string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", chat.ChatHandler)
	mux.HandleFunc("/ask", chat.AskHandler)
	mux.HandleFunc("/agents", chat.AgentsHandler)
	mux.HandleFunc("/runs", chat.RunsHandler)
	mux.HandleFunc("/healthz", HealthHandler)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	if webDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(webDir)))
	}
	return mux
}

// WithLogger attaches log, tagged with the request method and path, to each
// request context.
func WithLogger(log *clog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := log.With("method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(clog.WithLogger(r.Context(), l)))
	})
}
