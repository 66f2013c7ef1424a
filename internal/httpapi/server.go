package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"

	goSession "github.com/MrEthical07/goSession"
	"go.uber.org/zap"
)

// Info describes the service in the route manifest.
type Info struct {
	Name        string
	Version     string
	Description string
}

// Options configures a Server.
type Options struct {
	Info Info
	// Metrics, when set, is mounted at GET /metrics.
	Metrics http.Handler
}

// Server holds the routed handler tree.
type Server struct {
	engine   *goSession.Engine
	logger   *zap.Logger
	manifest []byte
	handler  http.Handler
}

type route struct {
	method  string
	path    string
	handler http.Handler
}

// New wires every route against engine. A nil logger disables request logs.
func New(engine *goSession.Engine, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: engine, logger: logger}

	routes := []route{
		{method: http.MethodGet, path: "/", handler: http.HandlerFunc(s.handleManifest)},
		{method: http.MethodPost, path: "/session", handler: http.HandlerFunc(s.handleIssue)},
		{method: http.MethodGet, path: "/session", handler: s.verifyHandler()},
		{method: http.MethodGet, path: "/healthz", handler: http.HandlerFunc(s.handleHealth)},
	}
	if opts.Metrics != nil {
		routes = append(routes, route{method: http.MethodGet, path: "/metrics", handler: opts.Metrics})
	}

	mux := http.NewServeMux()
	for _, r := range routes {
		pattern := r.method + " " + r.path
		if r.path == "/" {
			pattern += "{$}"
		}
		mux.Handle(pattern, r.handler)
	}

	s.manifest = buildManifest(opts.Info, routes)
	s.handler = requestLogger(logger)(mux)
	return s
}

// Handler returns the root handler including request logging.
func (s *Server) Handler() http.Handler {
	return s.handler
}

type manifest struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Description string              `json:"description"`
	Routes      map[string][]string `json:"routes"`
}

// The manifest is fixed once routes are registered, so it is encoded once.
func buildManifest(info Info, routes []route) []byte {
	m := manifest{
		Name:        info.Name,
		Version:     info.Version,
		Description: info.Description,
		Routes:      make(map[string][]string, len(routes)),
	}
	for _, r := range routes {
		m.Routes[r.path] = append(m.Routes[r.path], r.method)
	}
	for path := range m.Routes {
		sort.Strings(m.Routes[path])
	}
	out, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return append(out, '\n')
}

func (s *Server) handleManifest(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.manifest)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
