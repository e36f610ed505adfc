package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/stelae/stelae/pkg/authz"
	"github.com/stelae/stelae/pkg/httputil"
	"github.com/stelae/stelae/pkg/observability"
)

// RequesterHeader carries the authenticated user's IRI, set by the
// authenticating proxy in front of this service. Requests without it are
// treated as anonymous.
const RequesterHeader = "X-Stelae-User"

// Server is the HTTP surface of the permission engine.
type Server struct {
	service *authz.Service
	router  *mux.Router
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewServer creates an API server around the authorization service.
func NewServer(service *authz.Service, log *observability.Logger, metrics *observability.Metrics) *Server {
	if log == nil {
		log = observability.NewLogger(observability.InfoLevel, nil)
	}
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		log:     log,
		metrics: metrics,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// Administrative permission records
	s.router.HandleFunc("/api/v1/permissions/administrative", s.createAdministrative).Methods("POST")
	s.router.HandleFunc("/api/v1/permissions/administrative/{iri:.*}", s.updateAdministrative).Methods("PATCH")
	s.router.HandleFunc("/api/v1/projects/{project:.*}/permissions/administrative", s.listAdministrative).Methods("GET")

	// Default object access permission records
	s.router.HandleFunc("/api/v1/permissions/doap", s.createDOAP).Methods("POST")
	s.router.HandleFunc("/api/v1/permissions/doap/{iri:.*}", s.updateDOAP).Methods("PATCH")
	s.router.HandleFunc("/api/v1/projects/{project:.*}/permissions/doap", s.listDOAP).Methods("GET")

	// Audit trail
	s.router.HandleFunc("/api/v1/projects/{project:.*}/audit", s.auditTrail).Methods("GET")

	// Resolution
	s.router.HandleFunc("/api/v1/resolve/administrative", s.resolveAdministrative).Methods("GET")
	s.router.HandleFunc("/api/v1/resolve/doap", s.resolveDOAP).Methods("GET")
	s.router.HandleFunc("/api/v1/permissions-data", s.permissionsData).Methods("GET")
}

// Handler returns the fully wrapped handler: tracing, request IDs,
// metrics, logging, panic recovery, and body limits around the router.
func (s *Server) Handler() http.Handler {
	middlewares := []func(http.Handler) http.Handler{
		httputil.RequestIDMiddleware,
	}
	if s.metrics != nil {
		middlewares = append(middlewares, s.metrics.HTTPMiddleware)
	}
	middlewares = append(middlewares,
		httputil.LoggingMiddleware(s.log),
		httputil.RecoveryMiddleware(s.log),
		httputil.MaxBytesMiddleware(1<<20),
	)
	chain := httputil.Chain(middlewares...)
	return otelhttp.NewHandler(chain(s.router), "stelae.api")
}

// ServeHTTP implements http.Handler for tests that bypass the middleware.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requester extracts the calling user from the proxy header.
func requester(r *http.Request) authz.Requester {
	iri := r.Header.Get(RequesterHeader)
	if iri == "" {
		return authz.Requester{Anonymous: true}
	}
	return authz.Requester{IRI: iri}
}
