package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Route binds a verb and a gin path pattern to a handler.
type Route struct {
	Method  string
	Path    string
	Handler gin.HandlerFunc
}

func (r Route) String() string { return r.Method + " " + r.Path }

var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
}

// Routes is the dispatch table of the API.
func (h *Handler) Routes() []Route {
	return []Route{
		{http.MethodGet, "/health", h.health},
		{http.MethodPost, "/user/:userId/contra-indicators", h.createContraIndicators},
		{http.MethodPut, "/user/:userId/contra-indicators", h.updateContraIndicators},
		{http.MethodGet, "/user/:userId/contra-indicators", h.listContraIndicators},
		{http.MethodPost, "/user/:userId/contra-indicators/:ci/mitigations", h.createMitigations},
		{http.MethodPut, "/user/:userId/contra-indicators/:ci/mitigations", h.updateMitigations},
		{http.MethodPost, "/contra-indicators/credential", h.issueCredential},
		{http.MethodPost, "/contra-indicators/mitigate", h.submitMitigatingCredential},
	}
}

// ValidateRoutes rejects unknown verbs, malformed paths and duplicate
// (verb, path) pairs.
func ValidateRoutes(routes []Route) error {
	var errs []error
	seen := make(map[string]bool, len(routes))
	for _, r := range routes {
		if !knownMethods[r.Method] {
			errs = append(errs, fmt.Errorf("route %s: unknown method", r))
		}
		if !strings.HasPrefix(r.Path, "/") {
			errs = append(errs, fmt.Errorf("route %s: path must start with /", r))
		}
		if r.Handler == nil {
			errs = append(errs, fmt.Errorf("route %s: no handler", r))
		}
		if seen[r.String()] {
			errs = append(errs, fmt.Errorf("route %s: registered twice", r))
		}
		seen[r.String()] = true
	}
	return errors.Join(errs...)
}

// Register validates routes and mounts them on r, each wrapped with request metrics.
func (h *Handler) Register(r gin.IRoutes, routes []Route) error {
	if err := ValidateRoutes(routes); err != nil {
		return err
	}
	for _, route := range routes {
		r.Handle(route.Method, route.Path, h.observe(route.String()), route.Handler)
	}
	return nil
}

func (h *Handler) observe(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.metrics.ObserveRequest(c.Request.Context(), name, c.Writer.Status(), start)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
