package controllers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brugmanjoost/drumbeat/internal/runtime"
)

// GeneralController serves health and metrics.
type GeneralController struct {
	rt *runtime.Runtime
}

// NewGeneralController creates a new general controller.
func NewGeneralController(rt *runtime.Runtime) *GeneralController {
	return &GeneralController{rt: rt}
}

// RegisterRoutes registers /v1/healthz and /v1/metrics.
func (c *GeneralController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/v1/healthz", c.handleHealth).Methods(http.MethodGet)
	r.Handle("/v1/metrics", promhttp.Handler()).Methods(http.MethodGet)
}

// handleHealth returns 200 {"status":"ok"} when the store answers, 503 otherwise.
func (c *GeneralController) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := c.rt.CheckHealth(r.Context()); err != nil {
		writeStatus(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeStatus(w, http.StatusOK, map[string]string{"status": "ok"})
}
