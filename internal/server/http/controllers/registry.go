package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brugmanjoost/drumbeat/internal/runtime"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general  *GeneralController
	messages *MessagesController
}

// NewControllerRegistry creates the controllers for rt.
func NewControllerRegistry(rt *runtime.Runtime, logger logpkg.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general:  NewGeneralController(rt),
		messages: NewMessagesController(rt, logger),
	}
}

// RegisterAllRoutes registers all controller routes with r.
//
// The operational endpoints under /v1 go first: the message routes match
// any first path segment and would otherwise shadow them.
func (c *ControllerRegistry) RegisterAllRoutes(r *mux.Router) {
	c.general.RegisterRoutes(r)
	c.messages.RegisterRoutes(r)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeResult(w, http.StatusNotFound, ResultNotFound)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeResult(w, http.StatusMethodNotAllowed, ResultBadRequest)
	})
}
