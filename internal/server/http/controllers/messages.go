package controllers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/brugmanjoost/drumbeat/internal/access"
	"github.com/brugmanjoost/drumbeat/internal/lifecycle"
	"github.com/brugmanjoost/drumbeat/internal/message"
	"github.com/brugmanjoost/drumbeat/internal/runtime"
	logpkg "github.com/brugmanjoost/drumbeat/pkg/log"
)

// MessagesController exposes the message lifecycle per queue.
//
// Every handler validates its parameters first (400), then checks the
// caller's capabilities on the queue (403), then calls the engine.
type MessagesController struct {
	rt      *runtime.Runtime
	engine  *lifecycle.Engine
	policy  *access.Policy
	logger  logpkg.Logger
	maxBody int64
}

// NewMessagesController creates a new messages controller.
func NewMessagesController(rt *runtime.Runtime, logger logpkg.Logger) *MessagesController {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	return &MessagesController{
		rt:      rt,
		engine:  rt.Engine(),
		policy:  rt.Policy(),
		logger:  logger.WithComponent("http.messages"),
		maxBody: rt.Config().RequestBodyMaxBytes,
	}
}

// RegisterRoutes registers the per-queue routes.
func (c *MessagesController) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{queue}", c.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/{queue}", c.handleList).Methods(http.MethodGet)
	r.HandleFunc("/{queue}/", c.handleList).Methods(http.MethodGet)
	r.HandleFunc("/{queue}/{id}", c.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/{queue}/{id}", c.handleDelete).Methods(http.MethodDelete)
	r.HandleFunc("/{queue}/{id}/cancel", c.handleCancel).Methods(http.MethodPatch)
	r.HandleFunc("/{queue}/{id}/postback", c.handlePostback).Methods(http.MethodPatch)
}

// queueParam returns the queue path variable if it is a valid name.
func (c *MessagesController) queueParam(r *http.Request) (string, bool) {
	q := mux.Vars(r)["queue"]
	return q, q != "" && c.rt.ValidQueueName(q)
}

// target extracts and validates queue and id.
func (c *MessagesController) target(r *http.Request) (string, int64, bool) {
	q, ok := c.queueParam(r)
	if !ok {
		return "", 0, false
	}
	id, ok := parseID(mux.Vars(r)["id"])
	return q, id, ok
}

func (c *MessagesController) caps(r *http.Request, queue string) access.Capabilities {
	return c.policy.FromHeader(r.Header.Get("Authorization"), queue)
}

func (c *MessagesController) handleCreate(w http.ResponseWriter, r *http.Request) {
	queue, ok := c.queueParam(r)
	if !ok {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	var req createReq
	if err := decodeBody(w, r, c.maxBody, &req); err != nil || !message.ValidName(req.Subject) {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	if err := c.caps(r, queue).RequireAdmin(); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	id, err := c.engine.Create(r.Context(), queue, req.Subject, req.RequestBody)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	writeOK(w, id)
}

func (c *MessagesController) handleList(w http.ResponseWriter, r *http.Request) {
	queue, ok := c.queueParam(r)
	if !ok {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	var status *message.Status
	if raw, set := r.URL.Query()["status"]; set {
		st, err := message.ParseStatus(raw[0])
		if err != nil {
			writeError(w, r, c.logger, err)
			return
		}
		status = &st
	}
	filter, err := lifecycle.CompileFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	caps := c.caps(r, queue)
	if err := caps.RequireAdminOrWorker(); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	status, err = caps.ListStatus(status)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}

	list, err := c.engine.List(r.Context(), queue, lifecycle.ListQuery{Status: status, Filter: filter})
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	if list == nil {
		list = []message.Message{}
	}
	writeOK(w, list)
}

func (c *MessagesController) handleGet(w http.ResponseWriter, r *http.Request) {
	queue, id, ok := c.target(r)
	if !ok {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	caps := c.caps(r, queue)
	if err := caps.RequireAdminOrWorker(); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	m, err := c.engine.Get(r.Context(), queue, id)
	if err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	if err := caps.CanView(m); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	writeOK(w, m)
}

func (c *MessagesController) handleDelete(w http.ResponseWriter, r *http.Request) {
	queue, id, ok := c.target(r)
	if !ok {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	if err := c.caps(r, queue).RequireAdmin(); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	if err := c.engine.Delete(r.Context(), queue, id); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	writeOK(w, nil)
}

func (c *MessagesController) handleCancel(w http.ResponseWriter, r *http.Request) {
	queue, id, ok := c.target(r)
	if !ok {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	if err := c.caps(r, queue).RequireAdmin(); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	if err := c.engine.Cancel(r.Context(), queue, id); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	writeOK(w, nil)
}

func (c *MessagesController) handlePostback(w http.ResponseWriter, r *http.Request) {
	queue, id, ok := c.target(r)
	if !ok {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	var req postbackReq
	if err := decodeBody(w, r, c.maxBody, &req); err != nil || req.Status == "" {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	st, err := message.ParseStatus(req.Status)
	if err != nil {
		writeResult(w, http.StatusBadRequest, ResultBadRequest)
		return
	}
	if err := c.caps(r, queue).RequireAdminOrWorker(); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	if err := c.engine.Feedback(r.Context(), queue, id, st, req.ResponseBody); err != nil {
		writeError(w, r, c.logger, err)
		return
	}
	writeOK(w, nil)
}
