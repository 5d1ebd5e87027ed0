package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/fixflow/types"
	"github.com/BaSui01/fixflow/workflow"
)

// WorkflowHandler exposes the workflow engine over HTTP.
type WorkflowHandler struct {
	engine *workflow.Engine
	logger *zap.Logger
}

// NewWorkflowHandler creates a workflow handler.
func NewWorkflowHandler(engine *workflow.Engine, logger *zap.Logger) *WorkflowHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowHandler{engine: engine, logger: logger}
}

// startRequest is the body of POST /v1/workflows.
type startRequest struct {
	Request       string `json:"request"`
	RequestType   string `json:"request_type,omitempty"`
	PackagePath   string `json:"package_path"`
	MaxIterations int    `json:"max_iterations,omitempty"`
}

// continueRequest is the body of POST /v1/workflows/{id}/continue. Result is
// passed through opaquely; the engine validates it.
type continueRequest struct {
	Result json.RawMessage `json:"result"`
}

// HandleStart creates a new workflow.
func (h *WorkflowHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	resp, err := h.engine.Start(r.Context(), workflow.EntryContext{
		Request:       req.Request,
		RequestType:   req.RequestType,
		PackagePath:   req.PackagePath,
		MaxIterations: req.MaxIterations,
	})
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, resp)
}

// HandleContinue advances a workflow with a reported step result.
func (h *WorkflowHandler) HandleContinue(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "missing workflow id"), h.logger)
		return
	}

	var req continueRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	resp, err := h.engine.Continue(r.Context(), id, req.Result)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, resp)
}

// HandleGet returns the current state of a workflow.
func (h *WorkflowHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "missing workflow id"), h.logger)
		return
	}

	state, err := h.engine.Get(r.Context(), id)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, state)
}

// Register wires the workflow routes onto a mux.
func (h *WorkflowHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/workflows", h.HandleStart)
	mux.HandleFunc("POST /v1/workflows/{id}/continue", h.HandleContinue)
	mux.HandleFunc("GET /v1/workflows/{id}", h.HandleGet)
}
