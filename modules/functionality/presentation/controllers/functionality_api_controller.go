package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/iota-uz/functree/modules/functionality/presentation/controllers/dtos"
	"github.com/iota-uz/functree/modules/functionality/presentation/mappers"
	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/application"
	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/httpapi"
	"github.com/iota-uz/functree/pkg/middleware"
)

const maxBodyBytes = 1 << 20

type FunctionalityAPIController struct {
	app       application.Application
	tree      *services.FunctionalityService
	apiPrefix string
}

func NewFunctionalityAPIController(app application.Application) application.Controller {
	return &FunctionalityAPIController{
		app:       app,
		tree:      app.Service(services.FunctionalityService{}).(*services.FunctionalityService),
		apiPrefix: "/functionalities/api",
	}
}

func (c *FunctionalityAPIController) Key() string {
	return c.apiPrefix
}

// Register adds the API routes to r directly. A PathPrefix subrouter would
// answer method mismatches with the root 404 handler instead of 405.
func (c *FunctionalityAPIController) Register(r *mux.Router) {
	traced := middleware.TracedMiddleware("functionality-api")
	route := func(path string, h http.HandlerFunc, method string) {
		r.Handle(c.apiPrefix+path, traced(h)).Methods(method)
	}

	route("/tree", c.GetTree, http.MethodGet)
	route("/nodes", c.CreateNode, http.MethodPost)
	route("/nodes/{id}:move", c.MoveNode, http.MethodPost)
	route("/nodes/{id}", c.UpdateNode, http.MethodPatch)
	route("/nodes/{id}", c.DeleteNode, http.MethodDelete)
}

func (c *FunctionalityAPIController) GetTree(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	view := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("view")))
	if view != "" && view != "nested" && view != "flat" {
		writeAPIError(w, http.StatusBadRequest, requestID, "FUNCTREE_INVALID_QUERY", "view must be nested or flat")
		return
	}

	roots, err := c.tree.GetTree(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	if view == "flat" {
		writeJSON(w, http.StatusOK, mappers.TreeToRows(tenantID, roots))
		return
	}
	writeJSON(w, http.StatusOK, mappers.TreeToViewModel(tenantID, roots))
}

func (c *FunctionalityAPIController) CreateNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req dtos.CreateNodeDTO
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "FUNCTREE_INVALID_BODY", "invalid json body")
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeValidationError(w, requestID, errs)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}

	node, err := c.tree.CreateNode(r.Context(), tenantID, in)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, mappers.NodeToViewModel(node))
}

func (c *FunctionalityAPIController) MoveNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := requireNodeID(w, r, requestID)
	if !ok {
		return
	}
	var req dtos.MoveNodeDTO
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "FUNCTREE_INVALID_BODY", "invalid json body")
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeValidationError(w, requestID, errs)
		return
	}
	in, err := req.ToInput(nodeID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}

	node, err := c.tree.MoveNode(r.Context(), tenantID, in)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.NodeToViewModel(node))
}

func (c *FunctionalityAPIController) UpdateNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := requireNodeID(w, r, requestID)
	if !ok {
		return
	}
	var req dtos.UpdateNodeDTO
	if err := decodeJSON(r.Body, &req); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "FUNCTREE_INVALID_BODY", "invalid json body")
		return
	}
	if errs, ok := req.Ok(); !ok {
		writeValidationError(w, requestID, errs)
		return
	}

	node, err := c.tree.UpdateNode(r.Context(), tenantID, services.UpdateNodeInput{NodeID: nodeID, Name: req.Name})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, mappers.NodeToViewModel(node))
}

func (c *FunctionalityAPIController) DeleteNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := requireNodeID(w, r, requestID)
	if !ok {
		return
	}

	res, err := c.tree.DeleteNode(r.Context(), tenantID, nodeID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	type deleteNodeResponse struct {
		NodeID  string `json:"node_id"`
		Deleted int    `json:"deleted"`
	}
	writeJSON(w, http.StatusOK, deleteNodeResponse{NodeID: res.NodeID.String(), Deleted: res.Removed})
}

func requireTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	requestID := ensureRequestID(r)
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "FUNCTREE_NO_TENANT", "tenant id is required")
		return uuid.Nil, requestID, false
	}
	return tenantID, requestID, true
}

func requireNodeID(w http.ResponseWriter, r *http.Request, requestID string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "FUNCTREE_INVALID_ID", "node id must be a uuid")
		return uuid.Nil, false
	}
	return id, true
}

func ensureRequestID(r *http.Request) string {
	if v := composables.UseRequestID(r.Context()); v != "" {
		return v
	}
	if v := strings.TrimSpace(r.Header.Get("X-Request-ID")); v != "" {
		return v
	}
	return uuid.NewString()
}

func decodeJSON(body io.ReadCloser, out any) error {
	defer func() { _ = body.Close() }()
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeValidationError(w http.ResponseWriter, requestID string, fields map[string]string) {
	_ = httpapi.NewError(http.StatusBadRequest, "FUNCTREE_INVALID_BODY", "request validation failed").
		WithRequestID(requestID).
		WithFields(fields).
		Write(w)
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	var svcErr *services.ServiceError
	if !errors.As(err, &svcErr) {
		svcErr = services.AsServiceError(err)
	}
	writeAPIError(w, svcErr.Status, requestID, svcErr.Code, svcErr.Message)
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	_ = httpapi.NewError(status, code, message).WithRequestID(requestID).Write(w)
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	_ = httpapi.WriteJSON(w, status, payload)
}
