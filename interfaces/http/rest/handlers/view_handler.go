// Package handlers serves the view host's REST endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"treeview-ai/application/reconcile"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	"treeview-ai/domain/operations"
)

// ViewService is the reconciliation controller as the handlers see it.
type ViewService interface {
	Mount(ctx context.Context, sessionID string) (reconcile.MountResult, error)
	Save(ctx context.Context) (entities.Session, error)
	SubmitCommand(ctx context.Context, text string) (reconcile.CommandResult, error)
	DeliverReply(ctx context.Context, sessionID string, reply entities.Message) (reconcile.CommandResult, error)

	InsertNode(ctx context.Context, op operations.Insert) (operations.Outcome, error)
	DeleteNode(ctx context.Context, ref string, kind valueobjects.RefKind) (operations.Outcome, error)
	Connect(ctx context.Context, op operations.Connect) (operations.Outcome, error)
	Highlight(ctx context.Context, refs []string) (operations.Outcome, error)
	Traverse(ctx context.Context, order, rootRef string) (operations.Outcome, error)
	Search(ctx context.Context, value string) (operations.Outcome, error)
	Reset(ctx context.Context) (operations.Outcome, error)
	MoveNode(ctx context.Context, id valueobjects.NodeID, pos valueobjects.Position) error
	DeleteEdge(ctx context.Context, id valueobjects.EdgeID) error

	Status(ctx context.Context) (reconcile.Status, error)
	Snapshot(ctx context.Context) (entities.Snapshot, error)
	Transcript(ctx context.Context) ([]entities.Message, error)
}

// ViewHandler handles /api/view requests.
type ViewHandler struct {
	view   ViewService
	logger *zap.Logger
}

// NewViewHandler creates a view handler.
func NewViewHandler(view ViewService, logger *zap.Logger) *ViewHandler {
	return &ViewHandler{view: view, logger: logger}
}

// ViewResponse is the body of GET /api/view.
type ViewResponse struct {
	Status reconcile.Status  `json:"status"`
	Graph  entities.Snapshot `json:"graph"`
}

// MountRequest selects the session to show.
type MountRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CommandRequest is a natural-language instruction for the assistant.
type CommandRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// ReplyRequest delivers an assistant reply that arrived out of band.
type ReplyRequest struct {
	SessionID string          `json:"session_id" validate:"required"`
	ID        string          `json:"id"`
	Reply     json.RawMessage `json:"reply" validate:"required"`
	CreatedAt time.Time       `json:"created_at"`
}

// MoveRequest writes back a dragged position.
type MoveRequest struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// HighlightRequest replaces the highlight set.
type HighlightRequest struct {
	Refs []string `json:"refs" validate:"required,min=1"`
}

// TraverseRequest starts a traversal animation.
type TraverseRequest struct {
	Order   string `json:"order" validate:"required"`
	RootRef string `json:"root_ref"`
}

// SearchRequest highlights nodes by label.
type SearchRequest struct {
	Value string `json:"value" validate:"required"`
}

// GetView handles GET /api/view
func (h *ViewHandler) GetView(w http.ResponseWriter, r *http.Request) {
	status, err := h.view.Status(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	graph, err := h.view.Snapshot(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, ViewResponse{Status: status, Graph: graph})
}

// GetTranscript handles GET /api/view/transcript
func (h *ViewHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.view.Transcript(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, map[string]any{
		"messages": msgs,
		"total":    len(msgs),
	})
}

// MountSession handles POST /api/view/session
func (h *ViewHandler) MountSession(w http.ResponseWriter, r *http.Request) {
	var req MountRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	result, err := h.view.Mount(r.Context(), req.SessionID)
	if err != nil && result.HistoryError == "" {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}

// SubmitCommand handles POST /api/view/commands
func (h *ViewHandler) SubmitCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	result, err := h.view.SubmitCommand(r.Context(), req.Text)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, result)
}

// DeliverReply handles POST /api/view/replies
func (h *ViewHandler) DeliverReply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	result, err := h.view.DeliverReply(r.Context(), req.SessionID, entities.Message{
		ID:        req.ID,
		CreatedAt: req.CreatedAt,
		RawReply:  req.Reply,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	status := http.StatusOK
	if result.Discarded {
		status = http.StatusAccepted
	}
	respondJSON(w, h.logger, status, result)
}

// InsertNode handles POST /api/view/nodes
func (h *ViewHandler) InsertNode(w http.ResponseWriter, r *http.Request) {
	var req operations.Insert
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, r, http.StatusCreated)(h.view.InsertNode(r.Context(), req))
}

// DeleteNode handles DELETE /api/view/nodes/{ref}. The ref is a label
// unless ?by=id is given.
func (h *ViewHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	kind := valueobjects.RefKind(r.URL.Query().Get("by"))
	h.respondOutcome(w, r, http.StatusOK)(h.view.DeleteNode(r.Context(), chi.URLParam(r, "ref"), kind))
}

// MoveNode handles PUT /api/view/nodes/{id}/position
func (h *ViewHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req MoveRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	id := valueobjects.NodeID(chi.URLParam(r, "id"))
	if err := h.view.MoveNode(r.Context(), id, valueobjects.Position{X: req.X, Y: req.Y}); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Connect handles POST /api/view/edges
func (h *ViewHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req operations.Connect
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, r, http.StatusCreated)(h.view.Connect(r.Context(), req))
}

// DeleteEdge handles DELETE /api/view/edges/{id}
func (h *ViewHandler) DeleteEdge(w http.ResponseWriter, r *http.Request) {
	id := valueobjects.EdgeID(chi.URLParam(r, "id"))
	if err := h.view.DeleteEdge(r.Context(), id); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Highlight handles POST /api/view/highlight
func (h *ViewHandler) Highlight(w http.ResponseWriter, r *http.Request) {
	var req HighlightRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, r, http.StatusOK)(h.view.Highlight(r.Context(), req.Refs))
}

// Traverse handles POST /api/view/traverse
func (h *ViewHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	var req TraverseRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, r, http.StatusOK)(h.view.Traverse(r.Context(), req.Order, req.RootRef))
}

// Search handles POST /api/view/search
func (h *ViewHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	h.respondOutcome(w, r, http.StatusOK)(h.view.Search(r.Context(), req.Value))
}

// Reset handles POST /api/view/reset
func (h *ViewHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.respondOutcome(w, r, http.StatusOK)(h.view.Reset(r.Context()))
}

// Save handles POST /api/view/save
func (h *ViewHandler) Save(w http.ResponseWriter, r *http.Request) {
	session, err := h.view.Save(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, session)
}

func (h *ViewHandler) respondOutcome(w http.ResponseWriter, r *http.Request, status int) func(operations.Outcome, error) {
	return func(outcome operations.Outcome, err error) {
		if err != nil {
			respondError(w, r, h.logger, err)
			return
		}
		respondJSON(w, h.logger, status, outcome)
	}
}
