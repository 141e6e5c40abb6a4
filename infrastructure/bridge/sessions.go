package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"treeview-ai/application/interpreter"
	"treeview-ai/application/ports"
	"treeview-ai/domain/core/entities"
	pkgerrors "treeview-ai/pkg/errors"
)

// SessionBridge loads and saves tree sessions.
type SessionBridge struct {
	client *Client
}

var _ ports.SessionBridge = (*SessionBridge)(nil)

func NewSessionBridge(client *Client) *SessionBridge {
	return &SessionBridge{client: client}
}

type sessionResponse struct {
	ID          string          `json:"id"`
	SessionName string          `json:"session_name"`
	TreeData    json.RawMessage `json:"tree_data"`
	UpdatedAt   string          `json:"updated_at"`
}

type treeData struct {
	Nodes []nodeDTO `json:"nodes"`
	Edges []edgeDTO `json:"edges"`
}

type nodeDTO struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Data     nodeDataDTO `json:"data"`
	Position positionDTO `json:"position"`
}

type nodeDataDTO struct {
	Label string `json:"label"`
}

type positionDTO struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type edgeDTO struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Side   string `json:"side,omitempty"`
}

type saveRequest struct {
	TreeData treeData `json:"tree_data"`
}

func (b *SessionBridge) GetSession(ctx context.Context, id string) (entities.Session, error) {
	var resp sessionResponse
	if err := b.client.get(ctx, "get_session", "/api/tree/sessions/"+url.PathEscape(id), &resp); err != nil {
		return entities.Session{}, err
	}
	return resp.toSession()
}

func (b *SessionBridge) SaveSession(ctx context.Context, id string, graph entities.Snapshot) (entities.Session, error) {
	var resp sessionResponse
	req := saveRequest{TreeData: toTreeData(graph)}
	if _, err := b.client.send(ctx, "save_session", http.MethodPut, "/api/tree/sessions/"+url.PathEscape(id), req, &resp); err != nil {
		return entities.Session{}, err
	}
	s, err := resp.toSession()
	if err != nil {
		return entities.Session{}, err
	}
	if s.ID == "" {
		s.ID = id
	}
	return s, nil
}

func (r sessionResponse) toSession() (entities.Session, error) {
	s := entities.Session{
		ID:        r.ID,
		Name:      r.SessionName,
		Graph:     entities.Snapshot{Nodes: []entities.Node{}, Edges: []entities.Edge{}},
		UpdatedAt: parseTime(r.UpdatedAt),
	}
	data := strings.TrimSpace(string(r.TreeData))
	if data == "" || data == "null" {
		return s, nil
	}
	var v any
	if err := json.Unmarshal(r.TreeData, &v); err != nil {
		return entities.Session{}, pkgerrors.NewTransient("decode tree_data", err)
	}
	if graph, unplaced, ok := interpreter.DecodeSnapshot(v); ok {
		s.Graph = graph
		s.Unplaced = unplaced
	}
	return s, nil
}

func toTreeData(g entities.Snapshot) treeData {
	td := treeData{
		Nodes: make([]nodeDTO, 0, len(g.Nodes)),
		Edges: make([]edgeDTO, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		td.Nodes = append(td.Nodes, nodeDTO{
			ID:       string(n.ID),
			Label:    n.Label,
			Data:     nodeDataDTO{Label: n.Label},
			Position: positionDTO{X: n.Position.X, Y: n.Position.Y},
		})
	}
	for _, e := range g.Edges {
		td.Edges = append(td.Edges, edgeDTO{
			ID:     string(e.ID),
			Source: string(e.Source),
			Target: string(e.Target),
			Side:   string(e.Side),
		})
	}
	return td
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// parseTime accepts RFC 3339 and naive ISO timestamps, which are taken as
// UTC. Unparseable values yield the zero time.
func parseTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
