package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	pkgerrors "treeview-ai/pkg/errors"
)

//	    1
//	   / \
//	  2   3
//	 / \
//	4   5
func sampleTree() entities.Snapshot {
	return entities.Snapshot{
		Nodes: []entities.Node{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}},
		Edges: []entities.Edge{
			entities.NewEdge("1", "2", valueobjects.SideLeft),
			entities.NewEdge("1", "3", valueobjects.SideRight),
			entities.NewEdge("2", "4", valueobjects.SideLeft),
			entities.NewEdge("2", "5", valueobjects.SideRight),
		},
	}
}

func ids(s ...string) []valueobjects.NodeID {
	out := make([]valueobjects.NodeID, len(s))
	for i, v := range s {
		out[i] = valueobjects.NodeID(v)
	}
	return out
}

func TestTraverse(t *testing.T) {
	tests := []struct {
		order TraversalOrder
		root  valueobjects.NodeID
		want  []valueobjects.NodeID
	}{
		{InOrder, "", ids("4", "2", "5", "1", "3")},
		{PreOrder, "", ids("1", "2", "4", "5", "3")},
		{PostOrder, "", ids("4", "5", "2", "3", "1")},
		{LevelOrder, "", ids("1", "2", "3", "4", "5")},
		{PreOrder, "2", ids("2", "4", "5")},
	}

	for _, tt := range tests {
		t.Run(string(tt.order)+"/"+string(tt.root), func(t *testing.T) {
			got, err := Traverse(sampleTree(), tt.order, tt.root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTraverse_ForestAndUnconstrainedEdges(t *testing.T) {
	snap := entities.Snapshot{
		Nodes: []entities.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		Edges: []entities.Edge{entities.NewEdge("a", "c", valueobjects.SideNone)},
	}

	got, err := Traverse(snap, InOrder, "")

	require.NoError(t, err)
	assert.Equal(t, ids("a", "b", "c"), got)
}

func TestTraverse_CycleVisitsEachNodeOnce(t *testing.T) {
	snap := entities.Snapshot{
		Nodes: []entities.Node{{ID: "a"}, {ID: "b"}},
		Edges: []entities.Edge{
			entities.NewEdge("a", "b", valueobjects.SideLeft),
			entities.NewEdge("b", "a", valueobjects.SideLeft),
		},
	}

	got, err := Traverse(snap, PreOrder, "")

	require.NoError(t, err)
	assert.Equal(t, ids("a", "b"), got)
}

func TestTraverse_UnknownRoot(t *testing.T) {
	_, err := Traverse(sampleTree(), InOrder, "42")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestParseTraversalOrder(t *testing.T) {
	tests := []struct {
		in      string
		want    TraversalOrder
		wantErr bool
	}{
		{"inorder", InOrder, false},
		{"In-Order", InOrder, false},
		{"pre_order", PreOrder, false},
		{"POSTORDER", PostOrder, false},
		{"level order", LevelOrder, false},
		{"bfs", LevelOrder, false},
		{"zigzag", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTraversalOrder(tt.in)
			if tt.wantErr {
				assert.True(t, pkgerrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
