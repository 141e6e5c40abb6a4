package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"treeview-ai/application/interpreter"
	"treeview-ai/application/ports"
	"treeview-ai/application/ports/mocks"
	"treeview-ai/domain/config"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	"treeview-ai/domain/operations"
	pkgerrors "treeview-ai/pkg/errors"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	ctrl     *Controller
	sessions *mocks.MockSessionBridge
	chat     *mocks.MockChatBridge
	view     *mocks.RecordingView
	clock    *mocks.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sessions: new(mocks.MockSessionBridge),
		chat:     new(mocks.MockChatBridge),
		view:     &mocks.RecordingView{},
		clock:    mocks.NewFakeClock(t0),
	}
	f.ctrl = NewController(f.sessions, f.chat, interpreter.New(zap.NewNop()), Options{
		View:   f.view,
		Clock:  f.clock,
		Logger: zap.NewNop(),
	})
	t.Cleanup(func() { _ = f.ctrl.Close() })
	return f
}

// mount attaches the controller to an empty session with no history.
func (f *fixture) mount(t *testing.T, id string) {
	t.Helper()
	f.sessions.On("GetSession", mock.Anything, id).Return(entities.Session{ID: id}, nil).Once()
	f.chat.On("FetchHistory", mock.Anything, id).Return([]entities.Message{}, nil).Once()
	_, err := f.ctrl.Mount(context.Background(), id)
	require.NoError(t, err)
}

func reply(raw string, at time.Time) entities.Message {
	return entities.Message{ID: "r-" + at.Format(time.RFC3339Nano), CreatedAt: at, RawReply: json.RawMessage(raw)}
}

func snapshot(t *testing.T, f *fixture) entities.Snapshot {
	t.Helper()
	s, err := f.ctrl.Snapshot(context.Background())
	require.NoError(t, err)
	return s
}

func TestController_InsertRespectsSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ctrl.InsertNode(ctx, operations.Insert{Value: "Root"})
	require.NoError(t, err)
	assert.Len(t, snapshot(t, f).Nodes, 1)

	out, err := f.ctrl.InsertNode(ctx, operations.Insert{Value: "L", ParentRef: "Root", Side: valueobjects.SideLeft})
	require.NoError(t, err)
	assert.Equal(t, valueobjects.EdgeID("1->2"), out.EdgeID)
	s := snapshot(t, f)
	assert.Len(t, s.Nodes, 2)
	require.Len(t, s.Edges, 1)
	assert.Equal(t, valueobjects.SideLeft, s.Edges[0].Side)

	out, err = f.ctrl.InsertNode(ctx, operations.Insert{Value: "L2", ParentRef: "Root", Side: valueobjects.SideLeft})
	assert.True(t, pkgerrors.IsSlotOccupied(err))
	assert.Equal(t, operations.StatusRejected, out.Status)
	s = snapshot(t, f)
	assert.Len(t, s.Nodes, 2)
	assert.Len(t, s.Edges, 1)
}

func TestController_InsertWithoutSideFillsFirstFreeSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "Root"})
	_, err := f.ctrl.InsertNode(ctx, operations.Insert{Value: "A", ParentRef: "1"})
	require.NoError(t, err)
	_, err = f.ctrl.InsertNode(ctx, operations.Insert{Value: "B", ParentRef: "1"})
	require.NoError(t, err)
	_, err = f.ctrl.InsertNode(ctx, operations.Insert{Value: "C", ParentRef: "1"})
	assert.True(t, pkgerrors.IsSlotOccupied(err))

	s := snapshot(t, f)
	require.Len(t, s.Edges, 2)
	assert.Equal(t, valueobjects.SideLeft, s.Edges[0].Side)
	assert.Equal(t, valueobjects.SideRight, s.Edges[1].Side)
	assert.Equal(t, valueobjects.Position{X: -160, Y: 120}, s.Nodes[1].Position)
	assert.Equal(t, valueobjects.Position{X: 160, Y: 120}, s.Nodes[2].Position)
}

func TestController_InsertWithUnknownParentIsParentless(t *testing.T) {
	f := newFixture(t)

	out, err := f.ctrl.InsertNode(context.Background(), operations.Insert{Value: "X", ParentRef: "ghost"})

	require.NoError(t, err)
	assert.Empty(t, out.EdgeID)
	assert.Len(t, snapshot(t, f).Nodes, 1)
}

func TestController_DeleteNodeWithChildren(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "Root"})
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "L", ParentRef: "Root", Side: valueobjects.SideLeft})
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "R", ParentRef: "Root", Side: valueobjects.SideRight})
	require.Len(t, snapshot(t, f).Edges, 2)

	_, err := f.ctrl.DeleteNode(ctx, "Root", valueobjects.RefLabel)
	require.NoError(t, err)

	s := snapshot(t, f)
	assert.Len(t, s.Nodes, 2)
	assert.Empty(t, s.Edges)

	// Deleting again is NotFound and leaves the graph as it was.
	_, err = f.ctrl.DeleteNode(ctx, "Root", valueobjects.RefLabel)
	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Equal(t, s, snapshot(t, f))
}

func TestController_ConnectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "A"})
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "B"})

	first, err := f.ctrl.Connect(ctx, operations.Connect{SourceRef: "A", TargetRef: "B", Side: valueobjects.SideRight})
	require.NoError(t, err)
	second, err := f.ctrl.Connect(ctx, operations.Connect{SourceRef: "A", TargetRef: "B", Side: valueobjects.SideRight})
	require.NoError(t, err)

	assert.Equal(t, first.EdgeID, second.EdgeID)
	assert.Equal(t, operations.StatusApplied, second.Status)
	assert.Len(t, snapshot(t, f).Edges, 1)
}

func TestController_ManualConnectWithoutSideIsUnconstrained(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, v := range []string{"A", "B", "C", "D"} {
		_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: v})
	}

	for _, target := range []string{"B", "C", "D"} {
		_, err := f.ctrl.Connect(ctx, operations.Connect{SourceRef: "A", TargetRef: target})
		require.NoError(t, err)
	}

	for _, e := range snapshot(t, f).Edges {
		assert.Equal(t, valueobjects.SideNone, e.Side)
	}
}

func TestController_AssistantConnectFallback(t *testing.T) {
	tests := []struct {
		name     string
		fallback string
		want     []valueobjects.Side
		rejected int
	}{
		{"first free", config.FallbackFirstFree, []valueobjects.Side{valueobjects.SideLeft, valueobjects.SideRight}, 1},
		{"right", config.FallbackRight, []valueobjects.Side{valueobjects.SideRight}, 2},
		{"none", config.FallbackNone, []valueobjects.Side{valueobjects.SideNone, valueobjects.SideNone, valueobjects.SideNone}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			cfg := config.DefaultDomainConfig()
			cfg.Reconcile.ConnectSideFallback = tt.fallback
			require.NoError(t, f.ctrl.UpdateConfig(ctx, cfg))
			f.mount(t, "s1")
			for _, v := range []string{"A", "B", "C", "D"} {
				_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: v})
			}

			res, err := f.ctrl.DeliverReply(ctx, "s1", reply(`{"operations":[
				{"action":"connect","source":"A","target":"B"},
				{"action":"connect","source":"A","target":"C"},
				{"action":"connect","source":"A","target":"D"}]}`, t0.Add(time.Second)))
			require.NoError(t, err)

			var sides []valueobjects.Side
			for _, e := range snapshot(t, f).Edges {
				sides = append(sides, e.Side)
			}
			assert.Equal(t, tt.want, sides)
			assert.Equal(t, tt.rejected, res.Batch.Rejected())
		})
	}
}

func TestController_SubmitCommandAppliesReply(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()

	f.chat.On("SendMessage", mock.Anything, "s1", "add 10 as root", mock.Anything).
		Return(reply(`{"message":"Added 10.","operations":[{"action":"insert","value":10}]}`, t0.Add(time.Second)), nil).Once()

	res, err := f.ctrl.SubmitCommand(ctx, "add 10 as root")

	require.NoError(t, err)
	assert.False(t, res.UserMessage.Pending)
	assert.Equal(t, 1, res.Batch.Applied())
	assert.False(t, res.Batch.Silent)
	assert.Equal(t, "10", snapshot(t, f).Nodes[0].Label)

	transcript, err := f.ctrl.Transcript(ctx)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.True(t, transcript[0].IsUser)
	assert.False(t, transcript[0].Pending)
	assert.Equal(t, "Added 10.", transcript[1].Text)

	notes := f.view.Notifications()
	require.Len(t, notes, 1)
	assert.Equal(t, ports.LevelSuccess, notes[0].Level)
	f.chat.AssertExpectations(t)
}

func TestController_TreeDataReplyReplacesGraph(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "old"})

	raw := `{
		"operations":[{"action":"insert","value":"ignored"}],
		"tree_data":{
			"nodes":[
				{"id":"a","label":"Root","position":{"x":0,"y":0}},
				{"id":"b","label":"L","position":{"x":-160,"y":120}},
				{"id":"c","label":"R","position":{"x":160,"y":120}}],
			"edges":[
				{"source":"a","target":"b","side":"left"},
				{"source":"a","target":"c","side":"right"}]}}`
	f.chat.On("SendMessage", mock.Anything, "s1", "rebuild", mock.Anything).Return(reply(raw, t0.Add(time.Second)), nil).Once()

	_, err := f.ctrl.SubmitCommand(ctx, "rebuild")
	require.NoError(t, err)

	want := entities.Snapshot{
		Nodes: []entities.Node{
			{ID: "a", Label: "Root", Position: valueobjects.Position{X: 0, Y: 0}},
			{ID: "b", Label: "L", Position: valueobjects.Position{X: -160, Y: 120}},
			{ID: "c", Label: "R", Position: valueobjects.Position{X: 160, Y: 120}},
		},
		Edges: []entities.Edge{
			entities.NewEdge("a", "b", valueobjects.SideLeft),
			entities.NewEdge("a", "c", valueobjects.SideRight),
		},
	}
	assert.True(t, want.Equivalent(snapshot(t, f)))
	assert.GreaterOrEqual(t, f.view.Fits(), 1)
}

func TestController_ReplaceAllNudgesStrandedNodes(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "A", Position: &valueobjects.Position{X: 100, Y: 100}})
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "B", Position: &valueobjects.Position{X: 200, Y: 100}})

	raw := `{"tree_data":{"nodes":[
		{"id":"1","label":"A","position":{"x":100,"y":100}},
		{"id":"2","label":"B","position":{"x":200,"y":100}},
		{"id":"3","label":"C","position":{"x":0,"y":0}}],"edges":[]}}`
	_, err := f.ctrl.DeliverReply(ctx, "s1", reply(raw, t0.Add(time.Second)))
	require.NoError(t, err)

	c, ok := snapshot(t, f).Node("3")
	require.True(t, ok)
	assert.Equal(t, valueobjects.Position{X: 360, Y: 100}, c.Position)
}

func TestController_MalformedReplyIsPlainText(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")

	f.chat.On("SendMessage", mock.Anything, "s1", "hi", mock.Anything).
		Return(entities.Message{ID: "r1", Text: "Hello! How can I help?", CreatedAt: t0}, nil).Once()

	res, err := f.ctrl.SubmitCommand(context.Background(), "hi")

	require.NoError(t, err)
	assert.True(t, res.PlainText)
	assert.Empty(t, res.Batch.Outcomes)
	assert.Empty(t, snapshot(t, f).Nodes)
}

func TestController_SlotConflictFromAssistantAddsSyntheticNote(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "Root"})
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "L", ParentRef: "Root", Side: valueobjects.SideLeft})

	f.chat.On("SendMessage", mock.Anything, "s1", "add two", mock.Anything).
		Return(reply(`{"operations":[
			{"action":"insert","value":"L2","parent_id":"Root","side":"left"},
			{"action":"insert","value":"R","parent_id":"Root","side":"right"}]}`, t0.Add(time.Second)), nil).Once()

	res, err := f.ctrl.SubmitCommand(ctx, "add two")

	require.NoError(t, err)
	assert.Equal(t, 1, res.Batch.Applied())
	assert.Equal(t, 1, res.Batch.Rejected())
	assert.Len(t, snapshot(t, f).Nodes, 3)

	transcript, _ := f.ctrl.Transcript(ctx)
	last := transcript[len(transcript)-1]
	assert.True(t, last.Synthetic)
	assert.False(t, last.IsUser)
	assert.Contains(t, last.Text, "left child")

	notes := f.view.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, ports.LevelError, notes[len(notes)-1].Level)
}

func TestController_InFlightGate(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.chat.On("SendMessage", mock.Anything, "s1", "first", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(reply(`{"operations":[{"action":"insert","value":"A"}]}`, t0), nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.SubmitCommand(ctx, "first")
		done <- err
	}()
	<-started

	st, err := f.ctrl.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Sending)

	_, err = f.ctrl.SubmitCommand(ctx, "second")
	assert.True(t, pkgerrors.IsConflict(err))

	// Direct edits stay available while the reply is outstanding.
	_, err = f.ctrl.InsertNode(ctx, operations.Insert{Value: "manual"})
	require.NoError(t, err)

	close(release)
	require.NoError(t, <-done)

	st, _ = f.ctrl.Status(ctx)
	assert.False(t, st.Sending)
	assert.Len(t, snapshot(t, f).Nodes, 2)
	f.chat.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestController_NavigationGuardDiscardsReply(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.chat.On("SendMessage", mock.Anything, "s1", "build", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(reply(`{"operations":[{"action":"insert","value":"A"}]}`, t0), nil).Once()

	type submitted struct {
		res CommandResult
		err error
	}
	done := make(chan submitted, 1)
	go func() {
		res, err := f.ctrl.SubmitCommand(ctx, "build")
		done <- submitted{res, err}
	}()
	<-started

	f.mount(t, "s2")
	close(release)
	out := <-done

	require.NoError(t, out.err)
	assert.True(t, out.res.Discarded)
	assert.Empty(t, snapshot(t, f).Nodes)
	st, _ := f.ctrl.Status(ctx)
	assert.Equal(t, "s2", st.SessionID)
}

func TestController_LateReplyForSameSessionAppliesSilently(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	f.chat.On("SendMessage", mock.Anything, "s1", "build", mock.Anything).
		Run(func(mock.Arguments) {
			close(started)
			<-release
		}).
		Return(reply(`{"operations":[{"action":"insert","value":"A"}]}`, t0), nil).Once()

	type submitted struct {
		res CommandResult
		err error
	}
	done := make(chan submitted, 1)
	go func() {
		res, err := f.ctrl.SubmitCommand(ctx, "build")
		done <- submitted{res, err}
	}()
	<-started

	// Remounting moves the boundary past the command's issue time.
	f.clock.Advance(time.Second)
	f.mount(t, "s1")
	notesBefore := len(f.view.Notifications())
	close(release)
	out := <-done

	require.NoError(t, out.err)
	assert.False(t, out.res.Discarded)
	assert.True(t, out.res.Batch.Silent)
	assert.Len(t, snapshot(t, f).Nodes, 1)
	assert.Len(t, f.view.Notifications(), notesBefore)
}

func TestController_MountReplaysHistorySilently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	saved := t0.Add(-time.Hour)

	f.sessions.On("GetSession", mock.Anything, "s1").Return(entities.Session{
		ID:   "s1",
		Name: "BST practice",
		Graph: entities.Snapshot{
			Nodes: []entities.Node{{ID: "1", Label: "Root", Position: valueobjects.Position{X: 0, Y: 0}}},
			Edges: []entities.Edge{},
		},
		UpdatedAt: saved,
	}, nil).Once()
	f.chat.On("FetchHistory", mock.Anything, "s1").Return([]entities.Message{
		{ID: "m1", Text: "add L", IsUser: true, CreatedAt: saved.Add(-time.Minute)},
		// Already reflected in the saved snapshot.
		reply(`{"operations":[{"action":"insert","value":"stale"}]}`, saved.Add(-time.Minute)),
		{ID: "m3", Text: "add L and R", IsUser: true, CreatedAt: saved.Add(time.Minute)},
		reply(`{"operations":[
			{"action":"insert","value":"L","parent_id":"Root","side":"left"},
			{"action":"insert","value":"L2","parent_id":"Root","side":"left"}],
			"highlights":["Root"]}`, saved.Add(2*time.Minute)),
	}, nil).Once()

	res, err := f.ctrl.Mount(ctx, "s1")

	require.NoError(t, err)
	assert.Equal(t, 4, res.Messages)
	assert.Equal(t, 1, res.Replayed)

	s := snapshot(t, f)
	assert.Len(t, s.Nodes, 2)
	assert.Len(t, s.Edges, 1)

	// Nothing user-visible for replayed history: no toasts, no synthetic notes.
	assert.Empty(t, f.view.Notifications())
	transcript, _ := f.ctrl.Transcript(ctx)
	assert.Len(t, transcript, 4)
	for _, m := range transcript {
		assert.False(t, m.Synthetic)
	}
}

func TestController_MountSessionNotFound(t *testing.T) {
	f := newFixture(t)
	f.sessions.On("GetSession", mock.Anything, "nope").Return(entities.Session{}, pkgerrors.NewNotFound("session nope")).Once()
	f.chat.On("FetchHistory", mock.Anything, "nope").Return([]entities.Message{}, nil).Maybe()

	_, err := f.ctrl.Mount(context.Background(), "nope")

	assert.True(t, pkgerrors.IsNotFound(err))
	assert.Empty(t, snapshot(t, f).Nodes)
}

func TestController_MountHistoryFailureStillLoadsGraph(t *testing.T) {
	f := newFixture(t)
	f.sessions.On("GetSession", mock.Anything, "s1").Return(entities.Session{
		ID:    "s1",
		Graph: entities.Snapshot{Nodes: []entities.Node{{ID: "1", Label: "Root"}}},
	}, nil).Once()
	f.chat.On("FetchHistory", mock.Anything, "s1").Return(nil, pkgerrors.NewTransient("history", errors.New("503"))).Once()

	_, err := f.ctrl.Mount(context.Background(), "s1")

	assert.True(t, pkgerrors.IsTransient(err))
	assert.Len(t, snapshot(t, f).Nodes, 1)
}

func TestController_SaveFailureKeepsGraph(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "A"})
	before := snapshot(t, f)

	f.sessions.On("SaveSession", mock.Anything, "s1", before).Return(entities.Session{}, errors.New("connection reset")).Once()

	_, err := f.ctrl.Save(ctx)

	assert.True(t, pkgerrors.IsTransient(err))
	assert.Equal(t, before, snapshot(t, f))
	notes := f.view.Notifications()
	require.NotEmpty(t, notes)
	assert.Equal(t, ports.LevelError, notes[len(notes)-1].Level)
}

func TestController_SaveSuccess(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "A"})
	snap := snapshot(t, f)

	f.sessions.On("SaveSession", mock.Anything, "s1", snap).Return(entities.Session{ID: "s1", Graph: snap}, nil).Once()

	saved, err := f.ctrl.Save(ctx)

	require.NoError(t, err)
	assert.Equal(t, "s1", saved.ID)
	f.sessions.AssertExpectations(t)
}

func TestController_SendFailureMarksMessage(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()
	f.chat.On("SendMessage", mock.Anything, "s1", "hello", mock.Anything).
		Return(entities.Message{}, pkgerrors.NewTransient("send", errors.New("timeout"))).Once()

	_, err := f.ctrl.SubmitCommand(ctx, "hello")

	assert.True(t, pkgerrors.IsTransient(err))
	transcript, _ := f.ctrl.Transcript(ctx)
	require.Len(t, transcript, 1)
	assert.True(t, transcript[0].Failed)
	assert.False(t, transcript[0].Pending)

	st, _ := f.ctrl.Status(ctx)
	assert.False(t, st.Sending)
}

func TestController_HighlightExpires(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "A"})

	_, err := f.ctrl.DeliverReply(ctx, "s1", reply(`{"highlights":["A"]}`, t0))
	require.NoError(t, err)

	frame, err := f.ctrl.Frame(ctx)
	require.NoError(t, err)
	assert.Equal(t, []valueobjects.NodeID{"1"}, frame.Highlighted)

	f.clock.Advance(2 * time.Second)

	frame, err = f.ctrl.Frame(ctx)
	require.NoError(t, err)
	assert.Empty(t, frame.Highlighted)
}

func TestController_TraverseAnimates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "Root"})
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "L", ParentRef: "Root", Side: valueobjects.SideLeft})
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "R", ParentRef: "Root", Side: valueobjects.SideRight})

	_, err := f.ctrl.Traverse(ctx, "inorder", "")
	require.NoError(t, err)

	var seen []valueobjects.NodeID
	for i := 0; i < 3; i++ {
		frame, err := f.ctrl.Frame(ctx)
		require.NoError(t, err)
		require.Len(t, frame.Highlighted, 1)
		seen = append(seen, frame.Highlighted[0])
		f.clock.Advance(300 * time.Millisecond)
	}
	assert.Equal(t, []valueobjects.NodeID{"2", "1", "3"}, seen)

	frame, _ := f.ctrl.Frame(ctx)
	assert.Empty(t, frame.Highlighted)
}

func TestController_SearchAndReset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "15"})

	_, err := f.ctrl.Search(ctx, "15")
	require.NoError(t, err)
	_, err = f.ctrl.Search(ctx, "99")
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.ctrl.Reset(ctx)
	require.NoError(t, err)
	frame, _ := f.ctrl.Frame(ctx)
	assert.Empty(t, frame.Graph.Nodes)
	assert.Empty(t, frame.Highlighted)
}

func TestController_MoveAndDeleteEdge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "A"})
	out, _ := f.ctrl.InsertNode(ctx, operations.Insert{Value: "B", ParentRef: "A", Side: valueobjects.SideLeft})

	require.NoError(t, f.ctrl.MoveNode(ctx, "1", valueobjects.Position{X: 500, Y: 40}))
	assert.True(t, pkgerrors.IsNotFound(f.ctrl.MoveNode(ctx, "9", valueobjects.Position{})))

	require.NoError(t, f.ctrl.DeleteEdge(ctx, out.EdgeID))
	assert.True(t, pkgerrors.IsNotFound(f.ctrl.DeleteEdge(ctx, out.EdgeID)))

	s := snapshot(t, f)
	assert.Equal(t, valueobjects.Position{X: 500, Y: 40}, s.Nodes[0].Position)
	assert.Empty(t, s.Edges)
}

func TestController_CloseStopsTimers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.ctrl.InsertNode(ctx, operations.Insert{Value: "A"})
	_, _ = f.ctrl.Highlight(ctx, []string{"A"})
	require.Equal(t, 1, f.clock.Pending())

	require.NoError(t, f.ctrl.Close())

	assert.Equal(t, 0, f.clock.Pending())
	_, err := f.ctrl.Snapshot(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, f.ctrl.Close(), ErrClosed)
}

func TestController_InvariantHoldsAcrossMixedBatches(t *testing.T) {
	f := newFixture(t)
	f.mount(t, "s1")
	ctx := context.Background()

	raw := `{"operations":[
		{"action":"insert","value":"R"},
		{"action":"insert","value":"a","parent":"R","side":"left"},
		{"action":"insert","value":"b","parent":"R","side":"left"},
		{"action":"insert","value":"c","parent":"R"},
		{"action":"insert","value":"d","parent":"R"},
		{"action":"connect","source":"a","target":"c","side":"left"},
		{"action":"connect","source":"a","target":"d","side":"left"},
		{"action":"delete","id":"ghost"},
		{"action":"explode"}]}`
	res, err := f.ctrl.DeliverReply(ctx, "s1", reply(raw, t0.Add(time.Second)))
	require.NoError(t, err)
	assert.Len(t, res.Dropped, 1)
	assert.Len(t, res.Batch.Outcomes, 8)

	type slot struct {
		node valueobjects.NodeID
		side valueobjects.Side
	}
	seen := map[slot]bool{}
	for _, e := range snapshot(t, f).Edges {
		if !e.Side.Slotted() {
			continue
		}
		k := slot{e.Source, e.Side}
		assert.False(t, seen[k], "two %s children on %s", e.Side, e.Source)
		seen[k] = true
	}
}

func TestController_SetViewportCentresFirstNode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.True(t, pkgerrors.IsValidation(f.ctrl.SetViewport(ctx, 0, 600)))
	require.NoError(t, f.ctrl.SetViewport(ctx, 1000, 600))

	_, err := f.ctrl.InsertNode(ctx, operations.Insert{Value: "Root"})
	require.NoError(t, err)

	assert.Equal(t, valueobjects.Position{X: 500, Y: 300}, snapshot(t, f).Nodes[0].Position)
}

func TestController_UpdateConfigRejectsNil(t *testing.T) {
	f := newFixture(t)

	err := f.ctrl.UpdateConfig(context.Background(), nil)

	assert.True(t, pkgerrors.IsValidation(err))
}

func TestController_NumericLabelsCollidingWithIDs(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		wantLabels []string
		wantEdge   valueobjects.EdgeID
	}{
		{
			name:       "delete by value",
			reply:      `{"operations":[{"action":"delete","value":"1"}]}`,
			wantLabels: []string{"3"},
		},
		{
			name:       "delete by id",
			reply:      `{"operations":[{"action":"delete","id":"1"}]}`,
			wantLabels: []string{"1"},
		},
		{
			name:       "insert under a parent value",
			reply:      `{"operations":[{"action":"insert","value":"4","parent":"1","side":"right"}]}`,
			wantLabels: []string{"3", "1", "4"},
			wantEdge:   "2->3",
		},
		{
			name:       "insert under a parent id",
			reply:      `{"operations":[{"action":"insert","value":"4","parent_id":"1","side":"right"}]}`,
			wantLabels: []string{"3", "1", "4"},
			wantEdge:   "1->3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.mount(t, "s1")
			ctx := context.Background()
			_, err := f.ctrl.InsertNode(ctx, operations.Insert{Value: "3"})
			require.NoError(t, err)
			_, err = f.ctrl.InsertNode(ctx, operations.Insert{Value: "1"})
			require.NoError(t, err)

			res, err := f.ctrl.DeliverReply(ctx, "s1", reply(tt.reply, t0.Add(time.Second)))
			require.NoError(t, err)
			assert.Equal(t, 1, res.Batch.Applied())

			s := snapshot(t, f)
			var labels []string
			for _, n := range s.Nodes {
				labels = append(labels, n.Label)
			}
			assert.Equal(t, tt.wantLabels, labels)
			if tt.wantEdge != "" {
				require.Len(t, s.Edges, 1)
				assert.Equal(t, tt.wantEdge, s.Edges[0].ID)
			}
		})
	}
}

func TestController_MountLaysOutPositionlessSession(t *testing.T) {
	f := newFixture(t)
	session := entities.Session{
		ID: "s1",
		Graph: entities.Snapshot{
			Nodes: []entities.Node{{ID: "1", Label: "10"}, {ID: "2", Label: "5"}, {ID: "3", Label: "15"}},
			Edges: []entities.Edge{
				{Source: "1", Target: "2", Side: valueobjects.SideLeft},
				{Source: "1", Target: "3", Side: valueobjects.SideRight},
			},
		},
		Unplaced: []valueobjects.NodeID{"1", "2", "3"},
	}
	f.sessions.On("GetSession", mock.Anything, "s1").Return(session, nil).Once()
	f.chat.On("FetchHistory", mock.Anything, "s1").Return([]entities.Message{}, nil).Once()

	_, err := f.ctrl.Mount(context.Background(), "s1")
	require.NoError(t, err)

	s := snapshot(t, f)
	require.Len(t, s.Nodes, 3)
	assert.Equal(t, valueobjects.Position{X: 0, Y: 0}, s.Nodes[0].Position)
	assert.Equal(t, valueobjects.Position{X: -160, Y: 120}, s.Nodes[1].Position)
	assert.Equal(t, valueobjects.Position{X: 160, Y: 120}, s.Nodes[2].Position)
}
