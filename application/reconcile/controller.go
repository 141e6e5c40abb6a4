// Package reconcile owns the state of one session view and merges
// assistant replies, direct user edits and persisted snapshots into it.
package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"treeview-ai/application/highlight"
	"treeview-ai/application/interpreter"
	"treeview-ai/application/ports"
	"treeview-ai/domain/config"
	"treeview-ai/domain/core/aggregates"
	"treeview-ai/domain/core/entities"
	"treeview-ai/domain/core/valueobjects"
	"treeview-ai/domain/services"
	pkgerrors "treeview-ai/pkg/errors"
)

// ErrClosed is returned by every call made after Close.
var ErrClosed = errors.New("reconcile: controller closed")

// Phase is the batch state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseApplying Phase = "applying"
)

// Options carries the optional collaborators of a Controller.
type Options struct {
	View     ports.View
	Clock    ports.Clock
	Logger   *zap.Logger
	Metrics  Metrics
	Config   *config.DomainConfig
	Viewport *services.Viewport
}

// Controller is the single owner of a session view's graph, highlight state
// and transcript. All state lives on one goroutine; public methods hand it
// closures and wait. Network calls run outside the loop and re-enter it on
// completion.
type Controller struct {
	sessions ports.SessionBridge
	chat     ports.ChatBridge
	interp   *interpreter.Interpreter
	view     ports.View
	clock    ports.Clock
	logger   *zap.Logger
	metrics  Metrics
	tracer   trace.Tracer

	events    chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	// Owned by the loop goroutine.
	cfg        *config.DomainConfig
	placement  *services.Placement
	viewport   *services.Viewport
	sessionID  string
	mountGen   uint64
	graph      *aggregates.Graph
	highlights *highlight.Machine
	transcript []entities.Message
	phase      Phase
	inFlight   uint64
	sendSeq    uint64
	boundary   time.Time
}

// NewController creates a controller and starts its loop. Call Mount to
// attach it to a session and Close to tear it down.
func NewController(sessions ports.SessionBridge, chat ports.ChatBridge, interp *interpreter.Interpreter, opts Options) *Controller {
	if opts.View == nil {
		opts.View = ports.NopView{}
	}
	if opts.Clock == nil {
		opts.Clock = ports.SystemClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = nopMetrics{}
	}
	if opts.Config == nil {
		opts.Config = config.DefaultDomainConfig()
	}
	if interp == nil {
		interp = interpreter.New(opts.Logger)
	}

	c := &Controller{
		sessions:  sessions,
		chat:      chat,
		interp:    interp,
		view:      opts.View,
		clock:     opts.Clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("treeview-ai/reconcile"),
		events:    make(chan func()),
		done:      make(chan struct{}),
		cfg:       opts.Config,
		placement: services.NewPlacement(opts.Config),
		viewport:  opts.Viewport,
		phase:     PhaseIdle,
	}
	c.resetState("")

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *Controller) run() {
	defer c.wg.Done()
	for {
		select {
		case f := <-c.events:
			f()
		case <-c.done:
			return
		}
	}
}

// do runs f on the loop and waits for it to finish.
func (c *Controller) do(ctx context.Context, f func()) error {
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		f()
	}
	select {
	case c.events <- task:
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// post hands f to the loop without waiting for it to run. Timer callbacks
// use it; it must not be called from the loop itself.
func (c *Controller) post(f func()) {
	select {
	case c.events <- f:
	case <-c.done:
	}
}

// resetState discards the graph, highlights and transcript and attaches the
// controller to sessionID.
func (c *Controller) resetState(sessionID string) {
	if c.highlights != nil {
		c.highlights.Stop()
	}
	c.sessionID = sessionID
	c.mountGen++
	c.graph = aggregates.NewGraph()
	c.highlights = highlight.NewMachine(c.clock, c.post, c.onHighlightChange, c.cfg.Highlight, c.logger)
	c.transcript = nil
	c.inFlight = 0
	c.boundary = c.clock.Now()
	c.phase = PhaseIdle
}

func (c *Controller) onHighlightChange(active []valueobjects.NodeID) {
	c.metrics.SetHighlightActive(len(active))
	c.render()
}

// Close stops highlight timers and the loop. It is safe to call twice.
func (c *Controller) Close() error {
	err := ErrClosed
	c.closeOnce.Do(func() {
		err = c.do(context.Background(), func() {
			c.highlights.Stop()
		})
		close(c.done)
		c.wg.Wait()
		c.logger.Debug("session view closed", zap.String("session_id", c.sessionID))
	})
	return err
}

// UpdateConfig swaps the tunables; transitions already scheduled keep
// their old durations.
func (c *Controller) UpdateConfig(ctx context.Context, cfg *config.DomainConfig) error {
	if cfg == nil {
		return pkgerrors.NewValidation("config is required")
	}
	return c.do(ctx, func() {
		c.cfg = cfg
		c.placement = services.NewPlacement(cfg)
		c.highlights.SetConfig(cfg.Highlight)
	})
}

// SetViewport records the canvas size used to centre the first node.
func (c *Controller) SetViewport(ctx context.Context, width, height float64) error {
	if width <= 0 || height <= 0 {
		return pkgerrors.NewValidation("viewport must have a positive size")
	}
	return c.do(ctx, func() {
		c.viewport = &services.Viewport{Width: width, Height: height}
	})
}

// Status is a point-in-time summary of the view.
type Status struct {
	SessionID string    `json:"session_id"`
	Phase     Phase     `json:"phase"`
	Sending   bool      `json:"sending"`
	Highlight string    `json:"highlight"`
	Version   int       `json:"version"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Boundary  time.Time `json:"boundary"`
}

// Status reports the current state.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	var st Status
	err := c.do(ctx, func() {
		st = Status{
			SessionID: c.sessionID,
			Phase:     c.phase,
			Sending:   c.inFlight != 0,
			Highlight: c.highlights.State().String(),
			Version:   c.graph.Version(),
			Nodes:     c.graph.NodeCount(),
			Edges:     c.graph.EdgeCount(),
			Boundary:  c.boundary,
		}
	})
	return st, err
}

// Frame returns what the render layer should currently draw.
func (c *Controller) Frame(ctx context.Context) (ports.Frame, error) {
	var f ports.Frame
	err := c.do(ctx, func() { f = c.frame() })
	return f, err
}

// Snapshot returns a copy of the graph.
func (c *Controller) Snapshot(ctx context.Context) (entities.Snapshot, error) {
	var s entities.Snapshot
	err := c.do(ctx, func() { s = c.graph.Snapshot() })
	return s, err
}

func (c *Controller) frame() ports.Frame {
	return ports.Frame{
		SessionID:   c.sessionID,
		Version:     c.graph.Version(),
		Graph:       c.graph.Snapshot(),
		Highlighted: c.highlights.Active(),
	}
}

func (c *Controller) render() {
	c.view.Render(c.frame())
}
