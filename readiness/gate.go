package readiness

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/editor-bridge/errors"
	"github.com/wippyai/editor-bridge/internal/notify"
)

// State is the load phase of one control and its engine.
type State int

const (
	Unattached State = iota
	Attaching
	ScriptLoading
	Ready
	Detached
)

func (s State) String() string {
	switch s {
	case Unattached:
		return "unattached"
	case Attaching:
		return "attaching"
	case ScriptLoading:
		return "script_loading"
	case Ready:
		return "ready"
	case Detached:
		return "detached"
	default:
		return "unknown"
	}
}

// Priority classes for queued changes. Lower values replay first.
const (
	PriorityOptions     = 0
	PriorityContent     = 10
	PriorityDecorations = 20
)

// Action is an engine-directed side effect of a property change.
type Action func(ctx context.Context) error

type pending struct {
	priority int
	name     string
	action   Action
}

// Gate tracks readiness for one control. Until the control is Ready every
// submitted action is queued; the transition to Ready drains the queue and
// replays it by priority.
type Gate struct {
	logger *zap.Logger
	exec   func(func())

	mu    sync.Mutex
	state State
	queue []pending

	loaded  notify.Set[struct{}]
	failed  notify.Set[error]
	changed notify.Set[transition]
}

type transition struct {
	from, to State
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

// WithExecutor sets how actions submitted while Ready are started. The
// default starts each on its own goroutine.
func WithExecutor(exec func(func())) Option {
	return func(g *Gate) { g.exec = exec }
}

// New creates a Gate in the Unattached state.
func New(opts ...Option) *Gate {
	g := &Gate{}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = Logger()
	}
	if g.exec == nil {
		g.exec = func(fn func()) { go fn() }
	}
	return g
}

// State returns the current state.
func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Ready reports whether actions run immediately.
func (g *Gate) Ready() bool {
	return g.State() == Ready
}

// Attached reports whether the engine is far enough along to run queries.
func (g *Gate) Attached() bool {
	s := g.State()
	return s == ScriptLoading || s == Ready
}

// Pending returns the number of queued actions.
func (g *Gate) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.queue)
}

// Submit runs action now if the gate is Ready, or queues it under
// priority. The Ready check and the enqueue share one critical section
// with the drain in CompleteLoad, so an action is either queued before the
// drain or started after it. It reports whether the action was started.
func (g *Gate) Submit(ctx context.Context, priority int, name string, action Action) bool {
	g.mu.Lock()
	if g.state != Ready {
		g.queue = append(g.queue, pending{priority: priority, name: name, action: action})
		g.mu.Unlock()
		g.logger.Debug("change queued",
			zap.String("name", name),
			zap.Int("priority", priority))
		return false
	}
	g.mu.Unlock()

	g.exec(func() {
		if err := g.run(ctx, name, action); err != nil {
			g.logger.Warn("change failed", zap.String("name", name), zap.Error(err))
			g.fail(err)
		}
	})
	return true
}

// BeginAttach records that the control has a view to host the engine.
func (g *Gate) BeginAttach() error {
	return g.transition(Attaching, Unattached, Detached)
}

// BeginScriptLoad records that the engine script has started loading.
func (g *Gate) BeginScriptLoad() error {
	return g.transition(ScriptLoading, Attaching)
}

// Detach records that the control was unloaded. Queued actions are kept
// for the next attach. Detaching a detached gate does nothing.
func (g *Gate) Detach() error {
	if g.State() == Detached {
		return nil
	}
	return g.transition(Detached, Attaching, ScriptLoading, Ready)
}

func (g *Gate) transition(to State, from ...State) error {
	g.mu.Lock()
	prev := g.state
	allowed := false
	for _, f := range from {
		if prev == f {
			allowed = true
			break
		}
	}
	if !allowed {
		g.mu.Unlock()
		return errors.InvalidState(errors.PhaseReplay, prev.String(), to.String())
	}
	g.state = to
	g.mu.Unlock()

	g.logger.Debug("readiness changed", zap.Stringer("from", prev), zap.Stringer("to", to))
	g.stateChanged(prev, to)
	return nil
}

// CompleteLoad moves the gate to Ready and replays the queue: ascending
// priority, submission order within a priority. A failing action is
// logged and reported to OnError observers and the rest still run;
// critical runtime faults propagate. Loaded observers fire after the
// replay. Calling CompleteLoad on a Ready gate does nothing.
func (g *Gate) CompleteLoad(ctx context.Context) error {
	g.mu.Lock()
	prev := g.state
	if prev == Ready {
		g.mu.Unlock()
		return nil
	}
	if prev != ScriptLoading {
		g.mu.Unlock()
		return errors.InvalidState(errors.PhaseReplay, prev.String(), Ready.String())
	}
	g.state = Ready
	drained := g.queue
	g.queue = nil
	g.mu.Unlock()

	g.logger.Debug("readiness changed",
		zap.Stringer("from", prev),
		zap.Stringer("to", Ready),
		zap.Int("replay", len(drained)))
	g.stateChanged(prev, Ready)

	sort.SliceStable(drained, func(i, j int) bool {
		return drained[i].priority < drained[j].priority
	})
	for _, p := range drained {
		if err := g.replay(ctx, p); err != nil {
			g.logger.Warn("replay failed",
				zap.String("name", p.name),
				zap.Int("priority", p.priority),
				zap.Error(err))
			g.fail(err)
		}
	}

	g.loaded.Emit(struct{}{})
	return nil
}

// replay runs one queued action. Recovered critical faults are re-raised.
func (g *Gate) replay(ctx context.Context, p pending) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if errors.IsCritical(r) {
				panic(r)
			}
			err = errors.Panic(errors.PhaseReplay, p.name, r)
		}
	}()
	if err := p.action(ctx); err != nil {
		return errors.New(errors.PhaseReplay, errors.KindScript).
			Name(p.name).
			Detail("queued change failed").
			Cause(err).
			Build()
	}
	return nil
}

func (g *Gate) run(ctx context.Context, name string, action Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if errors.IsCritical(r) {
				panic(r)
			}
			err = errors.Panic(errors.PhaseInvoke, name, r)
		}
	}()
	return action(ctx)
}

// OnLoaded registers fn to run after each replay completes.
func (g *Gate) OnLoaded(fn func()) (unsubscribe func()) {
	return g.loaded.Add(func(struct{}) { fn() })
}

// OnError registers fn to receive failures of replayed and immediate actions.
func (g *Gate) OnError(fn func(error)) (unsubscribe func()) {
	return g.failed.Add(fn)
}

// OnStateChange registers fn to observe transitions.
func (g *Gate) OnStateChange(fn func(from, to State)) (unsubscribe func()) {
	return g.changed.Add(func(t transition) { fn(t.from, t.to) })
}

func (g *Gate) fail(err error) {
	g.failed.Emit(err)
}

func (g *Gate) stateChanged(from, to State) {
	g.changed.Emit(transition{from: from, to: to})
}
