package editor

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	editorbridge "github.com/wippyai/editor-bridge"
	"github.com/wippyai/editor-bridge/accessor"
	"github.com/wippyai/editor-bridge/dispatch"
	"github.com/wippyai/editor-bridge/errors"
	"github.com/wippyai/editor-bridge/handle"
	"github.com/wippyai/editor-bridge/internal/notify"
	"github.com/wippyai/editor-bridge/listener"
	"github.com/wippyai/editor-bridge/readiness"
	"github.com/wippyai/editor-bridge/script"
)

// editorScript addresses the engine's editor instance for the element in
// scope.
const editorScript = "EditorContext.getEditorForElement(" + editorbridge.ElementName + ").editor"

// Control is the native side of one embedded editor. Property setters may
// be called from any goroutine; engine-directed effects go through the
// readiness gate and run on the control's queue.
type Control struct {
	host     editorbridge.ScriptHost
	registry *accessor.Registry
	queue    *dispatch.Queue
	ownQueue bool
	gate     *readiness.Gate
	types    *accessor.TypeRegistry
	logger   *zap.Logger

	// bridgeSets counts bridge writes in progress. While it is non-zero a
	// property change is an engine echo and is not sent back.
	bridgeSets atomic.Int32
	closed     atomic.Bool

	mu            sync.Mutex
	text          string
	selectedText  string
	selectedRange Selection
	language      string
	readOnly      bool
	glyphMargin   bool
	options       Options
	theme         listener.Theme
	loaded        bool

	decorations    *Collection[Decoration]
	markers        *Collection[Marker]
	decoLock       *semaphore.Weighted
	markerLock     *semaphore.Weighted
	decoApplied    int
	markersApplied int
	unwatch        []func()

	keyboard *listener.KeyboardListener
	themes   *listener.ThemeListener
	debug    *listener.DebugLogger

	// attach state, guarded by amu
	amu          sync.Mutex
	acc          *accessor.Accessor
	handle       handle.Handle
	channel      *script.Channel
	channelUnsub func()
	attachCount  int

	xmu          sync.Mutex
	extensions   []extension
	commandIndex atomic.Int64

	propertyChanged notify.Set[string]
	exceptions      notify.Set[error]
	loading         notify.Set[*Control]
	loadedObs       notify.Set[*Control]
}

type extension struct {
	name     string
	register func(*accessor.Accessor)
}

// Option configures a Control.
type Option func(*Control)

// WithRegistry sets the registry the control registers its accessor in.
// The default is accessor.Default().
func WithRegistry(r *accessor.Registry) Option {
	return func(c *Control) { c.registry = r }
}

// WithQueue sets the control's owning queue. Without it the control
// creates one and stops it on Close.
func WithQueue(q *dispatch.Queue) Option {
	return func(c *Control) { c.queue = q }
}

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Control) { c.logger = l }
}

// WithThemeListener sets the source of the application theme.
func WithThemeListener(l *listener.ThemeListener) Option {
	return func(c *Control) { c.themes = l }
}

// WithTypeNamespaces adds namespaces searched when the engine names a type.
func WithTypeNamespaces(ns ...string) Option {
	return func(c *Control) {
		for _, n := range ns {
			c.types.AddNamespace(n)
		}
	}
}

// New creates an unattached control driving the engine in host.
func New(host editorbridge.ScriptHost, opts ...Option) *Control {
	c := &Control{
		host:        host,
		types:       accessor.NewTypeRegistry(),
		theme:       listener.ThemeDefault,
		decorations: NewCollection[Decoration](),
		markers:     NewCollection[Marker](),
		decoLock:    semaphore.NewWeighted(1),
		markerLock:  semaphore.NewWeighted(1),
		keyboard:    listener.NewKeyboardListener(),
	}
	RegisterTypes(c.types)
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	if c.registry == nil {
		c.registry = accessor.Default()
	}
	if c.queue == nil {
		c.queue = dispatch.New(
			dispatch.WithName("editor"),
			dispatch.WithLogger(c.logger),
			dispatch.WithErrorHandler(c.internalException))
		c.ownQueue = true
	}
	if c.themes == nil {
		c.themes = listener.NewThemeListener(listener.ThemeLight, false)
	}
	c.debug = listener.NewDebugLogger(c.logger)
	c.gate = readiness.New(
		readiness.WithLogger(c.logger),
		readiness.WithExecutor(func(fn func()) {
			if !c.queue.Post(fn) {
				c.logger.Debug("change dropped, queue stopped")
			}
		}))
	c.syncOptionsLocked()

	c.unwatch = []func(){
		c.gate.OnError(c.internalException),
		c.themes.OnThemeChanged(c.themeChanged),
		c.decorations.Subscribe(func(Change[Decoration]) {
			c.submit(readiness.PriorityDecorations, "updateDecorations", c.applyDecorations)
		}),
		c.markers.Subscribe(func(Change[Marker]) {
			c.submit(readiness.PriorityDecorations, "setModelMarkers", c.applyMarkers)
		}),
	}
	return c
}

// Gate returns the control's readiness gate.
func (c *Control) Gate() *readiness.Gate {
	return c.gate
}

// Queue returns the control's owning queue.
func (c *Control) Queue() *dispatch.Queue {
	return c.queue
}

// Types returns the registry used for typed writes from the engine.
func (c *Control) Types() *accessor.TypeRegistry {
	return c.types
}

// Handle returns the bridge handle while attached, or the zero handle.
func (c *Control) Handle() handle.Handle {
	c.amu.Lock()
	defer c.amu.Unlock()
	return c.handle
}

// BeginBridgeSet marks a bridge write in progress until release is called.
// Only the setters registered with the bridge consult the mark, so an
// application write racing an engine write is still sent to the engine.
func (c *Control) BeginBridgeSet() (release func()) {
	c.bridgeSets.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { c.bridgeSets.Add(-1) })
	}
}

func (c *Control) fromBridge() bool {
	return c.bridgeSets.Load() > 0
}

// Attach registers the control with the bridge, creates the engine's
// element and starts the engine. The control becomes Ready when the
// engine calls the Loaded action.
func (c *Control) Attach(ctx context.Context) error {
	if c.closed.Load() {
		return errors.Disposed(errors.PhaseHost, "editor control")
	}

	c.amu.Lock()
	defer c.amu.Unlock()

	if err := c.gate.BeginAttach(); err != nil {
		return err
	}

	acc := accessor.New(c, c.queue,
		accessor.WithTypes(c.types),
		accessor.WithLogger(c.logger))
	c.registerMembers(acc)

	h := c.registry.Register(acc)
	if !h.Valid() {
		_ = c.gate.Detach()
		return errors.New(errors.PhaseHost, errors.KindFatal).
			Detail("no bridge handle available").
			Build()
	}

	ch := script.New(c.host, h, c.gate, script.WithLogger(c.logger))
	c.acc = acc
	c.handle = h
	c.channel = ch
	c.channelUnsub = ch.OnInternalException(c.internalException)
	c.attachCount++

	log := c.logger.With(zap.Uint32("handle", uint32(h)))
	if err := c.host.Attach(ctx, h, c.registry); err != nil {
		log.Warn("engine attach failed", zap.Error(err))
		c.teardownLocked()
		_ = c.gate.Detach()
		return err
	}
	if err := c.gate.BeginScriptLoad(); err != nil {
		_ = c.detachLocked(ctx)
		return err
	}
	if c.attachCount > 1 {
		// A new engine starts without the previous engine's annotations.
		c.resubmitCollections()
	}
	if err := c.host.Start(ctx, h); err != nil {
		log.Warn("engine start failed", zap.Error(err))
		_ = c.detachLocked(ctx)
		return err
	}
	log.Debug("editor attached", zap.Int("attach", c.attachCount))
	return nil
}

func (c *Control) registerMembers(acc *accessor.Accessor) {
	// Engine writes hold the bridge-set mark; they update the control
	// without being sent back.
	acc.RegisterProperty(PropText, accessor.Prop(c.Text, func(v string) {
		c.setText(v, !c.fromBridge())
	}))
	acc.RegisterProperty(PropSelectedText, accessor.Prop(c.SelectedText, func(v string) {
		c.setSelectedText(v, !c.fromBridge())
	}))
	acc.RegisterProperty(PropSelectedRange, accessor.Prop(c.SelectedRange, c.SetSelectedRange))
	acc.RegisterProperty(PropCodeLanguage, accessor.Prop(c.CodeLanguage, nil))
	acc.RegisterProperty(PropReadOnly, accessor.Prop(c.ReadOnly, nil))
	acc.RegisterProperty(PropHasGlyphMargin, accessor.Prop(c.HasGlyphMargin, nil))
	acc.RegisterProperty(PropOptions, accessor.Prop(c.Options, nil))
	acc.RegisterProperty(PropRequestedTheme, accessor.Prop(func() string { return string(c.RequestedTheme()) }, nil))
	acc.RegisterProperty(PropIsEditorLoaded, accessor.Prop(c.IsEditorLoaded, nil))
	acc.RegisterProperty(PropDecorations, accessor.Prop(c.decorations.Items, nil))
	acc.RegisterProperty(PropMarkers, accessor.Prop(c.markers.Items, nil))
	acc.RegisterAction(editorbridge.LoadedAction, c.onLoaded)

	c.keyboard.Register(acc)
	c.themes.Register(acc)
	c.debug.Register(acc)

	c.xmu.Lock()
	exts := append([]extension(nil), c.extensions...)
	c.xmu.Unlock()
	for _, ext := range exts {
		ext.register(acc)
	}
}

// onLoaded runs on the queue when the engine reports its startup done.
func (c *Control) onLoaded() {
	if c.gate.Ready() {
		c.logger.Debug("duplicate loaded signal")
		return
	}
	ctx := context.Background()
	if ch := c.currentChannel(); ch != nil {
		ch.Run(ctx, editorScript+".focus();")
		ch.Run(ctx, editorScript+".layout();")
	}

	if err := c.gate.CompleteLoad(ctx); err != nil {
		c.internalException(err)
		return
	}

	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
	c.propertyChanged.Emit(PropIsEditorLoaded)

	c.loading.Emit(c)
	c.loadedObs.Emit(c)
}

// Detach releases the engine element and the bridge handle. Changes made
// while detached are queued for the next Attach.
func (c *Control) Detach(ctx context.Context) error {
	c.amu.Lock()
	defer c.amu.Unlock()
	return c.detachLocked(ctx)
}

func (c *Control) detachLocked(ctx context.Context) error {
	if c.acc == nil {
		return nil
	}
	if err := c.gate.Detach(); err != nil {
		c.logger.Warn("readiness detach failed", zap.Error(err))
	}
	h := c.handle
	err := c.host.Detach(ctx, h)
	c.teardownLocked()

	c.mu.Lock()
	wasLoaded := c.loaded
	c.loaded = false
	c.mu.Unlock()
	if wasLoaded {
		c.propertyChanged.Emit(PropIsEditorLoaded)
	}
	c.logger.Debug("editor detached", zap.Uint32("handle", uint32(h)))
	return err
}

func (c *Control) teardownLocked() {
	if c.channelUnsub != nil {
		c.channelUnsub()
	}
	c.registry.Unregister(c.handle)
	c.acc = nil
	c.channel = nil
	c.channelUnsub = nil
	c.handle = 0
}

// Close detaches the control and releases its queue if it owns one. Close
// is idempotent; later property changes are ignored.
func (c *Control) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := c.Detach(ctx)
	for _, fn := range c.unwatch {
		fn()
	}
	if c.ownQueue {
		c.queue.Stop()
	}
	return err
}

func (c *Control) currentChannel() *script.Channel {
	c.amu.Lock()
	defer c.amu.Unlock()
	return c.channel
}

// submit hands an engine-directed effect to the readiness gate. The
// channel is looked up when the effect runs.
func (c *Control) submit(priority int, name string, fn func(ctx context.Context, ch *script.Channel) error) {
	if c.closed.Load() {
		return
	}
	c.gate.Submit(context.Background(), priority, name, func(ctx context.Context) error {
		ch := c.currentChannel()
		if ch == nil {
			return errors.Disposed(errors.PhaseInvoke, name)
		}
		return fn(ctx, ch)
	})
}

// invokeLater submits method with args captured now.
func (c *Control) invokeLater(priority int, method string, args ...any) {
	c.submit(priority, method, func(ctx context.Context, ch *script.Channel) error {
		ch.Invoke(ctx, method, args...)
		return nil
	})
}

func (c *Control) internalException(err error) {
	c.exceptions.Emit(err)
}

// OnPropertyChanged subscribes fn to property change notifications.
func (c *Control) OnPropertyChanged(fn func(name string)) (unsubscribe func()) {
	return c.propertyChanged.Add(fn)
}

// OnInternalException subscribes fn to engine failures that were not
// returned to any caller.
func (c *Control) OnInternalException(fn func(error)) (unsubscribe func()) {
	return c.exceptions.Add(fn)
}

// OnEditorLoading subscribes fn to the start of the loaded notification.
func (c *Control) OnEditorLoading(fn func(*Control)) (unsubscribe func()) {
	return c.loading.Add(fn)
}

// OnEditorLoaded subscribes fn to run once queued changes have been
// applied. Properties set from fn take effect immediately.
func (c *Control) OnEditorLoaded(fn func(*Control)) (unsubscribe func()) {
	return c.loadedObs.Add(fn)
}

// OnKeyDown subscribes fn to key presses in the engine.
func (c *Control) OnKeyDown(fn func(*listener.KeyEvent)) (unsubscribe func()) {
	return c.keyboard.OnKeyDown(fn)
}
