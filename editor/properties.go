package editor

import (
	"context"
	"reflect"

	"github.com/wippyai/editor-bridge/listener"
	"github.com/wippyai/editor-bridge/readiness"
	"github.com/wippyai/editor-bridge/script"
)

// Property names as the engine and PropertyChanged observers see them.
const (
	PropText           = "Text"
	PropSelectedText   = "SelectedText"
	PropSelectedRange  = "SelectedRange"
	PropCodeLanguage   = "CodeLanguage"
	PropReadOnly       = "ReadOnly"
	PropHasGlyphMargin = "HasGlyphMargin"
	PropOptions        = "Options"
	PropRequestedTheme = "RequestedTheme"
	PropIsEditorLoaded = "IsEditorLoaded"
	PropDecorations    = "Decorations"
	PropMarkers        = "Markers"
)

// Text returns the document text.
func (c *Control) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// SetText replaces the document text.
func (c *Control) SetText(text string) {
	c.setText(text, true)
}

// setText stores text and, when send is set, forwards it to the engine.
func (c *Control) setText(text string, send bool) {
	c.mu.Lock()
	if c.text == text {
		c.mu.Unlock()
		return
	}
	c.text = text
	c.mu.Unlock()

	c.propertyChanged.Emit(PropText)
	if send {
		c.invokeLater(readiness.PriorityContent, "updateContent", text)
	}
}

// SelectedText returns the text of the current selection.
func (c *Control) SelectedText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedText
}

// SetSelectedText replaces the selected text.
func (c *Control) SetSelectedText(text string) {
	c.setSelectedText(text, true)
}

func (c *Control) setSelectedText(text string, send bool) {
	c.mu.Lock()
	if c.selectedText == text {
		c.mu.Unlock()
		return
	}
	c.selectedText = text
	c.mu.Unlock()

	c.propertyChanged.Emit(PropSelectedText)
	if send {
		c.invokeLater(readiness.PriorityContent, "updateSelectedContent", text)
	}
}

// SelectedRange returns the current selection as last reported by the
// engine.
func (c *Control) SelectedRange() Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedRange
}

// SetSelectedRange records the selection. The engine owns the selection,
// so nothing is sent back.
func (c *Control) SetSelectedRange(sel Selection) {
	c.mu.Lock()
	if c.selectedRange == sel {
		c.mu.Unlock()
		return
	}
	c.selectedRange = sel
	c.mu.Unlock()
	c.propertyChanged.Emit(PropSelectedRange)
}

// CodeLanguage returns the document language.
func (c *Control) CodeLanguage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.language
}

// SetCodeLanguage changes the document language.
func (c *Control) SetCodeLanguage(lang string) {
	c.mu.Lock()
	if c.language == lang {
		c.mu.Unlock()
		return
	}
	c.language = lang
	c.syncOptionsLocked()
	c.mu.Unlock()

	c.propertyChanged.Emit(PropCodeLanguage)
	c.propertyChanged.Emit(PropOptions)
	c.invokeLater(readiness.PriorityOptions, "updateLanguage", lang)
}

// ReadOnly reports whether the document rejects edits.
func (c *Control) ReadOnly() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readOnly
}

// SetReadOnly changes whether the document rejects edits.
func (c *Control) SetReadOnly(readOnly bool) {
	c.mu.Lock()
	if c.readOnly == readOnly {
		c.mu.Unlock()
		return
	}
	c.readOnly = readOnly
	c.syncOptionsLocked()
	c.mu.Unlock()

	c.propertyChanged.Emit(PropReadOnly)
	c.propertyChanged.Emit(PropOptions)
	c.submitOptions()
}

// HasGlyphMargin reports whether the glyph margin is shown.
func (c *Control) HasGlyphMargin() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.glyphMargin
}

// SetHasGlyphMargin shows or hides the glyph margin.
func (c *Control) SetHasGlyphMargin(show bool) {
	c.mu.Lock()
	if c.glyphMargin == show {
		c.mu.Unlock()
		return
	}
	c.glyphMargin = show
	c.syncOptionsLocked()
	c.mu.Unlock()

	c.propertyChanged.Emit(PropHasGlyphMargin)
	c.propertyChanged.Emit(PropOptions)
	c.submitOptions()
}

// Options returns a copy of the engine options. Language, ReadOnly and
// GlyphMargin always reflect the control's properties.
func (c *Control) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.options.clone()
}

// SetOptions replaces the engine options. Language, ReadOnly and
// GlyphMargin, when set, are copied to the matching control properties;
// when unset they are filled from them. Assigning the value returned by
// Options is a no-op.
func (c *Control) SetOptions(o Options) {
	c.mu.Lock()
	next := o.clone()
	lang, readOnly, glyph := c.language, c.readOnly, c.glyphMargin
	if next.Language != nil {
		lang = *next.Language
	}
	if next.ReadOnly != nil {
		readOnly = *next.ReadOnly
	}
	if next.GlyphMargin != nil {
		glyph = *next.GlyphMargin
	}
	reconcile(&next, lang, readOnly, glyph)
	if reflect.DeepEqual(c.options, next) {
		c.mu.Unlock()
		return
	}

	var changed []string
	langChanged := lang != c.language
	if langChanged {
		c.language = lang
		changed = append(changed, PropCodeLanguage)
	}
	if readOnly != c.readOnly {
		c.readOnly = readOnly
		changed = append(changed, PropReadOnly)
	}
	if glyph != c.glyphMargin {
		c.glyphMargin = glyph
		changed = append(changed, PropHasGlyphMargin)
	}
	c.options = next
	c.mu.Unlock()

	for _, name := range changed {
		c.propertyChanged.Emit(name)
	}
	c.propertyChanged.Emit(PropOptions)
	if langChanged {
		c.invokeLater(readiness.PriorityOptions, "updateLanguage", lang)
	}
	c.submitOptions()
}

// submitOptions sends the options current when the change runs, so a burst
// of option changes sends the final state.
func (c *Control) submitOptions() {
	c.submit(readiness.PriorityOptions, "updateOptions", func(ctx context.Context, ch *script.Channel) error {
		ch.Invoke(ctx, "updateOptions", c.Options())
		return nil
	})
}

func (c *Control) syncOptionsLocked() {
	reconcile(&c.options, c.language, c.readOnly, c.glyphMargin)
}

// reconcile writes the control-owned fields into o, assigning only fields
// that differ.
func reconcile(o *Options, lang string, readOnly, glyph bool) {
	if o.Language == nil || *o.Language != lang {
		o.Language = &lang
	}
	if o.ReadOnly == nil || *o.ReadOnly != readOnly {
		o.ReadOnly = &readOnly
	}
	if o.GlyphMargin == nil || *o.GlyphMargin != glyph {
		o.GlyphMargin = &glyph
	}
}

func (o Options) clone() Options {
	out := Options{
		Language:        clonePtr(o.Language),
		ReadOnly:        clonePtr(o.ReadOnly),
		GlyphMargin:     clonePtr(o.GlyphMargin),
		AutomaticLayout: clonePtr(o.AutomaticLayout),
		FontSize:        clonePtr(o.FontSize),
		WordWrap:        clonePtr(o.WordWrap),
		LineNumbers:     clonePtr(o.LineNumbers),
	}
	if o.Minimap != nil {
		out.Minimap = &Minimap{Enabled: clonePtr(o.Minimap.Enabled)}
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// RequestedTheme returns the theme asked of the engine. ThemeDefault
// follows the application theme.
func (c *Control) RequestedTheme() listener.Theme {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.theme
}

// SetRequestedTheme changes the engine theme.
func (c *Control) SetRequestedTheme(theme listener.Theme) {
	c.mu.Lock()
	if c.theme == theme {
		c.mu.Unlock()
		return
	}
	c.theme = theme
	c.mu.Unlock()

	c.propertyChanged.Emit(PropRequestedTheme)
	c.submitTheme()
}

func (c *Control) themeChanged(*listener.ThemeListener) {
	if c.RequestedTheme() == listener.ThemeDefault {
		c.submitTheme()
	}
}

func (c *Control) submitTheme() {
	c.submit(readiness.PriorityOptions, "changeTheme", func(ctx context.Context, ch *script.Channel) error {
		name := string(c.RequestedTheme())
		if c.RequestedTheme() == listener.ThemeDefault {
			name = c.themes.CurrentThemeName()
		}
		ch.Invoke(ctx, "changeTheme", name, c.themes.IsHighContrast())
		return nil
	})
}

// IsEditorLoaded reports whether the engine is loaded and queued changes
// have been applied.
func (c *Control) IsEditorLoaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Decorations returns the decorated ranges. Changes to the collection are
// sent to the engine.
func (c *Control) Decorations() *Collection[Decoration] {
	return c.decorations
}

// SetDecorations replaces every decoration.
func (c *Control) SetDecorations(items []Decoration) {
	c.decorations.Set(items)
	c.propertyChanged.Emit(PropDecorations)
}

// Markers returns the diagnostic markers. Changes to the collection are
// sent to the engine.
func (c *Control) Markers() *Collection[Marker] {
	return c.markers
}

// SetMarkers replaces every marker.
func (c *Control) SetMarkers(items []Marker) {
	c.markers.Set(items)
	c.propertyChanged.Emit(PropMarkers)
}

// applyDecorations clears what the engine shows and applies the current
// decorations. The clear and the apply are not interleaved with another
// application.
func (c *Control) applyDecorations(ctx context.Context, ch *script.Channel) error {
	if err := c.decoLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.decoLock.Release(1)

	items := c.decorations.Items()
	if c.decoApplied > 0 {
		ch.Invoke(ctx, "updateDecorations", []Decoration{})
		c.decoApplied = 0
	}
	if len(items) > 0 {
		ch.Invoke(ctx, "updateDecorations", items)
		c.decoApplied = len(items)
	}
	return nil
}

// applyMarkers is applyDecorations for markers.
func (c *Control) applyMarkers(ctx context.Context, ch *script.Channel) error {
	if err := c.markerLock.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.markerLock.Release(1)

	items := c.markers.Items()
	if c.markersApplied > 0 {
		ch.Invoke(ctx, "setModelMarkers", MarkerOwner, []Marker{})
		c.markersApplied = 0
	}
	if len(items) > 0 {
		ch.Invoke(ctx, "setModelMarkers", MarkerOwner, items)
		c.markersApplied = len(items)
	}
	return nil
}

// resubmitCollections queues the current annotations for a new engine.
func (c *Control) resubmitCollections() {
	ctx := context.Background()
	if err := c.decoLock.Acquire(ctx, 1); err == nil {
		c.decoApplied = 0
		c.decoLock.Release(1)
	}
	if err := c.markerLock.Acquire(ctx, 1); err == nil {
		c.markersApplied = 0
		c.markerLock.Release(1)
	}

	if c.decorations.Len() > 0 {
		c.submit(readiness.PriorityDecorations, "updateDecorations", c.applyDecorations)
	}
	if c.markers.Len() > 0 {
		c.submit(readiness.PriorityDecorations, "setModelMarkers", c.applyMarkers)
	}
}
