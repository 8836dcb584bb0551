package listener

import (
	"sync"

	"github.com/wippyai/editor-bridge/accessor"
	"github.com/wippyai/editor-bridge/internal/notify"
)

// Theme is an application theme.
type Theme string

const (
	ThemeDefault Theme = "Default"
	ThemeLight   Theme = "Light"
	ThemeDark    Theme = "Dark"
)

// ParseTheme maps a theme name to a Theme, falling back to ThemeDefault.
func ParseTheme(name string) Theme {
	switch Theme(name) {
	case ThemeLight, ThemeDark:
		return Theme(name)
	}
	return ThemeDefault
}

// ThemeListener publishes the application theme to the engine.
type ThemeListener struct {
	mu           sync.RWMutex
	theme        Theme
	highContrast bool

	handlers notify.Set[*ThemeListener]
}

// NewThemeListener creates a listener reporting theme.
func NewThemeListener(theme Theme, highContrast bool) *ThemeListener {
	return &ThemeListener{
		theme:        theme,
		highContrast: highContrast,
	}
}

// Register exposes CurrentThemeName and IsHighContrast on a.
func (l *ThemeListener) Register(a *accessor.Accessor) {
	a.RegisterProperty("CurrentThemeName", accessor.Prop(l.CurrentThemeName, nil))
	a.RegisterProperty("IsHighContrast", accessor.Prop(l.IsHighContrast, nil))
}

// CurrentTheme returns the theme.
func (l *ThemeListener) CurrentTheme() Theme {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.theme
}

// CurrentThemeName returns the theme as the engine reads it.
func (l *ThemeListener) CurrentThemeName() string {
	return string(l.CurrentTheme())
}

// IsHighContrast reports whether a high contrast mode is active.
func (l *ThemeListener) IsHighContrast() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.highContrast
}

// Update records a theme change and notifies handlers if anything changed.
func (l *ThemeListener) Update(theme Theme, highContrast bool) {
	l.mu.Lock()
	if l.theme == theme && l.highContrast == highContrast {
		l.mu.Unlock()
		return
	}
	l.theme = theme
	l.highContrast = highContrast
	l.mu.Unlock()

	l.handlers.Emit(l)
}

// OnThemeChanged adds a handler for Update.
func (l *ThemeListener) OnThemeChanged(fn func(*ThemeListener)) (unsubscribe func()) {
	return l.handlers.Add(fn)
}
