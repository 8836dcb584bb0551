package editor

import "github.com/wippyai/editor-bridge/accessor"

// TypeNamespace qualifies the model types the engine may send by name.
const TypeNamespace = "Monaco"

// Position is a cursor position. Lines and columns start at 1.
type Position struct {
	LineNumber int `json:"lineNumber"`
	Column     int `json:"column"`
}

// Range is a span of text.
type Range struct {
	StartLineNumber int `json:"startLineNumber"`
	StartColumn     int `json:"startColumn"`
	EndLineNumber   int `json:"endLineNumber"`
	EndColumn       int `json:"endColumn"`
}

// Selection is a range with a direction: the selection starts at the
// anchor and the cursor sits at the position.
type Selection struct {
	SelectionStartLineNumber int `json:"selectionStartLineNumber"`
	SelectionStartColumn     int `json:"selectionStartColumn"`
	PositionLineNumber       int `json:"positionLineNumber"`
	PositionColumn           int `json:"positionColumn"`
}

// Options are the engine construction options the control manages.
// Unset fields are left to the engine's defaults.
type Options struct {
	Language        *string  `json:"language"`
	ReadOnly        *bool    `json:"readOnly"`
	GlyphMargin     *bool    `json:"glyphMargin"`
	AutomaticLayout *bool    `json:"automaticLayout"`
	FontSize        *float64 `json:"fontSize"`
	WordWrap        *string  `json:"wordWrap"`
	LineNumbers     *string  `json:"lineNumbers"`
	Minimap         *Minimap `json:"minimap"`
}

// Minimap configures the overview minimap.
type Minimap struct {
	Enabled *bool `json:"enabled"`
}

// MarkdownString is formatted text shown in hovers and decorations.
type MarkdownString struct {
	Value     string `json:"value"`
	IsTrusted *bool  `json:"isTrusted"`
}

// DecorationOptions style a decorated range.
type DecorationOptions struct {
	ClassName            *string          `json:"className"`
	InlineClassName      *string          `json:"inlineClassName"`
	GlyphMarginClassName *string          `json:"glyphMarginClassName"`
	IsWholeLine          *bool            `json:"isWholeLine"`
	HoverMessage         []MarkdownString `json:"hoverMessage"`
}

// Decoration is a styled range in the document.
type Decoration struct {
	Range   Range             `json:"range"`
	Options DecorationOptions `json:"options"`
}

// MarkerSeverity grades a diagnostic marker.
type MarkerSeverity int

const (
	SeverityHint    MarkerSeverity = 1
	SeverityInfo    MarkerSeverity = 2
	SeverityWarning MarkerSeverity = 4
	SeverityError   MarkerSeverity = 8
)

// Marker is a diagnostic attached to a range.
type Marker struct {
	Severity        MarkerSeverity `json:"severity"`
	Message         string         `json:"message"`
	Source          *string        `json:"source"`
	Code            *string        `json:"code"`
	StartLineNumber int            `json:"startLineNumber"`
	StartColumn     int            `json:"startColumn"`
	EndLineNumber   int            `json:"endLineNumber"`
	EndColumn       int            `json:"endColumn"`
}

// MarkerOwner is the owner under which the control publishes markers.
const MarkerOwner = "CodeEditor"

// ActionDescriptor describes an editor action shown in the context menu or
// bound to keys. Run is called on the control's dispatcher.
type ActionDescriptor struct {
	ID                 string   `json:"id"`
	Label              string   `json:"label"`
	Keybindings        []int    `json:"keybindings"`
	ContextMenuGroupID *string  `json:"contextMenuGroupId"`
	ContextMenuOrder   *float64 `json:"contextMenuOrder"`
	Precondition       *string  `json:"precondition"`

	Run func(c *Control) `json:"-"`
}

// Hover is the result of a hover provider.
type Hover struct {
	Contents []MarkdownString `json:"contents"`
	Range    *Range           `json:"range"`
}

// CodeActionContext is what the engine knows about a code action request.
type CodeActionContext struct {
	Markers []Marker `json:"markers"`
	Only    *string  `json:"only"`
}

// TextEdit replaces a range with text.
type TextEdit struct {
	Range Range  `json:"range"`
	Text  string `json:"text"`
}

// WorkspaceTextEdit is a TextEdit for one model.
type WorkspaceTextEdit struct {
	TextEdit TextEdit `json:"textEdit"`
}

// WorkspaceEdit groups edits applied by a code action.
type WorkspaceEdit struct {
	Edits []WorkspaceTextEdit `json:"edits"`
}

// CodeAction is one quick fix or refactoring.
type CodeAction struct {
	Title       string         `json:"title"`
	Kind        *string        `json:"kind"`
	Diagnostics []Marker       `json:"diagnostics"`
	Edit        *WorkspaceEdit `json:"edit"`
	IsPreferred *bool          `json:"isPreferred"`
}

// CodeActionList is the result of a code action provider.
type CodeActionList struct {
	Actions []CodeAction `json:"actions"`
}

// RegisterTypes adds the model types under TypeNamespace to r.
func RegisterTypes(r *accessor.TypeRegistry) {
	r.AddNamespace(TypeNamespace)
	accessor.RegisterType[Position](r, TypeNamespace+".Position")
	accessor.RegisterType[Range](r, TypeNamespace+".Range")
	accessor.RegisterType[Selection](r, TypeNamespace+".Selection")
	accessor.RegisterType[Options](r, TypeNamespace+".Editor.Options")
	accessor.RegisterType[Decoration](r, TypeNamespace+".Editor.Decoration")
	accessor.RegisterType[Marker](r, TypeNamespace+".Editor.Marker")
}
