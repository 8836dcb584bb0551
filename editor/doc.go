// Package editor is the native control that drives one embedded editor
// engine over the bridge.
//
// A Control keeps its properties locally and sends their effects to the
// engine through a readiness gate. Until the engine reports Loaded, every
// effect is queued with a priority class and replayed in this order:
//
//	PriorityOptions      CodeLanguage, ReadOnly, HasGlyphMargin, Options, RequestedTheme
//	PriorityContent      Text, SelectedText
//	PriorityDecorations  Decorations, Markers, actions, commands, providers
//
// Writes arriving from the engine hold the control's bridge-set mark, so
// they update the property and notify observers without being echoed back.
//
// Language, ReadOnly and GlyphMargin are owned by the control; the Options
// value is derived from them, and assigning Options copies any set field
// back only when it differs.
package editor
