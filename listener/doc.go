// Package listener holds the typed registries the engine calls into.
//
// Each listener registers one pattern on a control's accessor and turns
// the engine's positional string arguments into a typed record:
//
//   - KeyboardListener handles the KeyDown event. Its result tells the
//     engine whether a native handler consumed the key.
//   - ThemeListener exposes CurrentThemeName and IsHighContrast for the
//     engine to read while choosing its theme.
//   - DebugLogger receives Log calls and writes them to zap.
package listener
