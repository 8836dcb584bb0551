package engine

import _ "embed"

// Headless is a minimal editor engine in script form. It implements every
// method a control invokes and keeps its state in memory, which makes it
// suitable for the demo command and for end-to-end tests.
//
// Besides the control-facing methods it defines functions that stand in
// for user interaction: typeText, selectRange, pressKey, requestHover,
// requestCodeActions, runAction, runCommand and snapshot.
//
//go:embed headless.js
var Headless string

// HeadlessName is the script name used in stack traces.
const HeadlessName = "headless.js"
