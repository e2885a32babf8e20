// Package render provides the engine.Surface implementations: a raylib
// window, a bubbletea terminal view and a headless recorder used for batch
// runs and tests.
package render
