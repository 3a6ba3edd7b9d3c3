// Package textutil provides text processing utilities for tokenizing,
// similarity scoring, and filename sanitization.
//
// The primary use cases are:
//   - Splitting filenames and folder names into comparable tokens
//   - Scoring how alike two short strings are for heuristic matching
//   - Sanitizing filenames and path segments for safe filesystem use
//
// Text is case folded (golang.org/x/text/cases) and NFC normalized before
// comparison so visually identical names compare equal.
package textutil
