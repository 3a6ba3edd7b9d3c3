// Package matcher evaluates organization rules against files and ranks
// destination suggestions.
//
// Each rule type has one Matcher registered in a capability table; the Engine
// compiles active rules into an immutable snapshot (rules plus folder
// hierarchy) that is swapped atomically on refresh, so concurrent watchers
// read without locking. Snapshots expire after a TTL or on Invalidate. When no
// rule produces a suggestion the engine falls back to heuristics based on the
// file type vocabulary and filename/folder similarity.
//
// Matchers never return errors: a malformed pattern or a regex that exceeds
// its time limit is simply "no match", so one bad rule cannot block the rest.
package matcher
