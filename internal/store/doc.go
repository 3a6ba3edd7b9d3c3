// Package store persists the filer taxonomy, rules, organized file records,
// watched folders, and watch activity in SQLite (modernc.org/sqlite).
//
// The schema is embedded and versioned through a single schema_version row;
// a mismatch is reported as ErrSchemaMismatch rather than migrated. Writes
// retry briefly when SQLite reports the database as busy. Mutations that
// change the rule set or folder hierarchy notify hooks registered with
// OnChange so cached matcher snapshots can be invalidated.
package store
