// Package testsupport provides shared fixtures for filer tests: isolated
// configs rooted in t.TempDir, a seeded SQLite store, and file writers.
package testsupport
