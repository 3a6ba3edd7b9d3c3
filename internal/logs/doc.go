// Package logs reads the daemon log for `filer logs`.
package logs
