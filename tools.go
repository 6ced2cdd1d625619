//go:build tools
// +build tools

// Package tools imports dependencies that are used by this project but not directly
// imported in the main codebase. This ensures they are tracked in go.mod.
package tools

import (
	// lib/pq backs database/sql-based tooling run against the same
	// PostgreSQL instance the service uses.
	_ "github.com/lib/pq"
)
