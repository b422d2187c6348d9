//go:build tools

package tools

// This file tracks tool dependencies for reproducible builds.
// The goose CLI is used to author and inspect the migrations embedded in
// internal/adapters/postgres/migrations and internal/adapters/sqlite/migrations.

import (
    _ "github.com/pressly/goose/v3/cmd/goose"
)
