package sqlc

import _ "embed"

// Schema is the DDL applied by AutoMigrate and the test helpers.
//
//go:embed schema.sql
var Schema string
