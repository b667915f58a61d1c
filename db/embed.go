// Package db embeds the register's database schema.
package db

import _ "embed"

// Schema contains the DDL for the price book, sales, and held order tables.
//
//go:embed migrations/001_schema.sql
var Schema string
