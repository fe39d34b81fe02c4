package voice2txt

import _ "embed"

// SchemaSQL is the PostgreSQL schema for the checkpoint backend.
//
//go:embed schema.sql
var SchemaSQL []byte
