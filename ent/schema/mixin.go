// Package schema describes the durable data model of Warden as Ent schemas.
// The SQL in internal/repository/sqlc is the applied DDL; these definitions
// are kept column-for-column in step with it, and the server refuses to boot
// against a database missing any column they declare.
package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/mixin"
)

// Tick bookkeeping compares timestamps across processes, so every column is
// a UTC timestamptz.
var utcTimestamp = map[string]string{dialect.Postgres: "timestamptz"}

func nowUTC() time.Time { return time.Now().UTC() }

// WriteOnceMixin stamps rows that never change after insert: route
// templates, audit records, and crime notices.
type WriteOnceMixin struct {
	mixin.Schema
}

// Fields of the WriteOnceMixin.
func (WriteOnceMixin) Fields() []ent.Field {
	return []ent.Field{
		field.Time("created_at").
			Default(nowUTC).
			SchemaType(utcTimestamp).
			Immutable(),
	}
}

// MutableMixin stamps rows the registry or the engine keeps rewriting;
// updated_at moves on every save.
type MutableMixin struct {
	mixin.Schema
}

// Fields of the MutableMixin.
func (MutableMixin) Fields() []ent.Field {
	return append(WriteOnceMixin{}.Fields(),
		field.Time("updated_at").
			Default(nowUTC).
			UpdateDefault(nowUTC).
			SchemaType(utcTimestamp),
	)
}
