package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Patrol holds the schema definition for a running patrol.
// A dispersed patrol has neither a last nor a next major node.
type Patrol struct {
	ent.Schema
}

// Annotations of the Patrol.
func (Patrol) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{
			Table:  "patrols",
			Checks: map[string]string{"patrols_major_nodes_differ": "last_major_node IS NULL OR next_major_node IS NULL OR last_major_node <> next_major_node"},
		},
	}
}

// Mixin of the Patrol.
func (Patrol) Mixin() []ent.Mixin {
	return []ent.Mixin{
		MutableMixin{},
	}
}

// Fields of the Patrol.
func (Patrol) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("route_id").
			Immutable(),
		field.String("authority_id").
			Immutable(),
		field.Int8("phase").
			Range(0, 5).
			Default(0).
			Comment("forming, marshalling, patrolling, enforcing, returning, disbanded"),
		field.String("last_major_node").
			Optional().
			Nillable(),
		field.String("next_major_node").
			Optional().
			Nillable(),
		field.String("leader_id").
			Optional().
			Nillable(),
		field.String("character_id").
			Optional().
			Nillable().
			Comment("Opaque slot for the game-side patrol entity"),
		field.Int("waypoint_index").
			NonNegative().
			Default(0),
		field.Int("phase_ticks").
			NonNegative().
			Default(0),
		field.Int("stalled_ticks").
			NonNegative().
			Default(0),
		field.JSON("enforcement", map[string]interface{}{}).
			Optional().
			Comment("Crime being enforced and its resolved strategy"),
	}
}

// Edges of the Patrol.
func (Patrol) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("route", PatrolRoute.Type).
			Ref("patrols").
			Field("route_id").
			Unique().
			Required().
			Immutable(),
		edge.From("authority", LegalAuthority.Type).
			Ref("patrols").
			Field("authority_id").
			Unique().
			Required().
			Immutable(),
		edge.To("members", PatrolMember.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Patrol.
func (Patrol) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("route_id"), // active count per route
	}
}

// PatrolMember enrolls one character in one patrol. A character belongs to
// at most one patrol at a time.
type PatrolMember struct {
	ent.Schema
}

// Annotations of the PatrolMember.
func (PatrolMember) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "patrol_members"},
		field.ID("patrol_id", "character_id"),
	}
}

// Fields of the PatrolMember.
func (PatrolMember) Fields() []ent.Field {
	return []ent.Field{
		field.String("patrol_id"),
		field.String("character_id").
			Unique(),
		field.Int64("joined_seq").
			Comment("Join order; the lowest surviving member leads"),
		field.Time("joined_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the PatrolMember.
func (PatrolMember) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("patrol", Patrol.Type).
			Ref("members").
			Field("patrol_id").
			Unique().
			Required(),
	}
}
