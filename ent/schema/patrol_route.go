package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// PatrolRoute holds the schema definition for a patrol route template.
type PatrolRoute struct {
	ent.Schema
}

// Annotations of the PatrolRoute.
func (PatrolRoute) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "patrol_routes"},
	}
}

// Fields of the PatrolRoute.
func (PatrolRoute) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("authority_id"),
		field.String("name").
			NotEmpty(),
		field.String("start_trigger").
			Optional().
			Nillable().
			Comment("Hook program evaluated by start-trigger sweeps"),
		field.Int("min_members").
			Positive().
			Default(1),
		field.Int("max_active").
			Positive().
			Default(1),
	}
}

// Mixin of the PatrolRoute. Templates are immutable once created.
func (PatrolRoute) Mixin() []ent.Mixin {
	return []ent.Mixin{
		WriteOnceMixin{},
	}
}

// Edges of the PatrolRoute.
func (PatrolRoute) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("authority", LegalAuthority.Type).
			Ref("routes").
			Field("authority_id").
			Unique().
			Required(),
		edge.To("waypoints", RouteWaypoint.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("patrols", Patrol.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// RouteWaypoint is one ordered waypoint of a route.
type RouteWaypoint struct {
	ent.Schema
}

// Annotations of the RouteWaypoint.
func (RouteWaypoint) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "patrol_route_waypoints"},
		field.ID("route_id", "ordinal"),
	}
}

// Fields of the RouteWaypoint.
func (RouteWaypoint) Fields() []ent.Field {
	return []ent.Field{
		field.String("route_id"),
		field.Int("ordinal").
			NonNegative(),
		field.String("node_id").
			NotEmpty(),
	}
}

// Edges of the RouteWaypoint.
func (RouteWaypoint) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("route", PatrolRoute.Type).
			Ref("waypoints").
			Field("route_id").
			Unique().
			Required(),
	}
}
