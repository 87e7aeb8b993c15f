package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// LegalAuthority holds the schema definition for the LegalAuthority entity.
// Holding nodes are plain node identifiers; the territory map is not stored.
type LegalAuthority struct {
	ent.Schema
}

// Annotations of the LegalAuthority.
func (LegalAuthority) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "legal_authorities"},
	}
}

// Mixin of the LegalAuthority.
func (LegalAuthority) Mixin() []ent.Mixin {
	return []ent.Mixin{
		MutableMixin{},
	}
}

// Fields of the LegalAuthority.
func (LegalAuthority) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("name").
			NotEmpty(),
		field.Bool("players_know_their_crimes").
			Default(false),
		field.String("marshalling_node").
			Optional().
			Nillable(),
		field.String("preparing_node").
			Optional().
			Nillable(),
		field.String("prison_node").
			Optional().
			Nillable(),
		field.String("stowing_node").
			Optional().
			Nillable(),
	}
}

// Edges of the LegalAuthority. Deleting an authority cascades to all of them.
func (LegalAuthority) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("cells", AuthorityCell.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("laws", Law.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("routes", PatrolRoute.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("patrols", Patrol.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// AuthorityCell is one node of an authority's territory.
type AuthorityCell struct {
	ent.Schema
}

// Annotations of the AuthorityCell.
func (AuthorityCell) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "legal_authority_cells"},
		field.ID("authority_id", "node_id"),
	}
}

// Fields of the AuthorityCell.
func (AuthorityCell) Fields() []ent.Field {
	return []ent.Field{
		field.String("authority_id"),
		field.String("node_id").
			NotEmpty(),
	}
}

// Edges of the AuthorityCell.
func (AuthorityCell) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("authority", LegalAuthority.Type).
			Ref("cells").
			Field("authority_id").
			Unique().
			Required(),
	}
}

// Indexes of the AuthorityCell.
func (AuthorityCell) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("node_id"), // IsWithinJurisdiction lookups by node
	}
}

// Law holds the schema definition for the Law entity.
type Law struct {
	ent.Schema
}

// Annotations of the Law.
func (Law) Annotations() []schema.Annotation {
	return []schema.Annotation{
		entsql.Annotation{Table: "laws"},
	}
}

// Fields of the Law.
func (Law) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			Unique().
			Immutable(),
		field.String("authority_id"),
		field.String("name").
			NotEmpty(),
		field.String("enforcement_strategy").
			NotEmpty().
			Comment("Lowercased strategy name; unknown names fall back to the configured default"),
	}
}

// Edges of the Law.
func (Law) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("authority", LegalAuthority.Type).
			Ref("laws").
			Field("authority_id").
			Unique().
			Required(),
	}
}
