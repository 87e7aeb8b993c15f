package schema

import (
	"sort"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
)

// Table is the relational shape of one schema.
type Table struct {
	Name    string
	Columns []string
}

// All returns every schema of the data model.
func All() []ent.Interface {
	return []ent.Interface{
		LegalAuthority{},
		AuthorityCell{},
		Law{},
		PatrolRoute{},
		RouteWaypoint{},
		Patrol{},
		PatrolMember{},
		AuditLog{},
		Notification{},
	}
}

// Tables returns the table and sorted column names of every schema, ordered
// by table name. Columns come from mixins and fields alike.
func Tables() []Table {
	out := make([]Table, 0, len(All()))
	for _, s := range All() {
		out = append(out, Table{Name: TableName(s), Columns: columns(s)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// TableName returns the table set by the schema's entsql annotation.
func TableName(s ent.Interface) string {
	for _, a := range s.Annotations() {
		if ann, ok := a.(entsql.Annotation); ok && ann.Table != "" {
			return ann.Table
		}
	}
	return ""
}

func columns(s ent.Interface) []string {
	var names []string
	for _, mx := range s.Mixin() {
		for _, f := range mx.Fields() {
			names = append(names, f.Descriptor().Name)
		}
	}
	for _, f := range s.Fields() {
		names = append(names, f.Descriptor().Name)
	}
	sort.Strings(names)
	return names
}
