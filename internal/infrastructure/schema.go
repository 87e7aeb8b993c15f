package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	entschema "lawwarden.io/warden/ent/schema"
	"lawwarden.io/warden/internal/pkg/logger"
)

const liveColumnsQuery = `
SELECT table_name, column_name
FROM information_schema.columns
WHERE table_schema = current_schema()`

// VerifySchema checks that the connected database carries every table and
// column the Ent schemas declare. Extra columns are tolerated.
func (c *DatabaseClients) VerifySchema(ctx context.Context) error {
	rows, err := c.Pool.Query(ctx, liveColumnsQuery)
	if err != nil {
		return fmt.Errorf("read live columns: %w", err)
	}
	defer rows.Close()

	live := make(map[string]map[string]bool)
	for rows.Next() {
		var table, column string
		if err := rows.Scan(&table, &column); err != nil {
			return fmt.Errorf("scan live column: %w", err)
		}
		if live[table] == nil {
			live[table] = make(map[string]bool)
		}
		live[table][column] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read live columns: %w", err)
	}

	tables := entschema.Tables()
	if drift := schemaDrift(live, tables); len(drift) > 0 {
		return fmt.Errorf("database schema is behind the data model: %s", strings.Join(drift, "; "))
	}
	logger.Info("Database schema verified", zap.Int("tables", len(tables)))
	return nil
}

// schemaDrift lists, per table, what the live columns lack.
func schemaDrift(live map[string]map[string]bool, tables []entschema.Table) []string {
	var drift []string
	for _, t := range tables {
		cols, ok := live[t.Name]
		if !ok {
			drift = append(drift, fmt.Sprintf("table %s is missing", t.Name))
			continue
		}
		var missing []string
		for _, col := range t.Columns {
			if !cols[col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			drift = append(drift, fmt.Sprintf("table %s lacks %s", t.Name, strings.Join(missing, ", ")))
		}
	}
	return drift
}
