package query

import (
	"fmt"
	"slices"
	"strings"
)

// Compile converts a filter into a parameterized catalog query.
// Returns (sql, params, error).
//
// Every compiled query selects the table's key, absence flag, and
// payload, and ends with ORDER BY seq ASC, key COLLATE BINARY ASC so
// results are deterministic across runs.
func Compile(table Table, f Filter) (string, []any, error) {
	if err := Validate(table, f); err != nil {
		return "", nil, err
	}

	where, params, err := compileFilter(table, f)
	if err != nil {
		return "", nil, err
	}

	key := table.KeyColumn()
	sql := fmt.Sprintf("SELECT %s, absent, contract FROM %s", key, table)
	if where != "" {
		sql += " WHERE " + where
	}
	sql += fmt.Sprintf(" ORDER BY seq ASC, %s COLLATE BINARY ASC", key)

	return sql, params, nil
}

func compileFilter(table Table, f Filter) (string, []any, error) {
	switch filter := f.(type) {
	case nil:
		return "", nil, nil
	case Equals:
		return filter.Column + " = ?", []any{filter.Value}, nil
	case HasContract:
		if filter.Value {
			return "absent = 0", nil, nil
		}
		return "absent = 1", nil, nil
	case KeyPrefix:
		return table.KeyColumn() + " LIKE ? ESCAPE '\\'", []any{escapeLike(filter.Prefix) + "%"}, nil
	case And:
		var parts []string
		var params []any
		for _, inner := range filter.Filters {
			sql, p, err := compileFilter(table, inner)
			if err != nil {
				return "", nil, err
			}
			if sql == "" {
				continue
			}
			parts = append(parts, sql)
			params = append(params, p...)
		}
		return strings.Join(parts, " AND "), params, nil
	default:
		return "", nil, fmt.Errorf("unsupported filter type: %T", f)
	}
}

// Validate checks that a filter only references the table's columns.
// Returns all problems found as a single error, or nil.
func Validate(table Table, f Filter) error {
	switch filter := f.(type) {
	case nil, HasContract, KeyPrefix:
		return nil
	case Equals:
		if !slices.Contains(table.Columns(), filter.Column) {
			return fmt.Errorf("column %q is not filterable on %s", filter.Column, table)
		}
		return nil
	case And:
		for _, inner := range filter.Filters {
			if err := Validate(table, inner); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported filter type: %T", f)
	}
}

// escapeLike escapes LIKE wildcards so a prefix matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}
