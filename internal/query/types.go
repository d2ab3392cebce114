// Package query provides a small filter IR over catalog tables and its
// compilation to parameterized SQLite SQL.
//
// The IR is deliberately narrow: conjunctions of column comparisons.
// Narrowness keeps every filter compilable to a single indexable WHERE
// clause, and every compiled query carries a deterministic ORDER BY so
// repeated reads of the same catalog return rows in the same order.
package query

// Filter represents a row filter over one catalog table.
//
// This is a sealed interface - only types in this package implement it.
// The marker method pattern prevents external implementations and
// enables exhaustive type switches in the compiler.
type Filter interface {
	filterNode() // Marker method - seals interface to this package
}

// Equals matches rows whose column equals a text value.
//
// Compiles to "column = ?" with the value parameterized, never
// interpolated.
type Equals struct {
	Column string
	Value  string
}

func (Equals) filterNode() {}

// HasContract matches rows by their absence flag: true selects rows
// holding a contract payload, false selects recorded absences.
type HasContract struct {
	Value bool
}

func (HasContract) filterNode() {}

// KeyPrefix matches rows whose symbol key starts with a prefix.
// Compiles to a LIKE pattern with the prefix's wildcards escaped.
type KeyPrefix struct {
	Prefix string
}

func (KeyPrefix) filterNode() {}

// And matches rows satisfying every inner filter. An empty And matches
// everything.
type And struct {
	Filters []Filter
}

func (And) filterNode() {}

// Table identifies which catalog table a filter runs against.
type Table string

const (
	// RoutineContracts is the routine_contracts catalog table.
	RoutineContracts Table = "routine_contracts"
	// TypeContracts is the type_contracts catalog table.
	TypeContracts Table = "type_contracts"
)

// KeyColumn returns the symbol-key column of the table.
func (t Table) KeyColumn() string {
	if t == TypeContracts {
		return "type_key"
	}
	return "routine_key"
}

// Columns returns the filterable columns of the table.
func (t Table) Columns() []string {
	return []string{t.KeyColumn(), "unit_name", "unit_version"}
}

// ForUnit builds the conjunction selecting one unit's rows.
func ForUnit(name, version string) Filter {
	return And{Filters: []Filter{
		Equals{Column: "unit_name", Value: name},
		Equals{Column: "unit_version", Value: version},
	}}
}
