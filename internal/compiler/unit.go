package compiler

import (
	"encoding/json"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/google/uuid"

	"github.com/fhchina/cci/internal/ir"
)

// CompileUnit parses a CUE value into a compiled unit.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the unit struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`unit: { name: "Parser.Impl", ... }`)
//	u, err := CompileUnit(v.LookupPath(cue.ParsePath("unit")))
//
// The expected shape:
//
//	unit: {
//		name:     "Parser.Impl"       // required
//		version?: "1.0"
//		guid?:    "b4f9..."           // RFC 4122 text form
//		location?: "fixtures/parser.unit"
//		types: {
//			<TypeName>: {
//				interface?: bool
//				abstract?:  bool
//				proxy_for?: "IParser"     // type name, same unit
//				generics?:  ["T"]
//				fields?: { <name>: { type: "Int32", contract_only?: bool } }
//				routines?: {
//					<name>: {
//						params?:  [{ name: "s", type: "String" }]
//						result?:  "String"
//						generics?: ["T"]
//						abstract?: bool
//						external?: bool
//						pure?:     bool
//						accessor_for?: "Count"
//						attributes?: ["pure"]
//						body?: { stmts: [...] }   // tree-body JSON shape
//					}
//				}
//			}
//		}
//	}
//
// Type strings resolve against the unit: a name declared in the
// enclosing generics lists becomes a generic parameter occurrence, a
// "Unit!Name" form references a foreign unit by name, anything else is a
// unit-local reference. Bodies use the tree JSON encoding, so fixture
// conditions carry fully qualified references.
func CompileUnit(v cue.Value) (*ir.CompiledUnit, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unit := &ir.CompiledUnit{}

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "unit name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	unit.Identity.Name = name

	if versionVal := v.LookupPath(cue.ParsePath("version")); versionVal.Exists() {
		if unit.Identity.Version, err = versionVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}
	if guidVal := v.LookupPath(cue.ParsePath("guid")); guidVal.Exists() {
		text, err := guidVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		guid, err := uuid.Parse(text)
		if err != nil {
			return nil, &CompileError{
				Field:   "guid",
				Message: fmt.Sprintf("not an RFC 4122 identifier: %v", err),
				Pos:     guidVal.Pos(),
			}
		}
		unit.Identity.GUID = guid
	}
	if locVal := v.LookupPath(cue.ParsePath("location")); locVal.Exists() {
		if unit.Location, err = locVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	typesVal := v.LookupPath(cue.ParsePath("types"))
	if typesVal.Exists() {
		iter, err := typesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			td, err := parseType(iter.Label(), iter.Value(), unit.Identity)
			if err != nil {
				return nil, err
			}
			unit.Types = append(unit.Types, td)
		}
	}

	unit.Attach()
	return unit, nil
}

// parseType extracts one type definition.
func parseType(name string, v cue.Value, identity ir.UnitIdentity) (*ir.TypeDef, error) {
	td := &ir.TypeDef{Name: name}

	var err error
	if td.IsInterface, err = parseBoolField(v, "interface"); err != nil {
		return nil, err
	}
	if td.IsAbstract, err = parseBoolField(v, "abstract"); err != nil {
		return nil, err
	}
	if td.GenericParams, err = parseStringList(v, "generics"); err != nil {
		return nil, err
	}

	if proxyVal := v.LookupPath(cue.ParsePath("proxy_for")); proxyVal.Exists() {
		target, err := proxyVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		ref := ir.TypeRef{Unit: identity, Name: target}
		td.ProxyFor = &ref
	}

	if fieldsVal := v.LookupPath(cue.ParsePath("fields")); fieldsVal.Exists() {
		iter, err := fieldsVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			fd, err := parseField(iter.Label(), iter.Value(), identity, td.GenericParams)
			if err != nil {
				return nil, err
			}
			td.Fields = append(td.Fields, fd)
		}
	}

	if routinesVal := v.LookupPath(cue.ParsePath("routines")); routinesVal.Exists() {
		iter, err := routinesVal.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			rd, err := parseRoutine(iter.Label(), iter.Value(), identity, td)
			if err != nil {
				return nil, err
			}
			td.Routines = append(td.Routines, rd)
		}
	}

	return td, nil
}

// parseField extracts one field definition.
func parseField(name string, v cue.Value, identity ir.UnitIdentity, generics []string) (*ir.FieldDef, error) {
	fd := &ir.FieldDef{Name: name}

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("fields.%s.type", name),
			Message: "field type is required",
			Pos:     v.Pos(),
		}
	}
	typeName, err := typeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	fd.Type = resolveTypeName(typeName, identity, generics)

	if fd.ContractOnly, err = parseBoolField(v, "contract_only"); err != nil {
		return nil, err
	}
	return fd, nil
}

// parseRoutine extracts one routine definition.
func parseRoutine(name string, v cue.Value, identity ir.UnitIdentity, td *ir.TypeDef) (*ir.RoutineDef, error) {
	rd := &ir.RoutineDef{Name: name}

	var err error
	if rd.GenericParams, err = parseStringList(v, "generics"); err != nil {
		return nil, err
	}
	scope := append(append([]string{}, td.GenericParams...), rd.GenericParams...)

	if paramsVal := v.LookupPath(cue.ParsePath("params")); paramsVal.Exists() {
		iter, err := paramsVal.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for iter.Next() {
			pv := iter.Value()
			pname, err := pv.LookupPath(cue.ParsePath("name")).String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			ptype, err := pv.LookupPath(cue.ParsePath("type")).String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			rd.Params = append(rd.Params, &ir.ParamDef{
				Name: pname,
				Type: resolveTypeName(ptype, identity, scope),
			})
		}
	}

	if resultVal := v.LookupPath(cue.ParsePath("result")); resultVal.Exists() {
		rname, err := resultVal.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		rd.Result = resolveTypeName(rname, identity, scope)
	}

	if rd.IsAbstract, err = parseBoolField(v, "abstract"); err != nil {
		return nil, err
	}
	if rd.IsExternal, err = parseBoolField(v, "external"); err != nil {
		return nil, err
	}
	if rd.IsPureMarked, err = parseBoolField(v, "pure"); err != nil {
		return nil, err
	}
	if rd.Attributes, err = parseStringList(v, "attributes"); err != nil {
		return nil, err
	}

	if accVal := v.LookupPath(cue.ParsePath("accessor_for")); accVal.Exists() {
		if rd.AccessorFor, err = accVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		rd.IsAccessor = true
	}

	if bodyVal := v.LookupPath(cue.ParsePath("body")); bodyVal.Exists() {
		data, err := bodyVal.MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}
		body := &ir.Body{}
		if err := json.Unmarshal(data, body); err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("routines.%s.body", name),
				Message: err.Error(),
				Pos:     bodyVal.Pos(),
			}
		}
		rd.Body = body
	}

	return rd, nil
}

// resolveTypeName turns a fixture type string into a reference: generic
// parameter names in scope become parameter occurrences, "Unit!Name"
// references a foreign unit, everything else is unit-local.
func resolveTypeName(name string, identity ir.UnitIdentity, generics []string) ir.TypeRef {
	for _, g := range generics {
		if name == g {
			return ir.TypeRef{Name: name}
		}
	}
	if unitName, typeName, ok := strings.Cut(name, "!"); ok {
		return ir.TypeRef{Unit: ir.UnitIdentity{Name: unitName}, Name: typeName}
	}
	return ir.TypeRef{Unit: identity, Name: name}
}

func parseBoolField(v cue.Value, field string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func parseStringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
