package compiler

import (
	"fmt"
	"strings"

	"github.com/fhchina/cci/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnitNameEmpty = "E100" // unit name is required

	// Type errors (E101-E109)
	ErrDuplicateTypeName    = "E101" // duplicate type name in unit
	ErrUnknownProxyTarget   = "E102" // proxy_for names a type the unit does not define
	ErrProxyTargetConcrete  = "E103" // proxy target is neither abstract nor an interface
	ErrProxySelfReference   = "E104" // type declared as its own proxy
	ErrDuplicateFieldName   = "E105" // duplicate field name in type
	ErrGenericParamConflict = "E106" // routine generic shadows the type's

	// Routine errors (E110-E119)
	ErrDuplicateRoutine     = "E110" // duplicate routine signature in type
	ErrAbstractWithBody     = "E111" // abstract or external routine carries a body
	ErrInterfaceNotAbstract = "E112" // interface member must be abstract
	ErrUnknownAccessorField = "E113" // accessor_for names an unknown field
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled unit's referential integrity.
// Returns all errors found (does not fail-fast).
func Validate(unit *ir.CompiledUnit) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(unit.Identity.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "unit name is required and must be non-empty",
			Code:    ErrUnitNameEmpty,
		})
	}

	typeNames := make(map[string]bool)
	for _, td := range unit.Types {
		if typeNames[td.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("types.%s", td.Name),
				Message: fmt.Sprintf("duplicate type name: %q", td.Name),
				Code:    ErrDuplicateTypeName,
			})
		}
		typeNames[td.Name] = true

		errs = append(errs, validateType(td)...)
	}

	// Proxy targets check against the full type set.
	for _, td := range unit.Types {
		if td.ProxyFor == nil {
			continue
		}
		field := fmt.Sprintf("types.%s.proxy_for", td.Name)
		if td.ProxyFor.Name == td.Name {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "type declared as its own contract proxy",
				Code:    ErrProxySelfReference,
			})
			continue
		}
		target, ok := unit.ResolveType(*td.ProxyFor)
		if !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("proxy target %q is not defined in this unit", td.ProxyFor.Name),
				Code:    ErrUnknownProxyTarget,
			})
			continue
		}
		if !target.IsAbstract && !target.IsInterface {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("proxy target %q is concrete; only abstract types and interfaces take contract proxies", target.Name),
				Code:    ErrProxyTargetConcrete,
			})
		}
	}

	return errs
}

func validateType(td *ir.TypeDef) []ValidationError {
	var errs []ValidationError

	fieldNames := make(map[string]bool)
	for _, fd := range td.Fields {
		if fieldNames[fd.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("types.%s.fields.%s", td.Name, fd.Name),
				Message: fmt.Sprintf("duplicate field name: %q", fd.Name),
				Code:    ErrDuplicateFieldName,
			})
		}
		fieldNames[fd.Name] = true
	}

	typeGenerics := make(map[string]bool)
	for _, g := range td.GenericParams {
		typeGenerics[g] = true
	}

	seen := make(map[string]bool)
	for _, rd := range td.Routines {
		sig := routineSignature(rd)
		field := fmt.Sprintf("types.%s.routines.%s", td.Name, rd.Name)

		if seen[sig] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate routine signature: %s", sig),
				Code:    ErrDuplicateRoutine,
			})
		}
		seen[sig] = true

		if (rd.IsAbstract || rd.IsExternal) && rd.Body != nil {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "abstract and external routines must not carry a body",
				Code:    ErrAbstractWithBody,
			})
		}

		if td.IsInterface && !rd.IsAbstract {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "interface members must be abstract",
				Code:    ErrInterfaceNotAbstract,
			})
		}

		for _, g := range rd.GenericParams {
			if typeGenerics[g] {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("routine generic parameter %q shadows the type's", g),
					Code:    ErrGenericParamConflict,
				})
			}
		}

		if rd.IsAccessor && rd.AccessorFor != "" {
			if _, ok := td.FindField(rd.AccessorFor); !ok {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("accessor backing field %q is not defined on %s", rd.AccessorFor, td.Name),
					Code:    ErrUnknownAccessorField,
				})
			}
		}
	}

	return errs
}

// routineSignature renders a name+parameter-type key for duplicate
// detection, matching the resolution rules routine lookup uses.
func routineSignature(rd *ir.RoutineDef) string {
	parts := make([]string, 0, len(rd.Params))
	for _, p := range rd.Params {
		parts = append(parts, p.Type.Unspecialized().Name)
	}
	return fmt.Sprintf("%s(%s)", rd.Name, strings.Join(parts, ","))
}
