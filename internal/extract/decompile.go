package extract

import (
	"github.com/fhchina/cci/internal/ir"
)

// TreeDecompiler is the default decompiler for units whose bodies are
// already carried in tree form (fixture units and pre-decompiled
// caches). It hands out a fresh copy of the stored body so downstream
// splitting never aliases the unit. The debug table, when present, is
// not needed for tree-form bodies.
type TreeDecompiler struct{}

// Decompile implements Decompiler.
func (TreeDecompiler) Decompile(def *ir.RoutineDef, tbl DebugTable) (*ir.Body, error) {
	if def.Body == nil {
		return nil, &DecompileError{Routine: def.Ref()}
	}
	return ir.CopyBody(def.Body), nil
}
