package harness

import (
	"fmt"
	"strings"

	"github.com/fhchina/cci/internal/ir"
)

// renderExpr renders a condition expression to stable text for
// snapshots. The rendering is diagnostic, not parseable: operator
// precedence is made explicit with parentheses and call targets are
// reduced to Type.Routine.
func renderExpr(e ir.Expression) string {
	switch n := e.(type) {
	case nil:
		return "<nil>"
	case *ir.Literal:
		if n.Kind == ir.LiteralString {
			return fmt.Sprintf("%q", n.Value)
		}
		return n.Value
	case *ir.ParamExpr:
		return n.Name
	case *ir.LocalExpr:
		return n.Name
	case *ir.FieldExpr:
		if n.Target == nil {
			return n.DeclaringType.Name + "." + n.Field
		}
		return renderExpr(n.Target) + "." + n.Field
	case *ir.CallExpr:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = renderExpr(a)
		}
		callee := n.Target.DeclaringType.Name + "." + n.Target.Name
		if n.Recv != nil {
			callee = renderExpr(n.Recv) + "." + n.Target.Name
		}
		return callee + "(" + strings.Join(args, ", ") + ")"
	case *ir.BinaryExpr:
		return "(" + renderExpr(n.Left) + " " + string(n.Op) + " " + renderExpr(n.Right) + ")"
	case *ir.UnaryExpr:
		return string(n.Op) + renderExpr(n.Operand)
	case *ir.OldExpr:
		return "old(" + renderExpr(n.Operand) + ")"
	case *ir.ResultExpr:
		return "result"
	default:
		return fmt.Sprintf("<%T>", e)
	}
}
