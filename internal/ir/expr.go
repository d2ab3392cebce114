package ir

// Expression is a sealed interface over condition-expression nodes.
// Only the node types in this file implement it.
//
// Expression trees are freshly owned: contract copies share no nodes with
// their source, and rewriters return new trees instead of mutating in
// place. Structural sharing of unchanged subtrees inside one rewrite
// result is allowed.
type Expression interface {
	expr() // Sealed - only these types implement it
}

// LiteralKind distinguishes literal payloads.
type LiteralKind string

const (
	LiteralString LiteralKind = "string"
	LiteralInt    LiteralKind = "int"
	LiteralBool   LiteralKind = "bool"
	LiteralNull   LiteralKind = "null"
)

// Literal is a constant value. The payload is carried as text; contracts
// compare and render it, they never evaluate it.
type Literal struct {
	Kind  LiteralKind `json:"kind"`
	Value string      `json:"value"`
}

func (*Literal) expr() {}

// ParamExpr references a formal parameter of a routine.
type ParamExpr struct {
	Routine RoutineRef `json:"routine"`
	Name    string     `json:"name"`
}

func (*ParamExpr) expr() {}

// LocalExpr references a local (including contract "old" captures) of a
// routine.
type LocalExpr struct {
	Routine RoutineRef `json:"routine"`
	Name    string     `json:"name"`
}

func (*LocalExpr) expr() {}

// FieldExpr reads a field of a target expression (nil target for statics).
type FieldExpr struct {
	Target        Expression `json:"target,omitempty"`
	DeclaringType TypeRef    `json:"declaring_type"`
	Field         string     `json:"field"`
}

func (*FieldExpr) expr() {}

// CallExpr invokes a routine. Virtual marks dynamically dispatched calls;
// contract code rewritten against an abstract/interface target must be
// dispatched polymorphically even when the original call was statically
// bound.
type CallExpr struct {
	Target  RoutineRef   `json:"target"`
	Recv    Expression   `json:"recv,omitempty"`
	Args    []Expression `json:"args,omitempty"`
	Virtual bool         `json:"virtual,omitempty"`
}

func (*CallExpr) expr() {}

// BinaryOp is a binary operator symbol ("==", "!=", "<", "&&", ...).
type BinaryOp string

// BinaryExpr applies a binary operator.
type BinaryExpr struct {
	Op    BinaryOp   `json:"op"`
	Left  Expression `json:"left"`
	Right Expression `json:"right"`
}

func (*BinaryExpr) expr() {}

// UnaryOp is a unary operator symbol ("!", "-").
type UnaryOp string

// UnaryExpr applies a unary operator.
type UnaryExpr struct {
	Op      UnaryOp    `json:"op"`
	Operand Expression `json:"operand"`
}

func (*UnaryExpr) expr() {}

// OldExpr captures the operand's value on routine entry; only meaningful
// inside postconditions.
type OldExpr struct {
	Operand Expression `json:"operand"`
}

func (*OldExpr) expr() {}

// ResultExpr references the routine's return value; only meaningful
// inside postconditions.
type ResultExpr struct {
	Type TypeRef `json:"type,omitempty"`
}

func (*ResultExpr) expr() {}

// CopyExpr deep-copies an expression tree. The result shares no nodes
// with the source. nil copies to nil.
func CopyExpr(e Expression) Expression {
	switch n := e.(type) {
	case nil:
		return nil
	case *Literal:
		c := *n
		return &c
	case *ParamExpr:
		c := *n
		return &c
	case *LocalExpr:
		c := *n
		return &c
	case *FieldExpr:
		return &FieldExpr{
			Target:        CopyExpr(n.Target),
			DeclaringType: n.DeclaringType,
			Field:         n.Field,
		}
	case *CallExpr:
		c := &CallExpr{Target: n.Target, Recv: CopyExpr(n.Recv), Virtual: n.Virtual}
		for _, a := range n.Args {
			c.Args = append(c.Args, CopyExpr(a))
		}
		return c
	case *BinaryExpr:
		return &BinaryExpr{Op: n.Op, Left: CopyExpr(n.Left), Right: CopyExpr(n.Right)}
	case *UnaryExpr:
		return &UnaryExpr{Op: n.Op, Operand: CopyExpr(n.Operand)}
	case *OldExpr:
		return &OldExpr{Operand: CopyExpr(n.Operand)}
	case *ResultExpr:
		c := *n
		return &c
	default:
		// Sealed interface: unreachable unless a new node type is added
		// without extending this switch.
		panic("ir: unknown expression node")
	}
}

// Stmt is a sealed interface over body statements.
type Stmt interface {
	stmt() // Sealed
}

// CallStmt evaluates a call for effect.
type CallStmt struct {
	Call *CallExpr `json:"call"`
}

func (*CallStmt) stmt() {}

// AssignStmt assigns a value to a local.
type AssignStmt struct {
	Local string     `json:"local"`
	Value Expression `json:"value"`
}

func (*AssignStmt) stmt() {}

// ReturnStmt returns from the routine, with an optional value.
type ReturnStmt struct {
	Value Expression `json:"value,omitempty"`
}

func (*ReturnStmt) stmt() {}

// Body is a routine's decompiled tree body: a flat statement sequence.
// Contract-marker calls, when present, form a prefix of the sequence.
type Body struct {
	Stmts []Stmt `json:"stmts"`
}

// CopyBody deep-copies a body. nil copies to nil.
func CopyBody(b *Body) *Body {
	if b == nil {
		return nil
	}
	c := &Body{Stmts: make([]Stmt, 0, len(b.Stmts))}
	for _, s := range b.Stmts {
		c.Stmts = append(c.Stmts, copyStmt(s))
	}
	return c
}

func copyStmt(s Stmt) Stmt {
	switch n := s.(type) {
	case *CallStmt:
		return &CallStmt{Call: CopyExpr(n.Call).(*CallExpr)}
	case *AssignStmt:
		return &AssignStmt{Local: n.Local, Value: CopyExpr(n.Value)}
	case *ReturnStmt:
		return &ReturnStmt{Value: CopyExpr(n.Value)}
	default:
		panic("ir: unknown statement node")
	}
}
