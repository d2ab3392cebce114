package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSON encoding of expression and statement trees.
//
// Expression and Stmt are interfaces, so decoding needs a discriminator.
// Every node marshals with a "node" tag; UnmarshalExpr / UnmarshalStmt
// dispatch on it. This is the only serialization used for the contract
// catalog; symbol keys use the canonical rendering in key.go, never JSON.

const (
	nodeLiteral = "literal"
	nodeParam   = "param"
	nodeLocal   = "local"
	nodeField   = "field"
	nodeCall    = "call"
	nodeBinary  = "binary"
	nodeUnary   = "unary"
	nodeOld     = "old"
	nodeResult  = "result"

	stmtCall   = "call"
	stmtAssign = "assign"
	stmtReturn = "return"
)

func tagged(kind string, v any) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(`{"node":`)
	kindBytes, _ := json.Marshal(kind)
	buf.Write(kindBytes)
	if !bytes.Equal(body, []byte("{}")) {
		buf.WriteByte(',')
		buf.Write(body[1 : len(body)-1])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Plain aliases sidestep the nodes' own MarshalJSON.
type (
	literalAlias Literal
	paramAlias   ParamExpr
	localAlias   LocalExpr
	resultAlias  ResultExpr
)

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *Literal) MarshalJSON() ([]byte, error) { return tagged(nodeLiteral, (*literalAlias)(n)) }

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *ParamExpr) MarshalJSON() ([]byte, error) { return tagged(nodeParam, (*paramAlias)(n)) }

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *LocalExpr) MarshalJSON() ([]byte, error) { return tagged(nodeLocal, (*localAlias)(n)) }

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *ResultExpr) MarshalJSON() ([]byte, error) { return tagged(nodeResult, (*resultAlias)(n)) }

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *FieldExpr) MarshalJSON() ([]byte, error) {
	return tagged(nodeField, struct {
		Target        Expression `json:"target,omitempty"`
		DeclaringType TypeRef    `json:"declaring_type"`
		Field         string     `json:"field"`
	}{n.Target, n.DeclaringType, n.Field})
}

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *CallExpr) MarshalJSON() ([]byte, error) {
	return tagged(nodeCall, struct {
		Target  RoutineRef   `json:"target"`
		Recv    Expression   `json:"recv,omitempty"`
		Args    []Expression `json:"args,omitempty"`
		Virtual bool         `json:"virtual,omitempty"`
	}{n.Target, n.Recv, n.Args, n.Virtual})
}

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *BinaryExpr) MarshalJSON() ([]byte, error) {
	return tagged(nodeBinary, struct {
		Op    BinaryOp   `json:"op"`
		Left  Expression `json:"left"`
		Right Expression `json:"right"`
	}{n.Op, n.Left, n.Right})
}

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *UnaryExpr) MarshalJSON() ([]byte, error) {
	return tagged(nodeUnary, struct {
		Op      UnaryOp    `json:"op"`
		Operand Expression `json:"operand"`
	}{n.Op, n.Operand})
}

// MarshalJSON implements json.Marshaler with a "node" discriminator.
func (n *OldExpr) MarshalJSON() ([]byte, error) {
	return tagged(nodeOld, struct {
		Operand Expression `json:"operand"`
	}{n.Operand})
}

// UnmarshalExpr decodes an expression tree from its tagged encoding.
// A JSON null decodes to a nil Expression.
func UnmarshalExpr(data []byte) (Expression, error) {
	if len(data) == 0 || bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	var head struct {
		Node string `json:"node"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("expression envelope: %w", err)
	}
	switch head.Node {
	case nodeLiteral:
		var n literalAlias
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return (*Literal)(&n), nil
	case nodeParam:
		var n paramAlias
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return (*ParamExpr)(&n), nil
	case nodeLocal:
		var n localAlias
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return (*LocalExpr)(&n), nil
	case nodeResult:
		var n resultAlias
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		return (*ResultExpr)(&n), nil
	case nodeField:
		var raw struct {
			Target        json.RawMessage `json:"target"`
			DeclaringType TypeRef         `json:"declaring_type"`
			Field         string          `json:"field"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		target, err := UnmarshalExpr(raw.Target)
		if err != nil {
			return nil, err
		}
		return &FieldExpr{Target: target, DeclaringType: raw.DeclaringType, Field: raw.Field}, nil
	case nodeCall:
		var raw struct {
			Target  RoutineRef        `json:"target"`
			Recv    json.RawMessage   `json:"recv"`
			Args    []json.RawMessage `json:"args"`
			Virtual bool              `json:"virtual"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		recv, err := UnmarshalExpr(raw.Recv)
		if err != nil {
			return nil, err
		}
		call := &CallExpr{Target: raw.Target, Recv: recv, Virtual: raw.Virtual}
		for i, a := range raw.Args {
			arg, err := UnmarshalExpr(a)
			if err != nil {
				return nil, fmt.Errorf("call arg %d: %w", i, err)
			}
			call.Args = append(call.Args, arg)
		}
		return call, nil
	case nodeBinary:
		var raw struct {
			Op    BinaryOp        `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		left, err := UnmarshalExpr(raw.Left)
		if err != nil {
			return nil, err
		}
		right, err := UnmarshalExpr(raw.Right)
		if err != nil {
			return nil, err
		}
		return &BinaryExpr{Op: raw.Op, Left: left, Right: right}, nil
	case nodeUnary:
		var raw struct {
			Op      UnaryOp         `json:"op"`
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		operand, err := UnmarshalExpr(raw.Operand)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: raw.Op, Operand: operand}, nil
	case nodeOld:
		var raw struct {
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		operand, err := UnmarshalExpr(raw.Operand)
		if err != nil {
			return nil, err
		}
		return &OldExpr{Operand: operand}, nil
	default:
		return nil, fmt.Errorf("unknown expression node %q", head.Node)
	}
}

// UnmarshalJSON implements json.Unmarshaler via UnmarshalExpr dispatch.
func (p *Precondition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Condition     json.RawMessage `json:"condition"`
		ExceptionType *TypeRef        `json:"exception_type"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cond, err := UnmarshalExpr(raw.Condition)
	if err != nil {
		return fmt.Errorf("precondition: %w", err)
	}
	p.Condition = cond
	p.ExceptionType = raw.ExceptionType
	return nil
}

// UnmarshalJSON implements json.Unmarshaler via UnmarshalExpr dispatch.
func (p *Postcondition) UnmarshalJSON(data []byte) error {
	var raw struct {
		Condition json.RawMessage `json:"condition"`
		Captures  []json.RawMessage `json:"captures"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cond, err := UnmarshalExpr(raw.Condition)
	if err != nil {
		return fmt.Errorf("postcondition: %w", err)
	}
	p.Condition = cond
	p.Captures = nil
	for i, c := range raw.Captures {
		var capture OldCapture
		if err := json.Unmarshal(c, &capture); err != nil {
			return fmt.Errorf("postcondition capture %d: %w", i, err)
		}
		p.Captures = append(p.Captures, capture)
	}
	return nil
}

// UnmarshalJSON implements json.Unmarshaler via UnmarshalExpr dispatch.
func (c *OldCapture) UnmarshalJSON(data []byte) error {
	var raw struct {
		Local string          `json:"local"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	value, err := UnmarshalExpr(raw.Value)
	if err != nil {
		return fmt.Errorf("old capture %q: %w", raw.Local, err)
	}
	c.Local = raw.Local
	c.Value = value
	return nil
}

// UnmarshalJSON implements json.Unmarshaler via UnmarshalExpr dispatch.
func (inv *Invariant) UnmarshalJSON(data []byte) error {
	var raw struct {
		Condition json.RawMessage `json:"condition"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	cond, err := UnmarshalExpr(raw.Condition)
	if err != nil {
		return fmt.Errorf("invariant: %w", err)
	}
	inv.Condition = cond
	return nil
}

// Tagged statement encodings mirror the expression envelope.

// MarshalJSON implements json.Marshaler with a "stmt" discriminator.
func (s *CallStmt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stmt string    `json:"stmt"`
		Call *CallExpr `json:"call"`
	}{stmtCall, s.Call})
}

// MarshalJSON implements json.Marshaler with a "stmt" discriminator.
func (s *AssignStmt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stmt  string     `json:"stmt"`
		Local string     `json:"local"`
		Value Expression `json:"value"`
	}{stmtAssign, s.Local, s.Value})
}

// MarshalJSON implements json.Marshaler with a "stmt" discriminator.
func (s *ReturnStmt) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stmt  string     `json:"stmt"`
		Value Expression `json:"value,omitempty"`
	}{stmtReturn, s.Value})
}

// UnmarshalStmt decodes a statement from its tagged encoding.
func UnmarshalStmt(data []byte) (Stmt, error) {
	var head struct {
		Stmt string `json:"stmt"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("statement envelope: %w", err)
	}
	switch head.Stmt {
	case stmtCall:
		var raw struct {
			Call json.RawMessage `json:"call"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		call, err := UnmarshalExpr(raw.Call)
		if err != nil {
			return nil, err
		}
		callExpr, ok := call.(*CallExpr)
		if !ok {
			return nil, fmt.Errorf("call statement body is not a call")
		}
		return &CallStmt{Call: callExpr}, nil
	case stmtAssign:
		var raw struct {
			Local string          `json:"local"`
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		value, err := UnmarshalExpr(raw.Value)
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Local: raw.Local, Value: value}, nil
	case stmtReturn:
		var raw struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		value, err := UnmarshalExpr(raw.Value)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: value}, nil
	default:
		return nil, fmt.Errorf("unknown statement kind %q", head.Stmt)
	}
}

// UnmarshalJSON implements json.Unmarshaler via UnmarshalStmt dispatch.
func (b *Body) UnmarshalJSON(data []byte) error {
	var raw struct {
		Stmts []json.RawMessage `json:"stmts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b.Stmts = nil
	for i, s := range raw.Stmts {
		stmt, err := UnmarshalStmt(s)
		if err != nil {
			return fmt.Errorf("stmt %d: %w", i, err)
		}
		b.Stmts = append(b.Stmts, stmt)
	}
	return nil
}
