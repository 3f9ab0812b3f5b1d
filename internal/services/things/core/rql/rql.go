// Package rql compiles condition expressions and evaluates them against
// JSON documents.
//
// Conditions use the AIP-160 filter grammar. Field paths are written either
// dotted (attributes.location) or slash separated (attributes/location):
//
//	attributes.location = "kitchen" AND features.lamp.properties.on = true
//	NOT attributes.floor < 2
//	attributes.tags:"outdoor"
//	attributes.serial:*
//	exists(features/lamp)
package rql

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/match"
	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// ErrConditionInvalid indicates a condition that cannot be compiled.
var ErrConditionInvalid = errors.New("condition is invalid")

// Predicate is a compiled condition.
type Predicate struct {
	source string
	root   node
}

// Parse compiles a condition expression.
func Parse(condition string) (Predicate, error) {
	condition = strings.TrimSpace(condition)
	if condition == "" {
		return Predicate{}, fmt.Errorf("%w: empty condition", ErrConditionInvalid)
	}
	var parser filtering.Parser
	parser.Init(condition)
	parsed, err := parser.Parse()
	if err != nil {
		return Predicate{}, fmt.Errorf("%w: %v", ErrConditionInvalid, err)
	}
	root, err := compile(parsed.GetExpr())
	if err != nil {
		return Predicate{}, fmt.Errorf("%w: %v", ErrConditionInvalid, err)
	}
	return Predicate{source: condition, root: root}, nil
}

// String returns the condition source.
func (p Predicate) String() string {
	return p.source
}

// Matches evaluates the predicate against a JSON document.
func (p Predicate) Matches(doc []byte) bool {
	if p.root == nil {
		return false
	}
	return p.root.eval(gjson.ParseBytes(doc))
}

type node interface {
	eval(doc gjson.Result) bool
}

type andNode struct{ left, right node }

func (n andNode) eval(doc gjson.Result) bool { return n.left.eval(doc) && n.right.eval(doc) }

type orNode struct{ left, right node }

func (n orNode) eval(doc gjson.Result) bool { return n.left.eval(doc) || n.right.eval(doc) }

type notNode struct{ inner node }

func (n notNode) eval(doc gjson.Result) bool { return !n.inner.eval(doc) }

type existsNode struct{ path string }

func (n existsNode) eval(doc gjson.Result) bool { return doc.Get(n.path).Exists() }

type compareNode struct {
	path  string
	op    string
	value constant
}

func (n compareNode) eval(doc gjson.Result) bool {
	field := doc.Get(n.path)
	switch n.op {
	case filtering.FunctionEquals:
		return field.Exists() && n.value.equals(field)
	case filtering.FunctionNotEquals:
		return !field.Exists() || !n.value.equals(field)
	case filtering.FunctionHas:
		return n.has(field)
	default:
		cmp, ok := n.value.compare(field)
		if !ok {
			return false
		}
		switch n.op {
		case filtering.FunctionLessThan:
			return cmp < 0
		case filtering.FunctionLessEquals:
			return cmp <= 0
		case filtering.FunctionGreaterThan:
			return cmp > 0
		case filtering.FunctionGreaterEquals:
			return cmp >= 0
		}
		return false
	}
}

func (n compareNode) has(field gjson.Result) bool {
	if !field.Exists() {
		return false
	}
	if n.value.kind == kindString && n.value.str == "*" {
		return true
	}
	switch {
	case field.IsArray():
		for _, item := range field.Array() {
			if n.value.equals(item) {
				return true
			}
		}
		return false
	case field.IsObject():
		return n.value.kind == kindString && field.Get(escapeSegment(n.value.str)).Exists()
	default:
		return n.value.equals(field)
	}
}

type constantKind int

const (
	kindString constantKind = iota
	kindNumber
	kindBool
	kindNull
)

type constant struct {
	kind constantKind
	str  string
	num  float64
	b    bool
}

func (c constant) equals(field gjson.Result) bool {
	switch c.kind {
	case kindString:
		if field.Type != gjson.String {
			return false
		}
		if strings.Contains(c.str, "*") {
			return match.Match(field.Str, c.str)
		}
		return field.Str == c.str
	case kindNumber:
		return field.Type == gjson.Number && field.Num == c.num
	case kindBool:
		return (field.Type == gjson.True && c.b) || (field.Type == gjson.False && !c.b)
	case kindNull:
		return field.Type == gjson.Null
	}
	return false
}

// compare orders field relative to c. ok is false for incomparable types.
func (c constant) compare(field gjson.Result) (int, bool) {
	switch c.kind {
	case kindNumber:
		if field.Type != gjson.Number {
			return 0, false
		}
		switch {
		case field.Num < c.num:
			return -1, true
		case field.Num > c.num:
			return 1, true
		}
		return 0, true
	case kindString:
		if field.Type != gjson.String {
			return 0, false
		}
		return strings.Compare(field.Str, c.str), true
	}
	return 0, false
}

func compile(e *expr.Expr) (node, error) {
	call := e.GetCallExpr()
	if call == nil {
		return nil, fmt.Errorf("expected a comparison, got %s", describe(e))
	}
	switch call.GetFunction() {
	case filtering.FunctionAnd, filtering.FunctionFuzzyAnd, filtering.FunctionOr:
		if len(call.GetArgs()) != 2 {
			return nil, fmt.Errorf("%s requires 2 arguments", call.GetFunction())
		}
		left, err := compile(call.GetArgs()[0])
		if err != nil {
			return nil, err
		}
		right, err := compile(call.GetArgs()[1])
		if err != nil {
			return nil, err
		}
		if call.GetFunction() == filtering.FunctionOr {
			return orNode{left: left, right: right}, nil
		}
		return andNode{left: left, right: right}, nil
	case filtering.FunctionNot:
		if len(call.GetArgs()) != 1 {
			return nil, errors.New("NOT requires 1 argument")
		}
		inner, err := compile(call.GetArgs()[0])
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	case "exists":
		if len(call.GetArgs()) != 1 {
			return nil, errors.New("exists requires 1 argument")
		}
		path, err := fieldPath(call.GetArgs()[0])
		if err != nil {
			return nil, err
		}
		return existsNode{path: path}, nil
	case filtering.FunctionEquals, filtering.FunctionNotEquals, filtering.FunctionHas,
		filtering.FunctionLessThan, filtering.FunctionLessEquals,
		filtering.FunctionGreaterThan, filtering.FunctionGreaterEquals:
		if len(call.GetArgs()) != 2 {
			return nil, fmt.Errorf("%s requires 2 arguments", call.GetFunction())
		}
		path, err := fieldPath(call.GetArgs()[0])
		if err != nil {
			return nil, err
		}
		value, err := constantValue(call.GetArgs()[1])
		if err != nil {
			return nil, err
		}
		switch call.GetFunction() {
		case filtering.FunctionLessThan, filtering.FunctionLessEquals,
			filtering.FunctionGreaterThan, filtering.FunctionGreaterEquals:
			if value.kind != kindNumber && value.kind != kindString {
				return nil, fmt.Errorf("%s requires a number or string", call.GetFunction())
			}
		}
		return compareNode{path: path, op: call.GetFunction(), value: value}, nil
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.GetFunction())
	}
}

// fieldPath converts a member or identifier expression into a gjson path.
func fieldPath(e *expr.Expr) (string, error) {
	var segments []string
	if err := collectSegments(e, &segments); err != nil {
		return "", err
	}
	for i, seg := range segments {
		segments[i] = escapeSegment(seg)
	}
	return strings.Join(segments, "."), nil
}

func collectSegments(e *expr.Expr, out *[]string) error {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_IdentExpr:
		for _, seg := range strings.Split(kind.IdentExpr.GetName(), "/") {
			if seg != "" {
				*out = append(*out, seg)
			}
		}
		if len(*out) == 0 {
			return errors.New("empty field path")
		}
		return nil
	case *expr.Expr_SelectExpr:
		if err := collectSegments(kind.SelectExpr.GetOperand(), out); err != nil {
			return err
		}
		*out = append(*out, kind.SelectExpr.GetField())
		return nil
	default:
		return fmt.Errorf("expected a field path, got %s", describe(e))
	}
}

func constantValue(e *expr.Expr) (constant, error) {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_ConstExpr:
		switch c := kind.ConstExpr.GetConstantKind().(type) {
		case *expr.Constant_StringValue:
			return constant{kind: kindString, str: c.StringValue}, nil
		case *expr.Constant_Int64Value:
			return constant{kind: kindNumber, num: float64(c.Int64Value)}, nil
		case *expr.Constant_Uint64Value:
			return constant{kind: kindNumber, num: float64(c.Uint64Value)}, nil
		case *expr.Constant_DoubleValue:
			return constant{kind: kindNumber, num: c.DoubleValue}, nil
		case *expr.Constant_BoolValue:
			return constant{kind: kindBool, b: c.BoolValue}, nil
		default:
			return constant{}, fmt.Errorf("unsupported constant type: %T", c)
		}
	case *expr.Expr_IdentExpr:
		switch name := kind.IdentExpr.GetName(); name {
		case "true", "false":
			return constant{kind: kindBool, b: name == "true"}, nil
		case "null":
			return constant{kind: kindNull}, nil
		default:
			return constant{kind: kindString, str: name}, nil
		}
	default:
		return constant{}, fmt.Errorf("expected a constant, got %s", describe(e))
	}
}

func escapeSegment(seg string) string {
	var b strings.Builder
	for _, r := range seg {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func describe(e *expr.Expr) string {
	switch kind := e.GetExprKind().(type) {
	case *expr.Expr_CallExpr:
		return "function " + kind.CallExpr.GetFunction()
	case *expr.Expr_IdentExpr:
		return "identifier " + kind.IdentExpr.GetName()
	case *expr.Expr_SelectExpr:
		return "field " + kind.SelectExpr.GetField()
	case *expr.Expr_ConstExpr:
		return "constant"
	default:
		return fmt.Sprintf("%T", kind)
	}
}
