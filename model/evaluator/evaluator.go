// Package evaluator implements the expression contract consumed by the
// pre-facilitation checks and the approval criteria: boolean/string
// expressions evaluated against an ambiance-derived state map.  Malformed
// expressions and unresolved references fail with an *EvaluationError so
// that callers can fail closed.
package evaluator

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"strconv"
	"strings"
)

// EvaluationError indicates a malformed expression or an unresolved
// reference.  It is always fatal for the evaluated condition.
type EvaluationError struct {
	Expression string
	Reason     string
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("failed to evaluate %q: %s", e.Expression, e.Reason)
}

func evalError(expr, format string, args ...interface{}) error {
	return &EvaluationError{Expression: expr, Reason: fmt.Sprintf(format, args...)}
}

// Evaluator evaluates expressions against a state map.
type Evaluator interface {
	Evaluate(expr string, state map[string]interface{}) (interface{}, error)
	EvaluateBool(expr string, state map[string]interface{}) (bool, error)
}

// Service is the default go/parser based evaluator.
type Service struct{}

// New creates a new expression evaluator.
func New() *Service {
	return &Service{}
}

var singleQuoted = regexp.MustCompile(`'([^']*)'`)

// Evaluate evaluates an expression string with variables from the state map.
// The optional ${...} wrapper is stripped before parsing.
func (s *Service) Evaluate(expr string, state map[string]interface{}) (interface{}, error) {
	trimmed := strings.TrimSpace(expr)
	if strings.HasPrefix(trimmed, "${") && strings.HasSuffix(trimmed, "}") {
		trimmed = trimmed[2 : len(trimmed)-1]
	}
	if trimmed == "" {
		return nil, evalError(expr, "empty expression")
	}
	// Convert single-quoted literals to double-quoted for Go parsing.
	trimmed = singleQuoted.ReplaceAllString(trimmed, `"$1"`)

	parsed, err := parser.ParseExpr(trimmed)
	if err != nil {
		return nil, evalError(expr, "%v", err)
	}
	value, err := evaluateAst(parsed, state)
	if err != nil {
		return nil, evalError(expr, "%v", unwrapReason(err))
	}
	return value, nil
}

// EvaluateBool evaluates the expression and coerces the result to bool.
func (s *Service) EvaluateBool(expr string, state map[string]interface{}) (bool, error) {
	value, err := s.Evaluate(expr, state)
	if err != nil {
		return false, err
	}
	switch actual := value.(type) {
	case bool:
		return actual, nil
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(actual))
		if err != nil {
			return false, evalError(expr, "expected boolean, got %q", actual)
		}
		return parsed, nil
	case int:
		return actual != 0, nil
	case float64:
		return actual != 0, nil
	default:
		return false, evalError(expr, "expected boolean, got %T", value)
	}
}

func unwrapReason(err error) string {
	if evaluation, ok := err.(*EvaluationError); ok {
		return evaluation.Reason
	}
	return err.Error()
}

func evaluateAst(node ast.Expr, state map[string]interface{}) (interface{}, error) {
	switch n := node.(type) {
	case *ast.BasicLit:
		return evaluateLiteral(n)
	case *ast.Ident:
		return resolveIdent(n.Name, state)
	case *ast.SelectorExpr:
		holder, err := evaluateAst(n.X, state)
		if err != nil {
			return nil, err
		}
		return resolveProperty(holder, n.Sel.Name)
	case *ast.IndexExpr:
		holder, err := evaluateAst(n.X, state)
		if err != nil {
			return nil, err
		}
		index, err := evaluateAst(n.Index, state)
		if err != nil {
			return nil, err
		}
		return resolveIndex(holder, index)
	case *ast.ParenExpr:
		return evaluateAst(n.X, state)
	case *ast.UnaryExpr:
		return evaluateUnary(n, state)
	case *ast.BinaryExpr:
		return evaluateBinary(n, state)
	case *ast.CallExpr:
		return evaluateCall(n, state)
	default:
		return nil, fmt.Errorf("unsupported expression node %T", node)
	}
}

func evaluateLiteral(lit *ast.BasicLit) (interface{}, error) {
	switch lit.Kind {
	case token.INT:
		value, err := strconv.Atoi(lit.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid integer literal %s", lit.Value)
		}
		return value, nil
	case token.FLOAT:
		value, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float literal %s", lit.Value)
		}
		return value, nil
	case token.STRING:
		value, err := strconv.Unquote(lit.Value)
		if err != nil {
			return nil, fmt.Errorf("invalid string literal %s", lit.Value)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported literal kind %s", lit.Kind)
	}
}

func resolveIdent(name string, state map[string]interface{}) (interface{}, error) {
	switch name {
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "nil", "null":
		return nil, nil
	}
	value, ok := state[name]
	if !ok {
		return nil, fmt.Errorf("unresolved reference %q", name)
	}
	return value, nil
}

func resolveProperty(holder interface{}, name string) (interface{}, error) {
	asMap, ok := holder.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("cannot access property %q on %T", name, holder)
	}
	value, ok := asMap[name]
	if !ok {
		return nil, fmt.Errorf("unresolved reference %q", name)
	}
	return value, nil
}

func resolveIndex(holder, index interface{}) (interface{}, error) {
	switch actual := holder.(type) {
	case []interface{}:
		i, ok := index.(int)
		if !ok {
			return nil, fmt.Errorf("non-integer index %v", index)
		}
		if i < 0 || i >= len(actual) {
			return nil, fmt.Errorf("index %d out of range", i)
		}
		return actual[i], nil
	case map[string]interface{}:
		key, ok := index.(string)
		if !ok {
			return nil, fmt.Errorf("non-string key %v", index)
		}
		value, ok := actual[key]
		if !ok {
			return nil, fmt.Errorf("unresolved reference %q", key)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("cannot index %T", holder)
	}
}

func evaluateUnary(node *ast.UnaryExpr, state map[string]interface{}) (interface{}, error) {
	operand, err := evaluateAst(node.X, state)
	if err != nil {
		return nil, err
	}
	switch node.Op {
	case token.NOT:
		value, ok := operand.(bool)
		if !ok {
			return nil, fmt.Errorf("operator ! expects boolean, got %T", operand)
		}
		return !value, nil
	case token.SUB:
		switch actual := operand.(type) {
		case int:
			return -actual, nil
		case float64:
			return -actual, nil
		}
		return nil, fmt.Errorf("operator - expects number, got %T", operand)
	default:
		return nil, fmt.Errorf("unsupported unary operator %s", node.Op)
	}
}

func evaluateCall(node *ast.CallExpr, state map[string]interface{}) (interface{}, error) {
	ident, ok := node.Fun.(*ast.Ident)
	if !ok || ident.Name != "len" {
		return nil, fmt.Errorf("unsupported function call")
	}
	if len(node.Args) != 1 {
		return nil, fmt.Errorf("len expects a single argument")
	}
	arg, err := evaluateAst(node.Args[0], state)
	if err != nil {
		return nil, err
	}
	switch actual := arg.(type) {
	case string:
		return len(actual), nil
	case []interface{}:
		return len(actual), nil
	case map[string]interface{}:
		return len(actual), nil
	default:
		return nil, fmt.Errorf("len does not apply to %T", arg)
	}
}

func evaluateBinary(node *ast.BinaryExpr, state map[string]interface{}) (interface{}, error) {
	left, err := evaluateAst(node.X, state)
	if err != nil {
		return nil, err
	}
	// Short-circuit logical operators before evaluating the right side.
	switch node.Op {
	case token.LAND, token.LOR:
		leftBool, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s expects boolean, got %T", node.Op, left)
		}
		if node.Op == token.LAND && !leftBool {
			return false, nil
		}
		if node.Op == token.LOR && leftBool {
			return true, nil
		}
		right, err := evaluateAst(node.Y, state)
		if err != nil {
			return nil, err
		}
		rightBool, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s expects boolean, got %T", node.Op, right)
		}
		return rightBool, nil
	}

	right, err := evaluateAst(node.Y, state)
	if err != nil {
		return nil, err
	}

	if leftStr, ok := left.(string); ok {
		rightStr, ok := right.(string)
		if !ok {
			return nil, fmt.Errorf("mismatched operands %T and %T", left, right)
		}
		switch node.Op {
		case token.ADD:
			return leftStr + rightStr, nil
		case token.EQL:
			return leftStr == rightStr, nil
		case token.NEQ:
			return leftStr != rightStr, nil
		default:
			return nil, fmt.Errorf("operator %s does not apply to strings", node.Op)
		}
	}

	if leftBool, ok := left.(bool); ok {
		rightBool, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("mismatched operands %T and %T", left, right)
		}
		switch node.Op {
		case token.EQL:
			return leftBool == rightBool, nil
		case token.NEQ:
			return leftBool != rightBool, nil
		default:
			return nil, fmt.Errorf("operator %s does not apply to booleans", node.Op)
		}
	}

	leftNum, leftOk := asFloat(left)
	rightNum, rightOk := asFloat(right)
	if !leftOk || !rightOk {
		return nil, fmt.Errorf("operator %s does not apply to %T and %T", node.Op, left, right)
	}
	bothInt := isInt(left) && isInt(right)

	switch node.Op {
	case token.ADD:
		return numeric(leftNum+rightNum, bothInt), nil
	case token.SUB:
		return numeric(leftNum-rightNum, bothInt), nil
	case token.MUL:
		return numeric(leftNum*rightNum, bothInt), nil
	case token.QUO:
		if rightNum == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return numeric(leftNum/rightNum, bothInt && int(leftNum)%int(rightNum) == 0), nil
	case token.REM:
		if !bothInt {
			return nil, fmt.Errorf("operator %% expects integers")
		}
		if int(rightNum) == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return int(leftNum) % int(rightNum), nil
	case token.EQL:
		return leftNum == rightNum, nil
	case token.NEQ:
		return leftNum != rightNum, nil
	case token.LSS:
		return leftNum < rightNum, nil
	case token.GTR:
		return leftNum > rightNum, nil
	case token.LEQ:
		return leftNum <= rightNum, nil
	case token.GEQ:
		return leftNum >= rightNum, nil
	default:
		return nil, fmt.Errorf("unsupported operator %s", node.Op)
	}
}

func asFloat(value interface{}) (float64, bool) {
	switch actual := value.(type) {
	case int:
		return float64(actual), true
	case int64:
		return float64(actual), true
	case float32:
		return float64(actual), true
	case float64:
		return actual, true
	}
	return 0, false
}

func isInt(value interface{}) bool {
	switch value.(type) {
	case int, int64:
		return true
	}
	return false
}

func numeric(value float64, asInt bool) interface{} {
	if asInt {
		return int(value)
	}
	return value
}
