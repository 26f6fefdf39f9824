package db

import (
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
	"github.com/expr-lang/expr/vm"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/quintans/faults"

	"github.com/samterrell/SQLProcessor/dbx"
)

const typeSeparator = ";"

var _ ParameterEvaluator = (*ExpressionEvaluator)(nil)

// ExpressionEvaluator treats the parameter name as an expression over its variables,
// eg |bean.State| or |upper(name)|.
//
// A name may end with ;TYPE (|bean.State;CHAR|) to choose the SQL type of the NULL
// bound when the expression yields nil. Without it the NULL is of type OTHER.
// An expression reading a variable that was never Set has no value.
type ExpressionEvaluator struct {
	mu       sync.RWMutex
	vars     map[string]interface{}
	programs *lru.Cache[string, *compiled]
}

type compiled struct {
	program *vm.Program
	// variables the expression reads
	names []string
}

func NewExpressionEvaluator() *ExpressionEvaluator {
	programs, _ := lru.New[string, *compiled](DefaultTemplateCacheSize)
	return &ExpressionEvaluator{
		vars:     map[string]interface{}{},
		programs: programs,
	}
}

func (e *ExpressionEvaluator) Set(name string, value interface{}) {
	e.mu.Lock()
	e.vars[name] = value
	e.mu.Unlock()
}

func (e *ExpressionEvaluator) Get(name string) (interface{}, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.vars[name]
	return v, ok
}

func (e *ExpressionEvaluator) Evaluate(name string, hint interface{}) (interface{}, error) {
	if hint != nil && !dbx.IsNull(hint) {
		return hint, nil
	}

	code, nullType := splitType(name)
	c, err := e.compile(code)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	env := make(map[string]interface{}, len(e.vars))
	for k, v := range e.vars {
		env[k] = v
	}
	e.mu.RUnlock()

	for _, n := range c.names {
		if _, ok := env[n]; !ok {
			return hint, nil
		}
	}

	out, err := expr.Run(c.program, env)
	if err != nil {
		return nil, faults.Errorf("evaluating |%s|: %w", name, err)
	}
	if isNil(out) {
		return dbx.NullOf(nullType), nil
	}
	return out, nil
}

func (e *ExpressionEvaluator) compile(code string) (*compiled, error) {
	if c, ok := e.programs.Get(code); ok {
		return c, nil
	}
	tree, err := parser.Parse(code)
	if err != nil {
		return nil, faults.Errorf("compiling |%s|: %w", code, err)
	}
	p, err := expr.Compile(code, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, faults.Errorf("compiling |%s|: %w", code, err)
	}

	v := &identifiers{seen: map[string]bool{}, callees: map[string]bool{}, declared: map[string]bool{}}
	ast.Walk(&tree.Node, v)
	c := &compiled{program: p}
	for _, n := range v.order {
		if !v.callees[n] && !v.declared[n] {
			c.names = append(c.names, n)
		}
	}
	e.programs.Add(code, c)
	return c, nil
}

// identifiers collects the free variables of an expression.
// Function names and let bindings are not variables.
type identifiers struct {
	order    []string
	seen     map[string]bool
	callees  map[string]bool
	declared map[string]bool
}

func (v *identifiers) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !v.seen[n.Value] {
			v.seen[n.Value] = true
			v.order = append(v.order, n.Value)
		}
	case *ast.CallNode:
		if id, ok := n.Callee.(*ast.IdentifierNode); ok {
			v.callees[id.Value] = true
		}
	case *ast.VariableDeclaratorNode:
		v.declared[n.Name] = true
	}
}

// splitType separates a trailing ;TYPE from the expression.
func splitType(name string) (string, dbx.SQLType) {
	i := strings.LastIndex(name, typeSeparator)
	if i < 0 {
		return name, dbx.Other
	}
	if t, ok := dbx.ParseSQLType(name[i+1:]); ok {
		return name[:i], t
	}
	return name, dbx.Other
}
