package db

import (
	"github.com/quintans/faults"
	"github.com/samterrell/SQLProcessor/dbx"
)

// ParameterEvaluator resolves the value of a named parameter.
// hint is the value proposed by the evaluators that ran before.
// Returning nil means "no value"; a dbx.Null means a typed NULL.
type ParameterEvaluator interface {
	Evaluate(name string, hint interface{}) (interface{}, error)
}

type EvaluatorFunc func(name string, hint interface{}) (interface{}, error)

func (f EvaluatorFunc) Evaluate(name string, hint interface{}) (interface{}, error) {
	return f(name, hint)
}

var _ ParameterEvaluator = (*EvaluatorChain)(nil)

// EvaluatorChain runs its evaluators in insertion order, feeding each one
// the result of the previous. The last result wins.
type EvaluatorChain struct {
	evaluators []ParameterEvaluator
}

func NewEvaluatorChain(evaluators ...ParameterEvaluator) *EvaluatorChain {
	c := &EvaluatorChain{}
	for _, e := range evaluators {
		c.Add(e)
	}
	return c
}

// Add ignores nil evaluators.
func (c *EvaluatorChain) Add(evaluator ParameterEvaluator) {
	if evaluator == nil {
		return
	}
	c.evaluators = append(c.evaluators, evaluator)
}

func (c *EvaluatorChain) Len() int {
	return len(c.evaluators)
}

func (c *EvaluatorChain) Evaluate(name string, hint interface{}) (interface{}, error) {
	value := hint
	for _, e := range c.evaluators {
		v, err := e.Evaluate(name, value)
		if err != nil {
			return nil, faults.Wrap(err)
		}
		value = v
	}
	return value, nil
}

var _ ParameterEvaluator = (*Values)(nil)

// Values holds explicitly assigned parameter values.
// For a name it does not know, it hands back the hint untouched.
type Values struct {
	values map[string]interface{}
}

func NewValues() *Values {
	return &Values{values: map[string]interface{}{}}
}

func (v *Values) Set(name string, value interface{}) {
	v.values[name] = value
}

func (v *Values) SetNull(name string, t dbx.SQLType) {
	v.values[name] = dbx.NullOf(t)
}

// SetNullable sets value, or a typed NULL when value is nil.
func (v *Values) SetNullable(name string, value interface{}, t dbx.SQLType) {
	if isNil(value) {
		v.SetNull(name, t)
		return
	}
	v.values[name] = value
}

func (v *Values) Unset(name string) {
	delete(v.values, name)
}

func (v *Values) Get(name string) (interface{}, bool) {
	value, ok := v.values[name]
	return value, ok
}

func (v *Values) Clear() {
	v.values = map[string]interface{}{}
}

func (v *Values) Evaluate(name string, hint interface{}) (interface{}, error) {
	if value, ok := v.values[name]; ok {
		return value, nil
	}
	return hint, nil
}
