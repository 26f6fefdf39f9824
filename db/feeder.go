package db

// Feeder decides whether another execution pass runs, preparing its state.
// It is asked before every pass, including the first.
type Feeder interface {
	Next() (bool, error)
}

type FeederFunc func() (bool, error)

func (f FeederFunc) Next() (bool, error) {
	return f()
}

type onceFeeder struct {
	done bool
}

func (o *onceFeeder) Next() (bool, error) {
	if o.done {
		return false, nil
	}
	o.done = true
	return true, nil
}

// Once runs a single pass.
func Once() Feeder {
	return &onceFeeder{}
}

// Repeat runs n passes.
func Repeat(n int) Feeder {
	i := 0
	return FeederFunc(func() (bool, error) {
		if i >= n {
			return false, nil
		}
		i++
		return true, nil
	})
}

// Each runs one pass per bean, making it the current bean of evaluator.
// No beans, no passes.
func Each(evaluator *BeanEvaluator, beans ...interface{}) Feeder {
	i := 0
	return FeederFunc(func() (bool, error) {
		if i >= len(beans) {
			return false, nil
		}
		evaluator.SetBean(beans[i])
		i++
		return true, nil
	})
}

// Iterate runs one pass per value, binding it to the variable name of evaluator.
func Iterate(evaluator *ExpressionEvaluator, name string, values ...interface{}) Feeder {
	i := 0
	return FeederFunc(func() (bool, error) {
		if i >= len(values) {
			return false, nil
		}
		evaluator.Set(name, values[i])
		i++
		return true, nil
	})
}
