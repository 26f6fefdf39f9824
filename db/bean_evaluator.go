package db

import (
	"reflect"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx/reflectx"
	"github.com/quintans/faults"
	"github.com/samterrell/SQLProcessor/dbx"
)

const beanTag = "db"

// PropertyLookup reads a named property from a bean.
// typ is the declared type of the property, used to pick a default null type.
type PropertyLookup interface {
	Lookup(bean interface{}, name string) (value interface{}, typ reflect.Type, found bool, err error)
}

var _ PropertyLookup = (*ReflectLookup)(nil)

// ReflectLookup resolves, in order: map keys, getter methods (GetName or Name)
// and struct fields mapped with the db tag, where dotted paths reach nested structs.
type ReflectLookup struct {
	mapper *reflectx.Mapper
}

func NewReflectLookup() *ReflectLookup {
	return &ReflectLookup{mapper: reflectx.NewMapperFunc(beanTag, strings.ToLower)}
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

func (r *ReflectLookup) Lookup(bean interface{}, name string) (interface{}, reflect.Type, bool, error) {
	v := reflect.ValueOf(bean)
	if !v.IsValid() {
		return nil, nil, false, nil
	}

	if v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String {
		e := v.MapIndex(reflect.ValueOf(name).Convert(v.Type().Key()))
		if !e.IsValid() {
			// rows read from databases that fold column names to upper case
			e = v.MapIndex(reflect.ValueOf(dbx.FromCamelCase(name)).Convert(v.Type().Key()))
		}
		if !e.IsValid() {
			return nil, nil, false, nil
		}
		return valueOf(e), v.Type().Elem(), true, nil
	}

	camel := dbx.ToCamelCase(name)
	for _, m := range []string{"Get" + camel, camel} {
		method := v.MethodByName(m)
		if !method.IsValid() {
			continue
		}
		mt := method.Type()
		if mt.NumIn() != 0 || mt.NumOut() == 0 || mt.NumOut() > 2 {
			continue
		}
		if mt.NumOut() == 2 && !mt.Out(1).Implements(errorType) {
			continue
		}
		out := method.Call(nil)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, nil, true, faults.Errorf("calling %s on %T: %w", m, bean, out[1].Interface().(error))
		}
		return valueOf(out[0]), mt.Out(0), true, nil
	}

	s := reflect.Indirect(v)
	if s.Kind() != reflect.Struct {
		return nil, nil, false, nil
	}
	tm := r.mapper.TypeMap(s.Type())
	fi := tm.GetByPath(name)
	if fi == nil {
		fi = tm.GetByPath(strings.ToLower(name))
	}
	if fi == nil {
		return nil, nil, false, nil
	}
	f, ok := fieldByIndex(s, fi.Index)
	if !ok {
		return nil, fi.Field.Type, true, nil
	}
	return valueOf(f), fi.Field.Type, true, nil
}

// fieldByIndex walks the index path, stopping at nil pointers.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, bool) {
	for _, i := range index {
		if v.Kind() == reflect.Ptr {
			if v.IsNil() {
				return reflect.Value{}, false
			}
			v = v.Elem()
		}
		v = v.Field(i)
	}
	return v, true
}

func valueOf(v reflect.Value) interface{} {
	if !v.IsValid() || !v.CanInterface() {
		return nil
	}
	i := v.Interface()
	if isNil(i) {
		return nil
	}
	return i
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

var _ ParameterEvaluator = (*BeanEvaluator)(nil)

// BeanEvaluator resolves parameters from the properties of the current bean.
// A value proposed by an earlier evaluator always wins.
// When the property is nil the null type registered for the parameter name is used,
// then the default null type registered for the property's Go type.
type BeanEvaluator struct {
	mu               sync.RWMutex
	bean             interface{}
	lookup           PropertyLookup
	nullTypes        map[string]dbx.SQLType
	defaultNullTypes map[reflect.Type]dbx.SQLType
}

func BeanWithLookup(lookup PropertyLookup) func(*BeanEvaluator) {
	return func(b *BeanEvaluator) {
		b.lookup = lookup
	}
}

func NewBeanEvaluator(options ...func(*BeanEvaluator)) *BeanEvaluator {
	b := &BeanEvaluator{
		lookup:           defaultLookup,
		nullTypes:        map[string]dbx.SQLType{},
		defaultNullTypes: map[reflect.Type]dbx.SQLType{},
	}
	for _, o := range options {
		o(b)
	}
	return b
}

var defaultLookup = NewReflectLookup()

func (b *BeanEvaluator) SetBean(bean interface{}) {
	b.mu.Lock()
	b.bean = bean
	b.mu.Unlock()
}

func (b *BeanEvaluator) Bean() interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bean
}

func (b *BeanEvaluator) SetNullType(t dbx.SQLType, names ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, n := range names {
		b.nullTypes[n] = t
	}
}

// SetDefaultNullType applies to every nil property declared with the type of sample.
// Pass a typed nil pointer, eg (*string)(nil), for pointer properties.
func (b *BeanEvaluator) SetDefaultNullType(sample interface{}, t dbx.SQLType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.defaultNullTypes[reflect.TypeOf(sample)] = t
}

func (b *BeanEvaluator) Evaluate(name string, hint interface{}) (interface{}, error) {
	if hint != nil {
		return hint, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var value interface{}
	var typ reflect.Type
	var found bool
	if b.bean != nil {
		var err error
		value, typ, found, err = b.lookup.Lookup(b.bean, name)
		if err != nil {
			return nil, faults.Wrap(err)
		}
		if value != nil {
			return value, nil
		}
	}

	if t, ok := b.nullTypes[name]; ok {
		return dbx.NullOf(t), nil
	}
	if found && typ != nil {
		if t, ok := b.defaultNullTypes[typ]; ok {
			return dbx.NullOf(t), nil
		}
		if typ.Kind() == reflect.Ptr {
			if t, ok := b.defaultNullTypes[typ.Elem()]; ok {
				return dbx.NullOf(t), nil
			}
		}
	}
	return nil, nil
}
