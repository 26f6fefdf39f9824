package transformers

import (
	"github.com/quintans/faults"
	tk "github.com/quintans/toolkit"
	coll "github.com/quintans/toolkit/collections"
	"github.com/samterrell/SQLProcessor/dbx"
)

// SimpleAbstractRowTransformer collects what Transformer makes of each row, skipping nils.
type SimpleAbstractRowTransformer struct {
	Transformer func(row *dbx.RestrictedCursor) (interface{}, error)
}

var _ dbx.IRowTransformer = &SimpleAbstractRowTransformer{}

func (s *SimpleAbstractRowTransformer) BeforeAll() coll.Collection {
	return coll.NewArrayList()
}

func (s *SimpleAbstractRowTransformer) Transform(row *dbx.RestrictedCursor) (interface{}, error) {
	if s.Transformer != nil {
		return s.Transformer(row)
	}
	return nil, faults.Wrap(&tk.Fail{Code: dbx.FAULT_STATEMENT, Message: "Undefined Transformer function"})
}

func (s *SimpleAbstractRowTransformer) OnTransformation(result coll.Collection, instance interface{}) {
	if instance != nil {
		result.Add(instance)
	}
}

func (s *SimpleAbstractRowTransformer) AfterAll(result coll.Collection) {
}
