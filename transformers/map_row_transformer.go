package transformers

import (
	"github.com/quintans/faults"
	coll "github.com/quintans/toolkit/collections"
	"github.com/samterrell/SQLProcessor/dbx"
)

// MapRowTransformer turns every row into a map of column name to value.
type MapRowTransformer struct {
	SimpleAbstractRowTransformer
}

var _ dbx.IRowTransformer = &MapRowTransformer{}

func NewMapRowTransformer() *MapRowTransformer {
	m := &MapRowTransformer{}
	m.Transformer = func(row *dbx.RestrictedCursor) (interface{}, error) {
		cols, err := row.Columns()
		if err != nil {
			return nil, faults.Wrap(err)
		}
		values, err := row.Values()
		if err != nil {
			return nil, faults.Wrap(err)
		}
		result := make(map[string]interface{}, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				result[c] = string(b)
			} else {
				result[c] = values[i]
			}
		}
		return result, nil
	}
	return m
}

// Rows copies the collected maps out of a result collection.
func Rows(result coll.Collection) []map[string]interface{} {
	if result == nil {
		return nil
	}
	rows := make([]map[string]interface{}, 0, result.Size())
	for e := result.Enumerator(); e.HasNext(); {
		if m, ok := e.Next().(map[string]interface{}); ok {
			rows = append(rows, m)
		}
	}
	return rows
}
