package dbx

import (
	"database/sql"

	"github.com/quintans/faults"
)

// RestrictedCursor is handed to row callbacks. It reads the current row
// but refuses to move or close the cursor, since the engine owns the iteration.
type RestrictedCursor struct {
	cursor Cursor
}

func NewRestrictedCursor(cursor Cursor) *RestrictedCursor {
	return &RestrictedCursor{cursor: cursor}
}

func (r *RestrictedCursor) Scan(dest ...interface{}) error {
	return faults.Wrap(r.cursor.Scan(dest...))
}

func (r *RestrictedCursor) Columns() ([]string, error) {
	cols, err := r.cursor.Columns()
	return cols, faults.Wrap(err)
}

func (r *RestrictedCursor) ColumnTypes() ([]*sql.ColumnType, error) {
	types, err := r.cursor.ColumnTypes()
	return types, faults.Wrap(err)
}

func (r *RestrictedCursor) Err() error {
	return r.cursor.Err()
}

// Values scans every column of the current row.
func (r *RestrictedCursor) Values() ([]interface{}, error) {
	cols, err := r.cursor.Columns()
	if err != nil {
		return nil, faults.Wrap(err)
	}
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.cursor.Scan(ptrs...); err != nil {
		return nil, faults.Wrap(err)
	}
	for i, v := range values {
		// drivers may reuse the buffer between rows
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}
	return values, nil
}

// Column scans the 1-based column index of the current row.
func (r *RestrictedCursor) Column(index int) (interface{}, error) {
	values, err := r.Values()
	if err != nil {
		return nil, err
	}
	if index < 1 || index > len(values) {
		return nil, faults.Errorf("column index %d out of range [1, %d]", index, len(values))
	}
	return values[index-1], nil
}

func (r *RestrictedCursor) Next() (bool, error) {
	return false, faults.Wrap(NewUnsupportedOperationError("Next"))
}

func (r *RestrictedCursor) Previous() (bool, error) {
	return false, faults.Wrap(NewUnsupportedOperationError("Previous"))
}

func (r *RestrictedCursor) NextResultSet() (bool, error) {
	return false, faults.Wrap(NewUnsupportedOperationError("NextResultSet"))
}

func (r *RestrictedCursor) Close() error {
	return faults.Wrap(NewUnsupportedOperationError("Close"))
}
