package db

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/samterrell/SQLProcessor/dbx"
)

// prettyParameter renders a bound value the way it would be typed in a query tool.
// Numbers go bare, everything else is quoted.
func prettyParameter(name string, value interface{}) string {
	if strings.HasSuffix(name, "$") {
		// secret
		return "'****'"
	}
	if value == nil {
		return "!SET{" + name + "}!"
	}

	switch v := value.(type) {
	case dbx.Null:
		return "'" + v.String() + "'"
	case *dbx.Null:
		return "'" + v.String() + "'"
	case []byte:
		return "'<BLOB>'"
	case driver.Valuer:
		dv, err := v.Value()
		if err != nil || dv == nil {
			return "'" + dbx.NullOf(dbx.Other).String() + "'"
		}
		return prettyParameter(name, dv)
	case time.Time:
		return "'" + v.Format("2006-01-02 15:04:05.999999999") + "'"
	case fmt.Stringer:
		return "'" + v.String() + "'"
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "'" + dbx.NullOf(dbx.Other).String() + "'"
		}
		return prettyParameter(name, rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%v", value)
	case reflect.Slice, reflect.Array:
		return "'<BLOB>'"
	}
	return fmt.Sprintf("'%v'", value)
}
