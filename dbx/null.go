package dbx

import (
	"database/sql"
	"strings"
)

type SQLType int

const (
	Other SQLType = iota
	Char
	Varchar
	Integer
	BigInt
	Decimal
	Double
	Boolean
	Date
	Timestamp
	Binary
	Object
)

var sqlTypeNames = map[SQLType]string{
	Other:     "OTHER",
	Char:      "CHAR",
	Varchar:   "VARCHAR",
	Integer:   "INTEGER",
	BigInt:    "BIGINT",
	Decimal:   "DECIMAL",
	Double:    "DOUBLE",
	Boolean:   "BOOLEAN",
	Date:      "DATE",
	Timestamp: "TIMESTAMP",
	Binary:    "BINARY",
	Object:    "OBJECT",
}

var sqlTypeAliases = map[string]SQLType{
	"INT":       Integer,
	"SMALLINT":  Integer,
	"TINYINT":   Integer,
	"LONG":      BigInt,
	"NUMERIC":   Decimal,
	"FLOAT":     Double,
	"REAL":      Double,
	"BIT":       Boolean,
	"BOOL":      Boolean,
	"TIME":      Timestamp,
	"DATETIME":  Timestamp,
	"VARBINARY": Binary,
	"BLOB":      Binary,
	"CLOB":      Varchar,
	"TEXT":      Varchar,
	"NVARCHAR":  Varchar,
	"NCHAR":     Char,
	"STRUCT":    Object,
}

func (t SQLType) String() string {
	if s, ok := sqlTypeNames[t]; ok {
		return s
	}
	return sqlTypeNames[Other]
}

// ParseSQLType resolves a type name, case insensitive. ok is false for unknown names.
func ParseSQLType(name string) (SQLType, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for k, v := range sqlTypeNames {
		if v == name {
			return k, true
		}
	}
	t, ok := sqlTypeAliases[name]
	return t, ok
}

// Null is a NULL that still knows its SQL type.
// An evaluator returning Null stops the chain from reporting the parameter as unbound.
type Null struct {
	Type SQLType
}

func NullOf(t SQLType) Null {
	return Null{Type: t}
}

func (n Null) String() string {
	return "<null>"
}

// Value returns the typed value handed to the driver.
func (n Null) Value() interface{} {
	switch n.Type {
	case Char, Varchar:
		return sql.NullString{}
	case Integer, BigInt:
		return sql.NullInt64{}
	case Decimal, Double:
		return sql.NullFloat64{}
	case Boolean:
		return sql.NullBool{}
	case Date, Timestamp:
		return sql.NullTime{}
	default:
		return nil
	}
}

func IsNull(v interface{}) bool {
	switch v.(type) {
	case Null, *Null:
		return true
	}
	return false
}
