package translators

import (
	"github.com/samterrell/SQLProcessor/db"
)

type SQLiteTranslator struct {
	*GenericTranslator
}

var _ db.Translator = &SQLiteTranslator{}

func NewSQLiteTranslator() *SQLiteTranslator {
	this := new(SQLiteTranslator)
	this.GenericTranslator = new(GenericTranslator)
	this.Init(this, "sqlite")
	return this
}

func (s *SQLiteTranslator) GetAutoNumberQuery() string {
	return "select last_insert_rowid()"
}
