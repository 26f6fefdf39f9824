package translators

import (
	"github.com/samterrell/SQLProcessor/db"
)

// FirebirdSQLTranslator reads inserted ids from a generator, when one is given.
type FirebirdSQLTranslator struct {
	*GenericTranslator
	Generator string
}

var _ db.Translator = &FirebirdSQLTranslator{}

func NewFirebirdSQLTranslator(generator string) *FirebirdSQLTranslator {
	this := new(FirebirdSQLTranslator)
	this.GenericTranslator = new(GenericTranslator)
	this.Init(this, "firebirdsql")
	this.Generator = generator
	return this
}

func (f *FirebirdSQLTranslator) GetAutoNumberQuery() string {
	if f.Generator == "" {
		return ""
	}
	// increment 0 reads the current value
	return "select GEN_ID(" + f.Generator + ", 0) from RDB$DATABASE"
}
