package translators

import (
	"strconv"

	"github.com/samterrell/SQLProcessor/db"
)

// PostgreSQLTranslator reads inserted ids from the session's current value of a sequence, when one is given.
type PostgreSQLTranslator struct {
	*GenericTranslator
	Sequence string
}

var _ db.Translator = &PostgreSQLTranslator{}

func NewPostgreSQLTranslator(sequence string) *PostgreSQLTranslator {
	this := new(PostgreSQLTranslator)
	this.GenericTranslator = new(GenericTranslator)
	this.Init(this, "postgres")
	this.Sequence = sequence
	return this
}

func (p *PostgreSQLTranslator) GetPlaceholder(index int, name string) string {
	return "$" + strconv.Itoa(index+1)
}

func (p *PostgreSQLTranslator) GetAutoNumberQuery() string {
	if p.Sequence == "" {
		return ""
	}
	return "select currval('" + p.Sequence + "')"
}
