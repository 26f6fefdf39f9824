package translators

import (
	"strconv"
	"strings"

	"github.com/samterrell/SQLProcessor/db"
)

// OracleTranslator reads inserted ids from the session's current value of a sequence, when one is given.
type OracleTranslator struct {
	*GenericTranslator
	Sequence string
}

var _ db.Translator = &OracleTranslator{}

func NewOracleTranslator(sequence string) *OracleTranslator {
	this := new(OracleTranslator)
	this.GenericTranslator = new(GenericTranslator)
	this.Init(this, "goracle")
	this.Sequence = sequence
	return this
}

func (o *OracleTranslator) GetPlaceholder(index int, name string) string {
	return ":" + strconv.Itoa(index+1)
}

func (o *OracleTranslator) GetAutoNumberQuery() string {
	if o.Sequence == "" {
		return ""
	}
	return "select " + strings.ToUpper(o.Sequence) + ".currval from dual"
}
