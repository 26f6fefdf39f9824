package db

// Translator adapts the generated statement text to a database dialect.
type Translator interface {
	Name() string
	// GetPlaceholder returns the bind marker for the parameter at the zero based index.
	GetPlaceholder(index int, name string) string
	// GetAutoNumberQuery returns the query reading the last generated key, or "" if there is none.
	GetAutoNumberQuery() string
}

type defaultTranslator struct{}

func (defaultTranslator) Name() string {
	return "generic"
}

func (defaultTranslator) GetPlaceholder(index int, name string) string {
	return "?"
}

func (defaultTranslator) GetAutoNumberQuery() string {
	return ""
}

// DefaultTranslator uses ? markers and knows no auto number query.
var DefaultTranslator Translator = defaultTranslator{}
