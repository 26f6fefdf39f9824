package db

import (
	"strings"

	"github.com/quintans/faults"
	coll "github.com/quintans/toolkit/collections"
	"github.com/quintans/toolkit/ext"

	"github.com/samterrell/SQLProcessor/dbx"
)

const (
	PARAMETER_DELIMITER    = '|'
	SUBSTITUTION_DELIMITER = '#'
)

// part is either literal text or, when position > 0, a parameter slot.
type part struct {
	text     string
	position int
}

type segment struct {
	parts []part
	sub   string
	isSub bool
}

// Template is a parsed tagged SQL statement.
//
//	|name| is a positional parameter bound through the driver
//	#name# is replaced textually before the statement is prepared
//
// Doubling a delimiter (|| or ##) yields the delimiter itself.
// Parameter positions are 1-based and fixed at parse time.
type Template struct {
	text       string
	translator Translator
	segments   []segment
	// parameter name -> *[]int positions, in first registration order
	params coll.Map
	// position-1 -> parameter name
	paramNames []string
	// substitution name -> *[]int segment indexes, in first registration order
	subs   coll.Map
	values map[string]string
	dirty  bool
	cached string
}

func Parse(text string) (*Template, error) {
	return ParseWith(text, nil)
}

// ParseWith parses the text using the translator for the parameter markers.
func ParseWith(text string, translator Translator) (*Template, error) {
	if translator == nil {
		translator = DefaultTranslator
	}

	t := &Template{
		text:       text,
		translator: translator,
		params:     coll.NewLinkedHashMap(),
		subs:       coll.NewLinkedHashMap(),
		values:     map[string]string{},
		dirty:      true,
	}

	parts, err := t.parseParameters(text)
	if err != nil {
		return nil, err
	}
	if err := t.parseSubstitutions(parts); err != nil {
		return nil, err
	}
	return t, nil
}

func MustParse(text string) *Template {
	t, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) parseParameters(text string) ([]part, error) {
	var parts []part
	var out strings.Builder
	length := len(text)
	for i := 0; i < length; i++ {
		c := text[i]
		if c != PARAMETER_DELIMITER {
			out.WriteByte(c)
			continue
		}
		if i+1 < length && text[i+1] == PARAMETER_DELIMITER {
			out.WriteByte(PARAMETER_DELIMITER)
			i++
			continue
		}
		end := strings.IndexByte(text[i+1:], PARAMETER_DELIMITER)
		if end < 0 {
			return nil, faults.Wrap(dbx.NewParseError("SQL text contains unbalanced | : "+text, text))
		}
		name := text[i+1 : i+1+end]
		t.paramNames = append(t.paramNames, name)
		position := len(t.paramNames)
		appendIndex(t.params, name, position)
		if out.Len() > 0 {
			parts = append(parts, part{text: out.String()})
			out.Reset()
		}
		parts = append(parts, part{position: position})
		i += end + 1
	}
	if out.Len() > 0 {
		parts = append(parts, part{text: out.String()})
	}
	return parts, nil
}

func (t *Template) parseSubstitutions(parts []part) error {
	var literal []part
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			literal = append(literal, part{text: buf.String()})
			buf.Reset()
		}
	}

	for p, pc := range parts {
		if pc.position > 0 {
			flush()
			literal = append(literal, pc)
			continue
		}
		text := pc.text
		length := len(text)
		for i := 0; i < length; i++ {
			c := text[i]
			if c != SUBSTITUTION_DELIMITER {
				buf.WriteByte(c)
				continue
			}
			if i+1 < length && text[i+1] == SUBSTITUTION_DELIMITER {
				buf.WriteByte(SUBSTITUTION_DELIMITER)
				i++
				continue
			}
			end := strings.IndexByte(text[i+1:], SUBSTITUTION_DELIMITER)
			if end < 0 {
				if closedLater(parts[p+1:]) {
					return faults.Wrap(dbx.NewParseError("SQL text contains a parameter inside a substitution : "+t.text, t.text))
				}
				return faults.Wrap(dbx.NewParseError("SQL text contains unbalanced # : "+t.text, t.text))
			}
			name := text[i+1 : i+1+end]
			if t.IsParameterKey(name) {
				return faults.Wrap(dbx.NewParseError("Cannot use key for substitutions and parameters : "+name, t.text))
			}

			flush()
			t.segments = append(t.segments, segment{parts: literal})
			literal = nil
			t.segments = append(t.segments, segment{sub: name, isSub: true})
			appendIndex(t.subs, name, len(t.segments)-1)
			i += end + 1
		}
	}
	flush()
	if len(literal) > 0 || len(t.segments) == 0 {
		t.segments = append(t.segments, segment{parts: literal})
	}
	return nil
}

func closedLater(parts []part) bool {
	for _, p := range parts {
		if p.position == 0 && strings.IndexByte(p.text, SUBSTITUTION_DELIMITER) >= 0 {
			return true
		}
	}
	return false
}

// the map values are pointers so that appending lands in the stored entry
func appendIndex(m coll.Map, name string, index int) {
	key := ext.Str(name)
	if v, ok := m.Get(key); ok {
		idx := v.(*[]int)
		*idx = append(*idx, index)
		return
	}
	idx := []int{index}
	m.Put(key, &idx)
}

func keys(m coll.Map) []string {
	names := []string{}
	for it := m.Iterator(); it.HasNext(); {
		entry := it.Next()
		names = append(names, string(entry.Key.(ext.Str)))
	}
	return names
}

func indexes(m coll.Map, name string) []int {
	if v, ok := m.Get(ext.Str(name)); ok {
		src := *v.(*[]int)
		return append(make([]int, 0, len(src)), src...)
	}
	return nil
}

// Clone returns an independent copy carrying the current substitution values.
func (t *Template) Clone() *Template {
	c := &Template{
		text:       t.text,
		translator: t.translator,
		segments:   t.segments,
		paramNames: t.paramNames,
		params:     coll.NewLinkedHashMap(),
		subs:       coll.NewLinkedHashMap(),
		values:     make(map[string]string, len(t.values)),
		dirty:      true,
	}
	for _, name := range keys(t.params) {
		idx := indexes(t.params, name)
		c.params.Put(ext.Str(name), &idx)
	}
	for _, name := range keys(t.subs) {
		idx := indexes(t.subs, name)
		c.subs.Put(ext.Str(name), &idx)
	}
	for k, v := range t.values {
		c.values[k] = v
	}
	return c
}

func (t *Template) Text() string {
	return t.text
}

func (t *Template) Translator() Translator {
	return t.translator
}

func (t *Template) leadingKeyword(keyword string) bool {
	if len(t.segments) == 0 || t.segments[0].isSub || len(t.segments[0].parts) == 0 {
		return false
	}
	lead := t.segments[0].parts[0]
	if lead.position > 0 {
		return false
	}
	s := strings.TrimSpace(lead.text)
	if len(s) < len(keyword) {
		return false
	}
	return strings.EqualFold(s[:len(keyword)], keyword)
}

// IsQuery looks at the leading keyword only.
func (t *Template) IsQuery() bool {
	return t.leadingKeyword("SELECT")
}

func (t *Template) IsInsert() bool {
	return t.leadingKeyword("INSERT")
}

func (t *Template) IsParameterKey(name string) bool {
	_, ok := t.params.Get(ext.Str(name))
	return ok
}

func (t *Template) IsSubstitutionKey(name string) bool {
	_, ok := t.subs.Get(ext.Str(name))
	return ok
}

func (t *Template) IsKey(name string) bool {
	return t.IsParameterKey(name) || t.IsSubstitutionKey(name)
}

// ParameterNames are in first registration order.
func (t *Template) ParameterNames() []string {
	return keys(t.params)
}

// ParameterPositions returns the 1-based bind positions of name.
func (t *Template) ParameterPositions(name string) []int {
	return indexes(t.params, name)
}

func (t *Template) ParameterCount() int {
	return len(t.paramNames)
}

func (t *Template) SubstitutionNames() []string {
	return keys(t.subs)
}

// SubstitutionPositions returns the segment indexes replaced by name.
func (t *Template) SubstitutionPositions(name string) []int {
	return indexes(t.subs, name)
}

// ParameterNameAt is the reverse of ParameterPositions.
func (t *Template) ParameterNameAt(position int) (string, error) {
	if position < 1 || position > len(t.paramNames) {
		return "", faults.Wrap(dbx.NewUnknownPositionError(position))
	}
	return t.paramNames[position-1], nil
}

func (t *Template) SetSubstitution(name, value string) error {
	if !t.IsSubstitutionKey(name) {
		return faults.Wrap(dbx.NewInvalidKeyError(name))
	}
	t.values[name] = value
	t.dirty = true
	return nil
}

func (t *Template) Substitution(name string) (string, bool) {
	v, ok := t.values[name]
	return v, ok
}

func (t *Template) IsDirty() bool {
	return t.dirty
}

// PreparedString renders the statement handed to the driver.
// Every substitution must have a value.
func (t *Template) PreparedString() (string, error) {
	if !t.dirty {
		return t.cached, nil
	}

	for _, name := range keys(t.subs) {
		if _, ok := t.values[name]; !ok {
			return "", faults.Wrap(dbx.NewUnboundSubstitutionError(name))
		}
	}

	s := t.render(func(position int, name string) string {
		return t.translator.GetPlaceholder(position-1, name)
	}, func(name string) string {
		return t.values[name]
	})
	t.cached = s
	t.dirty = false
	return s, nil
}

// PreparedStringForLogging never fails. Missing substitutions show as !SUB{name}!.
func (t *Template) PreparedStringForLogging() string {
	return t.Render(func(position int, name string) string {
		return t.translator.GetPlaceholder(position-1, name)
	})
}

// Render is PreparedStringForLogging with a custom rendering of each parameter slot.
func (t *Template) Render(param func(position int, name string) string) string {
	return t.render(param, func(name string) string {
		if v, ok := t.values[name]; ok {
			return v
		}
		return "!SUB{" + name + "}!"
	})
}

func (t *Template) render(param func(position int, name string) string, sub func(name string) string) string {
	var sb strings.Builder
	for _, seg := range t.segments {
		if seg.isSub {
			sb.WriteString(sub(seg.sub))
			continue
		}
		for _, p := range seg.parts {
			if p.position > 0 {
				sb.WriteString(param(p.position, t.paramNames[p.position-1]))
			} else {
				sb.WriteString(p.text)
			}
		}
	}
	return sb.String()
}

func (t *Template) String() string {
	return t.PreparedStringForLogging()
}
