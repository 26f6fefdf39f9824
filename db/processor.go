package db

import (
	"context"
	"fmt"
	"reflect"

	"github.com/quintans/faults"
	coll "github.com/quintans/toolkit/collections"
	"github.com/quintans/toolkit/log"
	"github.com/samterrell/SQLProcessor/dbx"
)

// RowHandler is called for every row of a query. Returning false stops reading the current pass.
type RowHandler func(row *dbx.RestrictedCursor) (bool, error)

// UpdateHandler is called after every non query pass that produced no inserted id.
type UpdateHandler func(rowsUpdated int64) error

// InsertHandler is called after every insert pass that produced an id.
type InsertHandler func(rowsUpdated int64, id int64) error

type ProcessorOption func(*Processor)

func WithLogger(l dbx.Logger) ProcessorOption {
	return func(p *Processor) {
		if l != nil {
			p.log = l
		}
	}
}

func WithTranslator(t Translator) ProcessorOption {
	return func(p *Processor) {
		p.translator = t
	}
}

// WithTemplateCache parses the statement through c.
func WithTemplateCache(c *TemplateCache) ProcessorOption {
	return func(p *Processor) {
		p.cache = c
	}
}

// WithInsertedIdProvider overrides the provider implied by the translator.
func WithInsertedIdProvider(ip dbx.InsertedIdProvider) ProcessorOption {
	return func(p *Processor) {
		p.idProvider = ip
	}
}

// WithEvaluator appends an evaluator after the built in ones.
func WithEvaluator(e ParameterEvaluator) ProcessorOption {
	return func(p *Processor) {
		p.extra = append(p.extra, e)
	}
}

func WithFeeder(f Feeder) ProcessorOption {
	return func(p *Processor) {
		p.feeder = f
	}
}

func OnRow(h RowHandler) ProcessorOption {
	return func(p *Processor) {
		p.onRow = h
	}
}

func OnUpdate(h UpdateHandler) ProcessorOption {
	return func(p *Processor) {
		p.onUpdate = h
	}
}

func OnInsert(h InsertHandler) ProcessorOption {
	return func(p *Processor) {
		p.onInsert = h
	}
}

// WithTransformer collects every row of a query into the transformer's collection.
func WithTransformer(rt dbx.IRowTransformer) ProcessorOption {
	return func(p *Processor) {
		p.transformer = rt
	}
}

// Processor executes a tagged statement.
//
// Parameters are resolved, for every pass, through an evaluator chain made of the
// explicitly set values, the current bean and any evaluator added by the caller.
// A query without a row handler or transformer keeps the first column of the
// last row read as its single result.
//
// A Processor is not safe for concurrent use.
type Processor struct {
	description string
	template    *Template
	log         dbx.Logger
	translator  Translator
	cache       *TemplateCache
	idProvider  dbx.InsertedIdProvider

	values *Values
	beans  *BeanEvaluator
	extra  []ParameterEvaluator
	chain  *EvaluatorChain

	feeder      Feeder
	onRow       RowHandler
	onUpdate    UpdateHandler
	onInsert    InsertHandler
	transformer dbx.IRowTransformer

	// execution state
	results     bool
	result      interface{}
	insertedIds []int64
	rowsUpdated int64
	collected   coll.Collection
	resolved    map[string]interface{}
}

func NewProcessor(description, text string, options ...ProcessorOption) (*Processor, error) {
	if description == "" {
		description = dbx.NoDescription
	}
	p := &Processor{
		description: description,
		log:         dbx.NopLogger{},
		values:      NewValues(),
		beans:       NewBeanEvaluator(),
	}
	for _, o := range options {
		o(p)
	}
	if p.translator == nil {
		p.translator = DefaultTranslator
	}
	if p.idProvider == nil {
		if ip, ok := p.translator.(dbx.InsertedIdProvider); ok {
			p.idProvider = ip
		}
	}

	var err error
	if p.cache != nil {
		p.template, err = p.cache.Get(text, p.translator)
	} else {
		p.template, err = ParseWith(text, p.translator)
	}
	if err != nil {
		return nil, faults.Wrap(err)
	}

	p.chain = NewEvaluatorChain(p.values, p.beans)
	for _, e := range p.extra {
		p.chain.Add(e)
	}
	return p, nil
}

func MustProcessor(description, text string, options ...ProcessorOption) *Processor {
	p, err := NewProcessor(description, text, options...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Processor) Description() string {
	return p.description
}

func (p *Processor) Template() *Template {
	return p.template
}

func (p *Processor) HasKey(key string) bool {
	return p.template.IsKey(key)
}

// Set assigns a parameter value or, when key is a substitution, its text.
// Explicit values take precedence over bean properties.
func (p *Processor) Set(key string, value interface{}) error {
	if p.template.IsParameterKey(key) {
		p.values.Set(key, value)
		return nil
	}
	return p.template.SetSubstitution(key, fmt.Sprint(value))
}

func (p *Processor) SetNull(key string, t dbx.SQLType) {
	p.values.SetNull(key, t)
}

func (p *Processor) SetNullable(key string, value interface{}, t dbx.SQLType) {
	p.values.SetNullable(key, value, t)
}

// SetBean makes bean the source of the parameters not explicitly set.
func (p *Processor) SetBean(bean interface{}) {
	p.beans.SetBean(bean)
}

// SetBeans makes the next Execute run one pass per bean. No beans, no passes.
func (p *Processor) SetBeans(beans ...interface{}) {
	p.feeder = Each(p.beans, beans...)
}

// SetFeeder drives the passes of the next Execute. Later executions run once.
func (p *Processor) SetFeeder(f Feeder) {
	p.feeder = f
}

func (p *Processor) SetNullType(t dbx.SQLType, names ...string) {
	p.beans.SetNullType(t, names...)
}

func (p *Processor) SetDefaultNullType(sample interface{}, t dbx.SQLType) {
	p.beans.SetDefaultNullType(sample, t)
}

func (p *Processor) AddEvaluator(e ParameterEvaluator) {
	p.chain.Add(e)
}

func (p *Processor) ResultsExist() bool {
	return p.results
}

func (p *Processor) SingleResult() interface{} {
	return p.result
}

func (p *Processor) IsSingleResultEqual(v interface{}) bool {
	return p.results && valuesEqual(p.result, v)
}

// Results is the collection filled by the transformer, if any.
func (p *Processor) Results() coll.Collection {
	return p.collected
}

func (p *Processor) RowsUpdated() int64 {
	return p.rowsUpdated
}

func (p *Processor) InsertedIds() []int64 {
	return append([]int64(nil), p.insertedIds...)
}

func (p *Processor) LastInsertedId() (int64, bool) {
	if len(p.insertedIds) == 0 {
		return 0, false
	}
	return p.insertedIds[len(p.insertedIds)-1], true
}

// LastInsertedIdValue is -1 when no id was captured.
func (p *Processor) LastInsertedIdValue() int64 {
	if id, ok := p.LastInsertedId(); ok {
		return id
	}
	return -1
}

func (p *Processor) reset() {
	p.results = false
	p.result = nil
	p.insertedIds = nil
	p.rowsUpdated = 0
	p.collected = nil
	p.resolved = nil
}

// Execute runs the statement on a connection taken from source and always gives it back.
// It returns the sum of the rows updated by all passes.
func (p *Processor) Execute(ctx context.Context, source dbx.ConnectionSource) (int64, error) {
	p.reset()
	conn, err := source.Acquire(ctx)
	if err != nil {
		return 0, faults.Wrap(err)
	}
	defer func() {
		if rerr := source.Release(conn); rerr != nil {
			p.log.Warn("Failure returning the connection", rerr)
		}
	}()

	return p.run(ctx, conn)
}

// ExecuteOn runs the statement on a connection owned by the caller.
func (p *Processor) ExecuteOn(ctx context.Context, conn dbx.Connection) (int64, error) {
	return p.Execute(ctx, dbx.NewFixedSource(conn))
}

// Run makes a Processor a transaction unit.
func (p *Processor) Run(ctx context.Context, conn dbx.Connection) error {
	_, err := p.ExecuteOn(ctx, conn)
	return err
}

func (p *Processor) nextFeeder() Feeder {
	f := p.feeder
	p.feeder = nil
	if f == nil {
		return Once()
	}
	return f
}

func (p *Processor) run(ctx context.Context, conn dbx.Connection) (int64, error) {
	feeder := p.nextFeeder()

	sqlText, err := p.template.PreparedString()
	if err != nil {
		return 0, faults.Wrap(err)
	}

	stmt, err := conn.Prepare(ctx, sqlText)
	if err != nil {
		return 0, p.fail(err)
	}
	defer func() {
		if cerr := stmt.Close(); cerr != nil {
			p.log.Warn("Failure closing the statement", cerr)
		}
	}()

	if p.transformer != nil {
		p.collected = p.transformer.BeforeAll()
	}

	var total int64
	passes := 0
	for {
		more, err := feeder.Next()
		if err != nil {
			return total, faults.Wrap(err)
		}
		if !more {
			break
		}
		passes++

		args, err := p.bind()
		if err != nil {
			return total, err
		}

		if p.template.IsQuery() {
			if err := p.query(ctx, stmt, args); err != nil {
				return total, err
			}
		} else {
			n, err := p.update(ctx, conn, stmt, args)
			if err != nil {
				return total, err
			}
			total += n
			p.rowsUpdated = total
		}
	}

	if p.transformer != nil {
		p.transformer.AfterAll(p.collected)
	}
	logger.Debugf("%s: %d pass(es), %d row(s) updated", p.description, passes, total)
	return total, nil
}

// bind resolves every parameter once, logs the statement and builds the positional arguments.
func (p *Processor) bind() ([]interface{}, error) {
	names := p.template.ParameterNames()
	resolved := make(map[string]interface{}, len(names))
	unbound := ""
	for _, name := range names {
		v, err := p.chain.Evaluate(name, nil)
		if err != nil {
			return nil, faults.Wrap(err)
		}
		resolved[name] = v
		if v == nil && unbound == "" {
			unbound = name
		}
	}
	p.resolved = resolved

	p.log.Info(p.prettyPrint(resolved))

	if unbound != "" {
		return nil, faults.Wrap(dbx.NewUnboundParameterError(unbound, p.description, p.template.Text()))
	}

	args := make([]interface{}, p.template.ParameterCount())
	for _, name := range names {
		v := bindValue(resolved[name])
		for _, pos := range p.template.ParameterPositions(name) {
			args[pos-1] = v
		}
	}
	return args, nil
}

func bindValue(v interface{}) interface{} {
	switch n := v.(type) {
	case dbx.Null:
		return n.Value()
	case *dbx.Null:
		return n.Value()
	}
	return v
}

func (p *Processor) query(ctx context.Context, stmt dbx.Statement, args []interface{}) error {
	cursor, err := stmt.Query(ctx, args...)
	if err != nil {
		return p.fail(err)
	}
	defer func() {
		if cerr := cursor.Close(); cerr != nil {
			p.log.Warn("Failure closing the cursor", cerr)
		}
	}()

	row := dbx.NewRestrictedCursor(cursor)
	for cursor.Next() {
		p.results = true
		goOn, err := p.processRow(row)
		if err != nil {
			return err
		}
		if !goOn {
			break
		}
	}
	if err := cursor.Err(); err != nil {
		return p.fail(err)
	}
	return nil
}

func (p *Processor) processRow(row *dbx.RestrictedCursor) (bool, error) {
	if p.transformer != nil {
		instance, err := p.transformer.Transform(row)
		if err != nil {
			return false, err
		}
		p.transformer.OnTransformation(p.collected, instance)
	}
	if p.onRow != nil {
		return p.onRow(row)
	}
	if p.transformer == nil {
		v, err := row.Column(1)
		if err != nil {
			return false, p.fail(err)
		}
		p.result = v
	}
	return true, nil
}

func (p *Processor) update(ctx context.Context, conn dbx.Connection, stmt dbx.Statement, args []interface{}) (int64, error) {
	res, err := stmt.Exec(ctx, args...)
	if err != nil {
		return 0, p.fail(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, p.fail(err)
	}

	if p.template.IsInsert() && p.idProvider != nil {
		id, found, err := p.idProvider.FetchLastId(ctx, conn, res)
		if err != nil {
			p.log.Warn(p.description+": could not read the inserted id", err)
			found = false
		}
		if found {
			p.insertedIds = append(p.insertedIds, id)
			if p.onInsert != nil {
				return n, p.onInsert(n, id)
			}
			return n, nil
		}
	}
	if p.onUpdate != nil {
		return n, p.onUpdate(n)
	}
	return n, nil
}

func (p *Processor) fail(cause error) error {
	return faults.Wrap(dbx.NewStatementError(p.description, p.SQLText(), cause))
}

// SQLText is the statement with every parameter replaced by its pretty printed value.
func (p *Processor) SQLText() string {
	resolved := p.resolved
	if resolved == nil {
		resolved = p.resolveForLogging()
	}
	return p.renderWith(resolved)
}

// PrettyPrint is the line logged before every pass.
func (p *Processor) PrettyPrint() string {
	return p.prettyPrint(p.resolveForLogging())
}

func (p *Processor) prettyPrint(resolved map[string]interface{}) string {
	return p.description + ": " + p.renderWith(resolved)
}

func (p *Processor) renderWith(resolved map[string]interface{}) string {
	return p.template.Render(func(position int, name string) string {
		return prettyParameter(name, resolved[name])
	})
}

func (p *Processor) resolveForLogging() map[string]interface{} {
	resolved := map[string]interface{}{}
	for _, name := range p.template.ParameterNames() {
		if v, err := p.chain.Evaluate(name, nil); err == nil {
			resolved[name] = v
		}
	}
	return resolved
}

// Prepare prepares and binds the statement without executing it, logging it like Execute does.
// The caller owns the returned statement.
func (p *Processor) Prepare(ctx context.Context, conn dbx.Connection) (dbx.Statement, []interface{}, error) {
	sqlText, err := p.template.PreparedString()
	if err != nil {
		return nil, nil, faults.Wrap(err)
	}
	args, err := p.bind()
	if err != nil {
		return nil, nil, err
	}
	stmt, err := conn.Prepare(ctx, sqlText)
	if err != nil {
		return nil, nil, p.fail(err)
	}
	if logger.IsActive(log.DEBUG) {
		logger.Debugf("prepared %s", sqlText)
	}
	return stmt, args, nil
}

func valuesEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	if ab, ok := a.([]byte); ok {
		a = string(ab)
	}
	if bb, ok := b.([]byte); ok {
		b = string(bb)
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
