package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	coll "github.com/quintans/toolkit/collections"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samterrell/SQLProcessor/dbx"
)

func TestProcessorBindsByPosition(t *testing.T) {
	conn := newFakeConnection()
	conn.columns = []string{"name"}
	conn.rows = [][]interface{}{{"ann"}, {"bob"}}
	log := &recordingLogger{}

	p, err := NewProcessor("find", "SELECT name FROM person WHERE id = |id| AND (|id| > 0 OR age = |age|)", WithLogger(log))
	require.NoError(t, err)
	require.NoError(t, p.Set("id", 7))
	require.NoError(t, p.Set("age", 30))

	n, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	assert.Equal(t, []string{"SELECT name FROM person WHERE id = ? AND (? > 0 OR age = ?)"}, conn.prepared)
	assert.Equal(t, [][]interface{}{{7, 7, 30}}, conn.args)
	assert.Equal(t, []string{"find: SELECT name FROM person WHERE id = 7 AND (7 > 0 OR age = 30)"}, log.infos)

	assert.True(t, p.ResultsExist())
	assert.Equal(t, "bob", p.SingleResult(), "the single result is the first column of the last row")
	assert.True(t, p.IsSingleResultEqual([]byte("bob")))
	assert.False(t, p.IsSingleResultEqual("ann"))
}

func TestProcessorReleasesInOrder(t *testing.T) {
	conn := newFakeConnection()
	conn.columns = []string{"n"}
	conn.rows = [][]interface{}{{int64(1)}}
	src := &fakeSource{conn: conn}

	p := MustProcessor("count", "SELECT count(*) FROM t")
	_, err := p.Execute(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"acquire",
		"prepare SELECT count(*) FROM t",
		"query []",
		"cursor closed",
		"statement closed",
		"release",
	}, conn.j.entries)
	assert.Equal(t, 1, src.released)
	assert.True(t, p.IsSingleResultEqual(1))
}

func TestProcessorUnboundParameter(t *testing.T) {
	conn := newFakeConnection()
	src := &fakeSource{conn: conn}
	log := &recordingLogger{}

	p := MustProcessor("change", "UPDATE t SET a = |a| WHERE b = |b|", WithLogger(log))
	require.NoError(t, p.Set("a", "x"))

	_, err := p.Execute(context.Background(), src)
	var upe *dbx.UnboundParameterError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, "b", upe.Name)
	assert.Equal(t, "The parameter |b| was not set\nSQL Description: change\nSQL: UPDATE t SET a = |a| WHERE b = |b|", upe.Error())

	assert.Equal(t, []string{"change: UPDATE t SET a = 'x' WHERE b = !SET{b}!"}, log.infos, "the statement is logged before failing")
	assert.Empty(t, conn.args, "nothing is executed")
	assert.Equal(t, 1, src.released)
}

func TestProcessorSubstitutions(t *testing.T) {
	conn := newFakeConnection()
	src := &fakeSource{conn: conn}

	p := MustProcessor("purge", "DELETE FROM #table# WHERE id = |id|")
	require.NoError(t, p.Set("id", 1))

	_, err := p.Execute(context.Background(), src)
	var use *dbx.UnboundSubstitutionError
	require.True(t, errors.As(err, &use))
	assert.Equal(t, 1, src.released)

	require.NoError(t, p.Set("table", "jobs"))
	assert.True(t, p.HasKey("table"))
	assert.False(t, p.HasKey("nope"))

	n, err := p.Execute(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []string{"DELETE FROM jobs WHERE id = ?"}, conn.prepared)

	err = p.Set("nope", 1)
	var ike *dbx.InvalidKeyError
	assert.True(t, errors.As(err, &ike))
}

func TestProcessorInsertsEveryBean(t *testing.T) {
	conn := newFakeConnection()
	next := int64(10)
	provider := idProviderFunc(func(ctx context.Context, c dbx.Connection, res sql.Result) (int64, bool, error) {
		next++
		return next - 1, true, nil
	})
	var inserted [][2]int64

	p := MustProcessor("add", "INSERT INTO person (name, age) VALUES (|name|, |age|)",
		WithInsertedIdProvider(provider),
		OnInsert(func(rows, id int64) error {
			inserted = append(inserted, [2]int64{rows, id})
			return nil
		}),
	)
	p.SetBeans(person{Name: "ann"}, map[string]interface{}{"name": "bob", "age": 20})
	p.SetDefaultNullType(0, dbx.Integer)

	n, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, int64(2), p.RowsUpdated())
	assert.Equal(t, []int64{10, 11}, p.InsertedIds())
	assert.Equal(t, int64(11), p.LastInsertedIdValue())
	assert.Equal(t, [][2]int64{{1, 10}, {1, 11}}, inserted)

	require.Len(t, conn.prepared, 1, "prepared once for all passes")
	assert.Equal(t, [][]interface{}{{"ann", sql.NullInt64{}}, {"bob", 20}}, conn.args)

	// the feeder is used by one execution only, the last bean stays current
	n, err = p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, []interface{}{"bob", 20}, conn.args[2])
	assert.Equal(t, []int64{12}, p.InsertedIds())
}

func TestProcessorNoBeansNoPasses(t *testing.T) {
	conn := newFakeConnection()
	p := MustProcessor("add", "INSERT INTO t (a) VALUES (|a|)")
	p.SetBeans()

	n, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.Empty(t, conn.args)
	_, ok := p.LastInsertedId()
	assert.False(t, ok)
	assert.Equal(t, int64(-1), p.LastInsertedIdValue())
}

func TestProcessorUpdateHandler(t *testing.T) {
	conn := newFakeConnection()
	conn.affected = 3
	var counts []int64

	p := MustProcessor("bump", "UPDATE t SET v = v + 1", OnUpdate(func(n int64) error {
		counts = append(counts, n)
		return nil
	}))
	p.SetFeeder(Repeat(2))

	n, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, []int64{3, 3}, counts)

	n, err = p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n, "later executions run once")
}

func TestProcessorInsertWithoutIdCallsUpdateHandler(t *testing.T) {
	conn := newFakeConnection()
	updated := false
	p := MustProcessor("add", "INSERT INTO t (a) VALUES (1)",
		WithInsertedIdProvider(idProviderFunc(func(context.Context, dbx.Connection, sql.Result) (int64, bool, error) {
			return 0, false, nil
		})),
		OnUpdate(func(int64) error {
			updated = true
			return nil
		}),
	)

	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Empty(t, p.InsertedIds())
}

func TestProcessorInsertIdFailureIsOnlyAWarning(t *testing.T) {
	conn := newFakeConnection()
	log := &recordingLogger{}
	updated := false
	p := MustProcessor("add", "INSERT INTO t (a) VALUES (1)",
		WithLogger(log),
		WithInsertedIdProvider(idProviderFunc(func(context.Context, dbx.Connection, sql.Result) (int64, bool, error) {
			return 0, false, errors.New("currval of sequence is not yet defined in this session")
		})),
		OnUpdate(func(int64) error {
			updated = true
			return nil
		}),
	)

	n, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.True(t, updated)
	assert.Empty(t, p.InsertedIds())
	assert.Len(t, log.warns, 1)
}

func TestProcessorDriverErrors(t *testing.T) {
	conn := newFakeConnection()
	cause := errors.New("duplicate key")
	conn.execErr = cause

	p := MustProcessor("add", "INSERT INTO t (a) VALUES (|a|)")
	require.NoError(t, p.Set("a", "x"))

	_, err := p.ExecuteOn(context.Background(), conn)
	var se *dbx.StatementError
	require.True(t, errors.As(err, &se))
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "add", se.Description)
	assert.Equal(t, "INSERT INTO t (a) VALUES ('x')", se.SQL)
	assert.Equal(t, "SQL Description: add\nSQL: INSERT INTO t (a) VALUES ('x')\nNested exception message: duplicate key", se.Error())
}

func TestProcessorPrepareError(t *testing.T) {
	conn := newFakeConnection()
	conn.prepareErr = errors.New("syntax")
	src := &fakeSource{conn: conn}

	p := MustProcessor("", "SELECT broken FROM t")
	assert.Equal(t, dbx.NoDescription, p.Description())

	_, err := p.Execute(context.Background(), src)
	var se *dbx.StatementError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, dbx.NoDescription, se.Description)
	assert.Equal(t, 1, src.released)
}

func TestProcessorAcquireError(t *testing.T) {
	boom := errors.New("pool exhausted")
	src := &fakeSource{conn: newFakeConnection(), acquireErr: boom}

	_, err := MustProcessor("x", "SELECT 1").Execute(context.Background(), src)
	assert.True(t, errors.Is(err, boom))
	assert.Equal(t, 0, src.released)
}

func TestProcessorRowHandler(t *testing.T) {
	conn := newFakeConnection()
	conn.columns = []string{"a", "b"}
	conn.rows = [][]interface{}{{1, "x"}, {2, "y"}, {3, "z"}}

	var seen []interface{}
	p := MustProcessor("rows", "SELECT a, b FROM t", OnRow(func(row *dbx.RestrictedCursor) (bool, error) {
		v, err := row.Column(2)
		if err != nil {
			return false, err
		}
		seen = append(seen, v)
		_, err = row.Next()
		assert.Error(t, err, "the handler cannot move the cursor")
		return len(seen) < 2, nil
	}))

	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"x", "y"}, seen, "returning false stops the pass")
	assert.Nil(t, p.SingleResult())
}

func TestProcessorCallbackErrorsPassThrough(t *testing.T) {
	conn := newFakeConnection()
	conn.columns = []string{"a"}
	conn.rows = [][]interface{}{{1}}
	boom := errors.New("callback failed")

	p := MustProcessor("rows", "SELECT a FROM t", OnRow(func(*dbx.RestrictedCursor) (bool, error) {
		return false, boom
	}))
	_, err := p.ExecuteOn(context.Background(), conn)
	assert.Equal(t, boom, err)

	var se *dbx.StatementError
	assert.False(t, errors.As(err, &se))
}

type collectFirst struct{}

func (collectFirst) BeforeAll() coll.Collection { return coll.NewArrayList() }

func (collectFirst) Transform(row *dbx.RestrictedCursor) (interface{}, error) {
	return row.Column(1)
}

func (collectFirst) OnTransformation(result coll.Collection, instance interface{}) {
	result.Add(instance)
}

func (collectFirst) AfterAll(coll.Collection) {}

func TestProcessorTransformer(t *testing.T) {
	conn := newFakeConnection()
	conn.columns = []string{"a"}
	conn.rows = [][]interface{}{{"x"}, {"y"}}

	p := MustProcessor("rows", "SELECT a FROM t", WithTransformer(collectFirst{}))
	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	require.NotNil(t, p.Results())
	var got []interface{}
	for e := p.Results().Enumerator(); e.HasNext(); {
		got = append(got, e.Next())
	}
	assert.Equal(t, []interface{}{"x", "y"}, got)
	assert.True(t, p.ResultsExist())
}

func TestProcessorLogsSecretsAndNulls(t *testing.T) {
	conn := newFakeConnection()
	log := &recordingLogger{}

	p := MustProcessor("login", "UPDATE users SET pwd = |pwd$|, nick = |nick|, photo = |photo| WHERE id = |id|", WithLogger(log))
	require.NoError(t, p.Set("pwd$", "hunter2"))
	p.SetNull("nick", dbx.Varchar)
	p.SetNullable("photo", []byte{1, 2}, dbx.Binary)
	p.SetNullable("id", nil, dbx.Integer)

	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, []string{"login: UPDATE users SET pwd = '****', nick = '<null>', photo = '<BLOB>' WHERE id = '<null>'"}, log.infos)
	assert.Equal(t, [][]interface{}{{"hunter2", sql.NullString{}, []byte{1, 2}, sql.NullInt64{}}}, conn.args)
}

func TestProcessorExpressionEvaluator(t *testing.T) {
	conn := newFakeConnection()
	e := NewExpressionEvaluator()
	e.Set("job", map[string]interface{}{"name": "nightly", "state": nil})

	p := MustProcessor("close", "UPDATE jobs SET state = |job.state;VARCHAR| WHERE name = |job.name|", WithEvaluator(e))
	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{sql.NullString{}, "nightly"}}, conn.args)

	p.SetFeeder(Iterate(e, "job",
		map[string]interface{}{"name": "a", "state": "done"},
		map[string]interface{}{"name": "b", "state": "open"},
	))
	conn.args = nil
	_, err = p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"done", "a"}, {"open", "b"}}, conn.args)
}

func TestProcessorMisspelledExpressionIsUnbound(t *testing.T) {
	conn := newFakeConnection()
	e := NewExpressionEvaluator()
	e.Set("state", "closed")
	e.Set("name", "nightly")

	p := MustProcessor("close", "UPDATE jobs SET state = |stat| WHERE name = |name|", WithEvaluator(e))
	_, err := p.ExecuteOn(context.Background(), conn)

	var upe *dbx.UnboundParameterError
	require.True(t, errors.As(err, &upe))
	assert.Equal(t, "stat", upe.Name)
	assert.Empty(t, conn.args)
}

func TestProcessorRepeatedNameBindsEveryPosition(t *testing.T) {
	conn := newFakeConnection()
	p := MustProcessor("change", "UPDATE t SET a = |a| WHERE b = |b| OR a2 = |a|")
	require.NoError(t, p.Set("a", 1))
	require.NoError(t, p.Set("b", 2))

	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{1, 2, 1}}, conn.args)
}

func TestProcessorExplicitValueBeatsBean(t *testing.T) {
	conn := newFakeConnection()
	p := MustProcessor("add", "INSERT INTO person (name) VALUES (|name|)")
	p.SetBean(person{Name: "bean"})
	require.NoError(t, p.Set("name", "explicit"))

	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"explicit"}}, conn.args)
}

func TestProcessorAddEvaluator(t *testing.T) {
	conn := newFakeConnection()
	p := MustProcessor("add", "INSERT INTO t (a) VALUES (|a|)")
	p.AddEvaluator(EvaluatorFunc(func(name string, hint interface{}) (interface{}, error) {
		if hint == nil {
			return "fallback", nil
		}
		return hint, nil
	}))

	_, err := p.ExecuteOn(context.Background(), conn)
	require.NoError(t, err)
	assert.Equal(t, [][]interface{}{{"fallback"}}, conn.args)
	assert.Equal(t, "add: INSERT INTO t (a) VALUES ('fallback')", p.PrettyPrint())
	assert.Equal(t, "INSERT INTO t (a) VALUES ('fallback')", p.SQLText())
}

func TestProcessorPrepare(t *testing.T) {
	conn := newFakeConnection()
	p := MustProcessor("find", "SELECT * FROM t WHERE a = |a|", WithTranslator(dollarTranslator{}))
	require.NoError(t, p.Set("a", 1))

	stmt, args, err := p.Prepare(context.Background(), conn)
	require.NoError(t, err)
	defer stmt.Close()
	assert.Equal(t, []interface{}{1}, args)
	assert.Equal(t, []string{"SELECT * FROM t WHERE a = $1"}, conn.prepared)
}

func TestProcessorTemplateCache(t *testing.T) {
	cache := NewTemplateCache(4)
	a := MustProcessor("a", "SELECT #c# FROM t", WithTemplateCache(cache))
	b := MustProcessor("b", "SELECT #c# FROM t", WithTemplateCache(cache))
	require.NoError(t, a.Set("c", "x"))

	_, ok := b.Template().Substitution("c")
	assert.False(t, ok)
	assert.Equal(t, 1, cache.Len())
}

func TestNewProcessorParseError(t *testing.T) {
	_, err := NewProcessor("bad", "SELECT |a FROM t")
	var pe *dbx.ParseError
	assert.True(t, errors.As(err, &pe))

	assert.Panics(t, func() { MustProcessor("bad", "SELECT #a FROM t") })
}

func TestPrettyParameter(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  string
	}{
		{"a", nil, "!SET{a}!"},
		{"a$", "secret", "'****'"},
		{"a", 12, "12"},
		{"a", 1.5, "1.5"},
		{"a", "x", "'x'"},
		{"a", []byte("x"), "'<BLOB>'"},
		{"a", dbx.NullOf(dbx.Date), "'<null>'"},
		{"a", sql.NullString{String: "v", Valid: true}, "'v'"},
		{"a", sql.NullInt64{}, "'<null>'"},
		{"a", true, "'true'"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, prettyParameter(tc.name, tc.value), "%v", tc.value)
	}

	n := 3
	assert.Equal(t, "3", prettyParameter("a", &n))
	assert.Equal(t, "'<null>'", prettyParameter("a", (*int)(nil)))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, valuesEqual(int64(3), 3))
	assert.True(t, valuesEqual(3.0, int32(3)))
	assert.True(t, valuesEqual([]byte("a"), "a"))
	assert.True(t, valuesEqual(nil, nil))
	assert.False(t, valuesEqual("3", 3))
	assert.False(t, valuesEqual([]int{1}, []int{2}))
}
