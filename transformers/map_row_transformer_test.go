package transformers

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/samterrell/SQLProcessor/db"
	"github.com/samterrell/SQLProcessor/dbx"
)

func TestMapRowTransformer(t *testing.T) {
	ctx := context.Background()
	src, err := dbx.Open("sqlite", filepath.Join(t.TempDir(), "maps.db"))
	require.NoError(t, err)
	defer src.Close()

	for _, text := range []string{
		"CREATE TABLE color (name TEXT, code BLOB)",
		"INSERT INTO color VALUES ('red', x'FF0000'), ('green', NULL)",
	} {
		_, err := db.MustProcessor("", text).Execute(ctx, src)
		require.NoError(t, err)
	}

	p := db.MustProcessor("colors", "SELECT name, code FROM color ORDER BY name", db.WithTransformer(NewMapRowTransformer()))
	_, err = p.Execute(ctx, src)
	require.NoError(t, err)

	rows := Rows(p.Results())
	require.Len(t, rows, 2)
	assert.Equal(t, map[string]interface{}{"name": "green", "code": nil}, rows[0])
	assert.Equal(t, map[string]interface{}{"name": "red", "code": "\xff\x00\x00"}, rows[1])
	assert.Nil(t, Rows(nil))
}

func TestSimpleTransformerSkipsNils(t *testing.T) {
	s := &SimpleAbstractRowTransformer{}
	_, err := s.Transform(nil)
	assert.Error(t, err, "no Transformer function")

	result := s.BeforeAll()
	s.OnTransformation(result, nil)
	s.OnTransformation(result, "x")
	s.AfterAll(result)
	assert.Equal(t, 1, result.Size())
}
