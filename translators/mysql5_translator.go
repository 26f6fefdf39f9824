package translators

import (
	"context"
	"database/sql"

	"github.com/samterrell/SQLProcessor/db"
	"github.com/samterrell/SQLProcessor/dbx"
)

// MySQL5Translator takes inserted ids from the insert's own result.
// A statement that generated no AUTO_INCREMENT value reports 0, which means no id.
type MySQL5Translator struct {
	*GenericTranslator
}

var _ db.Translator = &MySQL5Translator{}

func NewMySQL5Translator() *MySQL5Translator {
	this := new(MySQL5Translator)
	this.GenericTranslator = new(GenericTranslator)
	this.Init(this, "mysql")
	return this
}

func (m *MySQL5Translator) FetchLastId(ctx context.Context, conn dbx.Connection, res sql.Result) (int64, bool, error) {
	id, found, err := ResultIdProvider{}.FetchLastId(ctx, conn, res)
	if err != nil || !found || id == 0 {
		return 0, false, err
	}
	return id, true, nil
}
