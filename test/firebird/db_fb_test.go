package firebird

import (
	"fmt"
	"testing"

	"github.com/quintans/toolkit/log"
	"github.com/samterrell/SQLProcessor/test/common"
	trx "github.com/samterrell/SQLProcessor/translators"

	_ "github.com/nakagami/firebirdsql"
)

var logger = log.LoggerFor("github.com/samterrell/SQLProcessor/test")

var schema = common.Schema{
	Drop: []string{
		"DROP TABLE book",
		"DROP TABLE publisher",
		"DROP SEQUENCE publisher_seq",
	},
	Create: []string{
		"CREATE SEQUENCE publisher_seq",
		"CREATE TABLE publisher (id BIGINT NOT NULL PRIMARY KEY, name VARCHAR(50) CHARACTER SET UTF8, address VARCHAR(100))",
		"CREATE TABLE book (id BIGINT NOT NULL PRIMARY KEY, publisher_id BIGINT, name VARCHAR(100) CHARACTER SET UTF8, price NUMERIC(18,4), published TIMESTAMP)",
	},
}

func TestFirebirdSQL(t *testing.T) {
	if testing.Short() {
		t.Skip("needs docker")
	}
	logger.Infof("******* Using FirebirdSQL *******\n")

	expPort := "3050/tcp"
	ctx, server, port, err := common.Container(
		"jacobalberty/firebird:3.0.4",
		expPort,
		map[string]string{
			"FIREBIRD_USER":     "sqlproc",
			"FIREBIRD_PASSWORD": "secret",
			"FIREBIRD_DATABASE": "sqlproc.fdb",
		},
		"firebirdsql",
		"sqlproc:secret@localhost:<port>//firebird/data/sqlproc.fdb",
		1,
	)
	if err != nil {
		t.Fatal(err)
	}
	defer server.Terminate(ctx)

	src := common.InitDB(t, "firebirdsql", fmt.Sprintf("sqlproc:secret@localhost:%s//firebird/data/sqlproc.fdb", port.Port()), schema)
	defer src.Close()

	tester := common.Tester{
		DbName:     common.Firebird,
		Source:     src,
		Translator: trx.NewFirebirdSQLTranslator("publisher_seq"),
		KeyColumn:  "id, ",
		KeyValue:   "NEXT VALUE FOR publisher_seq, ",
	}
	tester.RunAll(t)
}
