package main

import (
	"context"
	"fmt"

	"github.com/samterrell/SQLProcessor/db"
	"github.com/samterrell/SQLProcessor/dbx"
	trx "github.com/samterrell/SQLProcessor/translators"

	_ "github.com/go-sql-driver/mysql"
)

// the bean
type Publisher struct {
	Id   int64
	Name string
}

func main() {
	// database configuration
	src, err := dbx.Open("mysql", "root:root@/sqlproc?parseTime=true")
	if err != nil {
		fmt.Printf("%+v\n", err)
		panic(err)
	}
	defer src.Close()

	// insert every publisher, collecting the generated keys
	insert := db.MustProcessor("add publishers", "INSERT INTO publisher (name) VALUES (|name|)",
		db.WithTranslator(trx.NewMySQL5Translator()))
	insert.SetBeans(Publisher{Name: "Geek Publications"}, Publisher{Name: "Edições Lusas"})

	ctx := context.Background()
	if _, err = insert.Execute(ctx, src); err != nil {
		fmt.Printf("%+v\n", err)
		panic(err)
	}
	fmt.Println("ids:", insert.InsertedIds())

	// read one back
	var publisher Publisher
	query := db.MustProcessor("find publisher", "SELECT id, name FROM publisher WHERE id = |id|",
		db.OnRow(func(row *dbx.RestrictedCursor) (bool, error) {
			return false, row.Scan(&publisher.Id, &publisher.Name)
		}))
	query.Set("id", insert.InsertedIds()[0])
	if _, err = query.Execute(ctx, src); err != nil {
		fmt.Printf("%+v\n", err)
		panic(err)
	}

	fmt.Println(publisher)
}
