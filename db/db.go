// Package db turns tagged SQL into parameterized statements and runs them,
// alone or grouped in transactions.
//
//	p, err := db.NewProcessor("close jobs", "UPDATE #table# SET state = |state| WHERE name = |name|")
//	p.Set("table", "jobs")
//	p.Set("state", "closed")
//	p.Set("name", "nightly")
//	n, err := p.Execute(ctx, source)
package db

import (
	"github.com/quintans/toolkit/log"
)

var logger = log.LoggerFor("github.com/samterrell/SQLProcessor/db")
