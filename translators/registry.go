package translators

import (
	"sync"

	"github.com/quintans/faults"
	"github.com/samterrell/SQLProcessor/db"
)

var drivers = struct {
	mu          sync.RWMutex
	translators map[string]func() db.Translator
}{
	translators: map[string]func() db.Translator{
		"postgres":    func() db.Translator { return NewPostgreSQLTranslator("") },
		"pgx":         func() db.Translator { return NewPostgreSQLTranslator("") },
		"mysql":       func() db.Translator { return NewMySQL5Translator() },
		"sqlite":      func() db.Translator { return NewSQLiteTranslator() },
		"sqlite3":     func() db.Translator { return NewSQLiteTranslator() },
		"firebirdsql": func() db.Translator { return NewFirebirdSQLTranslator("") },
		"goracle":     func() db.Translator { return NewOracleTranslator("") },
		"godror":      func() db.Translator { return NewOracleTranslator("") },
	},
}

// RegisterDriver maps a database/sql driver name to a translator factory.
func RegisterDriver(driverName string, factory func() db.Translator) {
	drivers.mu.Lock()
	defer drivers.mu.Unlock()
	drivers.translators[driverName] = factory
}

// ForDriver returns a new translator for a database/sql driver name.
func ForDriver(driverName string) (db.Translator, error) {
	drivers.mu.RLock()
	factory, ok := drivers.translators[driverName]
	drivers.mu.RUnlock()
	if !ok {
		return nil, faults.Errorf("no translator registered for driver %s", driverName)
	}
	return factory(), nil
}
