package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/samterrell/SQLProcessor/db"
	"github.com/samterrell/SQLProcessor/dbx"
	"github.com/samterrell/SQLProcessor/translators"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/nakagami/firebirdsql"
	_ "modernc.org/sqlite"
)

type options struct {
	Driver  string            `short:"d" long:"driver" env:"SQLPROC_DRIVER" description:"database/sql driver name, overrides the script"`
	DSN     string            `long:"dsn" env:"SQLPROC_DSN" description:"data source name, overrides the script"`
	Script  string            `short:"s" long:"script" env:"SQLPROC_SCRIPT" required:"true" description:"yaml or toml file with the statements to run"`
	Set     map[string]string `long:"set" description:"value for every statement having the key, as key:value"`
	Tx      bool              `long:"tx" description:"run all statements in one transaction"`
	Retries int               `long:"retries" default:"1" description:"connection attempts"`
	Dbg     bool              `long:"dbg" description:"debug mode"`
}

type script struct {
	Driver      string      `yaml:"driver" toml:"driver"`
	DSN         string      `yaml:"dsn" toml:"dsn"`
	Transaction bool        `yaml:"transaction" toml:"transaction"`
	Statements  []statement `yaml:"statements" toml:"statements"`
}

type statement struct {
	Description string                   `yaml:"description" toml:"description"`
	SQL         string                   `yaml:"sql" toml:"sql"`
	Set         map[string]interface{}   `yaml:"set" toml:"set"`
	Each        []map[string]interface{} `yaml:"each" toml:"each"`
}

var revision = "latest"

var exitFunc = os.Exit

func main() {
	fmt.Printf("sqlproc %s\n", revision)

	var opts options
	p := flags.NewParser(&opts, flags.PrintErrors|flags.PassDoubleDash|flags.HelpFlag)
	if _, err := p.Parse(); err != nil {
		exitFunc(1) // can be redefined in tests
	}
	setupLog(opts.Dbg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, opts, os.Stdout); err != nil {
		lgr.Printf("[ERROR] %v", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	sc, err := loadScript(opts.Script)
	if err != nil {
		return err
	}
	driver := firstOf(opts.Driver, sc.Driver, "sqlite")
	dsn := firstOf(opts.DSN, sc.DSN)
	if dsn == "" {
		return fmt.Errorf("no data source name given")
	}

	src, err := dbx.Connect(ctx, driver, dsn, dbx.RetryOptions{MaxRetries: opts.Retries, BaseDelay: time.Second, MaxDelay: 10 * time.Second})
	if err != nil {
		return fmt.Errorf("can't connect to %s: %w", driver, err)
	}
	defer src.Close()

	translator, err := translators.ForDriver(driver)
	if err != nil {
		lgr.Printf("[WARN] %v, using ? placeholders", err)
		translator = translators.NewGenericTranslator()
	}

	sink := dbx.NewLgrLogger(lgr.Default())
	tracker := dbx.NewLeakTracker(src, sink)

	procs := make([]*db.Processor, 0, len(sc.Statements))
	for i, st := range sc.Statements {
		p, err := buildProcessor(st, opts.Set, translator, sink, out)
		if err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
		procs = append(procs, p)
	}

	if opts.Tx || sc.Transaction {
		tx := db.NewTransaction().SetLogger(sink)
		for _, p := range procs {
			tx.Add(p)
		}
		if err := tx.Execute(ctx, tracker); err != nil {
			return fmt.Errorf("transaction failed: %w", err)
		}
		for _, p := range procs {
			report(out, p)
		}
	} else {
		for _, p := range procs {
			if _, err := p.Execute(ctx, tracker); err != nil {
				return fmt.Errorf("%s failed: %w", p.Description(), err)
			}
			report(out, p)
		}
	}

	if n := tracker.Report(); n > 0 {
		return fmt.Errorf("%d connection(s) were not released", n)
	}
	return nil
}

func buildProcessor(st statement, global map[string]string, translator db.Translator, sink dbx.Logger, out io.Writer) (*db.Processor, error) {
	header := color.New(color.FgCyan).SprintFunc()
	printed := false
	p, err := db.NewProcessor(st.Description, st.SQL,
		db.WithLogger(sink),
		db.WithTranslator(translator),
		db.OnRow(func(row *dbx.RestrictedCursor) (bool, error) {
			cols, err := row.Columns()
			if err != nil {
				return false, err
			}
			if !printed {
				fmt.Fprintln(out, header(strings.Join(cols, "\t")))
				printed = true
			}
			values, err := row.Values()
			if err != nil {
				return false, err
			}
			cells := make([]string, len(values))
			for i, v := range values {
				if b, ok := v.([]byte); ok {
					v = string(b)
				}
				cells[i] = fmt.Sprint(v)
			}
			fmt.Fprintln(out, strings.Join(cells, "\t"))
			return true, nil
		}),
	)
	if err != nil {
		return nil, err
	}

	for k, v := range global {
		if p.HasKey(k) {
			if err := p.Set(k, v); err != nil {
				return nil, err
			}
		}
	}
	for k, v := range st.Set {
		if err := p.Set(k, v); err != nil {
			return nil, err
		}
	}
	if len(st.Each) > 0 {
		beans := make([]interface{}, len(st.Each))
		for i, b := range st.Each {
			beans[i] = b
		}
		p.SetBeans(beans...)
	}
	return p, nil
}

func report(out io.Writer, p *db.Processor) {
	if p.Template().IsQuery() {
		return
	}
	fmt.Fprintf(out, "%s: %d row(s) updated\n", p.Description(), p.RowsUpdated())
	if ids := p.InsertedIds(); len(ids) > 0 {
		fmt.Fprintf(out, "%s: inserted ids %v\n", p.Description(), ids)
	}
}

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path) // nolint
	if err != nil {
		return nil, fmt.Errorf("can't read script %s: %w", path, err)
	}

	var sc script
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, &sc)
	default:
		err = yaml.Unmarshal(data, &sc)
	}
	if err != nil {
		return nil, fmt.Errorf("can't parse script %s: %w", path, err)
	}
	if len(sc.Statements) == 0 {
		return nil, fmt.Errorf("script %s has no statements", path)
	}
	return &sc, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func setupLog(dbg bool) {
	logOpts := []lgr.Option{lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.CallerFile, lgr.CallerFunc, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
