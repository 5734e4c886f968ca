package sqlstore

import (
	"fmt"
	"strings"

	"github.com/paragnema1/scc/storage"
)

// dialect carries the SQL differences between the supported engines.
type dialect struct {
	name        string
	driver      string
	primaryKey  string
	types       map[storage.ColumnType]string
	placeholder func(n int) string
}

var postgresDialect = dialect{
	name:       "postgres",
	driver:     "pgx",
	primaryKey: "id BIGSERIAL PRIMARY KEY",
	types: map[storage.ColumnType]string{
		storage.Text:  "TEXT",
		storage.Float: "DOUBLE PRECISION",
		storage.Int:   "BIGINT",
		storage.Bool:  "BOOLEAN",
		storage.JSON:  "JSONB",
	},
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

var sqliteDialect = dialect{
	name:       "sqlite",
	driver:     "sqlite",
	primaryKey: "id INTEGER PRIMARY KEY AUTOINCREMENT",
	types: map[storage.ColumnType]string{
		storage.Text:  "TEXT",
		storage.Float: "REAL",
		storage.Int:   "INTEGER",
		storage.Bool:  "BOOLEAN",
		storage.JSON:  "TEXT",
	},
	placeholder: func(int) string { return "?" },
}

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// createTable returns the DDL for t.
func (d dialect) createTable(t storage.Table) []string {
	cols := []string{d.primaryKey}
	for _, c := range t.Columns {
		cols = append(cols, quote(c.Name)+" "+d.types[c.Type])
	}
	stmts := []string{fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s\n)",
		quote(string(t.Kind)), strings.Join(cols, ",\n\t"))}

	if t.Key != "" {
		stmts = append(stmts, fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			quote(string(t.Kind)+"_"+t.Key+"_key"), quote(string(t.Kind)), quote(t.Key)))
	}
	return stmts
}

// insert returns the INSERT statement for the given columns. Keyed tables
// upsert and keep stored values for columns the update leaves out.
func (d dialect) insert(t storage.Table, columns []string) string {
	names := make([]string, len(columns))
	marks := make([]string, len(columns))
	for i, c := range columns {
		names[i] = quote(c)
		marks[i] = d.placeholder(i + 1)
	}
	table := quote(string(t.Kind))
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(names, ", "), strings.Join(marks, ", "))
	if t.Key == "" {
		return stmt
	}

	var sets []string
	for _, c := range columns {
		if c == t.Key {
			continue
		}
		sets = append(sets, fmt.Sprintf("%s = COALESCE(excluded.%s, %s.%s)", quote(c), quote(c), table, quote(c)))
	}
	if len(sets) == 0 {
		return stmt + fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", quote(t.Key))
	}
	return stmt + fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", quote(t.Key), strings.Join(sets, ", "))
}

// selectAll returns the SELECT statement for every column of t in
// insertion order.
func (d dialect) selectAll(t storage.Table) string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = quote(c.Name)
	}
	return fmt.Sprintf("SELECT %s FROM %s ORDER BY id", strings.Join(names, ", "), quote(string(t.Kind)))
}
