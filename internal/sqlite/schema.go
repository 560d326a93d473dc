package sqlite

import (
	"strings"

	"github.com/mesh-intelligence/crudkit/pkg/types"
)

// columnTypes maps attribute types to SQLite column affinities.
var columnTypes = map[string]string{
	types.TypeString:  "TEXT",
	types.TypeInteger: "INTEGER",
	types.TypeFloat:   "REAL",
	types.TypeBoolean: "INTEGER",
	types.TypeJSON:    "TEXT",
}

// quoteIdent quotes name as an SQLite identifier.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// columnDDL renders the column definition for one attribute.
func columnDDL(name string, a types.Attribute) string {
	var sb strings.Builder
	sb.WriteString(quoteIdent(name))
	sb.WriteByte(' ')
	sb.WriteString(columnTypes[a.Type])
	switch {
	case a.PrimaryKey && a.AutoIncrement:
		sb.WriteString(" PRIMARY KEY AUTOINCREMENT")
	case a.PrimaryKey:
		sb.WriteString(" PRIMARY KEY NOT NULL")
	case a.Unique:
		sb.WriteString(" UNIQUE")
	}
	if a.Required && !a.PrimaryKey {
		sb.WriteString(" NOT NULL")
	}
	return sb.String()
}

// createTableSQL renders the CREATE TABLE statement for a model. def must
// already carry its defaults.
func createTableSQL(name string, def types.Definition) string {
	cols := make([]string, 0, len(def))
	for _, attr := range def.Names() {
		cols = append(cols, "    "+columnDDL(attr, def[attr]))
	}
	return "CREATE TABLE IF NOT EXISTS " + quoteIdent(name) + " (\n" +
		strings.Join(cols, ",\n") + "\n);"
}
