package schema

import (
	"fmt"
	"strings"
	"time"
)

// Dialect identifies the target SQL engine for migration generation.
type Dialect int

const (
	Postgres Dialect = iota
	Mysql
	Sqlite
)

// SQLType maps a FieldType to its dialect-specific column type, per
// spec.md §4.3.
func (t FieldType) SQLType(d Dialect) string {
	switch t.Kind {
	case KindString:
		return fmt.Sprintf("VARCHAR(%d)", t.Len)
	case KindText:
		return "TEXT"
	case KindInteger:
		return "INTEGER"
	case KindBigInt:
		return "BIGINT"
	case KindBoolean:
		if d == Sqlite {
			return "INTEGER"
		}
		return "BOOLEAN"
	case KindTimestamp:
		if d == Postgres {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case KindDate:
		return "DATE"
	case KindJSON:
		if d == Postgres {
			return "JSONB"
		}
		return "JSON"
	case KindBinary:
		return "BLOB"
	case KindUUID:
		if d == Postgres {
			return "UUID"
		}
		return "VARCHAR(36)"
	case KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", t.Prec, t.Scale)
	default:
		return "TEXT"
	}
}

// MigrationOpKind identifies the kind of a rendered migration operation.
type MigrationOpKind int

const (
	MigCreateTable MigrationOpKind = iota
	MigAddColumn
	MigAlterColumn
	MigCreateIndex
	MigDropIndex
	MigRawSQL
)

// MigrationOp is a single rendered SQL statement.
type MigrationOp struct {
	Kind MigrationOpKind
	SQL  string
}

// Migration is a named, ordered set of rendered operations.
type Migration struct {
	ID         string
	Name       string
	CreatedAt  time.Time
	Operations []MigrationOp
	Applied    bool
}

// NewMigration builds a migration identifier per spec.md §6:
// <YYYYMMDDHHMMSS>_<snake_cased_lowercase_name>.
func NewMigration(name string) *Migration {
	now := time.Now().UTC()
	slug := strings.ToLower(strings.ReplaceAll(name, " ", "_"))
	return &Migration{
		ID:        fmt.Sprintf("%s_%s", now.Format("20060102150405"), slug),
		Name:      name,
		CreatedAt: now,
	}
}

func (m *Migration) AddOperation(op MigrationOp) { m.Operations = append(m.Operations, op) }

// ToSQL concatenates the migration's rendered statements in order.
func (m *Migration) ToSQL() []string {
	out := make([]string, len(m.Operations))
	for i, op := range m.Operations {
		out[i] = op.SQL
	}
	return out
}

// Runner generates migrations from schema diffs for a specific dialect.
type Runner struct {
	Dialect Dialect
}

func NewRunner(d Dialect) *Runner { return &Runner{Dialect: d} }

// GenerateMigration renders every additive DiffOp into dialect SQL.
func (r *Runner) GenerateMigration(name string, diff Diff) *Migration {
	m := NewMigration(name)
	for _, op := range diff.Operations {
		if rendered, ok := r.renderOp(op); ok {
			m.AddOperation(rendered)
		}
	}
	return m
}

func (r *Runner) renderOp(op DiffOp) (MigrationOp, bool) {
	switch op.Kind {
	case OpCreateTable:
		return MigrationOp{Kind: MigCreateTable, SQL: r.createTable(op.Model)}, true
	case OpAddColumn:
		return MigrationOp{Kind: MigAddColumn, SQL: r.addColumn(op.Table, op.Field)}, true
	case OpAlterColumn:
		return MigrationOp{Kind: MigAlterColumn, SQL: r.alterColumn(op.Table, op.NewField)}, true
	case OpCreateIndex:
		return MigrationOp{Kind: MigCreateIndex, SQL: r.createIndex(op.Table, op.Index)}, true
	case OpDropIndex:
		return MigrationOp{Kind: MigDropIndex, SQL: r.dropIndex(op.Table, op.IndexName)}, true
	default:
		return MigrationOp{}, false
	}
}

func (r *Runner) columnDef(f Field) string {
	col := fmt.Sprintf("%s %s", f.Name, f.Type.SQLType(r.Dialect))
	switch {
	case f.PrimaryKey:
		col += " PRIMARY KEY"
	default:
		if f.Required {
			col += " NOT NULL"
		}
		if f.Unique {
			col += " UNIQUE"
		}
	}
	if f.Default != nil {
		col += " DEFAULT " + *f.Default
	}
	return col
}

func (r *Runner) createTable(model ModelDefinition) string {
	var cols []string
	var fks []string
	for _, f := range model.Fields {
		cols = append(cols, r.columnDef(f))
		if f.References != nil {
			parts := strings.SplitN(*f.References, ".", 2)
			if len(parts) == 2 {
				fk := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s(%s)", f.Name, parts[0], parts[1])
				if f.OnDelete != nil {
					fk += " ON DELETE " + onDeleteSQL(*f.OnDelete)
				}
				fks = append(fks, fk)
			}
		}
	}
	all := append(cols, fks...)
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", model.Name, strings.Join(all, ",\n  "))
}

func onDeleteSQL(a ReferentialActionValue) string {
	switch a {
	case OnDeleteCascade:
		return "CASCADE"
	case OnDeleteSetNull:
		return "SET NULL"
	case OnDeleteRestrict:
		return "RESTRICT"
	default:
		return "NO ACTION"
	}
}

func (r *Runner) addColumn(table string, f Field) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", table, r.columnDef(f))
}

func (r *Runner) alterColumn(table string, f Field) string {
	switch r.Dialect {
	case Postgres:
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s", table, f.Name, f.Type.SQLType(r.Dialect))
	case Mysql:
		return fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", table, r.columnDef(f))
	default: // Sqlite
		return fmt.Sprintf("-- ALTER COLUMN unsupported on sqlite: %s.%s", table, f.Name)
	}
}

func (r *Runner) createIndex(table string, idx IndexDefinition) string {
	uniq := ""
	if idx.Unique {
		uniq = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", uniq, idx.Name, table, strings.Join(idx.Columns, ", "))
}

func (r *Runner) dropIndex(table, name string) string {
	return fmt.Sprintf("DROP INDEX %s", name)
}
