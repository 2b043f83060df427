// Package sqlstore keeps orders and items in PostgreSQL (pgx) or SQLite.
//
// Every item mutation runs inside WithPedidoLock: the order row is locked,
// the mutation is applied and the item list is re-read in the same
// transaction before the shipped flag is recomputed.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type dialect struct {
	driver     string
	lockClause string
	numbered   bool
	schema     []string
}

var postgresDialect = dialect{
	driver:     DriverPostgres,
	lockClause: " FOR UPDATE",
	numbered:   true,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS pedidos (
            id BIGSERIAL PRIMARY KEY,
            codigo TEXT,
            status TEXT NOT NULL DEFAULT 'PENDING',
            data_criacao TEXT NOT NULL,
            cliente_nome TEXT NOT NULL DEFAULT '',
            cliente_email TEXT NOT NULL,
            telefone TEXT,
            enviado BOOLEAN NOT NULL DEFAULT FALSE,
            enviado_em TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pedidos_codigo ON pedidos(codigo)`,
		`CREATE TABLE IF NOT EXISTS itens_pedido (
            id BIGSERIAL PRIMARY KEY,
            pedido_id BIGINT NOT NULL REFERENCES pedidos(id) ON DELETE CASCADE,
            sku TEXT,
            nome_produto TEXT NOT NULL DEFAULT '',
            plataforma TEXT NOT NULL,
            quantidade INT NOT NULL DEFAULT 1 CHECK (quantidade >= 1),
            preco_unitario NUMERIC(10,2) NOT NULL DEFAULT 0 CHECK (preco_unitario >= 0),
            email_conta TEXT,
            senha_conta TEXT,
            nick_conta TEXT,
            codigo_ativacao TEXT,
            enviado BOOLEAN NOT NULL DEFAULT FALSE,
            enviado_em TIMESTAMPTZ
        )`,
		`CREATE INDEX IF NOT EXISTS idx_itens_pedido_pedido_id ON itens_pedido(pedido_id)`,
	},
}

var sqliteDialect = dialect{
	driver: DriverSQLite,
	schema: []string{
		`CREATE TABLE IF NOT EXISTS pedidos (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            codigo TEXT,
            status TEXT NOT NULL DEFAULT 'PENDING',
            data_criacao TEXT NOT NULL,
            cliente_nome TEXT NOT NULL DEFAULT '',
            cliente_email TEXT NOT NULL,
            telefone TEXT,
            enviado BOOLEAN NOT NULL DEFAULT 0,
            enviado_em TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_pedidos_codigo ON pedidos(codigo)`,
		`CREATE TABLE IF NOT EXISTS itens_pedido (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            pedido_id INTEGER NOT NULL REFERENCES pedidos(id) ON DELETE CASCADE,
            sku TEXT,
            nome_produto TEXT NOT NULL DEFAULT '',
            plataforma TEXT NOT NULL,
            quantidade INTEGER NOT NULL DEFAULT 1 CHECK (quantidade >= 1),
            preco_unitario TEXT NOT NULL DEFAULT '0',
            email_conta TEXT,
            senha_conta TEXT,
            nick_conta TEXT,
            codigo_ativacao TEXT,
            enviado BOOLEAN NOT NULL DEFAULT 0,
            enviado_em TEXT
        )`,
		`CREATE INDEX IF NOT EXISTS idx_itens_pedido_pedido_id ON itens_pedido(pedido_id)`,
	},
}

// rebind turns ? placeholders into $n for drivers that need numbered ones.
func (d dialect) rebind(q string) string {
	if !d.numbered {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// timeArg stores timestamps as RFC3339 text in SQLite and natively elsewhere.
func (d dialect) timeArg(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	if d.driver == DriverSQLite {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC()
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Store struct {
	db *sql.DB
	d  dialect
}

// New opens the database for the given driver ("pgx" or "sqlite"),
// checks the connection and creates the tables.
func New(driver, dsn string) (*Store, error) {
	var d dialect
	switch driver {
	case DriverPostgres, "postgres":
		d = postgresDialect
	case DriverSQLite:
		d = sqliteDialect
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if d.driver == DriverSQLite {
		// один writer; транзакции сериализуются на единственном соединении
		db.SetMaxOpenConns(1)
	}
	s := &Store{db: db, d: d}

	if err := s.db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func sqliteDSN(path string) string {
	if path == "" || path == ":memory:" {
		path = "file::memory:"
	}
	if strings.HasPrefix(path, "file:") {
		if strings.Contains(path, "_pragma") {
			return path
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return path + sep + "_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)
}

func (s *Store) initSchema() error {
	for _, q := range s.d.schema {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
