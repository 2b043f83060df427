package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

// nullTime accepts native timestamps and the text form used by SQLite.
type nullTime struct {
	Time  time.Time
	Valid bool
}

func (n *nullTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false
		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true
		return nil
	case []byte:
		return n.parse(string(v))
	case string:
		return n.parse(v)
	default:
		return fmt.Errorf("nullTime: unsupported type %T", src)
	}
}

func (n *nullTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			n.Time, n.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("nullTime: cannot parse %q", s)
}

func (n nullTime) ptr() *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

const pedidoColumns = `id, codigo, status, data_criacao, cliente_nome, cliente_email, telefone, enviado, enviado_em`

func scanPedido(row rowScanner) (*pedido.Pedido, error) {
	var (
		p         pedido.Pedido
		codigo    sql.NullString
		telefone  sql.NullString
		enviadoEm nullTime
	)
	if err := row.Scan(
		&p.ID, &codigo, &p.Status, &p.DataCriacao, &p.ClienteNome,
		&p.ClienteEmail, &telefone, &p.Enviado, &enviadoEm,
	); err != nil {
		return nil, err
	}
	p.Codigo = nullString(codigo)
	p.Telefone = nullString(telefone)
	p.EnviadoEm = enviadoEm.ptr()
	return &p, nil
}

const itemColumns = `id, pedido_id, sku, nome_produto, plataforma, quantidade, preco_unitario,
    email_conta, senha_conta, nick_conta, codigo_ativacao, enviado, enviado_em`

func scanItem(row rowScanner) (*pedido.Item, error) {
	var (
		it                                        pedido.Item
		sku, emailConta, senhaConta, nick, codigo sql.NullString
		preco                                     decimal.Decimal
		enviadoEm                                 nullTime
	)
	if err := row.Scan(
		&it.ID, &it.PedidoID, &sku, &it.NomeProduto, &it.Plataforma, &it.Quantidade, &preco,
		&emailConta, &senhaConta, &nick, &codigo, &it.Enviado, &enviadoEm,
	); err != nil {
		return nil, err
	}
	it.SKU = nullString(sku)
	it.PrecoUnitario = preco
	it.EmailConta = nullString(emailConta)
	it.SenhaConta = nullString(senhaConta)
	it.NickConta = nullString(nick)
	it.CodigoAtivacao = nullString(codigo)
	it.EnviadoEm = enviadoEm.ptr()
	return &it, nil
}

func scanItens(rows *sql.Rows) ([]pedido.Item, error) {
	defer rows.Close()
	var out []pedido.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}
