package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/antonminaichev/zion-orders/internal/storage"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

// CreatePedido inserts the order and its attached items in one transaction.
func (s *Store) CreatePedido(ctx context.Context, p *pedido.Pedido) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := s.d.rebind(`
        INSERT INTO pedidos (codigo, status, data_criacao, cliente_nome, cliente_email, telefone, enviado, enviado_em)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := tx.QueryRowContext(ctx, q,
		p.Codigo, p.Status, p.DataCriacao, p.ClienteNome, p.ClienteEmail, p.Telefone,
		p.Enviado, s.d.timeArg(p.EnviadoEm),
	).Scan(&p.ID); err != nil {
		return fmt.Errorf("insert pedido: %w", err)
	}

	for i := range p.Itens {
		p.Itens[i].PedidoID = p.ID
		if err := s.insertItem(ctx, tx, &p.Itens[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) GetPedido(ctx context.Context, id int64) (*pedido.Pedido, error) {
	q := s.d.rebind(`SELECT ` + pedidoColumns + ` FROM pedidos WHERE id = ?`)
	p, err := scanPedido(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrPedidoNotFound
	}
	if err != nil {
		return nil, err
	}
	itens, err := s.listItens(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	p.Itens = itens
	return p, nil
}

func (s *Store) ListPedidos(ctx context.Context, limit, offset int) ([]pedido.Pedido, error) {
	q := s.d.rebind(`SELECT ` + pedidoColumns + `
        FROM pedidos
        ORDER BY data_criacao DESC, id DESC
        LIMIT ? OFFSET ?`)
	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []pedido.Pedido{}
	for rows.Next() {
		p, err := scanPedido(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SavePedido writes the editable header fields. Derived shipping fields are
// only written through ItemTx.SaveEnviado.
func (s *Store) SavePedido(ctx context.Context, p *pedido.Pedido) error {
	q := s.d.rebind(`
        UPDATE pedidos
        SET codigo = ?, status = ?, data_criacao = ?, cliente_nome = ?, cliente_email = ?, telefone = ?
        WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q,
		p.Codigo, p.Status, p.DataCriacao, p.ClienteNome, p.ClienteEmail, p.Telefone, p.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res, storage.ErrPedidoNotFound)
}

func (s *Store) DeletePedido(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`DELETE FROM pedidos WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectRow(res, storage.ErrPedidoNotFound)
}

func (s *Store) ListPedidosComItens(ctx context.Context, codigo string) ([]pedido.Pedido, error) {
	pq := `SELECT ` + pedidoColumns + ` FROM pedidos`
	iq := `SELECT i.id, i.pedido_id, i.sku, i.nome_produto, i.plataforma, i.quantidade, i.preco_unitario,
            i.email_conta, i.senha_conta, i.nick_conta, i.codigo_ativacao, i.enviado, i.enviado_em
        FROM itens_pedido i JOIN pedidos p ON p.id = i.pedido_id`
	var args []interface{}
	if codigo != "" {
		pq += ` WHERE codigo = ?`
		iq += ` WHERE p.codigo = ?`
		args = append(args, codigo)
	}
	pq += ` ORDER BY id`
	iq += ` ORDER BY i.pedido_id, i.id`

	rows, err := s.db.QueryContext(ctx, s.d.rebind(pq), args...)
	if err != nil {
		return nil, err
	}
	var out []pedido.Pedido
	index := make(map[int64]int)
	for rows.Next() {
		p, err := scanPedido(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		index[p.ID] = len(out)
		out = append(out, *p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	irows, err := s.db.QueryContext(ctx, s.d.rebind(iq), args...)
	if err != nil {
		return nil, err
	}
	itens, err := scanItens(irows)
	if err != nil {
		return nil, err
	}
	for _, it := range itens {
		if i, ok := index[it.PedidoID]; ok {
			out[i].Itens = append(out[i].Itens, it)
		}
	}
	return out, nil
}

// SetStatusByRef updates orders whose codigo equals ref. Only when no codigo
// matches does a numeric ref address a local id, and then only an order
// without a codigo of its own.
func (s *Store) SetStatusByRef(ctx context.Context, ref string, status string) (storage.RefMatch, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(`UPDATE pedidos SET status = ? WHERE codigo = ?`), status, ref)
	if err != nil {
		return storage.RefMatch{}, err
	}
	n, err := res.RowsAffected()
	if err != nil || n > 0 {
		return storage.RefMatch{Updated: n, ByCodigo: n > 0}, err
	}

	id, err := strconv.ParseInt(ref, 10, 64)
	if err != nil {
		return storage.RefMatch{}, nil
	}
	res, err = s.db.ExecContext(ctx,
		s.d.rebind(`UPDATE pedidos SET status = ? WHERE id = ? AND (codigo IS NULL OR codigo = '')`), status, id)
	if err != nil {
		return storage.RefMatch{}, err
	}
	n, err = res.RowsAffected()
	return storage.RefMatch{Updated: n}, err
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
