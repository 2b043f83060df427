package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/antonminaichev/zion-orders/internal/storage"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

func (s *Store) ListItens(ctx context.Context, pedidoID int64) ([]pedido.Item, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT 1 FROM pedidos WHERE id = ?`), pedidoID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrPedidoNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.listItens(ctx, s.db, pedidoID)
}

func (s *Store) listItens(ctx context.Context, q querier, pedidoID int64) ([]pedido.Item, error) {
	rows, err := q.QueryContext(ctx,
		s.d.rebind(`SELECT `+itemColumns+` FROM itens_pedido WHERE pedido_id = ? ORDER BY id`), pedidoID)
	if err != nil {
		return nil, err
	}
	itens, err := scanItens(rows)
	if err != nil {
		return nil, err
	}
	if itens == nil {
		itens = []pedido.Item{}
	}
	return itens, nil
}

func (s *Store) PedidoIDForItem(ctx context.Context, itemID int64) (int64, error) {
	var pedidoID int64
	err := s.db.QueryRowContext(ctx,
		s.d.rebind(`SELECT pedido_id FROM itens_pedido WHERE id = ?`), itemID).Scan(&pedidoID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, storage.ErrItemNotFound
	}
	return pedidoID, err
}

func (s *Store) insertItem(ctx context.Context, q querier, it *pedido.Item) error {
	query := s.d.rebind(`
        INSERT INTO itens_pedido (pedido_id, sku, nome_produto, plataforma, quantidade, preco_unitario,
            email_conta, senha_conta, nick_conta, codigo_ativacao, enviado, enviado_em)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`)
	if err := q.QueryRowContext(ctx, query,
		it.PedidoID, it.SKU, it.NomeProduto, string(it.Plataforma), it.Quantidade, it.PrecoUnitario.StringFixed(2),
		it.EmailConta, it.SenhaConta, it.NickConta, it.CodigoAtivacao, it.Enviado, s.d.timeArg(it.EnviadoEm),
	).Scan(&it.ID); err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// WithPedidoLock runs fn in a transaction holding the order row lock.
func (s *Store) WithPedidoLock(ctx context.Context, pedidoID int64, fn func(tx storage.ItemTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := s.d.rebind(`SELECT ` + pedidoColumns + ` FROM pedidos WHERE id = ?` + s.d.lockClause)
	p, err := scanPedido(tx.QueryRowContext(ctx, q, pedidoID))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrPedidoNotFound
	}
	if err != nil {
		return err
	}

	if err := fn(&itemTx{s: s, tx: tx, pedido: p}); err != nil {
		return err
	}
	return tx.Commit()
}

type itemTx struct {
	s      *Store
	tx     *sql.Tx
	pedido *pedido.Pedido
}

func (t *itemTx) Pedido() *pedido.Pedido {
	return t.pedido
}

func (t *itemTx) Item(ctx context.Context, itemID int64) (*pedido.Item, error) {
	q := t.s.d.rebind(`SELECT ` + itemColumns + ` FROM itens_pedido WHERE id = ? AND pedido_id = ?`)
	it, err := scanItem(t.tx.QueryRowContext(ctx, q, itemID, t.pedido.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrItemNotFound
	}
	return it, err
}

func (t *itemTx) Itens(ctx context.Context) ([]pedido.Item, error) {
	return t.s.listItens(ctx, t.tx, t.pedido.ID)
}

func (t *itemTx) InsertItem(ctx context.Context, it *pedido.Item) error {
	it.PedidoID = t.pedido.ID
	return t.s.insertItem(ctx, t.tx, it)
}

func (t *itemTx) SaveItem(ctx context.Context, it *pedido.Item) error {
	q := t.s.d.rebind(`
        UPDATE itens_pedido
        SET sku = ?, nome_produto = ?, plataforma = ?, quantidade = ?, preco_unitario = ?,
            email_conta = ?, senha_conta = ?, nick_conta = ?, codigo_ativacao = ?,
            enviado = ?, enviado_em = ?
        WHERE id = ? AND pedido_id = ?`)
	res, err := t.tx.ExecContext(ctx, q,
		it.SKU, it.NomeProduto, string(it.Plataforma), it.Quantidade, it.PrecoUnitario.StringFixed(2),
		it.EmailConta, it.SenhaConta, it.NickConta, it.CodigoAtivacao,
		it.Enviado, t.s.d.timeArg(it.EnviadoEm), it.ID, t.pedido.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(res, storage.ErrItemNotFound)
}

func (t *itemTx) DeleteItem(ctx context.Context, itemID int64) error {
	res, err := t.tx.ExecContext(ctx,
		t.s.d.rebind(`DELETE FROM itens_pedido WHERE id = ? AND pedido_id = ?`), itemID, t.pedido.ID)
	if err != nil {
		return err
	}
	return expectRow(res, storage.ErrItemNotFound)
}

func (t *itemTx) SaveEnviado(ctx context.Context, enviado bool, enviadoEm *time.Time) error {
	_, err := t.tx.ExecContext(ctx,
		t.s.d.rebind(`UPDATE pedidos SET enviado = ?, enviado_em = ? WHERE id = ?`),
		enviado, t.s.d.timeArg(enviadoEm), t.pedido.ID)
	if err != nil {
		return err
	}
	t.pedido.Enviado = enviado
	t.pedido.EnviadoEm = enviadoEm
	return nil
}
