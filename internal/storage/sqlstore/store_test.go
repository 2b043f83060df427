package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonminaichev/zion-orders/internal/storage"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(DriverSQLite, "")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func strPtr(s string) *string { return &s }

func newPedido(codigo string, itens ...pedido.Item) *pedido.Pedido {
	p := &pedido.Pedido{
		Status:       pedido.StatusPaid,
		DataCriacao:  "2025-03-01",
		ClienteNome:  "Ana",
		ClienteEmail: "ana@mail.com",
		Itens:        itens,
	}
	if codigo != "" {
		p.Codigo = strPtr(codigo)
	}
	return p
}

func item(plat pedido.Plataforma, qty int, price string) pedido.Item {
	return pedido.Item{
		SKU:           strPtr("SKU"),
		NomeProduto:   "Jogo",
		Plataforma:    plat,
		Quantidade:    qty,
		PrecoUnitario: decimal.RequireFromString(price),
	}
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", postgresDialect.rebind("a = ? AND b = ?"))
	assert.Equal(t, "a = ?", sqliteDialect.rebind("a = ?"))
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", sqliteDSN(""))
	assert.Contains(t, sqliteDSN("/tmp/zion.db"), "journal_mode(WAL)")
	assert.Equal(t, "file:x.db?_pragma=foo", sqliteDSN("file:x.db?_pragma=foo"))
}

func TestNewUnsupportedDriver(t *testing.T) {
	_, err := New("mysql", "")
	assert.Error(t, err)
}

func TestCreateAndGetPedido(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := newPedido("Y-1", item(pedido.PlataformaPS5, 2, "19.90"), item(pedido.PlataformaPS4s, 1, "5.00"))
	require.NoError(t, s.CreatePedido(ctx, p))
	require.NotZero(t, p.ID)
	assert.Equal(t, p.ID, p.Itens[0].PedidoID)

	got, err := s.GetPedido(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Y-1", *got.Codigo)
	assert.Equal(t, "ana@mail.com", got.ClienteEmail)
	assert.Nil(t, got.Telefone)
	require.Len(t, got.Itens, 2)
	assert.Equal(t, "39.8", got.Itens[0].Total().String())
	assert.Equal(t, "44.8", got.Total().String())
	assert.Equal(t, pedido.PlataformaPS4s, got.Itens[1].Plataforma)

	_, err = s.GetPedido(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrPedidoNotFound)
}

func TestListAndSavePedido(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for _, c := range []string{"A", "B", "C"} {
		require.NoError(t, s.CreatePedido(ctx, newPedido(c)))
	}

	list, err := s.ListPedidos(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "C", *list[0].Codigo)

	list, err = s.ListPedidos(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "A", *list[0].Codigo)

	p := list[0]
	p.Status = "DELIVERED"
	p.Telefone = strPtr("11999")
	require.NoError(t, s.SavePedido(ctx, &p))
	got, err := s.GetPedido(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "DELIVERED", got.Status)
	assert.Equal(t, "11999", *got.Telefone)

	p.ID = 999
	assert.ErrorIs(t, s.SavePedido(ctx, &p), storage.ErrPedidoNotFound)
}

func TestDeletePedidoCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newPedido("Y-1", item(pedido.PlataformaPS5, 1, "10"))
	require.NoError(t, s.CreatePedido(ctx, p))

	require.NoError(t, s.DeletePedido(ctx, p.ID))
	assert.ErrorIs(t, s.DeletePedido(ctx, p.ID), storage.ErrPedidoNotFound)
	_, err := s.PedidoIDForItem(ctx, p.Itens[0].ID)
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
}

func TestWithPedidoLockRecompute(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newPedido("Y-1", item(pedido.PlataformaPS5, 1, "10"))
	require.NoError(t, s.CreatePedido(ctx, p))
	itemID := p.Itens[0].ID
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	pid, err := s.PedidoIDForItem(ctx, itemID)
	require.NoError(t, err)
	require.Equal(t, p.ID, pid)

	err = s.WithPedidoLock(ctx, pid, func(tx storage.ItemTx) error {
		it, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}
		it.SetEnviado(true, now)
		if err := tx.SaveItem(ctx, it); err != nil {
			return err
		}
		itens, err := tx.Itens(ctx)
		if err != nil {
			return err
		}
		locked := tx.Pedido()
		if locked.Recompute(itens, now) {
			return tx.SaveEnviado(ctx, locked.Enviado, locked.EnviadoEm)
		}
		return nil
	})
	require.NoError(t, err)

	got, err := s.GetPedido(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Enviado)
	require.NotNil(t, got.EnviadoEm)
	assert.True(t, now.Equal(*got.EnviadoEm))
	assert.True(t, got.Itens[0].Enviado)
	assert.True(t, now.Equal(*got.Itens[0].EnviadoEm))
}

func TestWithPedidoLockRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newPedido("Y-1", item(pedido.PlataformaPS5, 1, "10"))
	require.NoError(t, s.CreatePedido(ctx, p))

	boom := errors.New("boom")
	err := s.WithPedidoLock(ctx, p.ID, func(tx storage.ItemTx) error {
		if err := tx.DeleteItem(ctx, p.Itens[0].ID); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	itens, err := s.ListItens(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, itens, 1)

	err = s.WithPedidoLock(ctx, 999, func(tx storage.ItemTx) error { return nil })
	assert.ErrorIs(t, err, storage.ErrPedidoNotFound)

	err = s.WithPedidoLock(ctx, p.ID, func(tx storage.ItemTx) error {
		_, err := tx.Item(ctx, 999)
		return err
	})
	assert.ErrorIs(t, err, storage.ErrItemNotFound)
}

func TestInsertItemInTx(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	p := newPedido("")
	require.NoError(t, s.CreatePedido(ctx, p))

	it := item(pedido.PlataformaPS4, 3, "1.50")
	require.NoError(t, s.WithPedidoLock(ctx, p.ID, func(tx storage.ItemTx) error {
		return tx.InsertItem(ctx, &it)
	}))
	assert.NotZero(t, it.ID)

	itens, err := s.ListItens(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, itens, 1)
	assert.Equal(t, "4.5", itens[0].Total().String())

	_, err = s.ListItens(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrPedidoNotFound)
}

func TestListPedidosComItensAndStatusByRef(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.CreatePedido(ctx, newPedido("Y-1", item(pedido.PlataformaPS5, 1, "10"))))
	require.NoError(t, s.CreatePedido(ctx, newPedido("Y-1", item(pedido.PlataformaPS5, 2, "10"))))
	require.NoError(t, s.CreatePedido(ctx, newPedido("")))

	all, err := s.ListPedidosComItens(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Len(t, all[1].Itens, 1)
	assert.Empty(t, all[2].Itens)

	only, err := s.ListPedidosComItens(ctx, "Y-1")
	require.NoError(t, err)
	assert.Len(t, only, 2)

	m, err := s.SetStatusByRef(ctx, "Y-1", "DELIVERED")
	require.NoError(t, err)
	assert.Equal(t, storage.RefMatch{Updated: 2, ByCodigo: true}, m)

	m, err = s.SetStatusByRef(ctx, "3", "SENT")
	require.NoError(t, err)
	assert.Equal(t, storage.RefMatch{Updated: 1}, m)

	// order 1 carries codigo Y-1, so a numeric ref never reaches it by id
	m, err = s.SetStatusByRef(ctx, "1", "SENT")
	require.NoError(t, err)
	assert.Zero(t, m.Updated)

	m, err = s.SetStatusByRef(ctx, "missing", "SENT")
	require.NoError(t, err)
	assert.Zero(t, m.Updated)
}

func TestSetStatusByRefPrefersCodigo(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := newPedido("X-A")
	b := newPedido("1")
	require.NoError(t, s.CreatePedido(ctx, a))
	require.NoError(t, s.CreatePedido(ctx, b))
	require.Equal(t, int64(1), a.ID)

	m, err := s.SetStatusByRef(ctx, "1", "DELIVERED")
	require.NoError(t, err)
	assert.Equal(t, storage.RefMatch{Updated: 1, ByCodigo: true}, m)

	got, err := s.GetPedido(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, pedido.StatusPaid, got.Status)
	got, err = s.GetPedido(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "DELIVERED", got.Status)
}

func TestConcurrentToggleSerialized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	var itens []pedido.Item
	for i := 0; i < 5; i++ {
		itens = append(itens, item(pedido.PlataformaPS5, 1, "1"))
	}
	p := newPedido("Y-1", itens...)
	require.NoError(t, s.CreatePedido(ctx, p))

	var wg sync.WaitGroup
	for _, it := range p.Itens {
		wg.Add(1)
		go func(itemID int64) {
			defer wg.Done()
			err := s.WithPedidoLock(ctx, p.ID, func(tx storage.ItemTx) error {
				cur, err := tx.Item(ctx, itemID)
				if err != nil {
					return err
				}
				cur.SetEnviado(true, time.Now())
				if err := tx.SaveItem(ctx, cur); err != nil {
					return err
				}
				fresh, err := tx.Itens(ctx)
				if err != nil {
					return err
				}
				locked := tx.Pedido()
				if locked.Recompute(fresh, time.Now()) {
					return tx.SaveEnviado(ctx, locked.Enviado, locked.EnviadoEm)
				}
				return nil
			})
			assert.NoError(t, err)
		}(it.ID)
	}
	wg.Wait()

	got, err := s.GetPedido(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Enviado)
	assert.NotNil(t, got.EnviadoEm)
}
