package pedido

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antonminaichev/zion-orders/internal/storage"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
	"github.com/antonminaichev/zion-orders/internal/validation"
)

// memRepo is an in-memory Repository; WithPedidoLock serializes on one mutex.
type memRepo struct {
	mu       sync.Mutex
	txMu     sync.Mutex
	pedidos  map[int64]*pedido.Pedido
	itens    map[int64]*pedido.Item
	nextPed  int64
	nextItem int64
}

func newMemRepo() *memRepo {
	return &memRepo{pedidos: map[int64]*pedido.Pedido{}, itens: map[int64]*pedido.Item{}}
}

func (m *memRepo) CreatePedido(ctx context.Context, p *pedido.Pedido) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPed++
	p.ID = m.nextPed
	cp := *p
	cp.Itens = nil
	m.pedidos[p.ID] = &cp
	for i := range p.Itens {
		m.nextItem++
		p.Itens[i].ID = m.nextItem
		p.Itens[i].PedidoID = p.ID
		it := p.Itens[i]
		m.itens[it.ID] = &it
	}
	return nil
}

func (m *memRepo) GetPedido(ctx context.Context, id int64) (*pedido.Pedido, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pedidos[id]
	if !ok {
		return nil, storage.ErrPedidoNotFound
	}
	cp := *p
	cp.Itens = m.itensOf(id)
	return &cp, nil
}

func (m *memRepo) itensOf(pedidoID int64) []pedido.Item {
	out := []pedido.Item{}
	for id := int64(1); id <= m.nextItem; id++ {
		if it, ok := m.itens[id]; ok && it.PedidoID == pedidoID {
			out = append(out, *it)
		}
	}
	return out
}

func (m *memRepo) ListPedidos(ctx context.Context, limit, offset int) ([]pedido.Pedido, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []pedido.Pedido{}
	for id := m.nextPed; id >= 1; id-- {
		if p, ok := m.pedidos[id]; ok {
			out = append(out, *p)
		}
	}
	if offset >= len(out) {
		return []pedido.Pedido{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) SavePedido(ctx context.Context, p *pedido.Pedido) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.pedidos[p.ID]
	if !ok {
		return storage.ErrPedidoNotFound
	}
	enviado, em := cur.Enviado, cur.EnviadoEm
	cp := *p
	cp.Itens = nil
	cp.Enviado, cp.EnviadoEm = enviado, em
	m.pedidos[p.ID] = &cp
	return nil
}

func (m *memRepo) DeletePedido(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pedidos[id]; !ok {
		return storage.ErrPedidoNotFound
	}
	delete(m.pedidos, id)
	for iid, it := range m.itens {
		if it.PedidoID == id {
			delete(m.itens, iid)
		}
	}
	return nil
}

func (m *memRepo) ListPedidosComItens(ctx context.Context, codigo string) ([]pedido.Pedido, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []pedido.Pedido
	for id := int64(1); id <= m.nextPed; id++ {
		p, ok := m.pedidos[id]
		if !ok {
			continue
		}
		if codigo != "" && (p.Codigo == nil || *p.Codigo != codigo) {
			continue
		}
		cp := *p
		cp.Itens = m.itensOf(id)
		out = append(out, cp)
	}
	return out, nil
}

func (m *memRepo) SetStatusByRef(ctx context.Context, ref, status string) (storage.RefMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.pedidos {
		if p.Codigo != nil && *p.Codigo == ref {
			p.Status = status
			n++
		}
	}
	return storage.RefMatch{Updated: n, ByCodigo: n > 0}, nil
}

func (m *memRepo) ListItens(ctx context.Context, pedidoID int64) ([]pedido.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pedidos[pedidoID]; !ok {
		return nil, storage.ErrPedidoNotFound
	}
	return m.itensOf(pedidoID), nil
}

func (m *memRepo) PedidoIDForItem(ctx context.Context, itemID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.itens[itemID]
	if !ok {
		return 0, storage.ErrItemNotFound
	}
	return it.PedidoID, nil
}

func (m *memRepo) WithPedidoLock(ctx context.Context, pedidoID int64, fn func(tx storage.ItemTx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	p, ok := m.pedidos[pedidoID]
	m.mu.Unlock()
	if !ok {
		return storage.ErrPedidoNotFound
	}
	return fn(&memTx{m: m, pedido: p})
}

type memTx struct {
	m      *memRepo
	pedido *pedido.Pedido
}

func (t *memTx) Pedido() *pedido.Pedido { return t.pedido }

func (t *memTx) Item(ctx context.Context, itemID int64) (*pedido.Item, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	it, ok := t.m.itens[itemID]
	if !ok || it.PedidoID != t.pedido.ID {
		return nil, storage.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (t *memTx) Itens(ctx context.Context) ([]pedido.Item, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.itensOf(t.pedido.ID), nil
}

func (t *memTx) InsertItem(ctx context.Context, it *pedido.Item) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.nextItem++
	it.ID = t.m.nextItem
	it.PedidoID = t.pedido.ID
	cp := *it
	t.m.itens[it.ID] = &cp
	return nil
}

func (t *memTx) SaveItem(ctx context.Context, it *pedido.Item) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if _, ok := t.m.itens[it.ID]; !ok {
		return storage.ErrItemNotFound
	}
	cp := *it
	t.m.itens[it.ID] = &cp
	return nil
}

func (t *memTx) DeleteItem(ctx context.Context, itemID int64) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	delete(t.m.itens, itemID)
	return nil
}

func (t *memTx) SaveEnviado(ctx context.Context, enviado bool, enviadoEm *time.Time) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.pedido.Enviado = enviado
	t.pedido.EnviadoEm = enviadoEm
	return nil
}

func newTestService() (*Service, *memRepo) {
	repo := newMemRepo()
	svc := NewService(repo)
	fixed := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	return svc, repo
}

func strPtr(s string) *string { return &s }

func newPedido(t *testing.T, svc *Service) *pedido.Pedido {
	t.Helper()
	p, err := svc.CreatePedido(context.Background(), pedido.PedidoCreate{
		Codigo:       strPtr("A100"),
		Status:       pedido.StatusPending,
		ClienteNome:  "Jane",
		ClienteEmail: "jane@mail.com",
	})
	require.NoError(t, err)
	return p
}

func newItem(t *testing.T, svc *Service, pedidoID int64, enviado bool) *pedido.Item {
	t.Helper()
	it, err := svc.CreateItem(context.Background(), pedidoID, pedido.ItemCreate{
		NomeProduto:   "God of War",
		Plataforma:    pedido.PlataformaPS5,
		Quantidade:    1,
		PrecoUnitario: decimal.RequireFromString("10.00"),
		Enviado:       enviado,
	})
	require.NoError(t, err)
	return it
}

func TestCreatePedidoDefaults(t *testing.T) {
	svc, _ := newTestService()
	p := newPedido(t, svc)

	assert.Equal(t, "2025-03-10", p.DataCriacao)
	assert.False(t, p.Enviado)
	assert.Nil(t, p.EnviadoEm)
}

func TestCreatePedidoInvalidEmail(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreatePedido(context.Background(), pedido.PedidoCreate{
		Status:       pedido.StatusPending,
		ClienteEmail: "not-an-email",
	})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "cliente_email")
}

func TestCreateItemUnknownPedido(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CreateItem(context.Background(), 42, pedido.ItemCreate{
		Plataforma: pedido.PlataformaPS4,
		Quantidade: 1,
	})
	assert.ErrorIs(t, err, ErrPedidoNotFound)
}

func TestCreateItemValidation(t *testing.T) {
	svc, _ := newTestService()
	p := newPedido(t, svc)

	tests := []struct {
		name string
		in   pedido.ItemCreate
	}{
		{"zero quantity", pedido.ItemCreate{Plataforma: pedido.PlataformaPS4, Quantidade: 0}},
		{"negative price", pedido.ItemCreate{Plataforma: pedido.PlataformaPS4, Quantidade: 1, PrecoUnitario: decimal.NewFromInt(-1)}},
		{"unknown platform", pedido.ItemCreate{Plataforma: "XBOX", Quantidade: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateItem(context.Background(), p.ID, tt.in)
			var verr *validation.Error
			assert.ErrorAs(t, err, &verr)
		})
	}
}

func TestEnviadoFollowsItems(t *testing.T) {
	tests := []struct {
		name  string
		flags []bool
		want  bool
	}{
		{"no items", nil, false},
		{"one unshipped", []bool{false}, false},
		{"one shipped", []bool{true}, true},
		{"mixed", []bool{true, false, true}, false},
		{"all shipped", []bool{true, true, true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newTestService()
			p := newPedido(t, svc)
			for _, f := range tt.flags {
				newItem(t, svc, p.ID, f)
			}
			got := repo.pedidos[p.ID]
			assert.Equal(t, tt.want, got.Enviado)
			assert.Equal(t, tt.want, got.EnviadoEm != nil)
		})
	}
}

func TestToggleRoundTrip(t *testing.T) {
	svc, repo := newTestService()
	p := newPedido(t, svc)
	it := newItem(t, svc, p.ID, false)

	toggled, err := svc.ToggleItemEnviado(context.Background(), it.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Enviado)
	assert.NotNil(t, toggled.EnviadoEm)
	assert.True(t, repo.pedidos[p.ID].Enviado)

	back, err := svc.ToggleItemEnviado(context.Background(), it.ID)
	require.NoError(t, err)
	assert.False(t, back.Enviado)
	assert.Nil(t, back.EnviadoEm)
	assert.False(t, repo.pedidos[p.ID].Enviado)
	assert.Nil(t, repo.pedidos[p.ID].EnviadoEm)
}

func TestEnviadoEmStampedOnce(t *testing.T) {
	svc, repo := newTestService()
	p := newPedido(t, svc)
	a := newItem(t, svc, p.ID, true)
	b := newItem(t, svc, p.ID, false)
	assert.False(t, repo.pedidos[p.ID].Enviado)

	_, err := svc.UpdateItem(context.Background(), b.ID, pedido.ItemUpdate{Enviado: boolPtr(true)})
	require.NoError(t, err)
	first := *repo.pedidos[p.ID].EnviadoEm

	later := first.Add(time.Hour)
	svc.now = func() time.Time { return later }
	_, err = svc.UpdateItem(context.Background(), a.ID, pedido.ItemUpdate{NickConta: strPtr("player1")})
	require.NoError(t, err)

	assert.True(t, repo.pedidos[p.ID].Enviado)
	assert.Equal(t, first, *repo.pedidos[p.ID].EnviadoEm)
}

func TestUpdateItemTimestampTransitions(t *testing.T) {
	svc, _ := newTestService()
	p := newPedido(t, svc)
	it := newItem(t, svc, p.ID, false)

	up, err := svc.UpdateItem(context.Background(), it.ID, pedido.ItemUpdate{Enviado: boolPtr(true)})
	require.NoError(t, err)
	require.NotNil(t, up.EnviadoEm)
	stamp := *up.EnviadoEm

	svc.now = func() time.Time { return stamp.Add(time.Minute) }
	up, err = svc.UpdateItem(context.Background(), it.ID, pedido.ItemUpdate{Enviado: boolPtr(true)})
	require.NoError(t, err)
	assert.Equal(t, stamp, *up.EnviadoEm, "true to true keeps the timestamp")

	up, err = svc.UpdateItem(context.Background(), it.ID, pedido.ItemUpdate{Enviado: boolPtr(false)})
	require.NoError(t, err)
	assert.Nil(t, up.EnviadoEm)
}

func TestDeleteItemRecomputes(t *testing.T) {
	svc, repo := newTestService()
	p := newPedido(t, svc)
	newItem(t, svc, p.ID, true)
	pending := newItem(t, svc, p.ID, false)
	assert.False(t, repo.pedidos[p.ID].Enviado)

	require.NoError(t, svc.DeleteItem(context.Background(), pending.ID))
	assert.True(t, repo.pedidos[p.ID].Enviado)

	itens, err := svc.ListItens(context.Background(), p.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteItem(context.Background(), itens[0].ID))
	assert.False(t, repo.pedidos[p.ID].Enviado, "order without items is never shipped")
	assert.Nil(t, repo.pedidos[p.ID].EnviadoEm)
}

func TestMutateUnknownItem(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ToggleItemEnviado(context.Background(), 99)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.ErrorIs(t, svc.DeleteItem(context.Background(), 99), ErrItemNotFound)
}

func TestConcurrentSiblingToggles(t *testing.T) {
	svc, repo := newTestService()
	p := newPedido(t, svc)
	var ids []int64
	for i := 0; i < 20; i++ {
		ids = append(ids, newItem(t, svc, p.ID, false).ID)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := svc.ToggleItemEnviado(context.Background(), id)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	assert.True(t, repo.pedidos[p.ID].Enviado)
	assert.NotNil(t, repo.pedidos[p.ID].EnviadoEm)
	assert.Equal(t, 0, svc.locks.size())
}

func TestUpdatePedidoPatch(t *testing.T) {
	svc, _ := newTestService()
	p := newPedido(t, svc)

	up, err := svc.UpdatePedido(context.Background(), p.ID, pedido.PedidoUpdate{Status: strPtr(pedido.StatusPaid)})
	require.NoError(t, err)
	assert.Equal(t, pedido.StatusPaid, up.Status)
	assert.Equal(t, "Jane", up.ClienteNome)
	assert.Equal(t, "A100", *up.Codigo)

	_, err = svc.UpdatePedido(context.Background(), 777, pedido.PedidoUpdate{})
	assert.ErrorIs(t, err, ErrPedidoNotFound)
}

func TestCreateVendaAndTotal(t *testing.T) {
	svc, _ := newTestService()
	p, err := svc.CreateVenda(context.Background(), pedido.VendaCreate{
		PedidoCreate: pedido.PedidoCreate{Status: pedido.StatusPaid, ClienteEmail: "a@b.com"},
		ItemCreate: pedido.ItemCreate{
			Plataforma:    pedido.PlataformaPS5,
			Quantidade:    2,
			PrecoUnitario: decimal.RequireFromString("19.90"),
		},
	})
	require.NoError(t, err)
	require.Len(t, p.Itens, 1)

	total, err := svc.TotalPedido(context.Background(), p.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("39.80").Equal(total))
}

func TestListPedidosBounds(t *testing.T) {
	svc, _ := newTestService()
	for i := 0; i < 3; i++ {
		newPedido(t, svc)
	}
	all, err := svc.ListPedidos(context.Background(), 0, -5)
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, int64(3), all[0].ID)

	page, err := svc.ListPedidos(context.Background(), 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(2), page[0].ID)
}

func TestAgrupar(t *testing.T) {
	price := decimal.RequireFromString("19.90")
	pedidos := []pedido.Pedido{
		{ID: 1, Codigo: strPtr("B2"), Itens: []pedido.Item{{Quantidade: 2, PrecoUnitario: price}}},
		{ID: 2, Codigo: nil, Itens: []pedido.Item{{Quantidade: 1, PrecoUnitario: decimal.NewFromInt(5)}}},
		{ID: 3, Codigo: strPtr("A1")},
		{ID: 4, Codigo: strPtr("B2"), Itens: []pedido.Item{{Quantidade: 1, PrecoUnitario: decimal.RequireFromString("0.10")}}},
		{ID: 5, Codigo: strPtr("")},
	}

	grupos := Agrupar(pedidos)
	require.Len(t, grupos, 3)

	assert.Equal(t, "(sem código)", grupos[0].Codigo)
	assert.Equal(t, 2, grupos[0].TotalPedidos)
	assert.Equal(t, 5.0, grupos[0].ValorTotal)

	assert.Equal(t, "A1", grupos[1].Codigo)
	assert.Equal(t, 0, grupos[1].TotalItens)

	assert.Equal(t, "B2", grupos[2].Codigo)
	assert.Equal(t, 2, grupos[2].TotalPedidos)
	assert.Equal(t, 3, grupos[2].TotalItens)
	assert.Equal(t, 39.9, grupos[2].ValorTotal)
	assert.Equal(t, int64(1), grupos[2].Pedidos[0].ID)
	assert.Equal(t, int64(4), grupos[2].Pedidos[1].ID)
}

func boolPtr(b bool) *bool { return &b }
