package pedido

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/antonminaichev/zion-orders/internal/storage"
	"github.com/antonminaichev/zion-orders/internal/types/pedido"
	"github.com/antonminaichev/zion-orders/internal/validation"
)

var (
	ErrPedidoNotFound = storage.ErrPedidoNotFound
	ErrItemNotFound   = storage.ErrItemNotFound
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

type Service struct {
	repo  Repository
	locks *keyedMutex
	now   func() time.Time
}

func NewService(r Repository) *Service {
	return &Service{repo: r, locks: newKeyedMutex(), now: time.Now}
}

func (s *Service) CreatePedido(ctx context.Context, in pedido.PedidoCreate) (*pedido.Pedido, error) {
	return s.CreatePedidoComItens(ctx, in, nil)
}

// CreatePedidoComItens stores the order and its items atomically. The shipped
// flag is derived from the items before the insert.
func (s *Service) CreatePedidoComItens(ctx context.Context, in pedido.PedidoCreate, itens []pedido.ItemCreate) (*pedido.Pedido, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	for _, it := range itens {
		if err := validation.Struct(it); err != nil {
			return nil, err
		}
	}

	now := s.now()
	p := &pedido.Pedido{
		Codigo:       in.Codigo,
		Status:       in.Status,
		DataCriacao:  in.DataCriacao,
		ClienteNome:  in.ClienteNome,
		ClienteEmail: in.ClienteEmail,
		Telefone:     in.Telefone,
	}
	if p.DataCriacao == "" {
		p.DataCriacao = now.UTC().Format("2006-01-02")
	}
	for _, it := range itens {
		p.Itens = append(p.Itens, it.Item(0, now))
	}
	p.Recompute(p.Itens, now)

	if err := s.repo.CreatePedido(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) CreateVenda(ctx context.Context, in pedido.VendaCreate) (*pedido.Pedido, error) {
	return s.CreatePedidoComItens(ctx, in.PedidoCreate, []pedido.ItemCreate{in.ItemCreate})
}

func (s *Service) GetPedido(ctx context.Context, id int64) (*pedido.Pedido, error) {
	return s.repo.GetPedido(ctx, id)
}

func (s *Service) ListPedidos(ctx context.Context, limit, offset int) ([]pedido.Pedido, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListPedidos(ctx, limit, offset)
}

func (s *Service) UpdatePedido(ctx context.Context, id int64, patch pedido.PedidoUpdate) (*pedido.Pedido, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()

	p, err := s.repo.GetPedido(ctx, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(p)
	if err := s.repo.SavePedido(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePedido(ctx context.Context, id int64) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.repo.DeletePedido(ctx, id)
}

// UpdateStatusByRef sets the status of the orders referenced by an external
// code or, for orders without one, a local id.
func (s *Service) UpdateStatusByRef(ctx context.Context, ref, status string) (storage.RefMatch, error) {
	return s.repo.SetStatusByRef(ctx, ref, status)
}

func (s *Service) ListItens(ctx context.Context, pedidoID int64) ([]pedido.Item, error) {
	return s.repo.ListItens(ctx, pedidoID)
}

func (s *Service) CreateItem(ctx context.Context, pedidoID int64, in pedido.ItemCreate) (*pedido.Item, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	var out pedido.Item
	err := s.withPedido(ctx, pedidoID, func(tx storage.ItemTx) error {
		out = in.Item(pedidoID, s.now())
		return tx.InsertItem(ctx, &out)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) UpdateItem(ctx context.Context, itemID int64, patch pedido.ItemUpdate) (*pedido.Item, error) {
	if err := validation.Struct(patch); err != nil {
		return nil, err
	}
	return s.mutateItem(ctx, itemID, func(tx storage.ItemTx, it *pedido.Item) error {
		patch.Apply(it, s.now())
		return tx.SaveItem(ctx, it)
	})
}

func (s *Service) ToggleItemEnviado(ctx context.Context, itemID int64) (*pedido.Item, error) {
	return s.mutateItem(ctx, itemID, func(tx storage.ItemTx, it *pedido.Item) error {
		it.SetEnviado(!it.Enviado, s.now())
		return tx.SaveItem(ctx, it)
	})
}

func (s *Service) DeleteItem(ctx context.Context, itemID int64) error {
	_, err := s.mutateItem(ctx, itemID, func(tx storage.ItemTx, it *pedido.Item) error {
		return tx.DeleteItem(ctx, it.ID)
	})
	return err
}

func (s *Service) TotalPedido(ctx context.Context, id int64) (decimal.Decimal, error) {
	p, err := s.repo.GetPedido(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Total(), nil
}

// AgruparPorCodigo groups orders by external code. An empty filter returns
// every order.
func (s *Service) AgruparPorCodigo(ctx context.Context, codigo string) ([]pedido.GrupoPedidos, error) {
	pedidos, err := s.repo.ListPedidosComItens(ctx, codigo)
	if err != nil {
		return nil, err
	}
	return Agrupar(pedidos), nil
}

// Agrupar keeps the input order of orders inside each group and sorts the
// groups by key.
func Agrupar(pedidos []pedido.Pedido) []pedido.GrupoPedidos {
	groups := make(map[string]*pedido.GrupoPedidos)
	sums := make(map[string]decimal.Decimal)
	var keys []string

	for _, p := range pedidos {
		key := p.GroupKey()
		g, ok := groups[key]
		if !ok {
			g = &pedido.GrupoPedidos{Codigo: key, Pedidos: []pedido.Pedido{}}
			groups[key] = g
			sums[key] = decimal.Zero
			keys = append(keys, key)
		}
		g.TotalPedidos++
		for _, it := range p.Itens {
			g.TotalItens += it.Quantidade
		}
		sums[key] = sums[key].Add(p.Total())
		g.Pedidos = append(g.Pedidos, p)
	}

	sort.Strings(keys)
	out := make([]pedido.GrupoPedidos, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		g.ValorTotal = sums[k].InexactFloat64()
		out = append(out, *g)
	}
	return out
}

func (s *Service) mutateItem(ctx context.Context, itemID int64, fn func(tx storage.ItemTx, it *pedido.Item) error) (*pedido.Item, error) {
	pedidoID, err := s.repo.PedidoIDForItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	var out *pedido.Item
	err = s.withPedido(ctx, pedidoID, func(tx storage.ItemTx) error {
		it, err := tx.Item(ctx, itemID)
		if err != nil {
			return err
		}
		if err := fn(tx, it); err != nil {
			return err
		}
		out = it
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// withPedido holds the per-order lock and the store transaction across fn
// and the recomputation that must follow every item mutation.
func (s *Service) withPedido(ctx context.Context, pedidoID int64, fn func(tx storage.ItemTx) error) error {
	unlock := s.locks.Lock(pedidoID)
	defer unlock()

	return s.repo.WithPedidoLock(ctx, pedidoID, func(tx storage.ItemTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		itens, err := tx.Itens(ctx)
		if err != nil {
			return err
		}
		p := tx.Pedido()
		if !p.Recompute(itens, s.now()) {
			return nil
		}
		return tx.SaveEnviado(ctx, p.Enviado, p.EnviadoEm)
	})
}
