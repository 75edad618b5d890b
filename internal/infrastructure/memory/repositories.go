package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jhoicas/lot-ledger/internal/domain"
	"github.com/jhoicas/lot-ledger/internal/domain/entity"
)

type balanceRepo struct{ v view }

func (r *balanceRepo) Get(ctx context.Context, code, warehouseID string) (*entity.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, ok := r.v.read().balances[balanceKey{code, warehouseID}]
	if !ok {
		return &entity.Balance{Code: code, WarehouseID: warehouseID}, nil
	}
	return &b, nil
}

func (r *balanceRepo) GetForUpdate(ctx context.Context, code, warehouseID string) (*entity.Balance, error) {
	return r.Get(ctx, code, warehouseID)
}

func (r *balanceRepo) ListByCode(ctx context.Context, code string) ([]*entity.Balance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*entity.Balance
	for k, b := range r.v.read().balances {
		if k.code == code {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarehouseID < out[j].WarehouseID })
	return out, nil
}

func (r *balanceRepo) ListByCodeForUpdate(ctx context.Context, code string) ([]*entity.Balance, error) {
	return r.ListByCode(ctx, code)
}

func (r *balanceRepo) Save(ctx context.Context, b *entity.Balance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		k := balanceKey{b.Code, b.WarehouseID}
		cur, exists := st.balances[k]
		switch {
		case b.Version == 0 && exists:
			return fmt.Errorf("%w: saldo %s/%s ya existe", domain.ErrVersionConflict, b.Code, b.WarehouseID)
		case b.Version != 0 && (!exists || cur.Version != b.Version):
			return fmt.Errorf("%w: saldo %s/%s versión %d", domain.ErrVersionConflict, b.Code, b.WarehouseID, b.Version)
		}
		b.Version++
		st.balances[k] = *b
		return nil
	})
}

func (r *balanceRepo) ListCodes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for k := range r.v.read().balances {
		seen[k.code] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (r *balanceRepo) Rekey(ctx context.Context, oldCode, newCode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for k, b := range st.balances {
			if k.code != oldCode {
				continue
			}
			delete(st.balances, k)
			b.Code = newCode
			b.Version++
			st.balances[balanceKey{newCode, k.warehouseID}] = b
		}
		return nil
	})
}

type movementRepo struct{ v view }

func (r *movementRepo) Create(ctx context.Context, m *entity.Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if _, dup := st.movements[m.ID]; dup {
			return fmt.Errorf("%w: movimiento %s", domain.ErrDuplicate, m.ID)
		}
		st.movements[m.ID] = *m
		st.movementOrder = append(st.movementOrder, m.ID)
		return nil
	})
}

func (r *movementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, ok := r.v.read().movements[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (r *movementRepo) ListByCode(ctx context.Context, code string) ([]*entity.Movement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st := r.v.read()
	var out []*entity.Movement
	for _, id := range st.movementOrder {
		m := st.movements[id]
		if m.Code == code && !m.IsDeleted() {
			out = append(out, &m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (r *movementRepo) Update(ctx context.Context, m *entity.Movement) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		cur, ok := st.movements[m.ID]
		if !ok {
			return fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, m.ID)
		}
		cur.Quantity = m.Quantity
		cur.Details = m.Details
		st.movements[m.ID] = cur
		return nil
	})
}

func (r *movementRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		cur, ok := st.movements[id]
		if !ok {
			return fmt.Errorf("%w: movimiento %s", domain.ErrNotFound, id)
		}
		cur.DeletedAt = &at
		st.movements[id] = cur
		return nil
	})
}

func (r *movementRepo) ListCodes(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	for _, m := range r.v.read().movements {
		seen[m.Code] = struct{}{}
	}
	return sortedKeys(seen), nil
}

func (r *movementRepo) Rekey(ctx context.Context, oldCode, newCode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for id, m := range st.movements {
			if m.Code == oldCode {
				m.Code = newCode
				st.movements[id] = m
			}
		}
		return nil
	})
}

type transitRepo struct{ v view }

func (r *transitRepo) Create(ctx context.Context, t *entity.Transit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if _, dup := st.transits[t.ID]; dup {
			return fmt.Errorf("%w: tránsito %s", domain.ErrDuplicate, t.ID)
		}
		st.transits[t.ID] = *t
		return nil
	})
}

func (r *transitRepo) GetByID(ctx context.Context, id string) (*entity.Transit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := r.v.read().transits[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *transitRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transit, error) {
	return r.GetByID(ctx, id)
}

func (r *transitRepo) Update(ctx context.Context, t *entity.Transit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if _, ok := st.transits[t.ID]; !ok {
			return fmt.Errorf("%w: tránsito %s", domain.ErrNotFound, t.ID)
		}
		st.transits[t.ID] = *t
		return nil
	})
}

func (r *transitRepo) ListByCode(ctx context.Context, code string) ([]*entity.Transit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []*entity.Transit
	for _, t := range r.v.read().transits {
		if t.Code == code {
			t := t
			out = append(out, &t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepartedAt.Equal(out[j].DepartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].DepartedAt.Before(out[j].DepartedAt)
	})
	return out, nil
}

func (r *transitRepo) Rekey(ctx context.Context, oldCode, newCode string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		for id, t := range st.transits {
			if t.Code == oldCode {
				t.Code = newCode
				st.transits[id] = t
			}
		}
		return nil
	})
}

type lotCodeRepo struct{ v view }

// MaxSequence emula el LIKE 'alcance%' del almacenamiento SQL.
func (r *lotCodeRepo) MaxSequence(ctx context.Context, scope string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	last := 0
	for code, c := range r.v.read().codes {
		if strings.HasPrefix(code, scope) && c.Sequence > last {
			last = c.Sequence
		}
	}
	return last, nil
}

func (r *lotCodeRepo) Insert(ctx context.Context, c *entity.LotCode) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if _, dup := st.codes[c.Code]; dup {
			return fmt.Errorf("%w: código %s", domain.ErrDuplicate, c.Code)
		}
		st.codes[c.Code] = *c
		return nil
	})
}

func (r *lotCodeRepo) Get(ctx context.Context, code string) (*entity.LotCode, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, ok := r.v.read().codes[code]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

type warehouseRepo struct{ v view }

func (r *warehouseRepo) Create(ctx context.Context, w *entity.Warehouse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.v.write(func(st *state) error {
		if _, dup := st.warehouses[w.ID]; dup {
			return fmt.Errorf("%w: bodega %s", domain.ErrDuplicate, w.ID)
		}
		for _, other := range st.warehouses {
			if other.Prefix == w.Prefix {
				return fmt.Errorf("%w: prefijo %s en uso por %s", domain.ErrDuplicate, w.Prefix, other.ID)
			}
		}
		st.warehouses[w.ID] = *w
		return nil
	})
}

func (r *warehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w, ok := r.v.read().warehouses[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *warehouseRepo) List(ctx context.Context) ([]*entity.Warehouse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*entity.Warehouse, 0)
	for _, w := range r.v.read().warehouses {
		w := w
		out = append(out, &w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
