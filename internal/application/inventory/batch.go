package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/lot-ledger/internal/domain"
)

// BatchItemResult resultado de un movimiento dentro de un lote de operaciones.
type BatchItemResult struct {
	Index  int             `json:"index"`
	Result *MovementResult `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Kind   string          `json:"error_kind,omitempty"`
}

// BatchResult resumen de ApplyBatch.
type BatchResult struct {
	Items   []BatchItemResult `json:"items"`
	Applied int               `json:"applied"`
	Failed  int               `json:"failed"`
}

// ApplyBatch aplica varios movimientos en una sola transacción con los bloqueos de todos
// los códigos tomados en orden. Sin partial, cualquier fallo deshace todo. Con partial cada
// movimiento corre en su propio savepoint y los que fallan se informan sin afectar al resto.
func (l *Ledger) ApplyBatch(ctx context.Context, inputs []MovementInput, partial bool) (*BatchResult, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: lote vacío", domain.ErrInvalidInput)
	}

	invalid := make(map[int]error)
	codes := make([]string, 0, len(inputs))
	for i, in := range inputs {
		err := l.validateInput(in)
		if err == nil {
			err = l.requireWarehouses(ctx, in)
		}
		if err != nil {
			if !partial {
				return nil, fmt.Errorf("movimiento %d: %w", i, err)
			}
			invalid[i] = err
			continue
		}
		codes = append(codes, in.Code)
	}

	if len(codes) == 0 {
		res := &BatchResult{Items: make([]BatchItemResult, len(inputs)), Failed: len(inputs)}
		for i := range inputs {
			err := invalid[i]
			res.Items[i] = BatchItemResult{Index: i, Error: err.Error(), Kind: domain.KindOf(err).String()}
		}
		return res, nil
	}

	var out *BatchResult
	err := l.mutate(ctx, "batch", codes, func(ctx context.Context, tx Tx) error {
		res := &BatchResult{Items: make([]BatchItemResult, len(inputs))}
		for i, in := range inputs {
			item := BatchItemResult{Index: i}
			if err, bad := invalid[i]; bad {
				item.Error, item.Kind = err.Error(), domain.KindOf(err).String()
				res.Items[i] = item
				res.Failed++
				continue
			}
			if !partial {
				r, err := l.applyInputTx(ctx, tx, in)
				if err != nil {
					return fmt.Errorf("movimiento %d: %w", i, err)
				}
				item.Result = r
				res.Items[i] = item
				res.Applied++
				continue
			}
			err := tx.Savepoint(ctx, func(sp Tx) error {
				r, err := l.applyInputTx(ctx, sp, in)
				item.Result = r
				return err
			})
			if err != nil {
				// La contención no es un fallo del movimiento: se reintenta el lote entero.
				if domain.IsRetryable(err) {
					return err
				}
				item.Result = nil
				item.Error, item.Kind = err.Error(), domain.KindOf(err).String()
				res.Failed++
			} else {
				res.Applied++
			}
			res.Items[i] = item
		}
		out = res
		return nil
	})
	if err != nil {
		l.log.Warn().Err(err).Int("items", len(inputs)).Bool("partial", partial).Msg("lote rechazado")
		return nil, err
	}
	l.log.Info().Int("applied", out.Applied).Int("failed", out.Failed).Bool("partial", partial).Msg("lote aplicado")
	return out, nil
}
