package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"storefront-system/internal/commerce"
)

type compensationAction struct {
	Name   string
	Action func(ctx context.Context) error
}

// saga collects undo actions for writes made outside a transaction. A nil
// saga ignores pushes, which is what the transactional path wants.
type saga struct {
	compensations []compensationAction
}

func (sg *saga) push(name string, action func(ctx context.Context) error) {
	if sg == nil {
		return
	}
	sg.compensations = append(sg.compensations, compensationAction{Name: name, Action: action})
}

// unwind runs compensations newest first. It keeps going after a failure
// and returns every failure joined.
func (sg *saga) unwind(ctx context.Context, timeout time.Duration) error {
	if sg == nil {
		return nil
	}
	// The request may already be cancelled or past its deadline; undo work
	// must still run.
	base := context.WithoutCancel(ctx)

	var errs []error
	for i := len(sg.compensations) - 1; i >= 0; i-- {
		c := sg.compensations[i]
		callCtx, cancel := context.WithTimeout(base, timeout)
		err := c.Action(callCtx)
		cancel()
		if err != nil && !errors.Is(err, commerce.ErrNotFound) {
			log.Error().Err(err).Str("compensation", c.Name).Msg("checkout: compensation failed")
			errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
			continue
		}
		log.Debug().Str("compensation", c.Name).Msg("checkout: compensated")
	}
	sg.compensations = nil
	return errors.Join(errs...)
}
