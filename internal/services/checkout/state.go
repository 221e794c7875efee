package checkout

import "fmt"

// State is a checkout milestone. Each state after CartValidated is reached
// by one persistence write.
type State string

const (
	StateStarted              State = "Started"
	StateCartValidated        State = "CartValidated"
	StateStockReserved        State = "StockReserved"
	StateOrderPersisted       State = "OrderPersisted"
	StateInvoicePersisted     State = "InvoicePersisted"
	StateCommissionsPersisted State = "CommissionsPersisted"
	StateStockDecremented     State = "StockDecremented"
	StateCartCleared          State = "CartCleared"
	StateComplete             State = "Complete"
)

// StageError reports the last state a failed checkout reached. It unwraps
// to the classified cause, so errors.Is works against the commerce
// sentinels.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("checkout stopped after %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
