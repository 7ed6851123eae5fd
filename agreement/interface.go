package agreement

import "context"

// PayoutRecorder is how the chain event monitor hands a FiatPayout event
// to the settlement side. It is implemented in process by the settlement
// service and remotely by the http client of the settlement api.
//
// Implementations must accept the same event more than once.
type PayoutRecorder interface {
	RecordPayoutEvent(ctx context.Context, ev *FiatPayoutEvent) (payoutId uint64, err error)
}
