package notifier

// Name of the event carried by every message pushed to observers.
const EventPayoutStatus = "payoutStatus"

// PayoutStatusMessage is a payout status change. Amount is the decimal token
// amount, not the smallest unit.
type PayoutStatusMessage struct {
	Id     uint64 `json:"id"`
	Status string `json:"status"`
	User   string `json:"user,omitempty"`
	Fiat   string `json:"fiat,omitempty"`
	Amount string `json:"amount,omitempty"`
}

// Envelope is the frame written to websocket observers.
type Envelope struct {
	Event string               `json:"event"`
	Data  *PayoutStatusMessage `json:"data"`
}
