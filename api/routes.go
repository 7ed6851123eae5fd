package api

const (
	ROUTE_DEPOSIT        = "/api/deposit"
	ROUTE_DEPOSITS       = "/api/deposits"
	ROUTE_PAYOUT         = "/api/payout"
	ROUTE_PAYOUT_ID      = "/api/payout/:id"
	ROUTE_PAYOUT_CONFIRM = "/api/payout/:id/confirm"
	ROUTE_WS             = "/ws"
	ROUTE_HEALTH         = "/health"
	ROUTE_METRICS        = "/metrics"

	HEADER_API_KEY = "X-API-Key"
)
