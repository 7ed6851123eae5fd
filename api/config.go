package api

type Config struct {
	ServerIP   string // listen ip
	ServerPort string // listen port

	// Shared secret expected in the X-API-Key header of mutating routes.
	// Empty disables the check.
	ApiKey string

	// Requests per second allowed per client ip on /api, 0 disables limiting
	RateLimit float64
	RateBurst int
}
