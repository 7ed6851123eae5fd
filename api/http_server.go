// Http front of the settlement service.

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/ethsync"
	"github.com/TEENet-io/fiat-bridge-go/ledger"
	"github.com/TEENet-io/fiat-bridge-go/metrics"
	"github.com/TEENet-io/fiat-bridge-go/settlement"
	"github.com/gin-gonic/gin"
	logger "github.com/sirupsen/logrus"
)

const shutdownTimeout = 5 * time.Second

type MonitorStatus interface {
	State() ethsync.State
}

type HttpServer struct {
	cfg *Config

	settlement *settlement.Service
	ws         http.Handler
	metrics    *metrics.Metrics
	monitor    MonitorStatus // nil when the monitor runs elsewhere
}

func NewHttpServer(
	cfg *Config,
	srv *settlement.Service,
	ws http.Handler,
	m *metrics.Metrics,
	monitor MonitorStatus,
) *HttpServer {
	return &HttpServer{
		cfg:        cfg,
		settlement: srv,
		ws:         ws,
		metrics:    m,
		monitor:    monitor,
	}
}

// Hook up routes & handlers
func (h *HttpServer) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), LoggingMiddleware())

	router.GET(ROUTE_HEALTH, h.Health)
	if h.metrics != nil {
		router.GET(ROUTE_METRICS, gin.WrapH(h.metrics.Handler()))
	}
	if h.ws != nil {
		router.GET(ROUTE_WS, gin.WrapH(h.ws))
	}

	limited := router.Group("")
	if h.cfg.RateLimit > 0 {
		limited.Use(RateLimitMiddleware(h.cfg.RateLimit, h.cfg.RateBurst))
	}
	limited.GET(ROUTE_PAYOUT_ID, h.GetPayout)
	limited.GET(ROUTE_DEPOSITS, h.GetDeposits)

	mutating := limited.Group("")
	if h.cfg.ApiKey != "" {
		mutating.Use(ApiKeyMiddleware(h.cfg.ApiKey))
	}
	mutating.POST(ROUTE_DEPOSIT, h.Deposit)
	mutating.POST(ROUTE_PAYOUT, h.Payout)
	mutating.POST(ROUTE_PAYOUT_CONFIRM, h.ConfirmPayout)

	return router
}

// Start serves until ctx is done, then shuts the listener down.
func (h *HttpServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    net.JoinHostPort(h.cfg.ServerIP, h.cfg.ServerPort),
		Handler: h.SetupRouter(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("http server shutdown")
		}
		return ctx.Err()
	}
}

func (h *HttpServer) Health(c *gin.Context) {
	monitor := "disabled"
	if h.monitor != nil {
		monitor = string(h.monitor.State())
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "monitor": monitor})
}

func (h *HttpServer) Deposit(c *gin.Context) {
	var req depositReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	d, err := h.settlement.RecordDeposit(c.Request.Context(), &settlement.DepositRequest{
		User:   req.User,
		Amount: string(req.Amount),
		Fiat:   req.Fiat,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"txHash": d.MintTxHash.String(), "status": "confirmed"})
}

func (h *HttpServer) Payout(c *gin.Context) {
	var req payoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	p, _, err := h.settlement.RecordPayoutRequest(c.Request.Context(), &settlement.PayoutEventRequest{
		User:      req.User,
		Fiat:      req.Fiat,
		AmountWei: req.AmountWei,
		TxHash:    req.TxHash,
		LogIndex:  req.LogIndex,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payoutId": p.Id, "status": string(p.Status)})
}

func (h *HttpServer) ConfirmPayout(c *gin.Context) {
	id, ok := payoutId(c)
	if !ok {
		return
	}

	p, err := h.settlement.ConfirmPayout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": string(p.Status), "id": p.Id})
}

func (h *HttpServer) GetPayout(c *gin.Context) {
	id, ok := payoutId(c)
	if !ok {
		return
	}

	p, err := h.settlement.GetPayout(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.payoutJSON(p))
}

func (h *HttpServer) GetDeposits(c *gin.Context) {
	user := c.Query("user")
	if user == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user must be provided"})
		return
	}

	deposits, err := h.settlement.GetDepositsByUser(c.Request.Context(), user)
	if err != nil {
		writeError(c, err)
		return
	}

	data := make([]*depositResp, 0, len(deposits))
	for _, d := range deposits {
		data = append(data, h.depositJSON(d))
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func (h *HttpServer) payoutJSON(p *ledger.Payout) *payoutResp {
	msg := h.settlement.PayoutMessage(p)
	return &payoutResp{
		Id:           p.Id,
		User:         msg.User,
		Fiat:         p.Fiat,
		Amount:       msg.Amount,
		AmountWei:    p.Amount.String(),
		Status:       string(p.Status),
		SourceTxHash: p.SourceTxHash.String(),
		LogIndex:     p.LogIndex,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func (h *HttpServer) depositJSON(d *ledger.Deposit) *depositResp {
	return &depositResp{
		Id:         d.Id,
		User:       d.User.String(),
		Fiat:       d.Fiat,
		AmountWei:  d.Amount.String(),
		MintTxHash: d.MintTxHash.String(),
		CreatedAt:  d.CreatedAt,
	}
}

func payoutId(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payout id"})
		return 0, false
	}
	return id, true
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, settlement.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, settlement.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Payout not found or already processed"})
	default:
		logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
