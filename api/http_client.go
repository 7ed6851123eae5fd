// HttpClient is the remote form of the settlement service, used by a
// monitor that runs in its own process.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/TEENet-io/fiat-bridge-go/agreement"
)

const defaultClientTimeout = 10 * time.Second

type HttpClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHttpClient(baseURL, apiKey string, timeout time.Duration) *HttpClient {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &HttpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// RecordPayoutEvent posts the event to /api/payout and returns the payout
// id assigned by the server.
func (hc *HttpClient) RecordPayoutEvent(ctx context.Context, ev *agreement.FiatPayoutEvent) (uint64, error) {
	req := &payoutReq{
		User:      ev.User.String(),
		Fiat:      ev.Fiat,
		AmountWei: ev.Amount.String(),
		TxHash:    ev.TxHash.String(),
		LogIndex:  ev.LogIndex,
	}

	var resp struct {
		PayoutId uint64 `json:"payoutId"`
		Status   string `json:"status"`
	}
	if err := hc.do(ctx, http.MethodPost, ROUTE_PAYOUT, req, &resp); err != nil {
		return 0, err
	}
	return resp.PayoutId, nil
}

// ConfirmPayout posts to /api/payout/:id/confirm.
func (hc *HttpClient) ConfirmPayout(ctx context.Context, id uint64) error {
	route := strings.Replace(ROUTE_PAYOUT_CONFIRM, ":id", strconv.FormatUint(id, 10), 1)
	return hc.do(ctx, http.MethodPost, route, nil, nil)
}

func (hc *HttpClient) do(ctx context.Context, method, route string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, hc.baseURL+route, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if hc.apiKey != "" {
		req.Header.Set(HEADER_API_KEY, hc.apiKey)
	}

	resp, err := hc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(b, &e)
		return &StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

// StatusError is a non 200 answer of the server.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d: %s", e.Code, e.Message)
}
