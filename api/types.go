package api

import (
	"encoding/json"
	"time"
)

// Amount is accepted as a json string or number and kept as text until the
// settlement service has bounded it.
type depositReq struct {
	User   string      `json:"user" binding:"required"`
	Amount json.Number `json:"amount" binding:"required"`
	Fiat   string      `json:"fiat" binding:"required"`
}

type payoutReq struct {
	User      string `json:"user" binding:"required"`
	Fiat      string `json:"fiat" binding:"required"`
	AmountWei string `json:"amountWei" binding:"required"`
	TxHash    string `json:"txHash" binding:"required"`
	LogIndex  uint   `json:"logIndex"`
}

type payoutResp struct {
	Id           uint64    `json:"id"`
	User         string    `json:"user"`
	Fiat         string    `json:"fiat"`
	Amount       string    `json:"amount"`
	AmountWei    string    `json:"amountWei"`
	Status       string    `json:"status"`
	SourceTxHash string    `json:"txHash"`
	LogIndex     uint      `json:"logIndex"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type depositResp struct {
	Id         uint64    `json:"id"`
	User       string    `json:"user"`
	Fiat       string    `json:"fiat"`
	AmountWei  string    `json:"amountWei"`
	MintTxHash string    `json:"txHash"`
	CreatedAt  time.Time `json:"createdAt"`
}
