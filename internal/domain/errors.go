package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrRateLimited    = errors.New("rate limited")
	ErrInvalidRequest = errors.New("invalid trade request")
	ErrOrderRejected  = errors.New("order rejected by exchange")
	ErrRiskRejected   = errors.New("rejected by risk limits")
	ErrWSDisconnect   = errors.New("websocket disconnected")
	ErrEngineStopped  = errors.New("engine stopped")
)
