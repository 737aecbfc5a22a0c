package domain

import "errors"

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidFill           = errors.New("invalid fill")
	ErrInvalidSnapshot       = errors.New("invalid snapshot")
	ErrRiskVeto              = errors.New("risk limit vetoed trade")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")
	ErrStopLoss              = errors.New("stop loss triggered")
	ErrMarketUnknown         = errors.New("unknown market")
	ErrMarketResolved        = errors.New("market already resolved")
	ErrWSDisconnect          = errors.New("websocket disconnected")
)
