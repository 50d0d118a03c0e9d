package domain

import "errors"

var (
	ErrTickerNotFound   = errors.New("ticker not found")
	ErrTickerRequired   = errors.New("ticker is required")
	ErrNotInLedger      = errors.New("ticker not in signal list")
	ErrInvalidIndex     = errors.New("invalid index")
	ErrPriceUnavailable = errors.New("price unavailable")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
)
