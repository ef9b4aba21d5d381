package config

import (
	"errors"
)

// Sentinel kinds for configuration failures, matchable with errors.Is:
// ErrLoadConfig wraps file and env layering problems, ErrInvalidConfig
// wraps validation rejections.
var (
	ErrInvalidConfig = errors.New("invalid config")
	ErrLoadConfig    = errors.New("load config failed")
)
