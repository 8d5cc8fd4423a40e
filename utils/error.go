package utils

import "errors"

var (
	ErrorAnalysisLocked = errors.New("analysis already running for client")
	ErrorLockNotReady   = errors.New("service not ready (redis lock not initialized)")
)
