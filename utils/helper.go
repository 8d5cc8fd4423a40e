package utils

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/audit_backend/config"
	"github.com/shopspring/decimal"
)

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errorResponse["error"] = err.Error()
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// safely dereference pointer of type T, nil pointer return zero value or optional default
func DereferencePtr[T any](ptr *T, defaults ...T) T {
	var defaultValue T
	if len(defaults) > 0 {
		defaultValue = defaults[0]
	}
	if ptr == nil {
		return defaultValue
	}
	return *ptr
}

// ParseDecimal converts a string to a decimal.Decimal value.
func ParseDecimal(value string) (decimal.Decimal, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return decimal.Zero, errors.New("empty decimal string")
	}
	return decimal.NewFromString(value)
}

// NullDecimalOrZero coalesces a missing amount to zero.
func NullDecimalOrZero(d decimal.NullDecimal) decimal.Decimal {
	if !d.Valid {
		return decimal.Zero
	}
	return d.Decimal
}

// ClientLock obtains a redis lock for clientId/scope. The returned func releases it.
// When Redis is not connected it returns ErrorLockNotReady and a no-op release.
func ClientLock(ctx context.Context, clientId string, scope string, ttl time.Duration, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	noop := func() {}
	locker := config.GetRedisLock()
	if locker == nil {
		return noop, ErrorLockNotReady
	}

	lockKey := fmt.Sprintf("%s:%s", scope, clientId)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for client", clientId, err)
		return noop, ErrorAnalysisLocked
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for client", clientId, err)
		return noop, err
	}
	return func() {
		// release on a fresh context so a cancelled request still frees the key
		_ = lock.Release(context.Background())
	}, nil
}
