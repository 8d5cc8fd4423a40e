package utils

import (
	"context"

	"github.com/google/uuid"
	"github.com/mmdatafocus/audit_backend/appctx"
)

var (
	ContextKeyClientId      = appctx.ContextKeyClientId
	ContextKeyDataVersion   = appctx.ContextKeyDataVersion
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyRunId         = appctx.ContextKeyRunId
)

func GetClientIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyClientId)
}

func GetDataVersionFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyDataVersion)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func GetRunIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyRunId)
}

func SetClientIdInContext(ctx context.Context, clientId string) context.Context {
	return appctx.Set(ctx, ContextKeyClientId, clientId)
}

func SetDataVersionInContext(ctx context.Context, dataVersion string) context.Context {
	return appctx.Set(ctx, ContextKeyDataVersion, dataVersion)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetRunIdInContext(ctx context.Context, runId string) context.Context {
	return appctx.Set(ctx, ContextKeyRunId, runId)
}

// EnsureCorrelationId returns ctx unchanged when it already carries a correlation id.
func EnsureCorrelationId(ctx context.Context) (context.Context, string) {
	if id, ok := GetCorrelationIdFromContext(ctx); ok && id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return SetCorrelationIdInContext(ctx, id), id
}
