// Package context carries request-scoped values through services and into log fields.
package context

import "context"

type ContextKey string

var (
	RequestIDKey      = ContextKey("X-Request-Id")
	MethodKey         = ContextKey("X-Method")
	RouteKey          = ContextKey("X-Route")
	RemoteIPKey       = ContextKey("X-Remote-Ip")
	TenantIDKey       = ContextKey("X-Tenant-Id")
	TreeVersionIDKey  = ContextKey("X-Tree-Version-Id")
	EvaluationModeKey = ContextKey("X-Evaluation-Mode")
)

func set(ctx context.Context, key ContextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return set(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return get(ctx, RequestIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return set(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return get(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return set(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return get(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return set(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return get(ctx, RemoteIPKey)
}

func SetTenantID(ctx context.Context, tenantID string) context.Context {
	return set(ctx, TenantIDKey, tenantID)
}

func GetTenantID(ctx context.Context) string {
	return get(ctx, TenantIDKey)
}

// SetTreeVersionID records the tree version an evaluation runs against.
func SetTreeVersionID(ctx context.Context, treeVersionID string) context.Context {
	return set(ctx, TreeVersionIDKey, treeVersionID)
}

func GetTreeVersionID(ctx context.Context) string {
	return get(ctx, TreeVersionIDKey)
}

// SetEvaluationMode records preview or persist for the current evaluation.
func SetEvaluationMode(ctx context.Context, mode string) context.Context {
	return set(ctx, EvaluationModeKey, mode)
}

func GetEvaluationMode(ctx context.Context) string {
	return get(ctx, EvaluationModeKey)
}

// Fields returns the non-empty request values as log fields.
func Fields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	for name, key := range map[string]ContextKey{
		"request_id":      RequestIDKey,
		"tenant_id":       TenantIDKey,
		"tree_version_id": TreeVersionIDKey,
		"evaluation_mode": EvaluationModeKey,
	} {
		if v := get(ctx, key); v != "" {
			fields[name] = v
		}
	}
	return fields
}
