package services

import "context"

// contextKey scopes values stored by this package.
type contextKey int

const (
	generationKey contextKey = iota
	stageKey
	versionKey
	requestIDKey
)

// WithGeneration tags ctx with the supervisor generation that owns the work.
func WithGeneration(ctx context.Context, generation uint64) context.Context {
	return context.WithValue(ctx, generationKey, generation)
}

// GenerationFromContext returns the generation stored by WithGeneration.
func GenerationFromContext(ctx context.Context) (uint64, bool) {
	gen, ok := ctx.Value(generationKey).(uint64)
	return gen, ok
}

// WithStage tags ctx with a pipeline stage name. Blank names leave ctx as is.
func WithStage(ctx context.Context, stage string) context.Context {
	return withString(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, stageKey)
}

// WithVersion tags ctx with the content version being ingested.
func WithVersion(ctx context.Context, version string) context.Context {
	return withString(ctx, versionKey, version)
}

func VersionFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, versionKey)
}

// WithRequestID tags ctx with a correlation identifier for one API request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withString(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	return stringFrom(ctx, requestIDKey)
}

func withString(ctx context.Context, key contextKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func stringFrom(ctx context.Context, key contextKey) (string, bool) {
	s, ok := ctx.Value(key).(string)
	return s, ok && s != ""
}
