package resilience

import (
	"context"

	"github.com/MrWong99/babelcall/pkg/provider/mt"
)

// MTFallback implements [mt.Provider] with automatic failover across multiple
// translation backends. Each backend has its own circuit breaker.
type MTFallback struct {
	group *FallbackGroup[mt.Provider]
}

// Compile-time interface assertion.
var _ mt.Provider = (*MTFallback)(nil)

// NewMTFallback creates an [MTFallback] with primary as the preferred backend.
func NewMTFallback(primary mt.Provider, primaryName string, cfg FallbackConfig) *MTFallback {
	return &MTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional translation provider as a fallback.
func (f *MTFallback) AddFallback(name string, provider mt.Provider) {
	f.group.AddFallback(name, provider)
}

// Translate renders text via the first healthy backend. Fallback backends may
// use different models, so translation quality can vary when the primary is
// down.
func (f *MTFallback) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return ExecuteWithResult(f.group, func(p mt.Provider) (string, error) {
		return p.Translate(ctx, text, sourceLang, targetLang)
	})
}
