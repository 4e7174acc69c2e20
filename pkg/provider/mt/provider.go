// Package mt defines the Provider interface for machine-translation backends.
//
// Implementations must be safe for concurrent use: translations for both
// call directions may be requested at the same time.
package mt

import "context"

// Provider is the abstraction over any text translation backend.
type Provider interface {
	// Translate renders text from sourceLang into targetLang. Both languages
	// are ISO 639-1 codes. The result is plain text with no markup.
	//
	// Implementations must respect ctx cancellation and return promptly when
	// the deadline expires.
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
