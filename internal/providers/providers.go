// Package providers defines the three external capability contracts the
// engine consumes (search, generate, query), the tagged-union response
// Value, and the error taxonomy shared by the gateway and the workflow
// layers. Concrete adapters live in subpackages; the engine itself never
// depends on a specific vendor.
package providers

import "context"

// Class groups providers by capability. Cache TTLs and circuit breakers are
// keyed per class.
type Class string

const (
	ClassSearch   Class = "search"
	ClassGenerate Class = "generate"
	ClassQuery    Class = "query"
)

// ResponseFormat selects the output discipline requested from a generate
// provider.
type ResponseFormat string

const (
	FormatText       ResponseFormat = "text"
	FormatJSON       ResponseFormat = "json"
	FormatStructured ResponseFormat = "structured"
)

// GenerateRequest carries the arguments of one language-model invocation.
type GenerateRequest struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
	Format      ResponseFormat
}

// SearchProvider returns ranked snippets for a query.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) (Value, error)
}

// GenerateProvider produces text from a language model.
type GenerateProvider interface {
	Generate(ctx context.Context, req GenerateRequest) (Value, error)
}

// QueryProvider executes a parameterized query against a structured store
// and returns the matching rows.
type QueryProvider interface {
	Query(ctx context.Context, storeQuery string, params []any) (Value, error)
}
