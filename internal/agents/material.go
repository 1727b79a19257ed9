package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/altai-labs/magellan/internal/config"
	"github.com/altai-labs/magellan/internal/extraction"
	"github.com/altai-labs/magellan/internal/gateway"
	"github.com/altai-labs/magellan/internal/providers"
)

// materialPrompt instructs the model to emit nothing but the JSON list.
const materialPrompt = `For the industry "%s", return ONLY a valid JSON object listing exactly %d raw materials used as inputs, with NO explanation, NO markdown, NO extra text. Format: {"raw_materials": ["Material 1", "Material 2", "Material 3"]}`

// Where an identified list came from.
const (
	SourceProvider = "provider"
	SourceFallback = "fallback"
)

// TableSource yields the active fallback tables. *config.FallbackStore
// satisfies it.
type TableSource interface {
	Tables() *config.FallbackTables
}

// MaterialSet is the outcome of material identification.
type MaterialSet struct {
	Industry  string   `json:"industry_context"`
	Materials []string `json:"materials"`
	Source    string   `json:"source"`
}

// MaterialIdentifier resolves an industry description into a fixed-size
// list of raw materials with one strict-JSON generate call. A response
// that cannot be parsed falls back to the static industry table exactly
// once; the provider is never re-invoked for the same failure. Lists
// shorter than the target size are extended from the table, longer ones
// truncated.
type MaterialIdentifier struct {
	gw     *gateway.Gateway
	tables TableSource
	count  int
	logger *zap.Logger
}

// NewMaterialIdentifier creates the identifier. count <= 0 defaults
// to 3.
func NewMaterialIdentifier(gw *gateway.Gateway, tables TableSource, count int, logger *zap.Logger) *MaterialIdentifier {
	if count <= 0 {
		count = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaterialIdentifier{gw: gw, tables: tables, count: count, logger: logger}
}

// Identify runs one identification agent for the industry description.
func (m *MaterialIdentifier) Identify(ctx context.Context, industry string) (MaterialSet, Execution) {
	agent := New(KindMaterialIdentifier,
		"Raw Material Analyst",
		fmt.Sprintf("Identify the key raw materials for %q", industry),
		m.logger)
	return Run[MaterialSet](ctx, agent, &materialTask{identifier: m, industry: industry})
}

type materialTask struct {
	identifier *MaterialIdentifier
	industry   string
}

func (t *materialTask) Validate() error {
	if strings.TrimSpace(t.industry) == "" {
		return &providers.ValidationError{Field: "industry_context", Reason: "cannot be empty"}
	}
	return nil
}

func (t *materialTask) Execute(ctx context.Context, a *Agent) (MaterialSet, error) {
	m := t.identifier
	set := MaterialSet{Industry: t.industry, Source: SourceProvider}

	inv, err := m.gw.Generate(ctx, ProviderIDGenerate, providers.GenerateRequest{
		Prompt:      fmt.Sprintf(materialPrompt, t.industry, m.count),
		MaxTokens:   200,
		Temperature: 0,
		Format:      providers.FormatJSON,
	})
	if err != nil {
		return set, err
	}
	a.Memory.Remember(MemoryResearch, "raw_response", inv.Text)
	if inv.Degraded() {
		a.NoteFault()
	}

	materials, perr := extraction.MaterialList(inv.Text)
	if perr != nil {
		a.NoteFault()
		a.logger.Warn("Material response unparseable, using industry table", zap.Error(perr))
		materials = m.tables.Tables().MaterialsFor(t.industry)
		set.Source = SourceFallback
	}

	materials = dedupeTrim(materials)
	if len(materials) > m.count {
		materials = materials[:m.count]
	}
	if len(materials) < m.count {
		materials = t.extend(materials)
	}
	if len(materials) == 0 {
		return set, &providers.ValidationError{Field: "raw_materials", Reason: "no valid materials identified"}
	}

	set.Materials = materials
	a.Memory.Remember(MemoryAnalysis, "identified_materials", strings.Join(materials, ", "))
	a.logger.Info("Raw materials identified",
		zap.Strings("materials", materials),
		zap.String("source", set.Source))
	return set, nil
}

// extend fills a short list up to the target size from the industry
// table, skipping entries already present.
func (t *materialTask) extend(materials []string) []string {
	m := t.identifier
	seen := make(map[string]struct{}, len(materials))
	for _, v := range materials {
		seen[strings.ToLower(v)] = struct{}{}
	}
	for _, candidate := range m.tables.Tables().MaterialsFor(t.industry) {
		if len(materials) >= m.count {
			break
		}
		key := strings.ToLower(candidate)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		materials = append(materials, candidate)
	}
	return materials
}
