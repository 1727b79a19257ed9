package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MaterialRule maps an industry keyword to its raw material list.
type MaterialRule struct {
	Match string   `yaml:"match"`
	Items []string `yaml:"items"`
}

// CountryRule maps a material keyword to its producer country list.
type CountryRule struct {
	Match     string   `yaml:"match"`
	Countries []string `yaml:"countries"`
}

// FallbackTables hold the static material and producer-country tables used
// when providers cannot produce usable output. Rules are checked in order;
// the first whose keyword appears in the lowercased input wins.
type FallbackTables struct {
	Materials        []MaterialRule `yaml:"materials"`
	GenericMaterials []string       `yaml:"generic_materials"`
	Countries        []CountryRule  `yaml:"countries"`
	GenericCountries []string       `yaml:"generic_countries"`
}

var (
	fallbackTables     *FallbackTables
	fallbackTablesOnce sync.Once
	fallbackTablesErr  error
)

// LoadFallbackTables loads the fallback tables, once, from
// FALLBACK_CONFIG_PATH or a well-known location, falling back to the
// compiled-in defaults when no file exists.
func LoadFallbackTables() (*FallbackTables, error) {
	fallbackTablesOnce.Do(func() {
		fallbackTables, fallbackTablesErr = loadFallbackFromFile()
	})
	return fallbackTables, fallbackTablesErr
}

func loadFallbackFromFile() (*FallbackTables, error) {
	cfgPath := os.Getenv("FALLBACK_CONFIG_PATH")
	if cfgPath == "" {
		candidates := []string{
			"/app/config/fallback.yaml",
			"config/fallback.yaml",
		}
		for _, c := range candidates {
			if _, err := os.Stat(c); err == nil {
				cfgPath = c
				break
			}
		}
	}
	if cfgPath == "" {
		return DefaultFallbackTables(), nil
	}

	data, err := os.ReadFile(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read fallback tables: %w", err)
	}
	return parseFallback(data)
}

func parseFallback(data []byte) (*FallbackTables, error) {
	var t FallbackTables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse fallback tables: %w", err)
	}
	applyFallbackDefaults(&t)
	return &t, nil
}

// applyFallbackDefaults fills any section the file left empty from the
// compiled-in tables, so a partial file never disables a fallback path.
func applyFallbackDefaults(t *FallbackTables) {
	def := DefaultFallbackTables()
	if len(t.Materials) == 0 {
		t.Materials = def.Materials
	}
	if len(t.GenericMaterials) == 0 {
		t.GenericMaterials = def.GenericMaterials
	}
	if len(t.Countries) == 0 {
		t.Countries = def.Countries
	}
	if len(t.GenericCountries) == 0 {
		t.GenericCountries = def.GenericCountries
	}
}

// MaterialsFor returns the raw materials for an industry description.
func (t *FallbackTables) MaterialsFor(industry string) []string {
	lower := strings.ToLower(industry)
	for _, rule := range t.Materials {
		if strings.Contains(lower, rule.Match) {
			return append([]string(nil), rule.Items...)
		}
	}
	return append([]string(nil), t.GenericMaterials...)
}

// CountriesFor returns the producer countries for a material name.
func (t *FallbackTables) CountriesFor(material string) []string {
	lower := strings.ToLower(material)
	for _, rule := range t.Countries {
		if strings.Contains(lower, rule.Match) {
			return append([]string(nil), rule.Countries...)
		}
	}
	return append([]string(nil), t.GenericCountries...)
}

// DefaultFallbackTables returns the compiled-in tables.
func DefaultFallbackTables() *FallbackTables {
	return &FallbackTables{
		Materials: []MaterialRule{
			{Match: "tissue", Items: []string{"Wood Pulp", "Recycled Paper", "Bleaching Chemicals"}},
			{Match: "paper", Items: []string{"Wood Pulp", "Recycled Paper", "Water"}},
			{Match: "cotton", Items: []string{"Cotton Fiber", "Polyester", "Textile Dyes"}},
			{Match: "textile", Items: []string{"Cotton Fiber", "Polyester", "Chemical Dyes"}},
			{Match: "chocolate", Items: []string{"Cocoa Beans", "Sugar", "Milk Powder"}},
			{Match: "smartphone", Items: []string{"Lithium", "Rare Earth Elements", "Copper"}},
			{Match: "automotive", Items: []string{"Steel", "Aluminum", "Rubber"}},
			{Match: "electronics", Items: []string{"Copper", "Lithium", "Silicon"}},
			{Match: "furniture", Items: []string{"Timber", "Steel", "Fabric"}},
			{Match: "cosmetics", Items: []string{"Essential Oils", "Titanium Dioxide", "Palm Oil"}},
			{Match: "food", Items: []string{"Sugar", "Wheat", "Soybeans"}},
			{Match: "beverage", Items: []string{"Sugar", "Water", "Flavorings"}},
		},
		GenericMaterials: []string{"Steel", "Aluminum", "Plastic"},
		Countries: []CountryRule{
			{Match: "cocoa", Countries: []string{"Ecuador", "Ghana", "Ivory Coast"}},
			{Match: "chocolate", Countries: []string{"Ecuador", "Ghana", "Ivory Coast"}},
			{Match: "coffee", Countries: []string{"Brazil", "Colombia", "Ethiopia"}},
			{Match: "cotton", Countries: []string{"India", "China", "USA"}},
			{Match: "polyester", Countries: []string{"China", "India", "USA"}},
			{Match: "textile", Countries: []string{"China", "India", "Bangladesh"}},
			{Match: "dye", Countries: []string{"India", "China", "Germany"}},
			{Match: "fiber", Countries: []string{"India", "China", "USA"}},
			{Match: "sugar", Countries: []string{"Brazil", "India", "Thailand"}},
			{Match: "tea", Countries: []string{"China", "India", "Kenya"}},
			{Match: "wheat", Countries: []string{"Russia", "USA", "Canada"}},
			{Match: "rice", Countries: []string{"China", "India", "Indonesia"}},
			{Match: "milk", Countries: []string{"New Zealand", "Netherlands", "Germany"}},
			{Match: "vanilla", Countries: []string{"Madagascar", "Indonesia", "Mexico"}},
			{Match: "soybeans", Countries: []string{"USA", "Brazil", "Argentina"}},
			{Match: "steel", Countries: []string{"China", "India", "Japan"}},
			{Match: "aluminum", Countries: []string{"China", "Russia", "Canada"}},
			{Match: "copper", Countries: []string{"Chile", "Peru", "China"}},
			{Match: "lithium", Countries: []string{"Chile", "Australia", "Argentina"}},
			{Match: "rubber", Countries: []string{"Thailand", "Indonesia", "Malaysia"}},
			{Match: "wool", Countries: []string{"Australia", "China", "New Zealand"}},
			{Match: "silk", Countries: []string{"China", "India", "Brazil"}},
			{Match: "timber", Countries: []string{"Canada", "Russia", "Brazil"}},
			{Match: "palm oil", Countries: []string{"Indonesia", "Malaysia", "Thailand"}},
			{Match: "oil", Countries: []string{"Saudi Arabia", "Russia", "USA"}},
			{Match: "palm", Countries: []string{"Indonesia", "Malaysia", "Thailand"}},
			{Match: "essential", Countries: []string{"India", "France", "Bulgaria"}},
			{Match: "titanium", Countries: []string{"Australia", "South Africa", "Canada"}},
		},
		GenericCountries: []string{"Brazil", "India", "China"},
	}
}

// FallbackStore provides synchronized access to the active tables so they
// can be swapped when fallback.yaml changes under the Manager.
type FallbackStore struct {
	mu     sync.RWMutex
	tables *FallbackTables
}

// NewFallbackStore creates a store seeded with the given tables.
func NewFallbackStore(t *FallbackTables) *FallbackStore {
	if t == nil {
		t = DefaultFallbackTables()
	}
	return &FallbackStore{tables: t}
}

// Tables returns the active tables.
func (s *FallbackStore) Tables() *FallbackTables {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tables
}

// Replace swaps in new tables.
func (s *FallbackStore) Replace(t *FallbackTables) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = t
}

// HandleChange applies a fallback.yaml change event. Deleting the file
// reverts to the compiled-in defaults.
func (s *FallbackStore) HandleChange(event ChangeEvent) error {
	if event.Action == "delete" {
		s.Replace(DefaultFallbackTables())
		return nil
	}
	data, err := yaml.Marshal(event.Config)
	if err != nil {
		return fmt.Errorf("re-encode fallback tables: %w", err)
	}
	t, err := parseFallback(data)
	if err != nil {
		return err
	}
	s.Replace(t)
	return nil
}
