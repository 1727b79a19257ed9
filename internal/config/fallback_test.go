package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFallbackMaterialLookup(t *testing.T) {
	tables := DefaultFallbackTables()

	assert.Equal(t, []string{"Wood Pulp", "Recycled Paper", "Bleaching Chemicals"},
		tables.MaterialsFor("Tissue Manufacturing"))
	assert.Equal(t, []string{"Cocoa Beans", "Sugar", "Milk Powder"},
		tables.MaterialsFor("premium chocolate production"))
	assert.Equal(t, []string{"Steel", "Aluminum", "Plastic"},
		tables.MaterialsFor("quantum widgets"))
}

func TestFallbackCountryLookup(t *testing.T) {
	tables := DefaultFallbackTables()

	assert.Equal(t, []string{"Ecuador", "Ghana", "Ivory Coast"}, tables.CountriesFor("Cocoa Beans"))
	assert.Equal(t, []string{"Chile", "Peru", "China"}, tables.CountriesFor("copper"))
	assert.Equal(t, []string{"Brazil", "India", "China"}, tables.CountriesFor("Unobtanium"))
}

func TestFallbackCountryOilRules(t *testing.T) {
	// "palm oil" is matched ahead of the bare "oil" rule; anything else
	// containing "oil" gets the petroleum producers.
	tables := DefaultFallbackTables()
	assert.Equal(t, []string{"Indonesia", "Malaysia", "Thailand"}, tables.CountriesFor("Palm Oil"))
	assert.Equal(t, []string{"Saudi Arabia", "Russia", "USA"}, tables.CountriesFor("Crude Oil"))
	assert.Equal(t, []string{"Saudi Arabia", "Russia", "USA"}, tables.CountriesFor("Essential Oils"))
}

func TestFallbackRuleOrder(t *testing.T) {
	// "cotton textile mill" matches the cotton rule before the textile rule.
	tables := DefaultFallbackTables()
	assert.Equal(t, []string{"Cotton Fiber", "Polyester", "Textile Dyes"},
		tables.MaterialsFor("cotton textile mill"))
}

func TestFallbackLookupReturnsCopies(t *testing.T) {
	tables := DefaultFallbackTables()
	got := tables.MaterialsFor("tissue")
	got[0] = "mutated"
	assert.Equal(t, "Wood Pulp", tables.MaterialsFor("tissue")[0])
}

func TestParseFallbackPartialFile(t *testing.T) {
	data := []byte(`
materials:
  - match: widget
    items: [Zinc, Tin]
`)
	tables, err := parseFallback(data)
	require.NoError(t, err)

	assert.Equal(t, []string{"Zinc", "Tin"}, tables.MaterialsFor("widget factory"))

	// Sections the file omits come from the compiled-in defaults.
	assert.Equal(t, []string{"Brazil", "Colombia", "Ethiopia"}, tables.CountriesFor("coffee"))
	assert.Equal(t, []string{"Steel", "Aluminum", "Plastic"}, tables.MaterialsFor("tissue"))
}

func TestParseFallbackBadYAML(t *testing.T) {
	_, err := parseFallback([]byte("materials: [::"))
	require.Error(t, err)
}

func TestFallbackStoreHandleChange(t *testing.T) {
	store := NewFallbackStore(nil)

	event := ChangeEvent{
		File:   "fallback.yaml",
		Action: "modify",
		Config: map[string]interface{}{
			"countries": []interface{}{
				map[string]interface{}{
					"match":     "lithium",
					"countries": []interface{}{"Australia", "Chile", "China"},
				},
			},
		},
	}
	require.NoError(t, store.HandleChange(event))
	assert.Equal(t, []string{"Australia", "Chile", "China"},
		store.Tables().CountriesFor("Lithium Carbonate"))

	// Deleting the file reverts to the defaults.
	require.NoError(t, store.HandleChange(ChangeEvent{File: "fallback.yaml", Action: "delete"}))
	assert.Equal(t, []string{"Chile", "Australia", "Argentina"},
		store.Tables().CountriesFor("Lithium Carbonate"))
}
