package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altai-labs/magellan/internal/providers"
)

func TestMaterialListPlainJSON(t *testing.T) {
	got, err := MaterialList(`{"raw_materials": ["Cocoa Beans", "Sugar", "Milk Powder"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cocoa Beans", "Sugar", "Milk Powder"}, got)
}

func TestMaterialListFencedPayload(t *testing.T) {
	text := "```json\n{\"raw_materials\": [\"Steel\", \"Aluminum\"]}\n```"
	got, err := MaterialList(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Steel", "Aluminum"}, got)
}

func TestMaterialListProseWrappedPayload(t *testing.T) {
	text := `Here are the materials you asked for:
{"raw_materials": ["Cotton", "Polyester", "Dye"]}
Let me know if you need more detail.`
	got, err := MaterialList(text)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cotton", "Polyester", "Dye"}, got)
}

func TestMaterialListSkipsBlankAndNonStringEntries(t *testing.T) {
	got, err := MaterialList(`{"raw_materials": ["  Cotton  ", "", 42, "Dye"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Cotton", "Dye"}, got)
}

func TestMaterialListErrors(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		reason string
	}{
		{"no object", "1. Cotton\n2. Dye", "no JSON object found"},
		{"invalid json", `{"raw_materials": ["Cotton",}`, "invalid JSON"},
		{"missing key", `{"materials": ["Cotton"]}`, `missing "raw_materials" field`},
		{"wrong type", `{"raw_materials": "Cotton"}`, `"raw_materials" is not a list`},
		{"empty list", `{"raw_materials": []}`, `empty "raw_materials" list`},
		{"all blank", `{"raw_materials": ["", "  "]}`, `empty "raw_materials" list`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MaterialList(tc.text)
			var perr *providers.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "materials", perr.Source)
			assert.Equal(t, tc.reason, perr.Reason)
		})
	}
}

func TestCountryListCapsAtMax(t *testing.T) {
	got, err := CountryList(`{"countries": ["Brazil", "Vietnam", "Colombia", "Ethiopia", "Honduras"]}`, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "Vietnam", "Colombia"}, got)
}

func TestCountryListRecoversNumberedList(t *testing.T) {
	text := "Top producers:\n1. Brazil\n2. Vietnam\n3. Colombia\n4. Ethiopia\n"
	got, err := CountryList(text, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "Vietnam", "Colombia"}, got)
}

func TestCountryListRecoversBulletedList(t *testing.T) {
	text := "- China\n* India\n• Bangladesh\n"
	got, err := CountryList(text, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"China", "India", "Bangladesh"}, got)
}

func TestCountryListBulletRecoveryTrimsDecoration(t *testing.T) {
	text := "1) \"Brazil\",\n2) 'Vietnam'.\n"
	got, err := CountryList(text, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "Vietnam"}, got)
}

func TestCountryListBulletRecoverySkipsShortItems(t *testing.T) {
	// Numbered fragments like "1. US" survive only past two characters.
	text := "1. US\n2. Brazil\n"
	got, err := CountryList(text, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil"}, got)
}

func TestCountryListPlainProseFails(t *testing.T) {
	_, err := CountryList("Brazil leads global production, followed by Vietnam.", 3)
	var perr *providers.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "countries", perr.Source)
}

func TestCountryListPrefersJSONOverBullets(t *testing.T) {
	// A valid payload wins even when the surrounding prose looks listy.
	text := "1. See below\n{\"countries\": [\"Brazil\", \"Vietnam\"]}"
	got, err := CountryList(text, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Brazil", "Vietnam"}, got)
}
