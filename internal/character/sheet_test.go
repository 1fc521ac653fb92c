package character

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/tabletop/internal/apperr"
)

const lssSheet = `{
  "name": {"value": "Ezmerelda d'Avenir"},
  "info": {
    "charClass": {"value": "Rogue"},
    "level": {"value": 5},
    "race": {"value": "Human"},
    "background": {"value": "Urchin"}
  },
  "vitality": {"hp-current": {"value": 31}, "hp-max": {"value": "38"}, "ac": {"value": 15}, "speed": {"value": 30}},
  "stats": {"cha": {"score": 14, "modifier": 2}, "dex": {"score": 18, "modifier": 4}},
  "weaponsList": [{"name": {"value": "Rapier"}, "mod": {"value": "+7"}, "dmg": {"value": "1d8+4"}}, {"name": {"value": ""}}],
  "coins": {"gp": {"value": 42}, "cp": {"value": 0}},
  "custom": {"keep": true}
}`

func TestParseSheet(t *testing.T) {
	norm, err := Normalize([]byte(lssSheet))
	require.NoError(t, err)
	sh, err := ParseSheet(norm)
	require.NoError(t, err)

	assert.Equal(t, "Ezmerelda d'Avenir", sh.Name)
	assert.Equal(t, "Rogue", sh.Class)
	assert.Equal(t, 5, sh.Level)
	assert.Equal(t, 38, sh.MaxHP, "numbers may arrive as strings")
	assert.Equal(t, 15, sh.AC)
	require.Len(t, sh.Stats, 2)
	assert.Equal(t, "dex", sh.Stats[0].Key, "abilities follow the sheet order")
	assert.Equal(t, 4, sh.Stats[0].Modifier)
	require.Len(t, sh.Weapons, 1)
	assert.Equal(t, "1d8+4", sh.Weapons[0].Damage)
	assert.Equal(t, map[string]int{"gp": 42}, sh.Coins)
}

func TestNormalizeUnwrapsExport(t *testing.T) {
	wrapped, err := json.Marshal(map[string]any{"jsonType": "character", "data": lssSheet})
	require.NoError(t, err)
	norm, err := Normalize(append([]byte("\xef\xbb\xbf"), wrapped...))
	require.NoError(t, err)
	assert.NotContains(t, string(norm), "jsonType")
	assert.NotContains(t, string(norm), "\n")
	assert.JSONEq(t, lssSheet, string(norm))
}

func TestNormalizeRejects(t *testing.T) {
	for name, raw := range map[string]string{
		"not json":  "level 5 rogue",
		"array":     `[1, 2]`,
		"bad data":  `{"data": "{oops"}`,
		"too large": `{"pad": "` + strings.Repeat("x", MaxSheetBytes) + `"}`,
	} {
		_, err := Normalize([]byte(raw))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), name)
	}
}

func TestWithLevelKeepsOtherFields(t *testing.T) {
	norm, err := Normalize([]byte(lssSheet))
	require.NoError(t, err)
	out, err := withLevel(norm, 6)
	require.NoError(t, err)

	sh, err := ParseSheet(out)
	require.NoError(t, err)
	assert.Equal(t, 6, sh.Level)
	assert.Equal(t, "Rogue", sh.Class)
	assert.Contains(t, string(out), `"custom":{"keep":true}`)

	bare, err := withLevel([]byte(`{}`), 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"info":{"level":{"value":2}}}`, string(bare))
}
