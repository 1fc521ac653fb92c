package character

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/tabletop/internal/apperr"
)

// statOrder is the display order of ability scores.
var statOrder = []string{"str", "dex", "con", "int", "wis", "cha"}

// Stat is one ability score.
type Stat struct {
	Score    int
	Modifier int
}

// Weapon is one attack line of the sheet.
type Weapon struct {
	Name   string
	Mod    string
	Damage string
}

// Sheet is the part of a Long Story Short character export the bots show.
type Sheet struct {
	Name       string
	Class      string
	Race       string
	Background string
	Level      int
	HP         int
	MaxHP      int
	AC         int
	Speed      int
	Stats      []NamedStat
	Weapons    []Weapon
	Coins      map[string]int
}

// NamedStat pairs an ability key such as "dex" with its score.
type NamedStat struct {
	Key string
	Stat
}

// field is the {"value": ...} wrapper LSS puts around most scalars.
type field struct {
	Value json.RawMessage `json:"value"`
}

func (f field) text() string {
	var s string
	if json.Unmarshal(f.Value, &s) == nil {
		return strings.TrimSpace(s)
	}
	return strings.Trim(string(bytes.TrimSpace(f.Value)), `"`)
}

func (f field) number() int {
	n, err := strconv.Atoi(f.text())
	if err != nil {
		var fl float64
		if json.Unmarshal(f.Value, &fl) == nil {
			return int(fl)
		}
		return 0
	}
	return n
}

type rawSheet struct {
	Name field `json:"name"`
	Info struct {
		Class      field `json:"charClass"`
		Level      field `json:"level"`
		Race       field `json:"race"`
		Background field `json:"background"`
	} `json:"info"`
	Vitality map[string]field `json:"vitality"`
	Stats    map[string]struct {
		Score    int `json:"score"`
		Modifier int `json:"modifier"`
	} `json:"stats"`
	Weapons []struct {
		Name   field `json:"name"`
		Mod    field `json:"mod"`
		Damage field `json:"dmg"`
	} `json:"weaponsList"`
	Coins map[string]field `json:"coins"`
}

// envelope is the outer object of an LSS file: the sheet itself is a JSON
// string under "data".
type envelope struct {
	JSONType string `json:"jsonType"`
	Data     string `json:"data"`
}

// Normalize unwraps an LSS export and returns the compacted sheet object.
func Normalize(raw []byte) ([]byte, error) {
	const op = "character.sheet"
	raw = bytes.TrimSpace(bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf")))
	if len(raw) > MaxSheetBytes {
		return nil, apperr.Validation(op, fmt.Sprintf("the file is larger than %d KB", MaxSheetBytes>>10))
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, apperr.Validation(op, "the file is not a JSON object")
	}
	var env envelope
	if _, ok := obj["data"]; ok && json.Unmarshal(raw, &env) == nil && env.Data != "" {
		raw = []byte(env.Data)
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, apperr.Validation(op, "the data field is not a JSON object")
		}
	}
	var out bytes.Buffer
	if err := json.Compact(&out, raw); err != nil {
		return nil, apperr.Validation(op, "the file is not valid JSON")
	}
	return out.Bytes(), nil
}

// ParseSheet reads a normalized sheet. Missing fields stay zero.
func ParseSheet(sheet []byte) (Sheet, error) {
	var r rawSheet
	if err := json.Unmarshal(sheet, &r); err != nil {
		return Sheet{}, apperr.Validation("character.sheet", "the sheet does not look like a Long Story Short export")
	}
	s := Sheet{
		Name:       r.Name.text(),
		Class:      r.Info.Class.text(),
		Race:       r.Info.Race.text(),
		Background: r.Info.Background.text(),
		Level:      r.Info.Level.number(),
		HP:         r.Vitality["hp-current"].number(),
		MaxHP:      r.Vitality["hp-max"].number(),
		AC:         r.Vitality["ac"].number(),
		Speed:      r.Vitality["speed"].number(),
	}
	for _, key := range statOrder {
		if st, ok := r.Stats[key]; ok {
			s.Stats = append(s.Stats, NamedStat{Key: key, Stat: Stat{Score: st.Score, Modifier: st.Modifier}})
		}
	}
	for _, w := range r.Weapons {
		if name := w.Name.text(); name != "" {
			s.Weapons = append(s.Weapons, Weapon{Name: name, Mod: w.Mod.text(), Damage: w.Damage.text()})
		}
	}
	for coin, f := range r.Coins {
		if n := f.number(); n != 0 {
			if s.Coins == nil {
				s.Coins = make(map[string]int)
			}
			s.Coins[coin] = n
		}
	}
	return s, nil
}

// withLevel rewrites info.level.value of a normalized sheet, keeping every
// other field as uploaded.
func withLevel(sheet []byte, level int) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(sheet))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode sheet: %w", err)
	}
	info, _ := doc["info"].(map[string]any)
	if info == nil {
		info = map[string]any{}
		doc["info"] = info
	}
	lvl, _ := info["level"].(map[string]any)
	if lvl == nil {
		lvl = map[string]any{}
		info["level"] = lvl
	}
	lvl["value"] = level
	return json.Marshal(doc)
}
