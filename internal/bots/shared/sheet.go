package shared

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/m3rciful/tabletop/core/telegram/format"
	"github.com/m3rciful/tabletop/internal/character"
	"github.com/m3rciful/tabletop/internal/model"
)

// coinOrder lists coins from the most valuable down.
var coinOrder = []string{"pp", "ep", "gp", "sp", "cp"}

// DescribeCharacter writes an HTML summary of a character and its sheet.
func DescribeCharacter(b *strings.Builder, c model.Character, sh *character.Sheet) {
	fmt.Fprintf(b, "🧝 <b>%s</b>, level %d\n", format.EscapeHTML(displayName(c.Name)), c.Level)
	if sh == nil {
		return
	}
	var origin []string
	for _, s := range []string{sh.Race, sh.Class, sh.Background} {
		if s != "" {
			origin = append(origin, format.EscapeHTML(s))
		}
	}
	if len(origin) > 0 {
		b.WriteString(strings.Join(origin, " · ") + "\n")
	}
	if sh.MaxHP > 0 || sh.AC > 0 {
		fmt.Fprintf(b, "❤️ HP %d/%d  🛡 AC %d  👣 %d ft\n", sh.HP, sh.MaxHP, sh.AC, sh.Speed)
	}
	if len(sh.Stats) > 0 {
		parts := make([]string, 0, len(sh.Stats))
		for _, st := range sh.Stats {
			parts = append(parts, fmt.Sprintf("%s %d (%+d)", strings.ToUpper(st.Key), st.Score, st.Modifier))
		}
		b.WriteString(strings.Join(parts, ", ") + "\n")
	}
	for _, w := range sh.Weapons {
		fmt.Fprintf(b, "⚔️ %s %s %s\n", format.EscapeHTML(w.Name), format.EscapeHTML(w.Mod), format.EscapeHTML(w.Damage))
	}
	if len(sh.Coins) > 0 {
		keys := slices.SortedFunc(maps.Keys(sh.Coins), func(a, b string) int {
			return coinRank(a) - coinRank(b)
		})
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%d %s", sh.Coins[k], format.EscapeHTML(k)))
		}
		b.WriteString("💰 " + strings.Join(parts, ", ") + "\n")
	}
}

// DescribeItems writes an HTML list of inventory items.
func DescribeItems(b *strings.Builder, items []model.Item) {
	if len(items) == 0 {
		b.WriteString("Empty.\n")
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "• %s × %d\n", format.EscapeHTML(it.Title), it.Quantity)
		if it.Description != "" {
			fmt.Fprintf(b, "  <i>%s</i>\n", format.EscapeHTML(it.Description))
		}
	}
}

func coinRank(coin string) int {
	if i := slices.Index(coinOrder, coin); i >= 0 {
		return i
	}
	return len(coinOrder)
}

func displayName(name string) string {
	if name == "" {
		return "Unnamed hero"
	}
	return name
}
