package orders

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const legacySep = "|"

// ParseLine decodes one entry of an order's itemIds array. The ledger stores
// either a bare item id or the legacy "id|name|price|imageUrl" encoding.
func ParseLine(raw string) (Line, error) {
	parts := strings.SplitN(raw, legacySep, 4)
	id := strings.TrimSpace(parts[0])
	if id == "" {
		return Line{}, fmt.Errorf("order line %q: empty item id", raw)
	}
	line := Line{ItemID: id}
	if len(parts) > 1 {
		line.Name = parts[1]
	}
	if len(parts) > 2 && strings.TrimSpace(parts[2]) != "" {
		p, err := decimal.NewFromString(strings.TrimSpace(parts[2]))
		if err != nil {
			return Line{}, fmt.Errorf("order line %q: bad price: %w", raw, err)
		}
		if p.IsNegative() {
			return Line{}, fmt.Errorf("order line %q: negative price", raw)
		}
		line.Price = p
	}
	if len(parts) > 3 {
		line.ImageURL = parts[3]
	}
	return line, nil
}

// ParseLines decodes every entry, failing on the first malformed one.
func ParseLines(raw []string) ([]Line, error) {
	lines := make([]Line, 0, len(raw))
	for _, r := range raw {
		l, err := ParseLine(r)
		if err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, nil
}
