package deck

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/pantheon/duel-server-go/internal/game/cards"
)

// csvColumns are the catalogue export columns. Only name is mandatory.
var csvColumns = []string{"name", "mana", "religion_type", "attack", "defense", "text", "img", "effect"}

// ParseCSV reads a catalogue export with a header row. Columns may appear in
// any order; effects are separated by '|'.
func ParseCSV(r io.Reader) ([]cards.Card, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalogue CSV is empty")
		}
		return nil, fmt.Errorf("read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}
	if _, ok := index["name"]; !ok {
		return nil, errors.New("catalogue CSV has no name column")
	}
	for col := range index {
		if !slices.Contains(csvColumns, col) {
			return nil, fmt.Errorf("unknown catalogue column %q", col)
		}
	}

	var out []cards.Card
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read CSV line %d: %w", line, err)
		}

		field := func(col string) string {
			if i, ok := index[col]; ok && i < len(record) {
				return strings.TrimSpace(record[i])
			}
			return ""
		}
		number := func(col string) (int, error) {
			v := field(col)
			if v == "" {
				return 0, nil
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s %q is not a number", line, col, v)
			}
			return n, nil
		}

		c := cards.Card{
			Name:     field("name"),
			Religion: field("religion_type"),
			Text:     field("text"),
			Image:    field("img"),
		}
		if c.Name == "" {
			return nil, fmt.Errorf("line %d: card has no name", line)
		}
		if c.Mana, err = number("mana"); err != nil {
			return nil, err
		}
		if c.Attack, err = number("attack"); err != nil {
			return nil, err
		}
		if c.Defense, err = number("defense"); err != nil {
			return nil, err
		}
		if effects := field("effect"); effects != "" {
			for _, e := range strings.Split(effects, "|") {
				if e = strings.TrimSpace(e); e != "" {
					c.Effects = append(c.Effects, e)
				}
			}
		}
		out = append(out, c)
	}
	return out, nil
}
