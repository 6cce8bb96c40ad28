package flow

import (
	"sort"

	"garment-flow/internal/storage"
)

// Allocate spreads qty over the active cards, oldest first, closing each
// card as it fills. It returns the cards it changed, in the order it
// touched them, and the quantity left over when open capacity ran out.
// The input slice is not modified.
func Allocate(cards []storage.Card, qty int) ([]storage.Card, int) {
	open := make([]storage.Card, 0, len(cards))
	for _, c := range cards {
		if c.Status == storage.CardActive {
			open = append(open, c)
		}
	}
	sort.SliceStable(open, func(i, j int) bool { return oldestFirst(open[i], open[j]) })

	var touched []storage.Card
	for _, c := range open {
		if qty <= 0 {
			break
		}
		take := min(qty, c.Capacity())
		if take == 0 {
			continue
		}
		c.Produced += take
		c.Normalize()
		qty -= take
		touched = append(touched, c)
	}

	return touched, qty
}

// Revert pulls qty back out of the cards, newest first, reopening closed
// cards that drop below their quantity. It returns the changed cards and
// the quantity that could not be pulled back.
func Revert(cards []storage.Card, qty int) ([]storage.Card, int) {
	filled := make([]storage.Card, 0, len(cards))
	for _, c := range cards {
		if c.Produced > 0 {
			filled = append(filled, c)
		}
	}
	sort.SliceStable(filled, func(i, j int) bool { return oldestFirst(filled[j], filled[i]) })

	var touched []storage.Card
	for _, c := range filled {
		if qty <= 0 {
			break
		}
		pull := min(qty, c.Produced)
		c.Produced -= pull
		c.Normalize()
		qty -= pull
		touched = append(touched, c)
	}

	return touched, qty
}

func oldestFirst(a, b storage.Card) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// mergeCards overlays changed cards on the full card list of a context.
func mergeCards(all, changed []storage.Card) []storage.Card {
	byID := make(map[string]storage.Card, len(changed))
	for _, c := range changed {
		byID[c.ID] = c
	}

	out := make([]storage.Card, len(all))
	for i, c := range all {
		if u, ok := byID[c.ID]; ok {
			c = u
		}
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return oldestFirst(out[i], out[j]) })
	return out
}
