// ABOUTME: Agenda orders satisfied instantiations for firing
// ABOUTME: Salience first, then rule registration order, then matched fact order
package engine

import "sort"

// Agenda is the ordered set of instantiations satisfied in one round
type Agenda struct {
	items []Instantiation
}

// NewAgenda sorts instantiations into firing order
func NewAgenda(insts []Instantiation) *Agenda {
	items := append([]Instantiation(nil), insts...)
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Rule.Salience != b.Rule.Salience {
			return a.Rule.Salience > b.Rule.Salience
		}
		if a.position != b.position {
			return a.position < b.position
		}
		return handlesLess(a.Handles, b.Handles)
	})
	return &Agenda{items: items}
}

// Len returns the number of satisfied instantiations
func (a *Agenda) Len() int {
	return len(a.items)
}

// Next returns the instantiation that fires this round
func (a *Agenda) Next() (Instantiation, bool) {
	if len(a.items) == 0 {
		return Instantiation{}, false
	}
	return a.items[0], true
}

// Items returns the instantiations in firing order
func (a *Agenda) Items() []Instantiation {
	return a.items
}

func handlesLess(a, b []Handle) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
