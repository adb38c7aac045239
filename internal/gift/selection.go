package gift

import "sort"

// Selection is the visitor's working set of chosen gifts, unique by ID.
// It is not safe for concurrent use.
type Selection struct {
	items map[string]Selected
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{items: make(map[string]Selected)}
}

// Toggle adds g when absent and removes it when present. It returns whether g
// is selected afterwards.
func (s *Selection) Toggle(g Gift) bool {
	if s.items == nil {
		s.items = make(map[string]Selected)
	}
	if _, ok := s.items[g.ID]; ok {
		delete(s.items, g.ID)
		return false
	}
	s.items[g.ID] = Selected{ID: g.ID, Name: g.Name}
	return true
}

// Has reports whether id is selected.
func (s *Selection) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// Count returns the number of selected gifts.
func (s *Selection) Count() int {
	return len(s.items)
}

// Remove drops ids from the selection, ignoring unknown ones.
func (s *Selection) Remove(ids ...string) {
	for _, id := range ids {
		delete(s.items, id)
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.items = make(map[string]Selected)
}

// Items returns the selection sorted by name, then ID.
func (s *Selection) Items() []Selected {
	out := make([]Selected, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Finalize returns an independent copy of the selection for confirmation.
func (s *Selection) Finalize() ([]Selected, error) {
	if s.Count() == 0 {
		return nil, ErrEmptySelection
	}
	return s.Items(), nil
}
