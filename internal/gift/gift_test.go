package gift

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProfile(t *testing.T) {
	tests := []struct {
		name      string
		inName    string
		inEmail   string
		wantName  string
		wantEmail string
		want      Profile
	}{
		{"valid", "Ana", "ana@example.com", "", "", Profile{Name: "Ana", Email: "ana@example.com"}},
		{"trims", "  Ana  ", " ana@example.com ", "", "", Profile{Name: "Ana", Email: "ana@example.com"}},
		{"empty name", "   ", "ana@example.com", MsgNameRequired, "", Profile{}},
		{"empty email", "Ana", "", "", MsgEmailRequired, Profile{}},
		{"no domain dot", "Ana", "ana@example", "", MsgEmailInvalid, Profile{}},
		{"inner space", "Ana", "a na@example.com", "", MsgEmailInvalid, Profile{}},
		{"both missing", "", "", MsgNameRequired, MsgEmailRequired, Profile{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewProfile(tt.inName, tt.inEmail)
			if tt.wantName == "" && tt.wantEmail == "" {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
				return
			}
			var perr *ProfileError
			require.True(t, errors.As(err, &perr), "want *ProfileError, got %v", err)
			require.Equal(t, tt.wantName, perr.Name)
			require.Equal(t, tt.wantEmail, perr.Email)
			require.True(t, got.IsZero())
		})
	}
}

func TestSelection_ToggleParity(t *testing.T) {
	g := Gift{ID: "g1", Name: "Blender"}
	for toggles := 0; toggles <= 6; toggles++ {
		s := NewSelection()
		for i := 0; i < toggles; i++ {
			s.Toggle(g)
		}
		require.Equal(t, toggles%2 == 1, s.Has(g.ID), "toggles=%d", toggles)
	}
}

func TestSelection_ToggleReportsMembership(t *testing.T) {
	s := NewSelection()
	g := Gift{ID: "g1", Name: "Blender"}

	require.True(t, s.Toggle(g))
	require.Equal(t, 1, s.Count())
	require.False(t, s.Toggle(g))
	require.Equal(t, 0, s.Count())
}

func TestSelection_FinalizeEmpty(t *testing.T) {
	var s Selection
	items, err := s.Finalize()
	require.ErrorIs(t, err, ErrEmptySelection)
	require.Nil(t, items)
}

func TestSelection_FinalizeIsSortedCopy(t *testing.T) {
	s := NewSelection()
	s.Toggle(Gift{ID: "g3", Name: "Towels"})
	s.Toggle(Gift{ID: "g1", Name: "Blender"})

	items, err := s.Finalize()
	require.NoError(t, err)
	require.Equal(t, []Selected{{ID: "g1", Name: "Blender"}, {ID: "g3", Name: "Towels"}}, items)

	items[0].Name = "changed"
	require.Equal(t, "Blender", s.Items()[0].Name)
}

func TestSelection_RemoveAndClear(t *testing.T) {
	s := NewSelection()
	s.Toggle(Gift{ID: "a", Name: "A"})
	s.Toggle(Gift{ID: "b", Name: "B"})
	s.Toggle(Gift{ID: "c", Name: "C"})

	s.Remove("b", "missing")
	require.False(t, s.Has("b"))
	require.Equal(t, 2, s.Count())

	s.Clear()
	require.Equal(t, 0, s.Count())
}
