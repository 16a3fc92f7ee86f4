package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField(t *testing.T) {
	cases := []struct {
		in   string
		want Field
		ok   bool
	}{
		{"name", FieldName, true},
		{"Quantity", FieldQuantity, true},
		{" price ", FieldPrice, true},
		{"id", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseField(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrUnknownField, tc.in)
		}
	}
}

func TestTreeCloneIsDeep(t *testing.T) {
	orig := Tree{{ID: 1, Name: "Frutas", Items: []Item{{ID: 2, Name: "Banana", Quantity: 1}}}}
	cp := orig.Clone()
	cp[0].Items[0].Quantity = 9
	cp[0].Name = "Outra"
	assert.Equal(t, 1.0, orig[0].Items[0].Quantity)
	assert.Equal(t, "Frutas", orig[0].Name)
	assert.Nil(t, Tree(nil).Clone())
}

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"November", "November", true},
		{"november", "November", true},
		{"Março", "March", true},
		{"1", "January", true},
		{"12", "December", true},
		{"13", "", false},
		{"0", "", false},
		{"Brumaire", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseMonth(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			assert.Equal(t, tc.want, got)
		} else {
			assert.ErrorIs(t, err, ErrInvalidMonth, tc.in)
		}
	}
	assert.Equal(t, "Novembro", MonthLabel("November"))
	assert.Equal(t, "Custom", MonthLabel("Custom"))
	assert.Equal(t, "October", CurrentMonth(time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)))
}

func TestClockIDsStrictlyIncreasing(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	ids := NewClockIDs(func() time.Time { return fixed })
	a, b, c := ids.NextID(), ids.NextID(), ids.NextID()
	assert.Equal(t, fixed.UnixMilli(), a)
	assert.Equal(t, a+1, b)
	assert.Equal(t, b+1, c)
}

func TestSortItemsUsesPortugueseCollation(t *testing.T) {
	items := []Item{{Name: "Óleo de soja"}, {Name: "Ovos"}, {Name: "Arroz"}, {Name: "Mamão"}, {Name: "Maçã"}}
	SortItems(items)
	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	assert.Equal(t, []string{"Arroz", "Maçã", "Mamão", "Óleo de soja", "Ovos"}, names)
	assert.True(t, ItemsSorted(items))
}
