package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		rule    VerdictRule
		want    bool
		wantErr bool
	}{
		{name: "plain yes", raw: "Yes", rule: ContainsYes, want: true},
		{name: "spaced yes", raw: " Y E S.", rule: ContainsYes, want: true},
		{name: "sentence", raw: "Yes, it is an accepted taxonomy.", rule: ContainsYes, want: true},
		{name: "no", raw: "No", rule: ContainsYes, want: false},
		{name: "empty", raw: "  \n", rule: ContainsYes, wantErr: true},
		{name: "plus", raw: " + ", rule: ExactPlus, want: true},
		{name: "plus with text", raw: "+ looks fine", rule: ExactPlus, want: false},
		{name: "minus", raw: "-", rule: ExactPlus, want: false},
		{name: "yes is not plus", raw: "yes", rule: ExactPlus, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVerdict(tt.raw, tt.rule)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnparseable)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Car", "Electric Truck", "Boat"}, SplitList("Car, Electric\nTruck ,, Boat,", ","))
	assert.Equal(t, []string{"a long description", "another one"}, SplitList("a long description; another one;", ";"))
	assert.Empty(t, SplitList("  ", ","))
	assert.Equal(t, []string{"a", "b"}, SplitList("a,b", ""))
}

func TestParseIndex(t *testing.T) {
	i, err := ParseIndex(" 2.", 4)
	require.NoError(t, err)
	assert.Equal(t, 2, i)

	i, err = ParseIndex("[0]", 1)
	require.NoError(t, err)
	assert.Equal(t, 0, i)

	_, err = ParseIndex("by size", 4)
	assert.ErrorIs(t, err, ErrUnparseable)

	_, err = ParseIndex("4", 4)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = ParseIndex("-1", 4)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestParseRankLists(t *testing.T) {
	raw := "Class, Order, Family;\nSize, Weight; ab; ;Habitat\n"
	assert.Equal(t, []string{"Class, Order, Family", "Size, Weight", "Habitat"}, ParseRankLists(raw))
	assert.Empty(t, ParseRankLists("None"))
	assert.Equal(t, []string{"Propulsion, Size"}, ParseRankLists("Propulsion, Size; none\n"))
}

func TestSplitRanks(t *testing.T) {
	assert.Equal(t, []string{"Class", "Order", "Family"}, SplitRanks("Class, Order,Family"))
}

func TestEnumerate(t *testing.T) {
	assert.Equal(t, "0. by size\n1. by habitat\n", Enumerate([]string{"by size", "by habitat"}))
	assert.Empty(t, Enumerate(nil))
}

func TestResultValues(t *testing.T) {
	assert.Equal(t, []string{"Car"}, ListResult{Items: []string{"Car", " none "}}.Values())
	assert.Empty(t, ListResult{Items: []string{NoneItem}, Err: ErrUnparseable}.Values())
	assert.Equal(t, "Dog", TextResult{Text: " Dog\n"}.Value())
	assert.Empty(t, TextResult{Text: "None"}.Value())
	assert.Empty(t, TextResult{Text: "Dog", Err: ErrUnparseable}.Value())
}
