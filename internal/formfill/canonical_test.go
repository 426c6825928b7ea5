package formfill

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalKey(t *testing.T) {
	cases := map[string]string{
		"ORDER DATE:. Date the order was placed":          "ORDER DATE",
		"  Ship To:   Company Name:. The receiving company": "SHIP TO: COMPANY NAME",
		"PURCHASE ORDER #: . The customer's PO number":     "PURCHASE ORDER #",
		"SHIP TO: COMPANY NAME:":                           "SHIP TO: COMPANY NAME",
		"ITEM # (LINE ITEM) (1st row shown). Product code": "ITEM # (LINE ITEM) (1ST ROW SHOWN)",
		"Salesperson":                                      "SALESPERSON",
		"   ":                                              "",
	}
	for in, want := range cases {
		got := CanonicalKey(in)
		require.Equal(t, want, got, "canonical key of %q", in)
		require.Equal(t, got, CanonicalKey(got), "canonical key of %q is not stable", in)
	}
}

func TestCanonicalKeyStopsAtFirstPeriod(t *testing.T) {
	require.Equal(t, "ORDER DATE", CanonicalKey("ORDER DATE:. Date. More. Text."))
}

func TestRowIndex(t *testing.T) {
	v := DefaultVocabulary()
	cases := []struct {
		desc  string
		want  int
		found bool
	}{
		{"ITEM # (LINE ITEM) (1st row shown). Product code", 0, true},
		{"SHIP QTY (LINE ITEM) (12th row/last listed)", 11, true},
		{"DESCRIPTION (LINE ITEM) (2nd Row shown)", 1, true},
		{"ORDER QTY (LINE ITEM) (23rd row shown)", 22, true},
		{"ORDER QTY (LINE ITEM) (0th row shown)", -1, true},
		{"DESCRIPTION (LINE ITEM). Product name", 0, false},
		{"ORDER DATE", 0, false},
	}
	for _, tc := range cases {
		got, found := v.RowIndex(tc.desc)
		require.Equal(t, tc.found, found, tc.desc)
		require.Equal(t, tc.want, got, tc.desc)
	}
}
