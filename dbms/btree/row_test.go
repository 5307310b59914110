package btree

import (
	"strings"
	"testing"
)

func TestNewRowValidatesFieldLengths(t *testing.T) {
	if _, err := NewRow(1, strings.Repeat("u", UsernameSize), strings.Repeat("e", EmailSize)); err != nil {
		t.Errorf("NewRow at exact capacity: %v", err)
	}
	if _, err := NewRow(1, strings.Repeat("u", UsernameSize+1), "e@e.com"); err == nil {
		t.Error("NewRow accepted an oversized username")
	}
	if _, err := NewRow(1, "u", strings.Repeat("e", EmailSize+1)); err == nil {
		t.Error("NewRow accepted an oversized email")
	}
}

func TestRowMarshalRoundTrip(t *testing.T) {
	in := Row{ID: -42, Username: strings.Repeat("u", UsernameSize), Email: "x@y.z"}

	data, err := in.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != RowSize {
		t.Fatalf("marshaled size = %d, want %d", len(data), RowSize)
	}

	var out Row
	if err := out.UnmarshalBinary(data); err != nil {
		t.Fatal(err)
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}
}
