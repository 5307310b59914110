package btree

import "github.com/pkg/errors"

// MarshalBinary serializes the row into its fixed on-page representation.
func (r Row) MarshalBinary() ([]byte, error) {
	buf := make([]byte, RowSize)
	serializeRow(&r, buf)
	return buf, nil
}

// UnmarshalBinary decodes a row from its fixed on-page representation.
func (r *Row) UnmarshalBinary(data []byte) error {
	if len(data) < RowSize {
		return errors.Errorf("row payload is %d bytes, want %d", len(data), RowSize)
	}
	*r = deserializeRow(data)
	return nil
}
