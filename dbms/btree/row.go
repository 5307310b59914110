package btree

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	UsernameSize = 32
	EmailSize    = 255

	rowIDSize       = 4
	rowUsernameSize = UsernameSize + 1 // NUL terminated
	rowEmailSize    = EmailSize + 1

	// RowSize is the serialized size of a row, fixed by the file format.
	RowSize = rowIDSize + rowUsernameSize + rowEmailSize
)

// Row is a fixed-width record keyed by ID.
type Row struct {
	ID       int32
	Username string
	Email    string
}

// NewRow validates field lengths and builds a row. Oversized fields are
// rejected here so the tree never sees them.
func NewRow(id int32, username, email string) (Row, error) {
	if len(username) > UsernameSize {
		return Row{}, errors.Errorf("username longer than %d bytes", UsernameSize)
	}
	if len(email) > EmailSize {
		return Row{}, errors.Errorf("email longer than %d bytes", EmailSize)
	}
	return Row{ID: id, Username: username, Email: email}, nil
}

// serializeRow writes the row into dst, which must be at least RowSize bytes.
// String fields are NUL padded to their fixed capacity.
func serializeRow(r *Row, dst []byte) {
	binary.LittleEndian.PutUint32(dst[0:rowIDSize], uint32(r.ID))

	user := dst[rowIDSize : rowIDSize+rowUsernameSize]
	for i := range user {
		user[i] = 0
	}
	copy(user, r.Username)

	mail := dst[rowIDSize+rowUsernameSize : RowSize]
	for i := range mail {
		mail[i] = 0
	}
	copy(mail, r.Email)
}

// deserializeRow reads a row from src, which must be at least RowSize bytes.
func deserializeRow(src []byte) Row {
	return Row{
		ID:       int32(binary.LittleEndian.Uint32(src[0:rowIDSize])),
		Username: cString(src[rowIDSize : rowIDSize+rowUsernameSize]),
		Email:    cString(src[rowIDSize+rowUsernameSize : RowSize]),
	}
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
