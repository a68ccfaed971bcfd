package utils

import (
	"encoding/hex"
)

// HexBinary is a []byte that encodes to hexadecimal text, eg in json documents.
type HexBinary []byte

// UnmarshalText decodes hexadecimal text, reusing the HexBinary capacity when possible.
func (self *HexBinary) UnmarshalText(text []byte) error {
	var dst []byte
	hxsz := hex.DecodedLen(len(text))
	if cap([]byte(*self)) >= hxsz {
		dst = []byte(*self)[:0]
	} else {
		dst = make([]byte, 0, hxsz)
	}

	dst, err := hex.AppendDecode(dst, text)
	if nil != err {
		return err
	}

	*self = HexBinary(dst)
	return nil
}

// MarshalText encodes the HexBinary as lowercase hexadecimal text.
func (self HexBinary) MarshalText() ([]byte, error) {
	return hex.AppendEncode(nil, []byte(self)), nil
}

// String implements fmt.Stringer.
func (self HexBinary) String() string {
	return hex.EncodeToString(self)
}
