// Package artwork resolves the card image displayed next to a provisioning entry.
//
// Resolution never fails. A Resolver tries the credential remote asset, then the
// bundled asset, then falls back to a generated generic card.
package artwork

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Source tells where an Artwork comes from.
type Source string

const (
	SourceRemote  = Source("remote")
	SourceBundle  = Source("bundle")
	SourceDefault = Source("default")
)

// Artwork holds encoded image bytes with their decoded properties.
type Artwork struct {
	Data   []byte `json:"data"`
	Format string `json:"format"` // png, jpeg, gif or webp
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Source Source `json:"source"`
}

// IsZero returns true if the Artwork holds no image.
func (self Artwork) IsZero() bool {
	return 0 == len(self.Data)
}

// Decode validates that data is a supported image and returns the matching Artwork.
// The returned Artwork has an empty Source.
func Decode(data []byte) (Artwork, error) {
	if 0 == len(data) {
		return Artwork{}, newError(ErrDecode, "empty data")
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if nil != err {
		return Artwork{}, wrapError(err, ErrDecode, "failed image.DecodeConfig")
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return Artwork{}, newError(ErrDecode, "invalid %s size %dx%d", format, cfg.Width, cfg.Height)
	}

	return Artwork{
		Data:   data,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}
