package artwork

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"sync"
)

const (
	defaultWidth  = 320
	defaultHeight = 202 // ISO/IEC 7810 ID-1 aspect ratio
)

var defaultArtwork = sync.OnceValue(func() Artwork {
	img := image.NewNRGBA(image.Rect(0, 0, defaultWidth, defaultHeight))
	body := color.NRGBA{R: 0x2B, G: 0x3A, B: 0x55, A: 0xFF}
	band := color.NRGBA{R: 0x14, G: 0x1C, B: 0x2B, A: 0xFF}
	chip := color.NRGBA{R: 0xD4, G: 0xAF, B: 0x37, A: 0xFF}
	for y := range defaultHeight {
		for x := range defaultWidth {
			c := body
			switch {
			case y >= 28 && y < 60:
				c = band
			case x >= 32 && x < 80 && y >= 84 && y < 120:
				c = chip
			}
			img.SetNRGBA(x, y, c)
		}
	}

	buf := &bytes.Buffer{}
	err := png.Encode(buf, img)
	if nil != err {
		panic(err)
	}

	return Artwork{
		Data:   buf.Bytes(),
		Format: "png",
		Width:  defaultWidth,
		Height: defaultHeight,
		Source: SourceDefault,
	}
})

// Default returns the generic card Artwork.
// All calls share the same Data which must not be modified.
func Default() Artwork {
	return defaultArtwork()
}
