package pattern

import (
	"image"
	"io"

	// registered decoders for DecodeImage
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// FromImage scales img to w x h and packs it as RGB565.
func FromImage(img image.Image, w, h int) []uint16 {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return fromRGBA(dst)
}

// DecodeImage decodes a PNG, JPEG, GIF or BMP and scales it to w x h.
func DecodeImage(r io.Reader, w, h int) ([]uint16, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return FromImage(img, w, h), nil
}

// FromSVG rasterizes an SVG document stretched to w x h.
func FromSVG(r io.Reader, w, h int) ([]uint16, error) {
	icon, err := oksvg.ReadIconStream(r)
	if err != nil {
		return nil, err
	}
	icon.SetTarget(0, 0, float64(w), float64(h))

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	scanner := rasterx.NewScannerGV(w, h, dst, dst.Bounds())
	icon.Draw(rasterx.NewDasher(w, h, scanner), 1)
	return fromRGBA(dst), nil
}

func fromRGBA(img *image.RGBA) []uint16 {
	b := img.Bounds()
	px := make([]uint16, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			i := img.PixOffset(x, y)
			px = append(px, RGB565(img.Pix[i], img.Pix[i+1], img.Pix[i+2]))
		}
	}
	return px
}
