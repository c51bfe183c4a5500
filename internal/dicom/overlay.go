package dicom

import (
	"image"
	"math"

	"github.com/suyashkumar/dicom/pkg/frame"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// drawTextOnFrame16 burns text into the middle of a frame. Glyph pixels are
// set to white and a black outline surrounds them; the rest of the frame is
// left untouched. Text wider than the frame is not drawn.
func drawTextOnFrame16(nativeFrame *frame.NativeFrame[uint16], width, height int, text string, white uint16) {
	face := basicfont.Face7x13
	baseTextWidth := font.MeasureString(face, text).Ceil()
	baseTextHeight := face.Height
	if baseTextWidth == 0 || baseTextWidth > width || baseTextHeight > height {
		return
	}

	textImg := image.NewAlpha(image.Rect(0, 0, baseTextWidth, baseTextHeight))
	drawer := &font.Drawer{
		Dst:  textImg,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.Point26_6{Y: fixed.I(face.Ascent)},
	}
	drawer.DrawString(text)

	// Text spans 60% of the frame width where it fits.
	scaleFactor := math.Max(1, 0.6*float64(width)/float64(baseTextWidth))
	scaledWidth := int(float64(baseTextWidth) * scaleFactor)
	scaledHeight := int(float64(baseTextHeight) * scaleFactor)
	if scaledHeight > height {
		scaledWidth, scaledHeight = baseTextWidth, baseTextHeight
	}

	scaledTextImg := image.NewAlpha(image.Rect(0, 0, scaledWidth, scaledHeight))
	draw.BiLinear.Scale(scaledTextImg, scaledTextImg.Bounds(), textImg, textImg.Bounds(), draw.Over, nil)

	x0 := (width - scaledWidth) / 2
	y0 := (height - scaledHeight) / 2
	set := func(x, y int, v uint16) {
		if x >= 0 && x < width && y >= 0 && y < height {
			nativeFrame.RawData[y*width+x] = v
		}
	}

	outlineThickness := max(1, scaledHeight/10)
	for sy := 0; sy < scaledHeight; sy++ {
		for sx := 0; sx < scaledWidth; sx++ {
			if scaledTextImg.AlphaAt(sx, sy).A == 0 {
				continue
			}
			for dx := -outlineThickness; dx <= outlineThickness; dx++ {
				for dy := -outlineThickness; dy <= outlineThickness; dy++ {
					if dx*dx+dy*dy <= outlineThickness*outlineThickness {
						set(x0+sx+dx, y0+sy+dy, 0)
					}
				}
			}
		}
	}

	for sy := 0; sy < scaledHeight; sy++ {
		for sx := 0; sx < scaledWidth; sx++ {
			if scaledTextImg.AlphaAt(sx, sy).A >= 128 {
				set(x0+sx, y0+sy, white)
			}
		}
	}
}
