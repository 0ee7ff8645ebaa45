package sink

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/golang/freetype"
	"golang.org/x/image/font"

	"github.com/pvachon/zepassd/internal/dsp"
)

const (
	plotHeight = 120
	plotDPI    = 72
	plotSize   = 12
)

// DumpWaterfallPNG renders the magnitude trace of an accumulated waveform
// as a single-row heatmap image, stretched vertically for visibility.
// fontTTF is optional: when non-nil, the peak frequency offset is
// annotated on the image with freetype; when nil, the plot is rendered
// unlabeled.
func DumpWaterfallPNG(w io.Writer, accumulator []complex128, freqOffsetHz float64, fontTTF []byte) error {
	width := len(accumulator)
	if width == 0 {
		return fmt.Errorf("sink: cannot plot an empty accumulator")
	}

	mags := make([]float64, width)
	var maxMag float64
	for i, v := range accumulator {
		mags[i] = dsp.Magnitude(v)
		if mags[i] > maxMag {
			maxMag = mags[i]
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, width, plotHeight))
	for x, mag := range mags {
		normalized := 0.0
		if maxMag > 0 {
			normalized = mag / maxMag
		}
		c := powerToColor(normalized)
		for y := 0; y < plotHeight; y++ {
			img.Set(x, y, c)
		}
	}

	if fontTTF != nil {
		if err := annotateFreqOffset(img, freqOffsetHz, fontTTF); err != nil {
			return fmt.Errorf("sink: annotating plot: %w", err)
		}
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("sink: encoding png: %w", err)
	}
	return nil
}

// powerToColor maps a normalized [0,1] magnitude to a cold-to-hot color via
// a multi-stage HSV transition.
func powerToColor(normalized float64) color.Color {
	p := math.Max(0, math.Min(1, normalized))
	enhanced := math.Pow(p, 0.7)

	var h, s, v float64
	s = 1.0
	switch {
	case p < 0.25:
		h, v = 240, enhanced*4
	case p < 0.5:
		h, v = 240-((p-0.25)*240), enhanced*1.5
	case p < 0.75:
		q := (p - 0.5) * 4
		h, v = 180-(q*120), math.Min(1.0, enhanced*1.5)
	default:
		q := (p - 0.75) * 4
		h, v = 60-(q*60), 1.0
	}

	return hsvToRGB(h, s, v)
}

func hsvToRGB(h, s, v float64) color.Color {
	if s <= 0 {
		g := uint8(v * 255)
		return color.RGBA{R: g, G: g, B: g, A: 0xff}
	}

	h = math.Mod(h, 360) / 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

func annotateFreqOffset(img *image.RGBA, freqOffsetHz float64, fontTTF []byte) error {
	parsedFont, err := freetype.ParseFont(fontTTF)
	if err != nil {
		return fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(plotDPI)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(plotSize)
	ctx.SetHinting(font.HintingFull)
	ctx.SetSrc(image.White)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	label := fmt.Sprintf("%+.0f Hz", freqOffsetHz)
	pt := freetype.Pt(4, plotHeight-6)
	_, err = ctx.DrawString(label, pt)
	return err
}
