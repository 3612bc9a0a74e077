package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/wcharczuk/go-chart/v2/drawing"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/bobby-s-dev/air-quality-dashboard/internal/models"
)

var (
	coolwarmLow  = drawing.ColorFromHex("3b4cc0")
	coolwarmMid  = drawing.ColorFromHex("dddddd")
	coolwarmHigh = drawing.ColorFromHex("b40426")
	missingCell  = drawing.ColorFromHex("9e9e9e")
	textDark     = drawing.ColorFromHex("222222")
	textLight    = drawing.ColorFromHex("ffffff")
)

type HeatmapOptions struct {
	Width  int
	Height int
	Title  string
	Locale string
}

// Printer returns a number printer for locale, falling back to English.
func Printer(locale string) *message.Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return message.NewPrinter(tag)
}

// CoolwarmColor maps a correlation in [-1, 1] onto a diverging blue-red scale.
func CoolwarmColor(r float64) drawing.Color {
	r = math.Max(-1, math.Min(1, r))
	if r < 0 {
		return lerpColor(coolwarmMid, coolwarmLow, -r)
	}
	return lerpColor(coolwarmMid, coolwarmHigh, r)
}

func lerpColor(a, b drawing.Color, t float64) drawing.Color {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return drawing.Color{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: 255}
}

// CorrelationHeatmapPNG draws the matrix as annotated coloured cells. Null
// entries are grey and labelled "n/a".
func CorrelationHeatmapPNG(w io.Writer, m models.CorrelationMatrix, opts HeatmapOptions) error {
	k := len(m.Variables)
	if k == 0 || !m.Available {
		return ErrNoData
	}

	width, height := ChartOptions{Width: opts.Width, Height: opts.Height}.size()
	title := opts.Title
	if title == "" {
		title = "Correlation matrix"
	}
	printer := Printer(opts.Locale)
	face := basicfont.Face7x13
	lineHeight := face.Metrics().Height.Ceil()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	labelWidth := 0
	for _, v := range m.Variables {
		if lw := font.MeasureString(face, string(v)).Ceil(); lw > labelWidth {
			labelWidth = lw
		}
	}

	left := labelWidth + 16
	top := 2*lineHeight + 24
	cell := min((width-left-8)/k, (height-top-8)/k)
	if cell < 1 {
		return fmt.Errorf("heatmap of %d variables does not fit in %dx%d", k, width, height)
	}

	drawText(img, face, textDark, title, (width-font.MeasureString(face, title).Ceil())/2, lineHeight+4)

	for i, v := range m.Variables {
		label := string(v)
		lw := font.MeasureString(face, label).Ceil()
		// column header
		drawText(img, face, textDark, label, left+i*cell+(cell-lw)/2, top-8)
		// row header
		drawText(img, face, textDark, label, left-lw-8, top+i*cell+(cell+lineHeight)/2-2)
	}

	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			x0, y0 := left+j*cell, top+i*cell
			rect := image.Rect(x0+1, y0+1, x0+cell-1, y0+cell-1)

			value := m.Values[i][j]
			fill, ink, label := missingCell, textDark, "n/a"
			if value.Finite() {
				fill = CoolwarmColor(value.Value)
				label = printer.Sprintf("%.2f", value.Value)
				if math.Abs(value.Value) > 0.6 {
					ink = textLight
				}
			}
			draw.Draw(img, rect, image.NewUniform(fill), image.Point{}, draw.Src)

			lw := font.MeasureString(face, label).Ceil()
			if lw < cell-2 {
				drawText(img, face, ink, label, x0+(cell-lw)/2, y0+(cell+lineHeight)/2-2)
			}
		}
	}

	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode heatmap: %w", err)
	}
	return nil
}

func drawText(dst draw.Image, face font.Face, c color.Color, text string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
