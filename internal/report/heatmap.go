// Package report renders profiling artifacts: the HTML report, the
// correlation heatmap and terminal tables.
package report

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"

	"github.com/KaramelBytes/edaloom-cli/internal/analysis"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// NoNumericWarning is shown instead of a heatmap when a dataset has no numeric columns.
const NoNumericWarning = "No numeric columns found for correlation heatmap."

// ErrNoNumeric is returned by Heatmap for a nil matrix.
var ErrNoNumeric = errors.New(NoNumericWarning)

const (
	maxCell    = 56
	minCell    = 4
	maxGrid    = 1200
	margin     = 12
	barWidth   = 16
	labelChars = 12
	// Cells narrower than this carry no printed coefficient.
	annotateMin = 36
)

// MaxHeatmapColumns is the widest matrix Heatmap will draw.
const MaxHeatmapColumns = maxGrid / minCell

// TooManyColumnsWarning is shown instead of a heatmap wider than MaxHeatmapColumns.
var TooManyColumnsWarning = fmt.Sprintf("Too many numeric columns for a correlation heatmap (limit %d).", MaxHeatmapColumns)

// ErrTooManyColumns is returned by Heatmap above MaxHeatmapColumns.
var ErrTooManyColumns = errors.New(TooManyColumnsWarning)

// IsWarning reports whether err means the heatmap was skipped rather than
// failed; err.Error() is then the text to show instead of the image.
func IsWarning(err error) bool {
	return errors.Is(err, ErrNoNumeric) || errors.Is(err, ErrTooManyColumns)
}

// cellFor shrinks cells so the grid stays within maxGrid pixels.
func cellFor(n int) int {
	return max(min(maxGrid/max(n, 1), maxCell), minCell)
}

var (
	coolBlue  = color.RGBA{59, 76, 192, 255}
	coolWhite = color.RGBA{221, 221, 221, 255}
	coolRed   = color.RGBA{180, 4, 38, 255}
	nanGray   = color.RGBA{245, 245, 245, 255}
)

// Heatmap draws m as an annotated PNG using a diverging palette over [-1, 1].
func Heatmap(m *analysis.CorrMatrix, w io.Writer) error {
	if m == nil || len(m.Columns) == 0 {
		return ErrNoNumeric
	}
	if len(m.Columns) > MaxHeatmapColumns {
		return ErrTooManyColumns
	}
	img := renderHeatmap(m)
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encode heatmap: %w", err)
	}
	return nil
}

func renderHeatmap(m *analysis.CorrMatrix) *image.RGBA {
	face := basicfont.Face7x13
	n := len(m.Columns)
	cellSize := cellFor(n)
	lineH := face.Metrics().Height.Ceil()
	rowLabels := cellSize >= lineH-2
	colLabels := cellSize >= 14
	labels := make([]string, n)
	labelW := 0
	for i, c := range m.Columns {
		labels[i] = truncate(c, labelChars)
		if w := font.MeasureString(face, labels[i]).Ceil(); rowLabels && w > labelW {
			labelW = w
		}
	}

	gridX := margin + labelW + 6
	gridY := margin
	gridW := n * cellSize
	width := gridX + gridW + margin + barWidth + 6 + font.MeasureString(face, "-1.0").Ceil() + margin
	height := gridY + gridW + 6 + lineH + margin
	if minH := gridY + 2*lineH + margin; height < minH {
		height = minH
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			r := m.Values[i][j]
			rect := image.Rect(gridX+j*cellSize, gridY+i*cellSize, gridX+(j+1)*cellSize, gridY+(i+1)*cellSize)
			fill := color.Color(nanGray)
			if !math.IsNaN(r) {
				fill = coolwarm(r)
			}
			draw.Draw(img, rect.Inset(min(1, cellSize/8)), image.NewUniform(fill), image.Point{}, draw.Src)
			if math.IsNaN(r) || cellSize < annotateMin {
				continue
			}
			ink := color.Color(color.Black)
			if math.Abs(r) > 0.6 {
				ink = color.White
			}
			s := fmt.Sprintf("%.2f", r)
			sw := font.MeasureString(face, s).Ceil()
			drawText(img, face, ink, s, rect.Min.X+(cellSize-sw)/2, rect.Min.Y+cellSize/2+lineH/3)
		}
		if rowLabels {
			lw := font.MeasureString(face, labels[i]).Ceil()
			drawText(img, face, color.Black, labels[i], gridX-6-lw, gridY+i*cellSize+cellSize/2+lineH/3)
		}
	}

	// Column labels under the grid, clipped to the cell width.
	maxChars := cellSize / 7
	for j := 0; colLabels && j < n; j++ {
		l := truncate(m.Columns[j], maxChars)
		lw := font.MeasureString(face, l).Ceil()
		drawText(img, face, color.Black, l, gridX+j*cellSize+(cellSize-lw)/2, gridY+gridW+6+lineH-3)
	}

	// Color bar from +1 at the top to -1 at the bottom.
	barX := gridX + gridW + margin
	for y := 0; y < gridW; y++ {
		r := 1 - 2*float64(y)/float64(gridW-1)
		draw.Draw(img, image.Rect(barX, gridY+y, barX+barWidth, gridY+y+1), image.NewUniform(coolwarm(r)), image.Point{}, draw.Src)
	}
	drawText(img, face, color.Black, "1.0", barX+barWidth+4, gridY+lineH-3)
	drawText(img, face, color.Black, "-1.0", barX+barWidth+4, gridY+gridW)
	return img
}

func drawText(dst draw.Image, face font.Face, c color.Color, s string, x, y int) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// coolwarm maps r in [-1, 1] onto a blue-white-red ramp.
func coolwarm(r float64) color.RGBA {
	if r < -1 {
		r = -1
	} else if r > 1 {
		r = 1
	}
	if r < 0 {
		return lerp(coolWhite, coolBlue, -r)
	}
	return lerp(coolWhite, coolRed, r)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + (float64(y)-float64(x))*t))
	}
	return color.RGBA{mix(a.R, b.R), mix(a.G, b.G), mix(a.B, b.B), 255}
}
