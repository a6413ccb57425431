package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"strconv"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// DefaultBoxColor is used when no box colour is given or it cannot be parsed.
const DefaultBoxColor = "#FF0000"

// AnnotateResult contains the image with detection boxes drawn on it
type AnnotateResult struct {
	ImageResult
	Boxes    int    `json:"boxes"`
	BoxColor string `json:"box_color"`
}

// Annotate draws each box as a rectangle outline of the given thickness and
// labels it with its index in the top-left corner.
//
// boxColorHex accepts "#RRGGBB" or "#RGB"; anything else falls back to
// DefaultBoxColor. Box edges outside the image are clipped.
func Annotate(img image.Image, boxes []image.Rectangle, boxColorHex string, thickness int) (*AnnotateResult, error) {
	if thickness <= 0 {
		thickness = 2
	}

	boxColor, hex := parseBoxColor(boxColorHex)

	bounds := img.Bounds()
	result := image.NewRGBA(bounds)
	draw.Draw(result, bounds, img, bounds.Min, draw.Src)

	labelColor := color.RGBA{255, 255, 255, 255}
	for i, box := range boxes {
		drawOutline(result, box, boxColor, thickness)
		drawLabel(result, box.Min.X+thickness+1, box.Min.Y+thickness+1, strconv.Itoa(i), labelColor, boxColor)
	}

	encoded, err := EncodePNG(result)
	if err != nil {
		return nil, err
	}

	return &AnnotateResult{
		ImageResult: *encoded,
		Boxes:       len(boxes),
		BoxColor:    hex,
	}, nil
}

// parseBoxColor returns the colour for hex and its canonical "#rrggbb" form.
func parseBoxColor(hex string) (color.RGBA, string) {
	c, err := colorful.Hex(hex)
	if err != nil {
		c, _ = colorful.Hex(DefaultBoxColor)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, c.Hex()
}

// drawOutline strokes the inside edge of box, clipped to the image.
func drawOutline(img *image.RGBA, box image.Rectangle, c color.RGBA, thickness int) {
	bounds := img.Bounds()
	edges := []image.Rectangle{
		image.Rect(box.Min.X, box.Min.Y, box.Max.X, box.Min.Y+thickness), // top
		image.Rect(box.Min.X, box.Max.Y-thickness, box.Max.X, box.Max.Y), // bottom
		image.Rect(box.Min.X, box.Min.Y, box.Min.X+thickness, box.Max.Y), // left
		image.Rect(box.Max.X-thickness, box.Min.Y, box.Max.X, box.Max.Y), // right
	}
	src := image.NewUniform(c)
	for _, e := range edges {
		e = e.Intersect(bounds)
		if !e.Empty() {
			draw.Draw(img, e, src, image.Point{}, draw.Src)
		}
	}
}

// drawLabel writes text in white-on-box-colour with its top-left corner at
// (x, y), clipped to the image.
func drawLabel(img *image.RGBA, x, y int, text string, fg, bg color.RGBA) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: face,
	}
	width := d.MeasureString(text).Ceil()

	plate := image.Rect(x-1, y-1, x+width+1, y+face.Height+1).Intersect(img.Bounds())
	draw.Draw(img, plate, image.NewUniform(bg), image.Point{}, draw.Src)

	d.Dot = fixed.P(x, y+face.Ascent)
	d.DrawString(text)
}
