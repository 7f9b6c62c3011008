package canvas

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
	"sync"

	svg "github.com/ajstarks/svgo"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/colornames"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

var (
	fontOnce sync.Once
	textFont *truetype.Font
	fontErr  error
)

func regularFont() (*truetype.Font, error) {
	fontOnce.Do(func() {
		textFont, fontErr = truetype.Parse(goregular.TTF)
	})
	return textFont, fontErr
}

func fontFace(size float64) (font.Face, error) {
	f, err := regularFont()
	if err != nil {
		return nil, fmt.Errorf("failed to load font: %w", err)
	}
	return truetype.NewFace(f, &truetype.Options{Size: size}), nil
}

// parseColor understands CSS color names and #rgb / #rrggbb. Empty and "transparent" yield
// false.
func parseColor(s string) (color.Color, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "transparent" || s == "none" {
		return nil, false
	}
	if c, ok := colornames.Map[s]; ok {
		return c, true
	}
	if !strings.HasPrefix(s, "#") {
		return nil, false
	}
	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return nil, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return nil, false
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, true
}

func withOpacity(c color.Color, opacity float64) color.Color {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	n.A = uint8(math.Round(float64(n.A) * math.Max(0, math.Min(1, opacity))))
	return n
}

func (c *Canvas) exportSize() (int, int, error) {
	if c.disposed {
		return 0, 0, ErrDisposed
	}
	w, h := int(math.Ceil(c.width)), int(math.Ceil(c.height))
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("canvas has no area (%dx%d)", w, h)
	}
	return w, h, nil
}

// ToPNG rasterizes every object not marked excludeFromExport.
func (c *Canvas) ToPNG() ([]byte, error) {
	w, h, err := c.exportSize()
	if err != nil {
		return nil, err
	}

	dc := gg.NewContext(w, h)
	if bg, ok := parseColor(c.opts.Background); ok {
		dc.SetColor(bg)
		dc.Clear()
	}
	for _, o := range c.objects {
		if o.ExcludeFromExport {
			continue
		}
		if err := drawObject(dc, o); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawObject(dc *gg.Context, o *Object) error {
	dc.Push()
	defer dc.Pop()
	if o.Angle != 0 {
		dc.RotateAbout(gg.Radians(o.Angle), o.Left, o.Top)
	}

	switch o.Type {
	case KindRect:
		dc.DrawRectangle(o.Left, o.Top, o.Width*o.ScaleX, o.Height*o.ScaleY)
		paint(dc, o)
	case KindCircle:
		rx, ry := o.Radius*o.ScaleX, o.Radius*o.ScaleY
		dc.DrawEllipse(o.Left+rx, o.Top+ry, rx, ry)
		paint(dc, o)
	case KindText:
		size := o.FontSize * o.ScaleY
		if size <= 0 || o.Text == "" {
			return nil
		}
		face, err := fontFace(size)
		if err != nil {
			return err
		}
		dc.SetFontFace(face)
		col, ok := parseColor(o.Fill)
		if !ok {
			col = color.Black
		}
		dc.SetColor(withOpacity(col, o.Opacity))
		dc.DrawString(o.Text, o.Left, o.Top+size)
	case KindPath:
		for i, p := range o.Path {
			x, y := o.Left+p.X*o.ScaleX, o.Top+p.Y*o.ScaleY
			if i == 0 {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
		}
		paintStroke(dc, o)
	case KindLine:
		dc.DrawLine(o.X1, o.Y1, o.X2, o.Y2)
		paintStroke(dc, o)
	default:
		return fmt.Errorf("cannot draw object of type %q", o.Type)
	}
	return nil
}

func paint(dc *gg.Context, o *Object) {
	fill, hasFill := parseColor(o.Fill)
	_, hasStroke := parseColor(o.Stroke)
	if hasFill {
		dc.SetColor(withOpacity(fill, o.Opacity))
		if hasStroke {
			dc.FillPreserve()
		} else {
			dc.Fill()
		}
	}
	paintStroke(dc, o)
}

func paintStroke(dc *gg.Context, o *Object) {
	stroke, ok := parseColor(o.Stroke)
	if !ok {
		dc.ClearPath()
		return
	}
	dc.SetColor(withOpacity(stroke, o.Opacity))
	dc.SetLineWidth(math.Max(o.StrokeWidth, 1))
	dc.Stroke()
}

func px(v float64) int { return int(math.Round(v)) }

func svgColor(s string) string {
	if _, ok := parseColor(s); !ok {
		return "none"
	}
	return s
}

func svgStyle(o *Object) string {
	style := fmt.Sprintf("fill:%s;stroke:%s", svgColor(o.Fill), svgColor(o.Stroke))
	if o.StrokeWidth > 0 {
		style += fmt.Sprintf(";stroke-width:%g", o.StrokeWidth)
	}
	if o.Opacity < 1 {
		style += fmt.Sprintf(";opacity:%g", o.Opacity)
	}
	return style
}

// ToSVG encodes every object not marked excludeFromExport as an SVG document.
func (c *Canvas) ToSVG() ([]byte, error) {
	w, h, err := c.exportSize()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	doc := svg.New(&buf)
	doc.Start(w, h)
	if _, ok := parseColor(c.opts.Background); ok {
		doc.Rect(0, 0, w, h, "fill:"+c.opts.Background)
	}
	for _, o := range c.objects {
		if o.ExcludeFromExport {
			continue
		}
		rotated := o.Angle != 0
		if rotated {
			doc.Gtransform(fmt.Sprintf("rotate(%g %g %g)", o.Angle, o.Left, o.Top))
		}
		switch o.Type {
		case KindRect:
			doc.Rect(px(o.Left), px(o.Top), px(o.Width*o.ScaleX), px(o.Height*o.ScaleY), svgStyle(o))
		case KindCircle:
			rx, ry := o.Radius*o.ScaleX, o.Radius*o.ScaleY
			doc.Ellipse(px(o.Left+rx), px(o.Top+ry), px(rx), px(ry), svgStyle(o))
		case KindText:
			size := o.FontSize * o.ScaleY
			doc.Text(px(o.Left), px(o.Top+size), o.Text,
				fmt.Sprintf("font-family:Go,sans-serif;font-size:%gpx;fill:%s", size, svgColor(o.Fill)))
		case KindPath:
			xs := make([]int, len(o.Path))
			ys := make([]int, len(o.Path))
			for i, p := range o.Path {
				xs[i], ys[i] = px(o.Left+p.X*o.ScaleX), px(o.Top+p.Y*o.ScaleY)
			}
			doc.Polyline(xs, ys, fmt.Sprintf("fill:none;stroke:%s;stroke-width:%g", svgColor(o.Stroke), math.Max(o.StrokeWidth, 1)))
		case KindLine:
			doc.Line(px(o.X1), px(o.Y1), px(o.X2), px(o.Y2), svgStyle(o))
		default:
			return nil, fmt.Errorf("cannot encode object of type %q", o.Type)
		}
		if rotated {
			doc.Gend()
		}
	}
	doc.End()
	return buf.Bytes(), nil
}
