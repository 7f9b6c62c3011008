package canvas

import "math"

// PencilBrush turns pointer strokes into path objects while the canvas is in drawing mode.
type PencilBrush struct {
	Color string
	Width float64
}

func NewPencilBrush(c *Canvas) *PencilBrush {
	return &PencilBrush{Color: "black", Width: 1}
}

// BeginStroke starts a freehand stroke at (x, y).
func (c *Canvas) BeginStroke(x, y float64) error {
	if c.disposed {
		return ErrDisposed
	}
	if !c.IsDrawingMode || c.FreeDrawingBrush == nil {
		return ErrNotDrawing
	}
	c.stroke = []Point{{X: x, Y: y}}
	return nil
}

func (c *Canvas) StrokeTo(x, y float64) error {
	if c.stroke == nil {
		return ErrNotDrawing
	}
	c.stroke = append(c.stroke, Point{X: x, Y: y})
	return nil
}

// EndStroke converts the stroke into a path object and adds it, firing object:added.
func (c *Canvas) EndStroke() (*Object, error) {
	if c.stroke == nil {
		return nil, ErrNotDrawing
	}
	points := c.stroke
	c.stroke = nil

	left, top := math.Inf(1), math.Inf(1)
	for _, p := range points {
		left = math.Min(left, p.X)
		top = math.Min(top, p.Y)
	}
	o := base(KindPath, left, top)
	o.Path = make([]Point, len(points))
	for i, p := range points {
		o.Path[i] = Point{X: p.X - left, Y: p.Y - top}
	}
	o.Stroke = c.FreeDrawingBrush.Color
	o.StrokeWidth = c.FreeDrawingBrush.Width

	if err := c.Add(o); err != nil {
		return nil, err
	}
	return o, nil
}
