package canvas

// Kind names a drawable object variant.
type Kind string

const (
	KindRect   Kind = "rect"
	KindCircle Kind = "circle"
	KindText   Kind = "text"
	KindPath   Kind = "path"
	KindLine   Kind = "line"
)

// Custom properties that ToJSON only emits when they are allow-listed.
const (
	PropExcludeFromExport = "excludeFromExport"
	PropIsGrid            = "isGrid"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Object is one drawable entity. Left and Top locate the top-left corner of the bounding box;
// path points are relative to it and line endpoints are absolute.
type Object struct {
	Type Kind    `json:"type"`
	Left float64 `json:"left"`
	Top  float64 `json:"top"`

	Width    float64 `json:"width,omitempty"`
	Height   float64 `json:"height,omitempty"`
	Radius   float64 `json:"radius,omitempty"`
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"fontSize,omitempty"`
	Path     []Point `json:"path,omitempty"`
	X1       float64 `json:"x1,omitempty"`
	Y1       float64 `json:"y1,omitempty"`
	X2       float64 `json:"x2,omitempty"`
	Y2       float64 `json:"y2,omitempty"`

	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Angle       float64 `json:"angle"`
	ScaleX      float64 `json:"scaleX"`
	ScaleY      float64 `json:"scaleY"`
	Opacity     float64 `json:"opacity"`

	LockMovementX bool `json:"lockMovementX"`
	LockMovementY bool `json:"lockMovementY"`
	LockScalingX  bool `json:"lockScalingX"`
	LockScalingY  bool `json:"lockScalingY"`
	LockRotation  bool `json:"lockRotation"`

	Selectable bool `json:"selectable"`
	Evented    bool `json:"evented"`

	ExcludeFromExport bool `json:"excludeFromExport,omitempty"`
	IsGrid            bool `json:"isGrid,omitempty"`
}

func base(kind Kind, left, top float64) *Object {
	return &Object{
		Type:       kind,
		Left:       left,
		Top:        top,
		ScaleX:     1,
		ScaleY:     1,
		Opacity:    1,
		Selectable: true,
		Evented:    true,
	}
}

func NewRect(left, top, width, height float64, fill string) *Object {
	o := base(KindRect, left, top)
	o.Width, o.Height, o.Fill = width, height, fill
	return o
}

func NewCircle(left, top, radius float64, fill string) *Object {
	o := base(KindCircle, left, top)
	o.Radius, o.Fill = radius, fill
	return o
}

func NewText(text string, left, top, fontSize float64) *Object {
	o := base(KindText, left, top)
	o.Text, o.FontSize, o.Fill = text, fontSize, "black"
	return o
}

// NewLine builds a straight segment between two absolute points.
func NewLine(x1, y1, x2, y2 float64, stroke string) *Object {
	o := base(KindLine, min(x1, x2), min(y1, y2))
	o.X1, o.Y1, o.X2, o.Y2 = x1, y1, x2, y2
	o.Stroke, o.StrokeWidth = stroke, 1
	return o
}

// SetLocked toggles every lock flag at once.
func (o *Object) SetLocked(locked bool) {
	o.LockMovementX = locked
	o.LockMovementY = locked
	o.LockScalingX = locked
	o.LockScalingY = locked
	o.LockRotation = locked
}

// Locked reports whether every lock flag is set.
func (o *Object) Locked() bool {
	return o.LockMovementX && o.LockMovementY && o.LockScalingX && o.LockScalingY && o.LockRotation
}

// Clone returns a deep copy.
func (o *Object) Clone() *Object {
	c := *o
	if o.Path != nil {
		c.Path = append([]Point(nil), o.Path...)
	}
	return &c
}

func (o *Object) translate(left, top float64) {
	dx, dy := left-o.Left, top-o.Top
	o.Left, o.Top = left, top
	if o.Type == KindLine {
		o.X1 += dx
		o.X2 += dx
		o.Y1 += dy
		o.Y2 += dy
	}
}
