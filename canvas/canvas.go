package canvas

import (
	"errors"
	"slices"
)

// Event names fired by the canvas.
const (
	EventObjectAdded    = "object:added"
	EventObjectModified = "object:modified"
	EventObjectRemoved  = "object:removed"
	EventObjectMoving   = "object:moving"
)

var (
	ErrDisposed      = errors.New("canvas disposed")
	ErrUnknownObject = errors.New("object is not on the canvas")
	ErrNotDrawing    = errors.New("canvas is not in drawing mode")
)

type (
	Event struct {
		Target *Object
	}

	Handler func(e *Event)

	Options struct {
		Width                  float64
		Height                 float64
		Background             string
		Selection              bool
		PreserveObjectStacking bool
	}

	listener struct {
		id int
		fn Handler
	}

	// Canvas holds an ordered object list and renders it. It is not safe for concurrent use;
	// callers serialize access.
	Canvas struct {
		opts      Options
		width     float64
		height    float64
		objects   []*Object
		active    *Object
		listeners map[string][]listener
		nextID    int
		renders   int
		disposed  bool

		IsDrawingMode    bool
		FreeDrawingBrush *PencilBrush
		stroke           []Point
	}
)

func New(opts Options) *Canvas {
	if opts.Background == "" {
		opts.Background = "white"
	}
	return &Canvas{
		opts:      opts,
		width:     opts.Width,
		height:    opts.Height,
		listeners: make(map[string][]listener),
	}
}

// On registers fn for the named event and returns a function that detaches it.
func (c *Canvas) On(name string, fn Handler) (off func()) {
	c.nextID++
	id := c.nextID
	c.listeners[name] = append(c.listeners[name], listener{id: id, fn: fn})
	return func() {
		c.listeners[name] = slices.DeleteFunc(c.listeners[name], func(l listener) bool { return l.id == id })
	}
}

// Off detaches every handler of the named event.
func (c *Canvas) Off(name string) {
	delete(c.listeners, name)
}

func (c *Canvas) fire(name string, target *Object) {
	for _, l := range slices.Clone(c.listeners[name]) {
		l.fn(&Event{Target: target})
	}
}

func (c *Canvas) Selection() bool { return c.opts.Selection }
func (c *Canvas) SetSelection(v bool) { c.opts.Selection = v }
func (c *Canvas) Background() string { return c.opts.Background }
func (c *Canvas) Width() float64 { return c.width }
func (c *Canvas) Height() float64 { return c.height }
func (c *Canvas) Disposed() bool { return c.disposed }

// Renders counts RenderAll calls.
func (c *Canvas) Renders() int { return c.renders }

func (c *Canvas) SetDimensions(width, height float64) error {
	if c.disposed {
		return ErrDisposed
	}
	c.width, c.height = width, height
	return nil
}

func (c *Canvas) RenderAll() {
	if !c.disposed {
		c.renders++
	}
}

// Add appends objects on top of the stack and fires object:added for each.
func (c *Canvas) Add(objs ...*Object) error {
	if c.disposed {
		return ErrDisposed
	}
	for _, o := range objs {
		c.objects = append(c.objects, o)
		c.fire(EventObjectAdded, o)
	}
	return nil
}

// Remove drops objects and fires object:removed for each one that was present.
func (c *Canvas) Remove(objs ...*Object) error {
	if c.disposed {
		return ErrDisposed
	}
	for _, o := range objs {
		i := c.indexOf(o)
		if i < 0 {
			continue
		}
		c.objects = slices.Delete(c.objects, i, i+1)
		if c.active == o {
			c.active = nil
		}
		c.fire(EventObjectRemoved, o)
	}
	return nil
}

func (c *Canvas) indexOf(o *Object) int {
	return slices.Index(c.objects, o)
}

// Objects returns the objects bottom to top, optionally filtered by kind.
func (c *Canvas) Objects(kinds ...Kind) []*Object {
	if len(kinds) == 0 {
		return slices.Clone(c.objects)
	}
	var out []*Object
	for _, o := range c.objects {
		if slices.Contains(kinds, o.Type) {
			out = append(out, o)
		}
	}
	return out
}

func (c *Canvas) SetActiveObject(o *Object) error {
	if c.disposed {
		return ErrDisposed
	}
	if c.indexOf(o) < 0 {
		return ErrUnknownObject
	}
	c.active = o
	return nil
}

func (c *Canvas) ActiveObject() *Object { return c.active }

func (c *Canvas) DiscardActiveObject() { c.active = nil }

// SendToBack moves o beneath every other object.
func (c *Canvas) SendToBack(o *Object) error {
	i := c.indexOf(o)
	if i < 0 {
		return ErrUnknownObject
	}
	c.objects = slices.Delete(c.objects, i, i+1)
	c.objects = slices.Insert(c.objects, 0, o)
	return nil
}

// Move drags o to (left, top) honouring the movement locks, then fires object:moving so
// handlers can adjust the position.
func (c *Canvas) Move(o *Object, left, top float64) error {
	if c.disposed {
		return ErrDisposed
	}
	if c.indexOf(o) < 0 {
		return ErrUnknownObject
	}
	if o.LockMovementX {
		left = o.Left
	}
	if o.LockMovementY {
		top = o.Top
	}
	o.translate(left, top)
	l, t := o.Left, o.Top
	c.fire(EventObjectMoving, o)
	if o.Type == KindLine && (o.Left != l || o.Top != t) {
		// handlers only adjust Left/Top; carry the endpoints along
		nl, nt := o.Left, o.Top
		o.Left, o.Top = l, t
		o.translate(nl, nt)
	}
	return nil
}

func (c *Canvas) Scale(o *Object, scaleX, scaleY float64) error {
	if c.disposed {
		return ErrDisposed
	}
	if c.indexOf(o) < 0 {
		return ErrUnknownObject
	}
	if !o.LockScalingX {
		o.ScaleX = scaleX
	}
	if !o.LockScalingY {
		o.ScaleY = scaleY
	}
	return nil
}

func (c *Canvas) Rotate(o *Object, angle float64) error {
	if c.disposed {
		return ErrDisposed
	}
	if c.indexOf(o) < 0 {
		return ErrUnknownObject
	}
	if !o.LockRotation {
		o.Angle = angle
	}
	return nil
}

// Modified fires object:modified, marking the end of an interactive or programmatic edit.
func (c *Canvas) Modified(o *Object) error {
	if c.disposed {
		return ErrDisposed
	}
	if c.indexOf(o) < 0 {
		return ErrUnknownObject
	}
	c.fire(EventObjectModified, o)
	return nil
}

// ToJSON serializes every object. The custom properties named in extra are kept, all others
// are dropped.
func (c *Canvas) ToJSON(extra ...string) Snapshot {
	keepExclude := slices.Contains(extra, PropExcludeFromExport)
	keepGrid := slices.Contains(extra, PropIsGrid)

	s := Snapshot{
		Version:    SnapshotVersion,
		Background: c.opts.Background,
		Width:      c.width,
		Height:     c.height,
		Objects:    make([]Object, 0, len(c.objects)),
	}
	for _, o := range c.objects {
		cp := o.Clone()
		if !keepExclude {
			cp.ExcludeFromExport = false
		}
		if !keepGrid {
			cp.IsGrid = false
		}
		s.Objects = append(s.Objects, *cp)
	}
	return s
}

// LoadFromJSON replaces every object with the snapshot's. No object events fire. done runs
// once all objects are in place.
func (c *Canvas) LoadFromJSON(s Snapshot, done func()) error {
	if c.disposed {
		return ErrDisposed
	}
	objects := make([]*Object, 0, len(s.Objects))
	for i := range s.Objects {
		objects = append(objects, s.Objects[i].Clone())
	}
	c.objects = objects
	c.active = nil
	if s.Background != "" {
		c.opts.Background = s.Background
	}
	if done != nil {
		done()
	}
	return nil
}

// Dispose detaches every listener and drops all objects.
func (c *Canvas) Dispose() {
	c.listeners = make(map[string][]listener)
	c.objects = nil
	c.active = nil
	c.stroke = nil
	c.IsDrawingMode = false
	c.disposed = true
}
