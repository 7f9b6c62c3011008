package scene

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/godwinm8/Stateless-2D-Editor/canvas"

	"github.com/sirupsen/logrus"
)

const (
	// GridSize is the cell size of the overlay grid and the snapping step.
	GridSize = 20
	// Height is the fixed surface height.
	Height = 600

	DefaultWidth = 800
	gridStroke   = "#eee"
	background   = "#fff"

	RasterFilename = "canvas.png"
	VectorFilename = "canvas.svg"
)

var (
	ErrNotReady = errors.New("scene not ready")
	ErrDisposed = errors.New("scene disposed")
)

type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeModified ChangeKind = "modified"
	ChangeRemoved  ChangeKind = "removed"
	ChangeRestored ChangeKind = "restored"
)

type (
	// Change is one scene-changed notification. Object is a copy and is nil for restores.
	Change struct {
		Kind   ChangeKind
		Object *canvas.Object
	}

	// Surface is the display element the canvas is bound to.
	Surface interface {
		ClientWidth() float64
	}

	// StaticSurface reports a fixed width.
	StaticSurface float64

	Options struct {
		SelectionEnabled bool
		Downloader       Downloader
	}

	changeListener struct {
		id int
		fn func(Change)
	}

	// Adapter owns the live canvas of one mounted editor. Every canvas access happens under mu;
	// change listeners run after it is released.
	Adapter struct {
		mu         sync.Mutex
		c          *canvas.Canvas
		surface    Surface
		downloader Downloader
		listeners  []changeListener
		nextID     int
		pending    []Change
		quiet      int
		offs       []func()
		disposed   bool
	}
)

func (s StaticSurface) ClientWidth() float64 { return float64(s) }

// Snap rounds v to the nearest multiple of GridSize, halves rounding up. NaN and infinite
// coordinates snap to 0.
func Snap(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Floor(v/GridSize+0.5) * GridSize
}

// Initialize creates the canvas bound to surface and sizes it to fit.
func Initialize(surface Surface, opts Options) *Adapter {
	a := &Adapter{
		surface:    surface,
		downloader: opts.Downloader,
	}
	width, height := a.measure()
	a.c = canvas.New(canvas.Options{
		Width:                  width,
		Height:                 height,
		Background:             background,
		Selection:              opts.SelectionEnabled,
		PreserveObjectStacking: true,
	})

	a.offs = append(a.offs,
		a.c.On(canvas.EventObjectAdded, a.track(ChangeAdded)),
		a.c.On(canvas.EventObjectModified, a.track(ChangeModified)),
		a.c.On(canvas.EventObjectRemoved, a.track(ChangeRemoved)),
	)

	a.mu.Lock()
	a.redrawGridLocked()
	a.c.RenderAll()
	a.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"width":     width,
		"height":    height,
		"selection": opts.SelectionEnabled,
	}).Debug("Scene initialized")
	return a
}

func (a *Adapter) measure() (float64, float64) {
	width := 0.0
	if a.surface != nil {
		width = a.surface.ClientWidth()
	}
	if width <= 0 {
		width = DefaultWidth
	}
	return width, Height
}

func (a *Adapter) track(kind ChangeKind) canvas.Handler {
	return func(e *canvas.Event) {
		if a.quiet > 0 || e.Target == nil || e.Target.IsGrid {
			return
		}
		a.pending = append(a.pending, Change{Kind: kind, Object: e.Target.Clone()})
	}
}

func (a *Adapter) lock() error {
	a.mu.Lock()
	if a.disposed {
		a.mu.Unlock()
		return ErrDisposed
	}
	return nil
}

// unlock releases mu and delivers the changes collected while it was held.
func (a *Adapter) unlock() {
	pending := a.pending
	a.pending = nil
	listeners := slices.Clone(a.listeners)
	a.mu.Unlock()

	for _, ch := range pending {
		for _, l := range listeners {
			l.fn(ch)
		}
	}
}

// OnChange registers fn for scene-changed notifications.
func (a *Adapter) OnChange(fn func(Change)) (off func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	id := a.nextID
	a.listeners = append(a.listeners, changeListener{id: id, fn: fn})
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		a.listeners = slices.DeleteFunc(a.listeners, func(l changeListener) bool { return l.id == id })
	}
}

// EnableSnapping snaps dragged objects to the grid until off is called.
func (a *Adapter) EnableSnapping() (off func(), err error) {
	if err := a.lock(); err != nil {
		return nil, err
	}
	defer a.unlock()
	detach := a.c.On(canvas.EventObjectMoving, func(e *canvas.Event) {
		e.Target.Left = Snap(e.Target.Left)
		e.Target.Top = Snap(e.Target.Top)
	})
	return func() {
		a.mu.Lock()
		defer a.mu.Unlock()
		if !a.disposed {
			detach()
		}
	}, nil
}

func (a *Adapter) Resize(width, height float64) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.unlock()
	if err := a.c.SetDimensions(width, height); err != nil {
		return err
	}
	a.redrawGridLocked()
	a.c.RenderAll()
	return nil
}

// Fit resizes to the surface's measured width and the fixed height.
func (a *Adapter) Fit() error {
	return a.Resize(a.measure())
}

func (a *Adapter) Width() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.c.Width()
}

func (a *Adapter) Height() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.c.Height()
}

func (a *Adapter) RedrawGrid() error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.unlock()
	a.redrawGridLocked()
	a.c.RenderAll()
	return nil
}

func (a *Adapter) removeGridLocked() {
	a.quiet++
	defer func() { a.quiet-- }()
	var grid []*canvas.Object
	for _, o := range a.c.Objects(canvas.KindLine) {
		if o.IsGrid {
			grid = append(grid, o)
		}
	}
	_ = a.c.Remove(grid...)
}

func (a *Adapter) redrawGridLocked() {
	a.removeGridLocked()

	a.quiet++
	defer func() { a.quiet-- }()
	w, h := a.c.Width(), a.c.Height()
	var lines []*canvas.Object
	for x := 0.0; x <= w; x += GridSize {
		lines = append(lines, gridLine(x, 0, x, h))
	}
	for y := 0.0; y <= h; y += GridSize {
		lines = append(lines, gridLine(0, y, w, y))
	}
	_ = a.c.Add(lines...)
	for _, l := range lines {
		_ = a.c.SendToBack(l)
	}
}

func gridLine(x1, y1, x2, y2 float64) *canvas.Object {
	l := canvas.NewLine(x1, y1, x2, y2, gridStroke)
	l.Selectable = false
	l.Evented = false
	l.ExcludeFromExport = true
	l.IsGrid = true
	return l
}

func (a *Adapter) stopDrawingLocked() {
	a.c.IsDrawingMode = false
}

// AddObject inserts o, selects it and leaves pen mode.
func (a *Adapter) AddObject(o *canvas.Object) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.unlock()
	a.stopDrawingLocked()
	if err := a.c.Add(o); err != nil {
		return err
	}
	if err := a.c.SetActiveObject(o); err != nil {
		return err
	}
	a.c.RenderAll()
	return nil
}

// Select makes the first content object matching match the active one.
func (a *Adapter) Select(match func(o *canvas.Object) bool) (bool, error) {
	if err := a.lock(); err != nil {
		return false, err
	}
	defer a.unlock()
	for _, o := range a.c.Objects() {
		if !o.IsGrid && match(o) {
			return true, a.c.SetActiveObject(o)
		}
	}
	return false, nil
}

// Active returns a copy of the selected object, or nil.
func (a *Adapter) Active() *canvas.Object {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed || a.c.ActiveObject() == nil {
		return nil
	}
	return a.c.ActiveObject().Clone()
}

// MutateActive applies fn to the selected object and fires object:modified. It reports false
// when nothing is selected.
func (a *Adapter) MutateActive(fn func(o *canvas.Object)) (bool, error) {
	if err := a.lock(); err != nil {
		return false, err
	}
	defer a.unlock()
	o := a.c.ActiveObject()
	if o == nil {
		return false, nil
	}
	fn(o)
	a.stopDrawingLocked()
	if err := a.c.Modified(o); err != nil {
		return false, err
	}
	a.c.RenderAll()
	return true, nil
}

func (a *Adapter) RemoveActive() (bool, error) {
	if err := a.lock(); err != nil {
		return false, err
	}
	defer a.unlock()
	o := a.c.ActiveObject()
	if o == nil {
		return false, nil
	}
	if err := a.c.Remove(o); err != nil {
		return false, err
	}
	a.stopDrawingLocked()
	a.c.RenderAll()
	return true, nil
}

// DragActive moves the selected object as a pointer drag would; object:moving handlers apply.
func (a *Adapter) DragActive(left, top float64) (bool, error) {
	if err := a.lock(); err != nil {
		return false, err
	}
	defer a.unlock()
	o := a.c.ActiveObject()
	if o == nil {
		return false, nil
	}
	return true, a.c.Move(o, left, top)
}

// DropActive ends a drag, scale or rotate gesture.
func (a *Adapter) DropActive() (bool, error) {
	return a.MutateActive(func(*canvas.Object) {})
}

func (a *Adapter) ScaleActive(scaleX, scaleY float64) (bool, error) {
	if err := a.lock(); err != nil {
		return false, err
	}
	defer a.unlock()
	o := a.c.ActiveObject()
	if o == nil {
		return false, nil
	}
	return true, a.c.Scale(o, scaleX, scaleY)
}

func (a *Adapter) RotateActive(angle float64) (bool, error) {
	if err := a.lock(); err != nil {
		return false, err
	}
	defer a.unlock()
	o := a.c.ActiveObject()
	if o == nil {
		return false, nil
	}
	return true, a.c.Rotate(o, angle)
}

// SetToolMode toggles freehand drawing, creating the brush on first use.
func (a *Adapter) SetToolMode(pen bool) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.unlock()
	a.c.IsDrawingMode = pen
	if pen && a.c.FreeDrawingBrush == nil {
		a.c.FreeDrawingBrush = canvas.NewPencilBrush(a.c)
	}
	a.c.RenderAll()
	return nil
}

func (a *Adapter) PenMode() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.disposed && a.c.IsDrawingMode
}

// Draw records one freehand stroke through points. Pen mode must be on.
func (a *Adapter) Draw(points ...canvas.Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := a.lock(); err != nil {
		return err
	}
	defer a.unlock()
	if err := a.c.BeginStroke(points[0].X, points[0].Y); err != nil {
		return err
	}
	for _, p := range points[1:] {
		if err := a.c.StrokeTo(p.X, p.Y); err != nil {
			return err
		}
	}
	_, err := a.c.EndStroke()
	return err
}

// Serialize captures the content objects, leaving out the grid and export-excluded objects.
func (a *Adapter) Serialize() (canvas.Snapshot, error) {
	if err := a.lock(); err != nil {
		return canvas.Snapshot{}, err
	}
	defer a.unlock()
	return a.serializeLocked(), nil
}

func (a *Adapter) serializeLocked() canvas.Snapshot {
	s := a.c.ToJSON(canvas.PropExcludeFromExport, canvas.PropIsGrid)
	s.Objects = slices.DeleteFunc(s.Objects, func(o canvas.Object) bool {
		return o.IsGrid || o.ExcludeFromExport
	})
	return s
}

// Objects returns copies of the content objects, bottom to top.
func (a *Adapter) Objects() []canvas.Object {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return nil
	}
	return a.serializeLocked().Objects
}

// GridLines counts the overlay lines currently on the canvas.
func (a *Adapter) GridLines() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return 0
	}
	n := 0
	for _, o := range a.c.Objects(canvas.KindLine) {
		if o.IsGrid {
			n++
		}
	}
	return n
}

func (a *Adapter) Renders() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.c.Renders()
}

// LoadSnapshot replaces the object set with s, then regenerates the grid and renders. No
// change notification is delivered.
func (a *Adapter) LoadSnapshot(s canvas.Snapshot) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.unlock()
	return a.loadLocked(s)
}

func (a *Adapter) loadLocked(s canvas.Snapshot) error {
	return a.c.LoadFromJSON(s.Clone(), func() {
		a.redrawGridLocked()
		a.c.RenderAll()
	})
}

// Restore loads s like LoadSnapshot, leaves pen mode and delivers one ChangeRestored.
func (a *Adapter) Restore(s canvas.Snapshot) error {
	if err := a.lock(); err != nil {
		return err
	}
	defer a.unlock()
	if err := a.loadLocked(s); err != nil {
		return err
	}
	a.stopDrawingLocked()
	a.c.RenderAll()
	a.pending = append(a.pending, Change{Kind: ChangeRestored})
	return nil
}

// ExportRaster encodes the content as PNG and hands it to the downloader as canvas.png.
func (a *Adapter) ExportRaster() ([]byte, error) {
	return a.export(RasterFilename, (*canvas.Canvas).ToPNG)
}

// ExportVector encodes the content as SVG and hands it to the downloader as canvas.svg.
func (a *Adapter) ExportVector() ([]byte, error) {
	return a.export(VectorFilename, (*canvas.Canvas).ToSVG)
}

func (a *Adapter) export(name string, encode func(*canvas.Canvas) ([]byte, error)) ([]byte, error) {
	if err := a.lock(); err != nil {
		return nil, err
	}
	a.removeGridLocked()
	data, err := encode(a.c)
	a.redrawGridLocked()
	a.stopDrawingLocked()
	a.c.RenderAll()
	a.unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to export %s: %w", name, err)
	}
	logrus.WithFields(logrus.Fields{
		"file":        name,
		"data_length": len(data),
	}).Info("Scene exported")

	if a.downloader != nil {
		if err := a.downloader.Download(name, data); err != nil {
			return data, fmt.Errorf("failed to deliver %s: %w", name, err)
		}
	}
	return data, nil
}

// Alive reports whether the adapter has not been disposed.
func (a *Adapter) Alive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.disposed
}

// Dispose detaches every listener and disposes the canvas. Safe to call more than once.
func (a *Adapter) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.disposed {
		return
	}
	for _, off := range a.offs {
		off()
	}
	a.offs = nil
	a.c.Dispose()
	a.listeners = nil
	a.pending = nil
	a.disposed = true
	logrus.Debug("Scene disposed")
}
