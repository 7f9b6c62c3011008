package scene

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/canvas"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []Change
}

func (r *recorder) record(c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func newAdapter(t *testing.T) (*Adapter, *recorder) {
	t.Helper()
	a := Initialize(StaticSurface(800), Options{SelectionEnabled: true})
	rec := &recorder{}
	a.OnChange(rec.record)
	t.Cleanup(a.Dispose)
	return a, rec
}

func TestSnap_Invariant(t *testing.T) {
	values := []float64{0, 9.99, 10, 10.01, -10, -10.01, 19, 21, 109, 111, 1e6 + 3, -0.4}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		values = append(values, (rng.Float64()-0.5)*1e5)
	}

	for _, v := range values {
		s := Snap(v)
		assert.Zero(t, math.Mod(s, GridSize), "Snap(%v) = %v is not a grid multiple", v, s)
		assert.LessOrEqual(t, math.Abs(s-v), 10.0, "Snap(%v) = %v is too far", v, s)
	}
	assert.Equal(t, 20.0, Snap(10))
	assert.Equal(t, 100.0, Snap(109))

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		assert.Zero(t, math.Mod(Snap(v), GridSize), "Snap(%v) is not a grid multiple", v)
	}
}

func TestInitialize_DrawsGrid(t *testing.T) {
	a, rec := newAdapter(t)

	assert.Equal(t, 800.0, a.Width())
	assert.Equal(t, float64(Height), a.Height())
	assert.Equal(t, 41+31, a.GridLines())
	assert.Empty(t, a.Objects())
	assert.Zero(t, rec.count())
}

func TestInitialize_DefaultWidth(t *testing.T) {
	a := Initialize(StaticSurface(0), Options{})
	defer a.Dispose()
	assert.Equal(t, float64(DefaultWidth), a.Width())
}

func TestRedrawGrid_IdempotentAndSilent(t *testing.T) {
	a, rec := newAdapter(t)
	require.NoError(t, a.AddObject(canvas.NewRect(100, 100, 120, 80, "royalblue")))
	before := a.Objects()
	changes := rec.count()

	require.NoError(t, a.RedrawGrid())
	require.NoError(t, a.RedrawGrid())

	assert.Equal(t, 72, a.GridLines())
	assert.Equal(t, before, a.Objects())
	assert.Equal(t, changes, rec.count())
}

func TestResize_RegeneratesGrid(t *testing.T) {
	a, rec := newAdapter(t)
	require.NoError(t, a.Resize(100, 100))

	assert.Equal(t, 6+6, a.GridLines())
	assert.Zero(t, rec.count())
}

func TestSerialize_ExcludesOverlay(t *testing.T) {
	a, _ := newAdapter(t)
	hidden := canvas.NewRect(0, 0, 10, 10, "black")
	hidden.ExcludeFromExport = true
	require.NoError(t, a.AddObject(hidden))
	require.NoError(t, a.AddObject(canvas.NewCircle(180, 160, 50, "seagreen")))

	snap, err := a.Serialize()
	require.NoError(t, err)

	require.Len(t, snap.Objects, 1)
	for _, o := range snap.Objects {
		assert.False(t, o.IsGrid)
		assert.False(t, o.ExcludeFromExport)
	}
}

func TestAddObject_SelectsAndLeavesPenMode(t *testing.T) {
	a, rec := newAdapter(t)
	require.NoError(t, a.SetToolMode(true))
	require.True(t, a.PenMode())

	require.NoError(t, a.AddObject(canvas.NewRect(100, 100, 120, 80, "royalblue")))

	assert.False(t, a.PenMode())
	require.NotNil(t, a.Active())
	assert.Equal(t, "royalblue", a.Active().Fill)
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, ChangeAdded, rec.changes[0].Kind)
}

func TestMutateActive(t *testing.T) {
	a, rec := newAdapter(t)

	ok, err := a.MutateActive(func(o *canvas.Object) { o.Fill = "crimson" })
	require.NoError(t, err)
	assert.False(t, ok, "no selection is a silent no-op")
	assert.Zero(t, rec.count())

	require.NoError(t, a.AddObject(canvas.NewRect(0, 0, 10, 10, "red")))
	ok, err = a.MutateActive(func(o *canvas.Object) { o.Fill = "crimson" })
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "crimson", a.Objects()[0].Fill)
	assert.Equal(t, ChangeModified, rec.changes[len(rec.changes)-1].Kind)
}

func TestRemoveActive(t *testing.T) {
	a, rec := newAdapter(t)
	ok, err := a.RemoveActive()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.AddObject(canvas.NewRect(0, 0, 10, 10, "red")))
	ok, err = a.RemoveActive()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, a.Objects())
	assert.Nil(t, a.Active())
	assert.Equal(t, ChangeRemoved, rec.changes[len(rec.changes)-1].Kind)
}

func TestDrag_SnapsOnlyWhileEnabled(t *testing.T) {
	a, _ := newAdapter(t)
	off, err := a.EnableSnapping()
	require.NoError(t, err)
	require.NoError(t, a.AddObject(canvas.NewRect(100, 100, 120, 80, "royalblue")))

	_, err = a.DragActive(133, 47)
	require.NoError(t, err)
	assert.Equal(t, 140.0, a.Active().Left)
	assert.Equal(t, 40.0, a.Active().Top)

	_, err = a.ScaleActive(1.37, 1.37)
	require.NoError(t, err)
	_, err = a.RotateActive(33)
	require.NoError(t, err)
	assert.Equal(t, 1.37, a.Active().ScaleX, "scaling is not snapped")
	assert.Equal(t, 33.0, a.Active().Angle)

	off()
	_, err = a.DragActive(133, 47)
	require.NoError(t, err)
	assert.Equal(t, 133.0, a.Active().Left)
}

func TestDraw_RequiresPenMode(t *testing.T) {
	a, rec := newAdapter(t)
	assert.ErrorIs(t, a.Draw(canvas.Point{X: 1, Y: 1}, canvas.Point{X: 5, Y: 5}), canvas.ErrNotDrawing)

	require.NoError(t, a.SetToolMode(true))
	require.NoError(t, a.Draw(canvas.Point{X: 1, Y: 1}, canvas.Point{X: 5, Y: 5}))

	require.Len(t, a.Objects(), 1)
	assert.Equal(t, canvas.KindPath, a.Objects()[0].Type)
	assert.Equal(t, 1, rec.count())
}

func TestLoadSnapshot_SilentAndLossless(t *testing.T) {
	src, _ := newAdapter(t)
	r := canvas.NewRect(100, 100, 120, 80, "royalblue")
	r.SetLocked(true)
	require.NoError(t, src.AddObject(r))
	require.NoError(t, src.AddObject(canvas.NewText("Hello, World!", 240, 220, 24)))
	snap, err := src.Serialize()
	require.NoError(t, err)

	dst, rec := newAdapter(t)
	require.NoError(t, dst.LoadSnapshot(snap))

	assert.Equal(t, snap.Objects, dst.Objects())
	assert.Equal(t, 72, dst.GridLines())
	assert.Zero(t, rec.count())
}

func TestRestore_FiresOneChange(t *testing.T) {
	a, rec := newAdapter(t)
	require.NoError(t, a.SetToolMode(true))

	require.NoError(t, a.Restore(canvas.Snapshot{Objects: []canvas.Object{*canvas.NewCircle(1, 1, 5, "red")}}))

	assert.False(t, a.PenMode())
	assert.Len(t, a.Objects(), 1)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, ChangeRestored, rec.changes[0].Kind)
}

func TestExport_UsesFixedNamesAndKeepsGrid(t *testing.T) {
	files := map[string][]byte{}
	a := Initialize(StaticSurface(200), Options{Downloader: DownloaderFunc(func(name string, data []byte) error {
		files[name] = data
		return nil
	})})
	defer a.Dispose()
	require.NoError(t, a.AddObject(canvas.NewRect(100, 100, 120, 80, "royalblue")))
	require.NoError(t, a.SetToolMode(true))
	grid := a.GridLines()

	png, err := a.ExportRaster()
	require.NoError(t, err)
	assert.NotEmpty(t, png)
	svg, err := a.ExportVector()
	require.NoError(t, err)

	assert.Equal(t, png, files[RasterFilename])
	assert.Equal(t, svg, files[VectorFilename])
	assert.NotContains(t, string(svg), gridStroke)
	assert.Equal(t, grid, a.GridLines())
	assert.False(t, a.PenMode())
}

func TestDirDownloader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, DirDownloader{Dir: dir}.Download("../canvas.png", []byte("x")))
	assert.FileExists(t, dir+"/canvas.png")
}

func TestDispose(t *testing.T) {
	a := Initialize(StaticSurface(100), Options{})
	rec := &recorder{}
	a.OnChange(rec.record)
	a.Dispose()
	a.Dispose()

	assert.False(t, a.Alive())
	assert.ErrorIs(t, a.AddObject(canvas.NewRect(0, 0, 1, 1, "red")), ErrDisposed)
	_, err := a.Serialize()
	assert.ErrorIs(t, err, ErrDisposed)
	assert.Zero(t, rec.count())
}

func TestMount(t *testing.T) {
	m := NewMount()
	assert.Nil(t, m.Current())

	_, err := m.Wait(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrNotReady)

	a := Initialize(StaticSurface(100), Options{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		m.Resolve(a)
	}()
	got, err := m.Wait(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, a, got)
	assert.False(t, m.Resolve(Initialize(StaticSurface(100), Options{})), "resolves only once")

	m.Release()
	assert.Nil(t, m.Current())
	_, err = m.Wait(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestMount_DisposedAdapterIsNotCurrent(t *testing.T) {
	m := NewMount()
	a := Initialize(StaticSurface(100), Options{})
	m.Resolve(a)
	a.Dispose()
	assert.Nil(t, m.Current())
}
