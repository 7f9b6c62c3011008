package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/canvas"
	"github.com/godwinm8/Stateless-2D-Editor/config"
	"github.com/godwinm8/Stateless-2D-Editor/core"
	"github.com/godwinm8/Stateless-2D-Editor/scene"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Bridge keeps the mounted scene in sync with its remote document: Load pulls the document in
// and Save pushes the live scene after a quiet period.
type Bridge struct {
	store core.SceneStore
	mount *scene.Mount
	cfg   config.PersistConfig
	now   func() time.Time

	mu      sync.RWMutex
	sceneID string
	loading atomic.Int32
	saveMu  sync.Mutex
	deb     *debouncer

	loads        metric.Int64Counter
	saves        metric.Int64Counter
	saveFailures metric.Int64Counter
}

func New(store core.SceneStore, mount *scene.Mount, cfg config.PersistConfig) (*Bridge, error) {
	if cfg.SaveDelay <= 0 {
		cfg.SaveDelay = config.Default().Persist.SaveDelay
	}
	b := &Bridge{
		store: store,
		mount: mount,
		cfg:   cfg,
		now:   time.Now,
	}
	b.deb = newDebouncer(cfg.SaveDelay, b.fire)

	m := meter()
	var err error
	b.loads, err = m.Int64Counter(
		"scene.bridge.loads",
		metric.WithDescription("Scene loads attempted"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating loads counter: %w", err)
	}
	b.saves, err = m.Int64Counter(
		"scene.bridge.saves",
		metric.WithDescription("Scene documents written"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating saves counter: %w", err)
	}
	b.saveFailures, err = m.Int64Counter(
		"scene.bridge.save_failures",
		metric.WithDescription("Scene writes that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating save failures counter: %w", err)
	}
	return b, nil
}

func (b *Bridge) SceneID() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sceneID
}

// SetSceneID retargets the bridge. A save pending for the previous id is written first.
func (b *Bridge) SetSceneID(id string) {
	if b.SceneID() == id {
		return
	}
	b.Flush()
	b.mu.Lock()
	b.sceneID = id
	b.mu.Unlock()
}

// Loading reports whether a Load is in flight.
func (b *Bridge) Loading() bool {
	return b.loading.Load() > 0
}

func (b *Bridge) remoteErr(err error) error {
	if b.cfg.FailSilently {
		return nil
	}
	return err
}

func (b *Bridge) ioContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.cfg.SaveTimeout > 0 {
		return context.WithTimeout(ctx, b.cfg.SaveTimeout)
	}
	return context.WithCancel(ctx)
}

// Load fetches the document for id and loads it into the mounted scene. An empty id or a
// missing document leaves the scene untouched. It returns scene.ErrNotReady when no scene is
// mounted within the ready timeout; remote errors are only returned when FailSilently is off.
func (b *Bridge) Load(ctx context.Context, id string) error {
	log := logrus.WithField("scene_id", id)
	if id == "" {
		log.Warn("No scene id, skipping load")
		return nil
	}

	b.loading.Add(1)
	defer b.loading.Add(-1)
	b.loads.Add(ctx, 1, metric.WithAttributes(attribute.String("scene_id", id)))

	a, err := b.mount.Wait(ctx, b.cfg.ReadyTimeout)
	if err != nil {
		log.WithError(err).Warn("Scene not ready, load abandoned")
		return err
	}

	ioCtx, cancel := b.ioContext(ctx)
	defer cancel()
	doc, err := b.store.Get(ioCtx, id)
	if errors.Is(err, core.ErrSceneNotFound) {
		log.Info("No remote document, keeping current scene")
		return nil
	}
	if err != nil {
		log.WithError(err).Error("Error loading scene")
		return b.remoteErr(err)
	}
	if !doc.HasData() {
		log.Debug("Remote document has no data")
		return nil
	}

	snap, err := canvas.ParseSnapshot(doc.Data)
	if err != nil {
		log.WithError(err).Error("Error decoding scene")
		return b.remoteErr(err)
	}

	if b.mount.Current() != a {
		log.Warn("Scene was torn down before load finished, discarding result")
		return nil
	}
	if err := a.LoadSnapshot(snap); err != nil {
		if errors.Is(err, scene.ErrDisposed) {
			log.Warn("Scene was torn down before load finished, discarding result")
			return nil
		}
		return err
	}

	log.WithFields(logrus.Fields{
		"objects":     len(snap.Objects),
		"data_length": len(doc.Data),
	}).Info("Scene loaded")
	return nil
}

// Save schedules a write of the live scene once SaveDelay passes without another call.
func (b *Bridge) Save() {
	b.deb.Trigger()
}

// Pending reports whether a save is waiting for its window to close.
func (b *Bridge) Pending() bool {
	return b.deb.Pending()
}

func (b *Bridge) fire() {
	if b.Loading() {
		// the remote copy is still being pulled in; writing now would overwrite it with the
		// pre-load scene
		logrus.WithField("scene_id", b.SceneID()).Debug("Load in flight, deferring save")
		b.deb.Trigger()
		return
	}
	b.write()
}

// Flush writes a pending save immediately.
func (b *Bridge) Flush() {
	if !b.deb.Take() {
		return
	}
	if b.Loading() {
		logrus.WithField("scene_id", b.SceneID()).Warn("Load in flight, pending save dropped")
		return
	}
	b.write()
}

// Stop cancels a pending save without writing it.
func (b *Bridge) Stop() {
	b.deb.Take()
}

func (b *Bridge) write() {
	b.saveMu.Lock()
	defer b.saveMu.Unlock()

	id := b.SceneID()
	a := b.mount.Current()
	if id == "" || a == nil {
		logrus.WithField("scene_id", id).Debug("Nothing to save")
		return
	}
	log := logrus.WithField("scene_id", id)

	snap, err := a.Serialize()
	if err != nil {
		log.WithError(err).Debug("Scene gone before save")
		return
	}
	data, err := snap.Marshal()
	if err != nil {
		log.WithError(err).Error("Error encoding scene")
		return
	}

	ctx, cancel := b.ioContext(context.Background())
	defer cancel()
	attrs := metric.WithAttributes(attribute.String("scene_id", id))
	err = b.store.Put(ctx, &core.SceneDocument{ID: id, Data: data, UpdatedAt: b.now()})
	if err != nil {
		b.saveFailures.Add(ctx, 1, attrs)
		log.WithError(err).Error("Error saving scene")
		return
	}
	b.saves.Add(ctx, 1, attrs)
	log.WithFields(logrus.Fields{
		"objects":     len(snap.Objects),
		"data_length": len(data),
	}).Info("Scene saved")
}
