package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/canvas"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Scene is the part of the scene adapter history needs.
type Scene interface {
	Serialize() (canvas.Snapshot, error)
	Restore(s canvas.Snapshot) error
}

// Entry is one captured scene state.
type Entry struct {
	ID       ulid.ULID
	Label    string
	Snapshot canvas.Snapshot
	At       time.Time
}

// Manager keeps undo and redo stacks of whole-scene snapshots. The baseline is the state the
// scene was in after the last commit, seed, track, undo or redo; commits push it onto the undo
// stack.
type Manager struct {
	mu       sync.Mutex
	scene    Scene
	undo     []Entry
	redo     []Entry
	baseline *Entry
	limit    int
}

// New creates a manager for scene. limit caps the undo stack; 0 means unbounded.
func New(scene Scene, limit int) *Manager {
	return &Manager{scene: scene, limit: limit}
}

func newEntry(label string, s canvas.Snapshot) Entry {
	return Entry{ID: ulid.Make(), Label: label, Snapshot: s.Clone(), At: time.Now()}
}

func (m *Manager) capture(label string) (Entry, error) {
	s, err := m.scene.Serialize()
	if err != nil {
		return Entry{}, fmt.Errorf("failed to capture scene for %q: %w", label, err)
	}
	return newEntry(label, s), nil
}

// Seed resets both stacks and takes the current scene as the baseline.
func (m *Manager) Seed(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.capture(label)
	if err != nil {
		return err
	}
	m.undo, m.redo = nil, nil
	m.baseline = &e
	logrus.WithFields(logrus.Fields{"label": label, "objects": len(e.Snapshot.Objects)}).Debug("History seeded")
	return nil
}

// Commit records that a command changed the scene: the previous baseline goes onto the undo
// stack, the live scene becomes the baseline and the redo stack is cleared.
func (m *Manager) Commit(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.capture(label)
	if err != nil {
		return err
	}
	prev := newEntry(label, canvas.Snapshot{Version: canvas.SnapshotVersion, Objects: []canvas.Object{}})
	if m.baseline != nil {
		prev = *m.baseline
		prev.Label = label
	}
	m.undo = append(m.undo, prev)
	if m.limit > 0 && len(m.undo) > m.limit {
		m.undo = append([]Entry(nil), m.undo[len(m.undo)-m.limit:]...)
	}
	m.redo = nil
	m.baseline = &e

	logrus.WithFields(logrus.Fields{"label": label, "undo": len(m.undo)}).Debug("History push")
	return nil
}

// Track takes the live scene as the baseline without pushing an entry. It is called for changes
// that are not commands, like drags and freehand strokes, so the next commit's undo entry holds
// them. The redo stack no longer applies and is cleared.
func (m *Manager) Track(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.capture(label)
	if err != nil {
		return err
	}
	m.baseline = &e
	m.redo = nil
	return nil
}

// Undo restores the state before the last commit. It reports false when there is nothing to
// undo.
func (m *Manager) Undo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(&m.undo, &m.redo, "undo")
}

// Redo re-applies the last undone state. It reports false when there is nothing to redo.
func (m *Manager) Redo() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(&m.redo, &m.undo, "redo")
}

func (m *Manager) move(from, to *[]Entry, op string) (bool, error) {
	if len(*from) == 0 {
		return false, nil
	}
	target := (*from)[len(*from)-1]
	live, err := m.capture(target.Label)
	if err != nil {
		return false, err
	}
	if err := m.scene.Restore(target.Snapshot); err != nil {
		return false, fmt.Errorf("failed to %s %q: %w", op, target.Label, err)
	}

	*from = (*from)[:len(*from)-1]
	*to = append(*to, live)
	m.baseline = &target

	logrus.WithFields(logrus.Fields{
		"label": target.Label,
		"undo":  len(m.undo),
		"redo":  len(m.redo),
	}).Debug("History " + op)
	return true, nil
}

func (m *Manager) Len() (undo, redo int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo)
}

func (m *Manager) CanUndo() bool {
	u, _ := m.Len()
	return u > 0
}

func (m *Manager) CanRedo() bool {
	_, r := m.Len()
	return r > 0
}

// Entries returns copies of both stacks, oldest first.
func (m *Manager) Entries() (undo, redo []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.undo...), append([]Entry(nil), m.redo...)
}
