package editor

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/godwinm8/Stateless-2D-Editor/config"
	"github.com/godwinm8/Stateless-2D-Editor/core"
	"github.com/godwinm8/Stateless-2D-Editor/history"
	"github.com/godwinm8/Stateless-2D-Editor/persist"
	"github.com/godwinm8/Stateless-2D-Editor/scene"

	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrViewOnly       = errors.New("editor is view-only")
	ErrFailed         = errors.New("editor failed")
	ErrUnmounted      = errors.New("editor unmounted")
)

type Options struct {
	SceneID      string
	Surface      scene.Surface
	Store        core.SceneStore
	Persist      config.PersistConfig
	HistoryLimit int
	ViewOnly     bool
	Downloader   scene.Downloader
	Prompter     Prompter
}

// Shell composes the scene, its history and persistence for one mounted editor.
type Shell struct {
	opts    Options
	mount  *scene.Mount
	bridge *persist.Bridge

	// running counts commands in flight; their changes are committed, not tracked.
	running atomic.Int32

	mu        sync.Mutex
	adapter   *scene.Adapter
	history   *history.Manager
	sceneID   string
	ready     bool
	mounted   bool
	unmounted bool
	failure   string
	offs      []func()
}

func NewShell(opts Options) (*Shell, error) {
	if opts.Store == nil {
		return nil, errors.New("editor needs a scene store")
	}
	mount := scene.NewMount()
	bridge, err := persist.New(opts.Store, mount, opts.Persist)
	if err != nil {
		return nil, err
	}
	return &Shell{
		opts:    opts,
		mount:   mount,
		bridge:  bridge,
		sceneID: opts.SceneID,
	}, nil
}

func (s *Shell) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"scene_id":  s.SceneID(),
		"view_only": s.opts.ViewOnly,
	})
}

// guard runs fn, turning a panic into a permanent failure of the shell.
func (s *Shell) guard(what string, fn func() error) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		msg := fmt.Sprint(r)
		if e, ok := r.(error); ok {
			msg = e.Error()
		}
		s.mu.Lock()
		if s.failure == "" {
			s.failure = msg
		}
		s.ready = false
		s.mu.Unlock()
		s.log().WithFields(logrus.Fields{
			"during": what,
			"error":  msg,
			"stack":  string(debug.Stack()),
		}).Error("Canvas error")
		err = fmt.Errorf("%w: %s", ErrFailed, msg)
	}()
	return fn()
}

// Failure returns the text of the error that froze the shell, or "".
func (s *Shell) Failure() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

func (s *Shell) failed() error {
	if f := s.Failure(); f != "" {
		return fmt.Errorf("%w: %s", ErrFailed, f)
	}
	return nil
}

// Mount creates the scene, wires change tracking, loads the remote document and seeds history.
// A remote load error is returned (when the persistence policy surfaces it) but the editor is
// still mounted and ready.
func (s *Shell) Mount(ctx context.Context) error {
	if err := s.failed(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.mounted {
		s.mu.Unlock()
		return errors.New("editor already mounted")
	}
	s.mounted = true
	s.mu.Unlock()

	var loadErr error
	err := s.guard("mount", func() error {
		a := scene.Initialize(s.opts.Surface, scene.Options{
			SelectionEnabled: !s.opts.ViewOnly,
			Downloader:       s.opts.Downloader,
		})
		if err := a.Fit(); err != nil {
			return err
		}
		h := history.New(a, s.opts.HistoryLimit)

		snapOff, err := a.EnableSnapping()
		if err != nil {
			return err
		}
		offs := []func(){snapOff, a.OnChange(func(ch scene.Change) { s.track(h, ch) })}
		if !s.opts.ViewOnly {
			offs = append(offs, a.OnChange(func(scene.Change) { s.bridge.Save() }))
		}
		s.mu.Lock()
		s.adapter = a
		s.history = h
		s.offs = offs
		s.mu.Unlock()

		s.mount.Resolve(a)
		s.bridge.SetSceneID(s.SceneID())

		loadErr = s.bridge.Load(ctx, s.SceneID())
		if err := a.RedrawGrid(); err != nil {
			return err
		}
		if err := h.Seed("init"); err != nil {
			return err
		}

		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
		s.log().Info("Editor mounted")
		return nil
	})
	if err != nil {
		return err
	}
	return loadErr
}

// track moves the history baseline along with changes made outside toolbar commands.
func (s *Shell) track(h *history.Manager, ch scene.Change) {
	if ch.Kind == scene.ChangeRestored || s.running.Load() > 0 {
		return
	}
	if err := h.Track(string(ch.Kind)); err != nil {
		s.log().WithError(err).Debug("History not tracked")
	}
}

// SetSceneID switches the editor to another scene. Commands are not ready while it loads.
func (s *Shell) SetSceneID(ctx context.Context, id string) error {
	if err := s.failed(); err != nil {
		return err
	}
	a, h := s.Scene(), s.History()
	if a == nil || !s.Ready() {
		return scene.ErrNotReady
	}
	if id == s.SceneID() {
		return nil
	}

	s.mu.Lock()
	s.ready = false
	s.mu.Unlock()

	var loadErr error
	err := s.guard("set-scene", func() error {
		s.bridge.SetSceneID(id)
		s.mu.Lock()
		s.sceneID = id
		s.mu.Unlock()

		loadErr = s.bridge.Load(ctx, id)
		if err := a.RedrawGrid(); err != nil {
			return err
		}
		if err := h.Seed("init"); err != nil {
			return err
		}
		s.mu.Lock()
		s.ready = true
		s.mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}
	return loadErr
}

// Resize refits the scene after the viewport changed.
func (s *Shell) Resize() error {
	if err := s.failed(); err != nil {
		return err
	}
	a := s.Scene()
	if a == nil {
		return scene.ErrNotReady
	}
	return s.guard("resize", a.Fit)
}

// Unmount writes any pending save and tears the scene down. Calling it again does nothing.
func (s *Shell) Unmount() {
	s.mu.Lock()
	if s.unmounted {
		s.mu.Unlock()
		return
	}
	s.unmounted = true
	s.ready = false
	offs := s.offs
	s.offs = nil
	a := s.adapter
	s.mu.Unlock()

	s.bridge.Flush()
	for _, off := range offs {
		off()
	}
	if a != nil {
		a.Dispose()
	}
	s.mount.Release()
	s.bridge.Stop()
	s.log().Info("Editor unmounted")
}

func (s *Shell) SceneID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sceneID
}

// Ready reports whether commands are accepted.
func (s *Shell) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && s.failure == ""
}

func (s *Shell) Loading() bool { return s.bridge.Loading() }
func (s *Shell) ViewOnly() bool { return s.opts.ViewOnly }
func (s *Shell) Bridge() *persist.Bridge { return s.bridge }

// Scene returns the mounted scene, or nil before Mount.
func (s *Shell) Scene() *scene.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

func (s *Shell) History() *history.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history
}

// Run executes the named toolbar command.
func (s *Shell) Run(name string) error {
	if err := s.failed(); err != nil {
		return err
	}
	s.mu.Lock()
	unmounted := s.unmounted
	s.mu.Unlock()
	if unmounted {
		return ErrUnmounted
	}

	cmd, ok := lookup(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
	log := s.log().WithField("command", name)
	if !s.Ready() {
		log.Warn("Canvas not ready")
		return scene.ErrNotReady
	}
	if s.opts.ViewOnly && cmd.Mutates {
		log.Warn("Command disabled in view-only mode")
		return ErrViewOnly
	}

	log.Debug("Command")
	s.running.Add(1)
	defer s.running.Add(-1)
	return s.guard(name, func() error { return cmd.Run(s) })
}
