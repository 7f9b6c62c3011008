package view

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/godwinm8/Stateless-2D-Editor/config"
	"github.com/godwinm8/Stateless-2D-Editor/core"
	"github.com/godwinm8/Stateless-2D-Editor/editor"
	"github.com/godwinm8/Stateless-2D-Editor/scene"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// HandleNew sends the visitor to a fresh scene.
func HandleNew(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/canvas/"+uuid.NewString(), http.StatusFound)
}

type capture struct {
	mu   sync.Mutex
	name string
	data []byte
}

func (c *capture) Download(name string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name, c.data = name, data
	return nil
}

// HandleCanvas renders the stored scene read-only. The format query picks svg (default) or
// png; width overrides the viewport width.
func HandleCanvas(store core.SceneStore, cfg config.PersistConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := core.ValidateID(id); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log := logrus.WithField("scene_id", id)

		command, contentType := "export-svg", "image/svg+xml"
		switch r.URL.Query().Get("format") {
		case "", "svg":
		case "png":
			command, contentType = "export-png", "image/png"
		default:
			http.Error(w, "Unsupported format", http.StatusBadRequest)
			return
		}

		width := float64(scene.DefaultWidth)
		if v := r.URL.Query().Get("width"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 || n > 8000 {
				http.Error(w, "Invalid width", http.StatusBadRequest)
				return
			}
			width = float64(n)
		}

		cfg.FailSilently = false
		out := &capture{}
		shell, err := editor.NewShell(editor.Options{
			SceneID:    id,
			Surface:    scene.StaticSurface(width),
			Store:      store,
			Persist:    cfg,
			ViewOnly:   true,
			Downloader: out,
		})
		if err != nil {
			log.WithError(err).Error("Failed to create viewer")
			http.Error(w, "Failed to render scene", http.StatusInternalServerError)
			return
		}
		defer shell.Unmount()

		if err := shell.Mount(r.Context()); err != nil {
			log.WithError(err).Error("Failed to load scene for viewing")
			status := http.StatusBadGateway
			if errors.Is(err, scene.ErrNotReady) || errors.Is(err, editor.ErrFailed) {
				status = http.StatusInternalServerError
			}
			http.Error(w, "Failed to load scene", status)
			return
		}
		if err := shell.Run(command); err != nil {
			log.WithError(err).Error("Failed to render scene")
			http.Error(w, "Failed to render scene", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", "inline; filename="+out.name)
		w.Write(out.data)
	}
}
