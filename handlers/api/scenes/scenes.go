package scenes

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/canvas"
	"github.com/godwinm8/Stateless-2D-Editor/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// maxBodySize bounds an uploaded scene document.
const maxBodySize = 5 << 20

type (
	// Notifier is told about every scene written through the API.
	Notifier interface {
		SceneSaved(sceneID string, updatedAt time.Time)
	}

	// Viewers reports how many clients watch each scene.
	Viewers interface {
		ActiveRooms() map[string]int
	}

	SceneEntry struct {
		ID        string `json:"id"`
		Viewers   int    `json:"viewers"`
		UpdatedAt *int64 `json:"updatedAt,omitempty"`
	}

	SaveResponse struct {
		ID        string `json:"id"`
		UpdatedAt int64  `json:"updatedAt"`
	}
)

func renderError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": msg})
}

// HandleList merges the stored scenes with the ones currently watched. A nil index lists only
// watched scenes.
func HandleList(index core.SceneIndex, viewers Viewers) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := make(map[string]*SceneEntry)
		if viewers != nil {
			for id, n := range viewers.ActiveRooms() {
				entries[id] = &SceneEntry{ID: id, Viewers: n}
			}
		}

		if index != nil {
			stored, err := index.ListScenes(r.Context())
			if err != nil {
				logrus.WithError(err).Error("Failed to list scenes")
				renderError(w, r, http.StatusInternalServerError, "Failed to list scenes")
				return
			}
			for _, info := range stored {
				entry, ok := entries[info.ID]
				if !ok {
					entry = &SceneEntry{ID: info.ID}
					entries[info.ID] = entry
				}
				if info.UpdatedAt > 0 {
					updatedAt := info.UpdatedAt
					entry.UpdatedAt = &updatedAt
				}
			}
		}

		list := make([]SceneEntry, 0, len(entries))
		for _, e := range entries {
			list = append(list, *e)
		}
		sort.Slice(list, func(i, j int) bool {
			if list[i].Viewers != list[j].Viewers {
				return list[i].Viewers > list[j].Viewers
			}
			li, lj := int64(0), int64(0)
			if list[i].UpdatedAt != nil {
				li = *list[i].UpdatedAt
			}
			if list[j].UpdatedAt != nil {
				lj = *list[j].UpdatedAt
			}
			if li != lj {
				return li > lj
			}
			return list[i].ID < list[j].ID
		})

		render.JSON(w, r, list)
	}
}

func HandleGet(store core.SceneStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := core.ValidateID(id); err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		doc, err := store.Get(r.Context(), id)
		if errors.Is(err, core.ErrSceneNotFound) {
			renderError(w, r, http.StatusNotFound, "Scene not found")
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"scene_id": id,
			}).Error("Failed to get scene")
			renderError(w, r, http.StatusInternalServerError, "Failed to get scene")
			return
		}

		doc.ID = id
		render.JSON(w, r, doc)
	}
}

// HandlePut replaces the scene document with the request body. The body's data must be a
// valid snapshot (or null); a missing updatedAt is set to the time of the write.
func HandlePut(store core.SceneStore, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := core.ValidateID(id); err != nil {
			renderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		log := logrus.WithField("scene_id", id)

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
		if err != nil {
			log.WithError(err).Error("Failed to read request body")
			renderError(w, r, http.StatusBadRequest, "Failed to read request body")
			return
		}
		defer r.Body.Close()

		var doc core.SceneDocument
		if err := json.Unmarshal(body, &doc); err != nil {
			renderError(w, r, http.StatusBadRequest, "Invalid scene document")
			return
		}
		if doc.HasData() {
			if _, err := canvas.ParseSnapshot(doc.Data); err != nil {
				renderError(w, r, http.StatusBadRequest, err.Error())
				return
			}
		}
		doc.ID = id
		if doc.UpdatedAt.IsZero() {
			doc.UpdatedAt = time.Now()
		}

		if err := store.Put(r.Context(), &doc); err != nil {
			log.WithError(err).Error("Failed to save scene")
			renderError(w, r, http.StatusInternalServerError, "Failed to save scene")
			return
		}
		log.WithField("data_length", len(doc.Data)).Debug("Scene stored")

		if notifier != nil {
			notifier.SceneSaved(id, doc.UpdatedAt)
		}
		render.JSON(w, r, SaveResponse{ID: id, UpdatedAt: doc.UpdatedAt.UnixMilli()})
	}
}
