package checkpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/godwinm8/Stateless-2D-Editor/canvas"
	"github.com/godwinm8/Stateless-2D-Editor/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	// CreateRequest archives Data, or the scene's current document when Data is empty.
	CreateRequest struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		CreatedBy   string          `json:"created_by"`
		Data        json.RawMessage `json:"data,omitempty"`
	}

	CreateResponse struct {
		ID string `json:"id"`
	}

	UpdateRequest struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}

	UpdateSettingsRequest struct {
		MaxCheckpoints int `json:"max_checkpoints"`
	}

	// Checkpoint is the API form of core.Checkpoint with the snapshot inlined as JSON.
	Checkpoint struct {
		core.Checkpoint
		Data json.RawMessage `json:"data,omitempty"`
	}
)

func toAPI(cp core.Checkpoint) Checkpoint {
	out := Checkpoint{Checkpoint: cp}
	if len(cp.Data) > 0 {
		out.Data = json.RawMessage(cp.Data)
	}
	return out
}

func notFoundOr(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, core.ErrCheckpointNotFound) {
		http.Error(w, "Checkpoint not found", http.StatusNotFound)
		return
	}
	http.Error(w, msg, http.StatusInternalServerError)
}

// HandleCreate archives a copy of a scene.
func HandleCreate(store core.CheckpointStore, scenes core.SceneStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sceneID := chi.URLParam(r, "id")
		log := logrus.WithField("scene_id", sceneID)

		var req CreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.WithField("error", err).Error("Failed to decode request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		data := []byte(req.Data)
		if len(data) == 0 || string(data) == "null" {
			doc, err := scenes.Get(r.Context(), sceneID)
			if errors.Is(err, core.ErrSceneNotFound) {
				http.Error(w, "Scene not found", http.StatusNotFound)
				return
			}
			if err != nil {
				log.WithField("error", err).Error("Failed to read scene for checkpoint")
				http.Error(w, "Failed to create checkpoint", http.StatusInternalServerError)
				return
			}
			data = doc.Data
		}
		if _, err := canvas.ParseSnapshot(data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		id, err := store.CreateCheckpoint(r.Context(), &core.Checkpoint{
			SceneID:     sceneID,
			Name:        req.Name,
			Description: req.Description,
			CreatedBy:   req.CreatedBy,
			Data:        data,
		})
		if err != nil {
			log.WithField("error", err).Error("Failed to create checkpoint")
			http.Error(w, "Failed to create checkpoint", http.StatusInternalServerError)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateResponse{ID: id})
	}
}

// HandleList lists a scene's checkpoints, newest first, without their data.
func HandleList(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sceneID := chi.URLParam(r, "id")

		list, err := store.ListCheckpoints(r.Context(), sceneID)
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list checkpoints")
			http.Error(w, "Failed to list checkpoints", http.StatusInternalServerError)
			return
		}

		out := make([]Checkpoint, 0, len(list))
		for _, cp := range list {
			out = append(out, toAPI(cp))
		}
		render.JSON(w, r, out)
	}
}

func HandleCount(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListCheckpoints(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			logrus.WithField("error", err).Error("Failed to list checkpoints")
			http.Error(w, "Failed to get checkpoint count", http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, map[string]int{"count": len(list)})
	}
}

func HandleGet(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cp, err := store.GetCheckpoint(r.Context(), chi.URLParam(r, "checkpointId"))
		if err != nil {
			notFoundOr(w, err, "Failed to get checkpoint")
			return
		}
		render.JSON(w, r, toAPI(*cp))
	}
}

func HandleDelete(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "checkpointId")
		if err := store.DeleteCheckpoint(r.Context(), id); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "checkpoint_id": id}).Error("Failed to delete checkpoint")
			notFoundOr(w, err, "Failed to delete checkpoint")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleUpdate renames a checkpoint or changes its description.
func HandleUpdate(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "checkpointId")

		var req UpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logrus.WithField("error", err).Error("Failed to decode request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := store.UpdateCheckpointMetadata(r.Context(), id, req.Name, req.Description); err != nil {
			logrus.WithFields(logrus.Fields{"error": err, "checkpoint_id": id}).Error("Failed to update checkpoint")
			notFoundOr(w, err, "Failed to update checkpoint")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func HandleGetSettings(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.GetSceneSettings(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			logrus.WithField("error", err).Error("Failed to get scene settings")
			http.Error(w, "Failed to get scene settings", http.StatusInternalServerError)
			return
		}
		render.JSON(w, r, settings)
	}
}

// HandleUpdateSettings sets the retention limit; values below one fall back to the default.
func HandleUpdateSettings(store core.CheckpointStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sceneID := chi.URLParam(r, "id")

		var req UpdateSettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logrus.WithField("error", err).Error("Failed to decode request")
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.MaxCheckpoints < 1 {
			req.MaxCheckpoints = core.DefaultMaxCheckpoints
		}

		if err := store.UpdateSceneSettings(r.Context(), sceneID, req.MaxCheckpoints); err != nil {
			logrus.WithField("error", err).Error("Failed to update scene settings")
			http.Error(w, "Failed to update scene settings", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
