package scenes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/godwinm8/Stateless-2D-Editor/core"
	"github.com/godwinm8/Stateless-2D-Editor/stores/memory"

	"github.com/go-chi/chi/v5"
)

type recordingNotifier struct {
	ids []string
	at  []time.Time
}

func (n *recordingNotifier) SceneSaved(id string, at time.Time) {
	n.ids = append(n.ids, id)
	n.at = append(n.at, at)
}

type staticViewers map[string]int

func (v staticViewers) ActiveRooms() map[string]int { return v }

type failingStore struct{}

func (failingStore) Get(ctx context.Context, id string) (*core.SceneDocument, error) {
	return nil, errors.New("database error")
}

func (failingStore) Put(ctx context.Context, doc *core.SceneDocument) error {
	return errors.New("database error")
}

func withID(req *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestHandlePut_StoresAndNotifies(t *testing.T) {
	store := memory.NewStore()
	notifier := &recordingNotifier{}

	body := `{"data":{"version":"1","objects":[{"type":"rect","left":100,"top":100,"width":120,"height":80,"fill":"royalblue"}]}}`
	req := withID(httptest.NewRequest(http.MethodPut, "/api/scenes/abc123", strings.NewReader(body)), "abc123")
	rr := httptest.NewRecorder()

	HandlePut(store, notifier)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var resp SaveResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "abc123" || resp.UpdatedAt == 0 {
		t.Errorf("unexpected response %+v", resp)
	}

	doc, err := store.Get(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("scene not stored: %v", err)
	}
	if !strings.Contains(string(doc.Data), "royalblue") {
		t.Errorf("unexpected stored data %s", doc.Data)
	}
	if len(notifier.ids) != 1 || notifier.ids[0] != "abc123" {
		t.Errorf("expected one notification, got %v", notifier.ids)
	}
	if notifier.at[0].UnixMilli() != resp.UpdatedAt {
		t.Errorf("notification time %d does not match response %d", notifier.at[0].UnixMilli(), resp.UpdatedAt)
	}
}

func TestHandlePut_KeepsClientTimestamp(t *testing.T) {
	store := memory.NewStore()
	req := withID(httptest.NewRequest(http.MethodPut, "/api/scenes/s1", strings.NewReader(`{"data":null,"updatedAt":1700000000000}`)), "s1")
	rr := httptest.NewRecorder()

	HandlePut(store, nil)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	doc, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("scene not stored: %v", err)
	}
	if doc.UpdatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("expected client timestamp, got %d", doc.UpdatedAt.UnixMilli())
	}
}

func TestHandlePut_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		body  string
		store core.SceneStore
		want  int
	}{
		{"malformed json", "s1", `{"data":`, memory.NewStore(), http.StatusBadRequest},
		{"typeless object", "s1", `{"data":{"objects":[{"left":1}]}}`, memory.NewStore(), http.StatusBadRequest},
		{"dot id", "..", `{"data":null}`, memory.NewStore(), http.StatusBadRequest},
		{"store failure", "s1", `{"data":null}`, failingStore{}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			notifier := &recordingNotifier{}
			req := withID(httptest.NewRequest(http.MethodPut, "/api/scenes/x", strings.NewReader(tt.body)), tt.id)
			rr := httptest.NewRecorder()

			HandlePut(tt.store, notifier)(rr, req)

			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
			if len(notifier.ids) != 0 {
				t.Error("rejected writes must not notify viewers")
			}
		})
	}
}

func TestHandleGet(t *testing.T) {
	store := memory.NewStore()
	err := store.Put(context.Background(), &core.SceneDocument{
		ID:        "abc123",
		Data:      []byte(`{"version":"1","objects":[]}`),
		UpdatedAt: time.UnixMilli(1700000000000),
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	req := withID(httptest.NewRequest(http.MethodGet, "/api/scenes/abc123", nil), "abc123")
	rr := httptest.NewRecorder()
	HandleGet(store)(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var doc core.SceneDocument
	if err := json.Unmarshal(rr.Body.Bytes(), &doc); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if doc.ID != "abc123" || doc.UpdatedAt.UnixMilli() != 1700000000000 {
		t.Errorf("unexpected document %+v", doc)
	}
	if !strings.Contains(rr.Body.String(), `"data":{"version":"1","objects":[]}`) {
		t.Errorf("expected raw snapshot in body, got %s", rr.Body.String())
	}
}

func TestHandleGet_Errors(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		store core.SceneStore
		want  int
	}{
		{"missing", "missing-id", memory.NewStore(), http.StatusNotFound},
		{"invalid id", "", memory.NewStore(), http.StatusBadRequest},
		{"store failure", "s1", failingStore{}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withID(httptest.NewRequest(http.MethodGet, "/api/scenes/x", nil), tt.id)
			rr := httptest.NewRecorder()
			HandleGet(tt.store)(rr, req)
			if rr.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestHandleList_MergesViewers(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	for id, ms := range map[string]int64{"old": 1000, "new": 2000} {
		if err := store.Put(ctx, &core.SceneDocument{ID: id, UpdatedAt: time.UnixMilli(ms)}); err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
	viewers := staticViewers{"old": 3, "live-only": 1}

	rr := httptest.NewRecorder()
	HandleList(store, viewers)(rr, httptest.NewRequest(http.MethodGet, "/api/scenes", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var list []SceneEntry
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(list))
	}
	order := []string{list[0].ID, list[1].ID, list[2].ID}
	want := []string{"old", "live-only", "new"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
	if list[0].Viewers != 3 || list[0].UpdatedAt == nil || *list[0].UpdatedAt != 1000 {
		t.Errorf("unexpected first entry %+v", list[0])
	}
	if list[1].UpdatedAt != nil {
		t.Errorf("watched-only scene should have no timestamp")
	}
}

func TestHandleList_Empty(t *testing.T) {
	rr := httptest.NewRecorder()
	HandleList(nil, nil)(rr, httptest.NewRequest(http.MethodGet, "/api/scenes", nil))
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rr.Body.String())
	}
}
