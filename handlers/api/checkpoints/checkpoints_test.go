package checkpoints

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/godwinm8/Stateless-2D-Editor/core"
	"github.com/godwinm8/Stateless-2D-Editor/stores/memory"

	"github.com/go-chi/chi/v5"
)

const snapshotJSON = `{"version":"1","objects":[{"type":"circle","left":180,"top":160,"radius":50,"fill":"seagreen"}]}`

func withParams(req *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func create(t *testing.T, h http.HandlerFunc, sceneID, body string) (int, string) {
	t.Helper()
	req := withParams(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)), "id", sceneID)
	rr := httptest.NewRecorder()
	h(rr, req)
	var resp CreateResponse
	if rr.Code == http.StatusCreated {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
	}
	return rr.Code, resp.ID
}

func TestHandleCreate_WithData(t *testing.T) {
	store := memory.NewStore()
	h := HandleCreate(store, store)

	code, id := create(t, h, "abc123", `{"name":"first","data":`+snapshotJSON+`}`)
	if code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, code)
	}

	req := withParams(httptest.NewRequest(http.MethodGet, "/", nil), "checkpointId", id)
	rr := httptest.NewRecorder()
	HandleGet(store)(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"data":`+snapshotJSON) {
		t.Errorf("expected inline snapshot, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"name":"first"`) {
		t.Errorf("expected name in body, got %s", rr.Body.String())
	}
}

func TestHandleCreate_FromCurrentScene(t *testing.T) {
	store := memory.NewStore()
	if err := store.Put(context.Background(), &core.SceneDocument{ID: "abc123", Data: []byte(snapshotJSON)}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	code, id := create(t, HandleCreate(store, store), "abc123", `{"name":"auto"}`)
	if code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, code)
	}
	cp, err := store.GetCheckpoint(context.Background(), id)
	if err != nil {
		t.Fatalf("checkpoint not stored: %v", err)
	}
	if string(cp.Data) != snapshotJSON {
		t.Errorf("expected scene data to be archived, got %s", cp.Data)
	}
}

func TestHandleCreate_Errors(t *testing.T) {
	store := memory.NewStore()
	h := HandleCreate(store, store)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"missing scene", `{"name":"x"}`, http.StatusNotFound},
		{"invalid snapshot", `{"data":{"objects":[{}]}}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := create(t, h, "missing-id", tt.body)
			if code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, code)
			}
		})
	}
}

func TestHandleListAndCount(t *testing.T) {
	store := memory.NewStore()
	h := HandleCreate(store, store)
	for i := 0; i < 3; i++ {
		if code, _ := create(t, h, "abc123", `{"data":`+snapshotJSON+`}`); code != http.StatusCreated {
			t.Fatalf("create failed with %d", code)
		}
	}

	rr := httptest.NewRecorder()
	HandleList(store)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "abc123"))
	var list []Checkpoint
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to decode list: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 checkpoints, got %d", len(list))
	}
	for _, cp := range list {
		if len(cp.Data) != 0 {
			t.Error("listing should not carry snapshot data")
		}
	}

	rr = httptest.NewRecorder()
	HandleCount(store)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "abc123"))
	var count map[string]int
	if err := json.Unmarshal(rr.Body.Bytes(), &count); err != nil {
		t.Fatalf("failed to decode count: %v", err)
	}
	if count["count"] != 3 {
		t.Errorf("expected count 3, got %d", count["count"])
	}

	rr = httptest.NewRecorder()
	HandleList(store)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "empty"))
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("expected empty list, got %s", rr.Body.String())
	}
}

func TestHandleUpdateAndDelete(t *testing.T) {
	store := memory.NewStore()
	_, id := create(t, HandleCreate(store, store), "abc123", `{"name":"old","data":`+snapshotJSON+`}`)

	rr := httptest.NewRecorder()
	req := withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"name":"new","description":"d"}`)), "checkpointId", id)
	HandleUpdate(store)(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	cp, _ := store.GetCheckpoint(context.Background(), id)
	if cp.Name != "new" || cp.Description != "d" {
		t.Errorf("metadata not updated: %+v", cp)
	}

	rr = httptest.NewRecorder()
	HandleDelete(store)(rr, withParams(httptest.NewRequest(http.MethodDelete, "/", nil), "checkpointId", id))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	for name, h := range map[string]http.HandlerFunc{
		"get":    HandleGet(store),
		"delete": HandleDelete(store),
		"update": HandleUpdate(store),
	} {
		rr = httptest.NewRecorder()
		h(rr, withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{}`)), "checkpointId", id))
		if rr.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", name, http.StatusNotFound, rr.Code)
		}
	}
}

func TestHandleSettings(t *testing.T) {
	store := memory.NewStore()

	rr := httptest.NewRecorder()
	HandleGetSettings(store)(rr, withParams(httptest.NewRequest(http.MethodGet, "/", nil), "id", "abc123"))
	var settings core.SceneSettings
	if err := json.Unmarshal(rr.Body.Bytes(), &settings); err != nil {
		t.Fatalf("failed to decode settings: %v", err)
	}
	if settings.MaxCheckpoints != core.DefaultMaxCheckpoints {
		t.Errorf("expected default limit, got %d", settings.MaxCheckpoints)
	}

	rr = httptest.NewRecorder()
	req := withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"max_checkpoints":2}`)), "id", "abc123")
	HandleUpdateSettings(store)(rr, req)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}

	h := HandleCreate(store, store)
	for i := 0; i < 4; i++ {
		create(t, h, "abc123", `{"data":`+snapshotJSON+`}`)
	}
	list, _ := store.ListCheckpoints(context.Background(), "abc123")
	if len(list) != 2 {
		t.Errorf("expected retention limit of 2, got %d", len(list))
	}

	rr = httptest.NewRecorder()
	req = withParams(httptest.NewRequest(http.MethodPut, "/", strings.NewReader(`{"max_checkpoints":0}`)), "id", "abc123")
	HandleUpdateSettings(store)(rr, req)
	got, _ := store.GetSceneSettings(context.Background(), "abc123")
	if got.MaxCheckpoints != core.DefaultMaxCheckpoints {
		t.Errorf("expected fallback to default, got %d", got.MaxCheckpoints)
	}
}
