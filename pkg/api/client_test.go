package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pluqqy/lora-gallery/internal/logger"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL, PerPage: 50, Logger: logger.Discard()})
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"http", "http://127.0.0.1:8188", false},
		{"trailing slash", "http://localhost:8188/", false},
		{"no scheme", "localhost:8188", true},
		{"ftp", "ftp://host", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Options{BaseURL: tt.baseURL})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadBaseURL)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_FetchPage(t *testing.T) {
	var got map[string][]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/LocalLoraGalleryRemix/get_loras", r.URL.Path)
		got = r.URL.Query()
		w.Write([]byte(`{
			"loras": [{"name": "a.safetensors", "tags": ["style"], "activation text": "tw", "preview_type": "image"}],
			"folders": [".", "chars"],
			"total_pages": 3,
			"current_page": 2
		}`))
	}))

	filters := models.FilterState{NameFilter: "an", TagText: "style,anime", Mode: models.TagModeAND, Folder: "chars"}
	result := c.FetchPage(context.Background(), filters, 2, []string{"x.safetensors", "y.safetensors"})

	assert.Equal(t, []string{"style,anime"}, got["filter_tag"])
	assert.Equal(t, []string{"AND"}, got["mode"])
	assert.Equal(t, []string{"chars"}, got["folder"])
	assert.Equal(t, []string{"2"}, got["page"])
	assert.Equal(t, []string{"50"}, got["per_page"])
	assert.Equal(t, []string{"an"}, got["name_filter"])
	assert.Equal(t, []string{"x.safetensors", "y.safetensors"}, got["selected_loras"])

	require.Len(t, result.Entries, 1)
	e := result.Entries[0]
	assert.Equal(t, "tw", e.TriggerText)
	assert.Equal(t, 1.0, e.PreferredWeight)
	assert.Equal(t, models.DefaultSDVersion, e.SDVersion)
	assert.Equal(t, models.PreviewImage, e.PreviewKind)
	assert.Equal(t, 3, result.TotalPages)
	assert.Equal(t, 2, result.CurrentPage)
	assert.Equal(t, []string{".", "chars"}, result.Folders)
}

func TestClient_FetchPageFailuresGiveEmptyPage(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "boom"}`, http.StatusInternalServerError)
		}},
		{"broken json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"loras": [`))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler)
			result := c.FetchPage(context.Background(), models.FilterState{}, 0, nil)
			assert.Equal(t, models.EmptyPage(), result)
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		c, err := New(Options{BaseURL: srv.URL, Logger: logger.Discard()})
		require.NoError(t, err)
		assert.Equal(t, models.EmptyPage(), c.FetchPage(context.Background(), models.FilterState{}, 1, nil))
	})
}

func TestClient_InFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Write([]byte(`{"loras": [], "folders": [], "total_pages": 1, "current_page": 1}`))
	}))

	done := make(chan struct{})
	go func() {
		c.FetchPage(context.Background(), models.FilterState{}, 1, nil)
		close(done)
	}()

	<-entered
	assert.Equal(t, int64(1), c.InFlight())
	close(release)
	<-done
	assert.Equal(t, int64(0), c.InFlight())
}

func TestClient_UpdateMetadata(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/LocalLoraGalleryRemix/update_metadata", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	err := c.UpdateMetadata(context.Background(), "a.safetensors", models.MetadataUpdate{
		TriggerText:     models.String("hello"),
		PreferredWeight: models.Float(0.7),
	})
	require.NoError(t, err)

	assert.Equal(t, "a.safetensors", body["lora_name"])
	assert.Equal(t, "hello", body["activation text"])
	assert.Equal(t, 0.7, body["preferred weight"])
	assert.Nil(t, body["tags"])
	assert.NotContains(t, body, "notes")
}

func TestClient_UpdateMetadataErrors(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, map[string]string{"status": "error", "message": "Missing lora_name"})
	}))

	err := c.UpdateMetadata(context.Background(), "", models.MetadataUpdate{Notes: models.String("n")})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadRequest, se.Code)
	assert.Equal(t, "Missing lora_name", se.Message)
}

func TestClient_SyncExternal(t *testing.T) {
	var req map[string]any
	reply := map[string]any{
		"status": "ok",
		"metadata": map[string]any{
			"preview_url":     "/LocalLoraGalleryRemix/preview?filename=a.png&lora_name=a.safetensors",
			"preview_type":    "image",
			"activation text": "one, two",
			"download_url":    "https://civitai.com/models/7",
		},
	}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		writeJSON(t, w, http.StatusOK, reply)
	}))

	meta, err := c.SyncExternal(context.Background(), "a.safetensors", models.SyncOptions{Image: true, Meta: false, UpdateMemory: true})
	require.NoError(t, err)
	assert.Equal(t, "a.safetensors", req["lora_name"])
	assert.Equal(t, true, req["sync_image"])
	assert.Equal(t, false, req["sync_meta"])
	assert.NotContains(t, req, "UpdateMemory")

	assert.Equal(t, models.PreviewImage, meta.PreviewKind)
	require.NotNil(t, meta.TriggerText)
	assert.Equal(t, "one, two", *meta.TriggerText)

	reply = map[string]any{"status": "error", "message": "Model not found"}
	_, err = c.SyncExternal(context.Background(), "a.safetensors", models.SyncOptions{Meta: true})
	assert.ErrorContains(t, err, "Model not found")
}

func TestClient_UIState(t *testing.T) {
	stored := map[string]map[string]any{}
	mux := http.NewServeMux()
	mux.HandleFunc("/LocalLoraGalleryRemix/get_ui_state", func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Query().Get("gallery_id") + "_" + r.URL.Query().Get("node_id")
		state, ok := stored[key]
		if !ok {
			writeJSON(t, w, http.StatusOK, map[string]any{"is_collapsed": false})
			return
		}
		writeJSON(t, w, http.StatusOK, state)
	})
	mux.HandleFunc("/LocalLoraGalleryRemix/set_ui_state", func(w http.ResponseWriter, r *http.Request) {
		var req uiStateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		key := req.GalleryID + "_" + req.NodeID
		if stored[key] == nil {
			stored[key] = map[string]any{}
		}
		for k, v := range req.State {
			stored[key][k] = v
		}
		writeJSON(t, w, http.StatusOK, map[string]string{"status": "ok"})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()
	key := gallery.PanelKey{NodeID: "3", GalleryID: "lora-gallery-abc"}

	state, err := c.GetUIState(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultUIState(), state)

	stack := []models.SelectionItem{{On: true, EntryName: "a", Strength: 0.5, UseTrigger: true}}
	require.NoError(t, c.SetUIState(ctx, key, map[string]any{"is_collapsed": true, "lora_stack": stack}))
	require.NoError(t, c.SetUIState(ctx, key, map[string]any{"filter_tag": "x", "filter_mode": "AND", "filter_folder": "f"}))

	state, err = c.GetUIState(ctx, key)
	require.NoError(t, err)
	assert.True(t, state.Collapsed)
	assert.Equal(t, stack, state.Stack)
	assert.Equal(t, models.FilterState{TagText: "x", Mode: models.TagModeAND, Folder: "f"}, state.Filters())
}

func TestClient_Presets(t *testing.T) {
	book := models.PresetBook{}
	mux := http.NewServeMux()
	mux.HandleFunc("/LocalLoraGalleryRemix/get_presets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, book)
	})
	mux.HandleFunc("/LocalLoraGalleryRemix/save_preset", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string                 `json:"name"`
			Data []models.SelectionItem `json:"data"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		book[req.Name] = req.Data
		writeJSON(t, w, http.StatusOK, map[string]any{"status": "ok", "presets": book})
	})
	mux.HandleFunc("/LocalLoraGalleryRemix/delete_preset", func(w http.ResponseWriter, r *http.Request) {
		var req struct{ Name string }
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		delete(book, req.Name)
		writeJSON(t, w, http.StatusOK, map[string]any{"status": "ok", "presets": book})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	items := []models.SelectionItem{{On: true, EntryName: "a", Strength: 1, StrengthClip: models.Float(0.5), UseTrigger: false}}
	saved, err := c.SavePreset(ctx, "P1", items)
	require.NoError(t, err)
	assert.Equal(t, items, saved["P1"])

	listed, err := c.ListPresets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"P1"}, listed.Names())

	after, err := c.DeletePreset(ctx, "P1")
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestClient_TrainingInfo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{
			"status":   "ok",
			"metadata": map[string]string{"ss_network_dim": "32"},
		})
	}))

	info, err := c.TrainingInfo(context.Background(), "a.safetensors")
	require.NoError(t, err)
	assert.Equal(t, "32", info["ss_network_dim"])
}

func TestClient_Preview(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("filename") != "a.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	ctx := context.Background()

	data, ctype, err := c.Preview(ctx, "/LocalLoraGalleryRemix/preview?filename=a.png&lora_name=a.safetensors")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
	assert.Equal(t, "image/png", ctype)

	_, _, err = c.Preview(ctx, "/LocalLoraGalleryRemix/preview?filename=b.png")
	assert.True(t, IsNotFound(err))

	_, _, err = c.Preview(ctx, "")
	assert.ErrorIs(t, err, ErrNoPreview)
}

func TestClient_Subscribe(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/LocalLoraGalleryRemix/events", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(map[string]string{"type": "ping"})
		conn.WriteJSON(models.MetadataChangedEvent{
			Type:  models.EventMetadataChanged,
			Name:  "a.safetensors",
			Entry: models.CatalogEntry{Name: "a.safetensors", Notes: "new"},
		})
		conn.ReadMessage()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := c.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case ev := <-sub.Events:
		assert.Equal(t, "a.safetensors", ev.Name)
		assert.Equal(t, "new", ev.Entry.Notes)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}

	require.NoError(t, sub.Close())
	_, open := <-sub.Events
	assert.False(t, open)
}

func TestClient_SubscribeCloseWithFullBuffer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := 0; i < eventBuffer+8; i++ {
			if err := conn.WriteJSON(models.MetadataChangedEvent{
				Type: models.EventMetadataChanged,
				Name: "a.safetensors",
			}); err != nil {
				return
			}
		}
		conn.ReadMessage()
	}))

	sub, err := c.Subscribe(context.Background())
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(sub.Events) == eventBuffer },
		2*time.Second, 10*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- sub.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on an undrained subscription")
	}
}
