package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pluqqy/lora-gallery/pkg/files"
	"github.com/pluqqy/lora-gallery/pkg/gallery"
	"github.com/pluqqy/lora-gallery/pkg/models"
)

const maxBodySize = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": msg})
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// resolveStatus maps a catalog lookup error to a reply code
func resolveStatus(err error) int {
	if errors.Is(err, ErrBadEntryName) {
		return http.StatusBadRequest
	}
	return http.StatusNotFound
}

func (s *Server) getLoras(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s.catalog.Page(q))
}

func (s *Server) getAllTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"tags": s.catalog.AllTags()})
}

func (s *Server) getPreview(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	name := r.URL.Query().Get("lora_name")
	if filename == "" || name == "" ||
		strings.Contains(filename, "..") || strings.ContainsAny(filename, `/\`) {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	entryPath, err := s.catalog.Resolve(name)
	if err != nil {
		http.Error(w, fmt.Sprintf("Lora '%s' not found.", name), resolveStatus(err))
		return
	}
	p := filepath.Join(filepath.Dir(entryPath), filename)
	if !files.Exists(p) {
		http.Error(w, fmt.Sprintf("Preview '%s' not found.", filename), http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, p)
}

// metadataFields are the sidecar keys update_metadata accepts
var metadataFields = []string{"tags", "activation text", "download_url", "preferred weight", "negative text", "notes", "sd version"}

// coerceMetadata turns a loosely typed request into sidecar values. Values
// that cannot be coerced are skipped.
func coerceMetadata(body map[string]any) map[string]any {
	out := map[string]any{}
	for _, field := range metadataFields {
		v, ok := body[field]
		if !ok || v == nil {
			continue
		}
		switch field {
		case "tags":
			list, ok := v.([]any)
			if !ok {
				continue
			}
			tags := make([]string, 0, len(list))
			for _, t := range list {
				if t := strings.TrimSpace(stringify(t)); t != "" {
					tags = append(tags, t)
				}
			}
			out[field] = tags
		case "preferred weight":
			if f, ok := floatify(v); ok {
				out[field] = f
			}
		default:
			out[field] = stringify(v)
		}
	}
	return out
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

func floatify(v any) (float64, bool) {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func (s *Server) updateMetadata(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name, _ := body["lora_name"].(string)
	if name == "" {
		writeError(w, http.StatusBadRequest, "Missing lora_name")
		return
	}

	entryPath, err := s.catalog.Resolve(name)
	if err != nil {
		writeError(w, resolveStatus(err), err.Error())
		return
	}
	if _, err := mergeSidecar(entryPath, coerceMetadata(body)); err != nil {
		s.log.Error("failed to write metadata", "entry", name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.edits.Inc()
	s.publish(name, "update")
	writeOK(w)
}

// publish announces the stored state of name to every subscriber
func (s *Server) publish(name, source string) {
	entry, err := s.catalog.Entry(name)
	if err != nil {
		s.log.Warn("changed entry vanished", "entry", name, "error", err)
		return
	}
	s.hub.Publish(models.MetadataChangedEvent{
		Type:   models.EventMetadataChanged,
		Name:   name,
		Entry:  entry,
		Source: source,
	})
}

type syncBody struct {
	Name  string `json:"lora_name"`
	Image *bool  `json:"sync_image"`
	Meta  *bool  `json:"sync_meta"`
}

func (s *Server) syncCivitai(w http.ResponseWriter, r *http.Request) {
	var body syncBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing lora_name")
		return
	}
	opts := models.SyncOptions{
		Image: body.Image == nil || *body.Image,
		Meta:  body.Meta == nil || *body.Meta,
	}

	meta, err := s.sync(r, body.Name, opts)
	if err != nil {
		s.metrics.syncs.WithLabelValues("error").Inc()
		var se *SyncError
		if errors.As(err, &se) {
			writeError(w, se.Status, se.Message)
			return
		}
		s.log.Error("sync failed", "entry", body.Name, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.metrics.syncs.WithLabelValues("ok").Inc()
	s.publish(body.Name, "sync")
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "metadata": meta})
}

// sync pulls preview and metadata of name from the external site. The
// pulled metadata is stored in the sidecar as well as returned.
func (s *Server) sync(r *http.Request, name string, opts models.SyncOptions) (map[string]any, error) {
	ctx := r.Context()

	entryPath, err := s.catalog.Resolve(name)
	if err != nil {
		return nil, &SyncError{Status: resolveStatus(err), Message: "LoRA file not found"}
	}

	meta, err := loadSidecar(entryPath)
	if err != nil {
		return nil, err
	}
	hash := meta.str(keyHash)
	if hash == "" {
		s.log.Info("calculating hash", "entry", name)
		hash, err = hashFile(entryPath)
		if err != nil {
			return nil, &SyncError{Status: http.StatusInternalServerError, Message: "Failed to calculate hash"}
		}
		if _, err := mergeSidecar(entryPath, map[string]any{keyHash: hash}); err != nil {
			s.log.Warn("failed to cache hash", "entry", name, "error", err)
		}
	}

	version, err := s.civitai.VersionByHash(ctx, hash)
	if err != nil {
		return nil, err
	}

	if opts.Image {
		if img, ok := pickPreview(version.Images); ok {
			src, ext := previewSource(img)
			dest := strings.TrimSuffix(entryPath, filepath.Ext(entryPath)) + ext
			if err := s.civitai.Download(ctx, src, dest); err != nil {
				s.log.Warn("preview download failed", "entry", name, "url", src, "error", err)
			}
		} else {
			s.log.Info("no preview media on civitai", "entry", name)
		}
	}

	fields := map[string]any{}
	if opts.Meta {
		if len(version.TrainedWords) > 0 {
			fields["activation text"] = strings.Join(version.TrainedWords, ", ")
		}
		fields["download_url"] = s.civitai.ModelURL(version.ModelID)
		if _, err := mergeSidecar(entryPath, fields); err != nil {
			return nil, err
		}
	}

	previewURL, kind := s.catalog.preview(name, entryPath)
	reply := map[string]any{
		"preview_url":  previewURL,
		"preview_type": kind,
	}
	for k, v := range fields {
		reply[k] = v
	}
	return reply, nil
}

func (s *Server) trainingInfo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"lora_name"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing lora_name")
		return
	}
	entryPath, err := s.catalog.Resolve(body.Name)
	if err != nil {
		writeError(w, resolveStatus(err), "LoRA file not found")
		return
	}
	info, err := ReadTrainingInfo(entryPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read metadata: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "metadata": info})
}

func (s *Server) getUIState(w http.ResponseWriter, r *http.Request) {
	key := gallery.PanelKey{
		NodeID:    r.URL.Query().Get("node_id"),
		GalleryID: r.URL.Query().Get("gallery_id"),
	}
	if key.NodeID == "" || key.GalleryID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "node_id or gallery_id is required"})
		return
	}

	state, ok, err := s.store.UIState(r.Context(), key.String())
	if err != nil {
		s.log.Error("failed to read ui state", "key", key.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !ok {
		state = map[string]any{"is_collapsed": false}
	}
	writeJSON(w, http.StatusOK, state)
}

type uiStateBody struct {
	NodeID    json.RawMessage `json:"node_id"`
	GalleryID string          `json:"gallery_id"`
	State     map[string]any  `json:"state"`
}

// nodeID accepts the node id as a string or a number
func (b uiStateBody) nodeID() string {
	raw := bytes.TrimSpace(b.NodeID)
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(raw)
}

func (s *Server) setUIState(w http.ResponseWriter, r *http.Request) {
	var body uiStateBody
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.GalleryID == "" {
		writeError(w, http.StatusBadRequest, "gallery_id is required")
		return
	}
	if body.State == nil {
		body.State = map[string]any{}
	}

	key := gallery.PanelKey{NodeID: body.nodeID(), GalleryID: body.GalleryID}
	if err := s.store.MergeUIState(r.Context(), key.String(), body.State); err != nil {
		s.log.Error("failed to save ui state", "key", key.String(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeOK(w)
}

func (s *Server) getPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.store.Presets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, presets)
}

// emptyJSON reports values a preset cannot be saved with
func emptyJSON(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "[]", "{}", `""`, "false", "0":
		return true
	}
	return false
}

func (s *Server) savePreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string          `json:"name"`
		Data json.RawMessage `json:"data"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Name == "" || emptyJSON(body.Data) {
		writeError(w, http.StatusBadRequest, "Missing preset name or data")
		return
	}
	presets, err := s.store.SavePreset(r.Context(), body.Name, body.Data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "presets": presets})
}

func (s *Server) deletePreset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeBody(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Name == "" {
		writeError(w, http.StatusBadRequest, "Missing preset name")
		return
	}
	presets, err := s.store.DeletePreset(r.Context(), body.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "presets": presets})
}
