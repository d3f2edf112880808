// Package host reads and writes the workflow file that hosts gallery nodes.
// The workflow is the host editor's serialization: each gallery node keeps
// its Selection Stack and its gallery id in its properties.
package host

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/pluqqy/lora-gallery/pkg/files"
)

const (
	NodeType          = "LocalLoraGalleryRemix"
	NodeTypeModelOnly = "LocalLoraGalleryRemixModelOnly"

	PropSelectionData = "selection_data"
	PropGalleryID     = "lora_gallery_unique_id"

	galleryIDPrefix = "lora-gallery-"
)

var ErrNodeNotFound = errors.New("gallery node not found in workflow")

// Workflow is a workflow document loaded from disk. Fields it does not know
// about are kept as they are. It is safe for concurrent use.
type Workflow struct {
	path string

	mu  sync.Mutex
	doc map[string]any
}

// Open loads the workflow at path; a missing file is an empty workflow
func Open(path string) (*Workflow, error) {
	doc := map[string]any{}
	if _, err := files.ReadJSON(path, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	if _, ok := doc["nodes"].([]any); !ok {
		doc["nodes"] = []any{}
	}
	return &Workflow{path: path, doc: doc}, nil
}

// Path returns the file the workflow is stored in
func (w *Workflow) Path() string {
	return w.path
}

// Save writes the document back to disk
func (w *Workflow) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveLocked()
}

func (w *Workflow) saveLocked() error {
	if err := files.WriteJSON(w.path, w.doc); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// GalleryNodes lists the ids of every gallery node in the document
func (w *Workflow) GalleryNodes() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var ids []string
	for _, raw := range w.nodesLocked() {
		if isGalleryType(raw["type"]) {
			ids = append(ids, nodeID(raw))
		}
	}
	return ids
}

// Node returns the gallery node with id. A node found in the file was
// deserialized; its stored selection takes precedence over the remote one.
func (w *Workflow) Node(id string) (*Node, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, raw := range w.nodesLocked() {
		if nodeID(raw) == id && isGalleryType(raw["type"]) {
			return &Node{wf: w, raw: raw, deserialized: true}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// EnsureNode returns the gallery node with id, adding a fresh one when the
// document has none.
func (w *Workflow) EnsureNode(id string, modelOnly bool) *Node {
	if n, err := w.Node(id); err == nil {
		return n
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	nodeType := NodeType
	if modelOnly {
		nodeType = NodeTypeModelOnly
	}
	raw := map[string]any{
		"id":         jsonID(id),
		"type":       nodeType,
		"properties": map[string]any{},
	}
	w.doc["nodes"] = append(w.nodesLocked(), raw)
	return &Node{wf: w, raw: raw}
}

func (w *Workflow) nodesLocked() []map[string]any {
	list, _ := w.doc["nodes"].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if node, ok := item.(map[string]any); ok {
			out = append(out, node)
		}
	}
	return out
}

// Node is one gallery node of a workflow; it implements gallery.HostStore
type Node struct {
	wf           *Workflow
	raw          map[string]any
	deserialized bool
}

// ID returns the node id as text
func (n *Node) ID() string {
	return nodeID(n.raw)
}

// Deserialized reports whether the node was loaded from the file
func (n *Node) Deserialized() bool {
	return n.deserialized
}

// ModelOnly reports whether the node applies a single strength
func (n *Node) ModelOnly() bool {
	t, _ := n.raw["type"].(string)
	return t == NodeTypeModelOnly
}

// GalleryID returns the node's gallery id, generating and saving one when
// the node has none yet.
func (n *Node) GalleryID() (string, error) {
	n.wf.mu.Lock()
	defer n.wf.mu.Unlock()

	props := n.propsLocked()
	if id, ok := props[PropGalleryID].(string); ok && id != "" {
		return id, nil
	}
	id := NewGalleryID()
	props[PropGalleryID] = id
	return id, n.wf.saveLocked()
}

// NewGalleryID returns a fresh "lora-gallery-xxxxxxxx" id
func NewGalleryID() string {
	return galleryIDPrefix + uuid.NewString()[:8]
}

// SelectionData returns the serialized stack and whether the node has one
func (n *Node) SelectionData() (string, bool) {
	n.wf.mu.Lock()
	defer n.wf.mu.Unlock()

	raw, ok := n.propsLocked()[PropSelectionData].(string)
	return raw, ok
}

// SetSelectionData stores the serialized stack and saves the workflow
func (n *Node) SetSelectionData(raw string) error {
	n.wf.mu.Lock()
	defer n.wf.mu.Unlock()

	n.propsLocked()[PropSelectionData] = raw
	return n.wf.saveLocked()
}

func (n *Node) propsLocked() map[string]any {
	props, ok := n.raw["properties"].(map[string]any)
	if !ok {
		props = map[string]any{}
		n.raw["properties"] = props
	}
	return props
}

func isGalleryType(v any) bool {
	t, _ := v.(string)
	return t == NodeType || t == NodeTypeModelOnly
}

func nodeID(raw map[string]any) string {
	switch id := raw["id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}

// jsonID keeps numeric ids numeric, the way host editors write them
func jsonID(id string) any {
	if n, err := strconv.Atoi(id); err == nil {
		return n
	}
	return id
}
