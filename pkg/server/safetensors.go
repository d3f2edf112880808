package server

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const maxHeaderSize = 100 << 20

const (
	infoUnsupported = "Metadata reading is only supported for .safetensors files."
	infoNoMetadata  = "No metadata found in this file header."
)

var ErrBadHeader = errors.New("invalid safetensors header")

// ReadTrainingInfo returns the "__metadata__" table of a safetensors file.
// Other formats and files without metadata produce a single "Info" line.
func ReadTrainingInfo(p string) (map[string]string, error) {
	if !strings.EqualFold(filepath.Ext(p), ".safetensors") {
		return map[string]string{"Info": infoUnsupported}, nil
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var size uint64
	if err := binary.Read(f, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if size == 0 || size > maxHeaderSize {
		return nil, fmt.Errorf("%w: header length %d", ErrBadHeader, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}

	var header struct {
		Metadata map[string]string `json:"__metadata__"`
	}
	if err := json.Unmarshal(buf, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if header.Metadata == nil {
		return map[string]string{"Info": infoNoMetadata}, nil
	}
	return header.Metadata, nil
}
