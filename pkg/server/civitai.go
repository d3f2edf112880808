package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pluqqy/lora-gallery/pkg/files"
)

const (
	DefaultCivitaiURL = "https://civitai.com"

	previewWidth    = 450
	maxPreviewBytes = 64 << 20
)

var widthSegment = regexp.MustCompile(`/width=\d+/`)

// SyncError carries the status code a failed sync is answered with
type SyncError struct {
	Status  int
	Message string
}

func (e *SyncError) Error() string {
	return e.Message
}

// Civitai looks entries up on the external model site by file hash
type Civitai struct {
	base string
	http *http.Client
	log  *slog.Logger
}

// NewCivitai builds a lookup client. An empty base uses the public site.
func NewCivitai(base string, client *http.Client, log *slog.Logger) *Civitai {
	if base == "" {
		base = DefaultCivitaiURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Civitai{base: strings.TrimRight(base, "/"), http: client, log: log}
}

type civitaiImage struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

type modelVersion struct {
	ModelID      int            `json:"modelId"`
	TrainedWords []string       `json:"trainedWords"`
	Images       []civitaiImage `json:"images"`
}

// VersionByHash fetches the model version whose file has the given sha256
func (c *Civitai) VersionByHash(ctx context.Context, hash string) (*modelVersion, error) {
	u := fmt.Sprintf("%s/api/v1/model-versions/by-hash/%s", c.base, url.PathEscape(hash))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("civitai lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &SyncError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("Civitai API (version) returned %d. Model not found or API error.", resp.StatusCode),
		}
	}

	var v modelVersion
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return nil, fmt.Errorf("failed to decode civitai reply: %w", err)
	}
	if v.ModelID == 0 {
		return nil, &SyncError{Status: http.StatusInternalServerError, Message: "Could not find modelId in Civitai API response."}
	}
	return &v, nil
}

// ModelURL is the public page of a model
func (c *Civitai) ModelURL(id int) string {
	return c.base + "/models/" + strconv.Itoa(id)
}

// pickPreview chooses the first still image, or the first media of any kind
func pickPreview(images []civitaiImage) (civitaiImage, bool) {
	if len(images) == 0 {
		return civitaiImage{}, false
	}
	for _, img := range images {
		if img.Type == "image" {
			return img, true
		}
	}
	return images[0], true
}

// previewSource rewrites a media URL to the reduced rendition and returns the
// file extension to store it under
func previewSource(img civitaiImage) (string, string) {
	if img.Type == "video" {
		const transcode = "/transcode=true,width=450,optimized=true/"
		if strings.Contains(img.URL, "/original=true/") {
			u := strings.Replace(img.URL, "/original=true/", transcode, 1)
			return strings.TrimSuffix(u, path.Ext(u)) + ".webm", ".webm"
		}
		parsed, err := url.Parse(img.URL)
		if err != nil {
			return img.URL, ".mp4"
		}
		dir, file := path.Split(parsed.Path)
		parsed.Path = strings.TrimSuffix(dir, "/") + transcode + strings.TrimSuffix(file, path.Ext(file)) + ".webm"
		return parsed.String(), ".webm"
	}

	var u string
	switch {
	case strings.Contains(img.URL, "/original=true/"):
		u = strings.Replace(img.URL, "/original=true/", fmt.Sprintf("/width=%d/", previewWidth), 1)
	case widthSegment.MatchString(img.URL):
		u = widthSegment.ReplaceAllString(img.URL, fmt.Sprintf("/width=%d/", previewWidth))
	default:
		parsed, err := url.Parse(img.URL)
		if err != nil {
			return img.URL, ".png"
		}
		parsed.Path = fmt.Sprintf("/width=%d%s", previewWidth, parsed.Path)
		u = parsed.String()
	}

	ext := ".png"
	if parsed, err := url.Parse(u); err == nil {
		if e := strings.ToLower(path.Ext(parsed.Path)); slices.Contains(imageExtensions, e) {
			ext = e
		}
	}
	return u, ext
}

// Download stores the body of src at dest
func (c *Civitai) Download(ctx context.Context, src, dest string) error {
	c.log.Debug("downloading preview", "url", src, "dest", dest)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("preview download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("preview download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPreviewBytes))
	if err != nil {
		return fmt.Errorf("failed to read preview: %w", err)
	}
	return files.WriteAtomic(dest, data)
}

// hashFile is the hex sha256 of the file at p
func hashFile(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
