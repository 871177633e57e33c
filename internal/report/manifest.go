package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ManifestItem records one file touched by a batch run.
type ManifestItem struct {
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	Sha256      string `json:"sha256,omitempty"`
	Compression string `json:"compression,omitempty"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Summary     string `json:"summary,omitempty"`
}

// Manifest lists the inputs and outputs of a batch run.
type Manifest struct {
	CreatedAt time.Time      `json:"createdAt"`
	ShaAlgo   string         `json:"shaAlgo"`
	Items     []ManifestItem `json:"items"`
}

func NewManifest() *Manifest {
	return &Manifest{CreatedAt: time.Now().UTC(), ShaAlgo: "sha256"}
}

// AddDecoded records a decoded file and the summary written for it.
func (m *Manifest) AddDecoded(sum Summary, summaryPath string) {
	m.Items = append(m.Items, ManifestItem{
		Path:        sum.File,
		Size:        sum.StoredSize,
		Sha256:      sum.Sha256,
		Compression: sum.Compression,
		Type:        fileType(sum.File),
		Status:      "ok",
		Summary:     summaryPath,
	})
}

// AddFailed records a file that could not be decoded or summarised. Size and
// digest are left empty when the file could not be read.
func (m *Manifest) AddFailed(path string, size int64, sha string, err error) {
	m.Items = append(m.Items, ManifestItem{
		Path:   path,
		Size:   size,
		Sha256: sha,
		Type:   fileType(path),
		Status: "failed",
		Error:  err.Error(),
	})
}

func (m *Manifest) Failed() int {
	n := 0
	for _, it := range m.Items {
		if it.Status != "ok" {
			n++
		}
	}
	return n
}

func fileType(path string) string {
	name := strings.ToLower(filepath.Base(path))
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".zst")
	switch ext := filepath.Ext(name); ext {
	case ".tran", ".ac", ".dc":
		return strings.TrimPrefix(ext, ".")
	case ".psf":
		return "psf"
	default:
		return "other"
	}
}

func SaveManifest(m *Manifest, out string) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
