// Package inventory scans the input directory and classifies its entries
// into the reference face, processable media items, and ignored files.
package inventory

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/storenstra/facebatch/pkg/models"

	// Decoders for every supported reference format.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Supported media file extensions (lowercase, with leading dot).
var (
	videoExtensions = map[string]bool{
		".mp4":  true,
		".avi":  true,
		".mov":  true,
		".mkv":  true,
		".flv":  true,
		".webm": true,
	}
	photoExtensions = map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".webp": true,
		".bmp":  true,
		".tiff": true,
	}
)

// Inventory is the result of scanning one input directory.
type Inventory struct {
	Reference *models.ReferenceFace
	Items     []models.MediaItem
	Ignored   []string
}

// Options control the scan.
type Options struct {
	ReferenceName string // reserved reference filename, matched case-insensitively
	MinRefWidth   int
	MinRefHeight  int
}

// Scan lists inputDir (non-recursive), parses the reference face, and
// classifies every other file by extension. Items come back sorted
// lexicographically by filename so reruns are reproducible and logs diff
// cleanly.
func Scan(inputDir string, opts Options) (*Inventory, error) {
	entries, err := os.ReadDir(inputDir)
	if err != nil {
		return nil, fmt.Errorf("cannot list input directory %s: %w", inputDir, err)
	}

	inv := &Inventory{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		path := filepath.Join(inputDir, name)

		if strings.EqualFold(name, opts.ReferenceName) {
			ref, err := loadReference(path, opts)
			if err != nil {
				return nil, err
			}
			inv.Reference = ref
			continue
		}

		ext := strings.ToLower(filepath.Ext(name))
		kind, ok := classify(ext)
		if !ok {
			inv.Ignored = append(inv.Ignored, name)
			continue
		}

		var size int64
		if fi, err := entry.Info(); err == nil {
			size = fi.Size()
		}
		inv.Items = append(inv.Items, models.MediaItem{
			Path: path,
			Kind: kind,
			Ext:  ext,
			Size: size,
		})
	}

	if inv.Reference == nil {
		return nil, &MissingReferenceError{Dir: inputDir, Name: opts.ReferenceName}
	}
	if len(inv.Items) == 0 {
		return nil, &EmptyInventoryError{Dir: inputDir}
	}

	sort.Slice(inv.Items, func(i, j int) bool {
		return filepath.Base(inv.Items[i].Path) < filepath.Base(inv.Items[j].Path)
	})
	sort.Strings(inv.Ignored)

	return inv, nil
}

func classify(ext string) (models.MediaKind, bool) {
	switch {
	case videoExtensions[ext]:
		return models.MediaVideo, true
	case photoExtensions[ext]:
		return models.MediaPhoto, true
	default:
		return "", false
	}
}

// loadReference decodes the reference image header and enforces the minimum
// resolution. Anything that does not decode as an image is invalid.
func loadReference(path string, opts Options) (*models.ReferenceFace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &InvalidReferenceError{Path: path, Reason: "not readable", Err: err}
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return nil, &InvalidReferenceError{Path: path, Reason: "does not decode as an image", Err: err}
	}

	if cfg.Width < opts.MinRefWidth || cfg.Height < opts.MinRefHeight {
		return nil, &InvalidReferenceError{
			Path: path,
			Reason: fmt.Sprintf("resolution %dx%d below minimum %dx%d",
				cfg.Width, cfg.Height, opts.MinRefWidth, opts.MinRefHeight),
		}
	}

	return &models.ReferenceFace{
		Path:   path,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

// CheckReferenceReadable verifies the reference file is still present and
// openable. The scheduler calls this between dispatches to catch underlying
// storage failures mid-run.
func CheckReferenceReadable(ref *models.ReferenceFace) error {
	f, err := os.Open(ref.Path)
	if err != nil {
		return fmt.Errorf("reference face no longer readable: %w", err)
	}
	return f.Close()
}
