// Package jobs turns classified media items into immutable work items with
// deterministic, collision-free output paths.
package jobs

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/storenstra/facebatch/pkg/models"
)

// Build derives one pending job per media item. Pure apart from path
// construction: no filesystem access. Destination paths are
// outputDir/<stem><suffix><ext>; when two distinct sources map to the same
// destination, a numeric disambiguator is appended so nothing is ever
// silently overwritten.
func Build(items []models.MediaItem, outputDir, suffix string) []*models.Job {
	resolver := newCollisionResolver()
	out := make([]*models.Job, 0, len(items))

	for _, item := range items {
		base := filepath.Base(item.Path)
		stem := strings.TrimSuffix(base, item.Ext)

		requested := filepath.Join(outputDir, stem+suffix+item.Ext)
		dest := resolver.resolve(item.Path, requested)

		out = append(out, &models.Job{
			ID:          jobID(item.Path),
			SourcePath:  item.Path,
			DestPath:    dest,
			Kind:        item.Kind,
			SourceBytes: item.Size,
			State:       models.JobStatePending,
		})
	}
	return out
}

// jobID is a stable short identifier derived from the source path, so the
// same input yields the same id across reruns.
func jobID(sourcePath string) string {
	sum := sha1.Sum([]byte(sourcePath))
	return hex.EncodeToString(sum[:])[:12]
}

// collisionResolver tracks output paths claimed by input files and resolves
// duplicates with "_2", "_3", ... suffixes before the extension.
type collisionResolver struct {
	owners   map[string]string // output path -> input path that owns it
	counters map[string]int    // base output path -> next disambiguator
}

func newCollisionResolver() *collisionResolver {
	return &collisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

func (cr *collisionResolver) resolve(input, requested string) string {
	owner, exists := cr.owners[requested]
	if !exists || owner == input {
		cr.owners[requested] = input
		return requested
	}

	ext := filepath.Ext(requested)
	stem := strings.TrimSuffix(requested, ext)

	counter := cr.counters[requested]
	if counter < 2 {
		counter = 2
	}
	for {
		candidate := fmt.Sprintf("%s_%d%s", stem, counter, ext)
		cOwner, cExists := cr.owners[candidate]
		if !cExists || cOwner == input {
			cr.counters[requested] = counter + 1
			cr.owners[candidate] = input
			return candidate
		}
		counter++
	}
}
