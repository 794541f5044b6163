package models

// MediaKind distinguishes the two processable input categories.
type MediaKind string

const (
	MediaVideo MediaKind = "video"
	MediaPhoto MediaKind = "photo"
)

// MediaItem is one discovered input file. Items are immutable after the
// inventory scan; uniqueness is by source path.
type MediaItem struct {
	Path string    `json:"path"`
	Kind MediaKind `json:"kind"`
	Ext  string    `json:"ext"`
	Size int64     `json:"size"`
}

// ReferenceFace is the single fixed target identity used for every swap in a
// run. Created once at inventory time, read-only afterwards, shared across
// all workers without locking.
type ReferenceFace struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
