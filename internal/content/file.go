// Package content supplies publishing content to the scheduler. Retrieval
// and rendering pipelines live behind the scheduler's ContentSource
// interface; this package provides a file-backed implementation.
package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/and161185/postpilot/internal/model"
)

// item is the on-disk shape of one content entry.
type item struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"`
	Video string `json:"video,omitempty"`
	Link  string `json:"link,omitempty"`
}

func (i item) toModel() model.ContentItem {
	return model.ContentItem{
		Text:     i.Text,
		ImageRef: i.Image,
		VideoRef: i.Video,
		Link:     i.Link,
	}
}

// contentFile is the on-disk document: one introductory item and a rotating
// pool of daily items.
type contentFile struct {
	Intro item   `json:"intro"`
	Daily []item `json:"daily"`
}

// FileSource reads content from a JSON file on every call, so edits take
// effect without a restart. The daily item rotates by day of year, keeping
// every run within one day deterministic.
type FileSource struct {
	path string
	now  func() time.Time
}

// NewFileSource constructs a source over the given file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

// Daily returns today's content item.
func (s *FileSource) Daily(ctx context.Context) (model.ContentItem, error) {
	doc, err := s.load()
	if err != nil {
		return model.ContentItem{}, err
	}
	if len(doc.Daily) == 0 {
		return model.ContentItem{}, errors.New("content file has no daily items")
	}
	idx := s.now().YearDay() % len(doc.Daily)
	return doc.Daily[idx].toModel(), nil
}

// Intro returns the introductory content item.
func (s *FileSource) Intro(ctx context.Context) (model.ContentItem, error) {
	doc, err := s.load()
	if err != nil {
		return model.ContentItem{}, err
	}
	if doc.Intro.Text == "" {
		return model.ContentItem{}, errors.New("content file has no introductory item")
	}
	return doc.Intro.toModel(), nil
}

func (s *FileSource) load() (*contentFile, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read content file: %w", err)
	}
	var doc contentFile
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse content file: %w", err)
	}
	return &doc, nil
}
