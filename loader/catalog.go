// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package loader

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/bureau-foundation/partition/domain"
)

var (
	// ErrUnknownImage is returned when a manifest or source names an
	// image the catalog does not have.
	ErrUnknownImage = errors.New("unknown domain image")

	// ErrImageExists is returned by Catalog.Add for a duplicate name.
	ErrImageExists = errors.New("domain image already in catalog")
)

// Image is a loadable domain: a kind and the entry that builds an
// instance of it.
type Image struct {
	Name        string
	Kind        domain.Kind
	Entry       domain.Entry
	Description string
}

// Catalog maps image names to images. It is safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	images map[string]Image
}

// NewCatalog returns a catalog holding images.
func NewCatalog(images ...Image) (*Catalog, error) {
	catalog := &Catalog{images: make(map[string]Image, len(images))}
	for _, image := range images {
		if err := catalog.Add(image); err != nil {
			return nil, err
		}
	}
	return catalog, nil
}

// Add inserts image.
func (c *Catalog) Add(image Image) error {
	if image.Name == "" {
		return fmt.Errorf("catalog image has no name")
	}
	if !image.Kind.Valid() {
		return fmt.Errorf("catalog image %q: undefined kind %d", image.Name, uint8(image.Kind))
	}
	if image.Entry == nil {
		return fmt.Errorf("catalog image %q has no entry", image.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.images[image.Name]; exists {
		return fmt.Errorf("%w: %q", ErrImageExists, image.Name)
	}
	c.images[image.Name] = image
	return nil
}

// Lookup returns the image named name.
func (c *Catalog) Lookup(name string) (Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	image, ok := c.images[name]
	return image, ok
}

// Images returns every image sorted by name.
func (c *Catalog) Images() []Image {
	c.mu.RLock()
	images := make([]Image, 0, len(c.images))
	for _, image := range c.images {
		images = append(images, image)
	}
	c.mu.RUnlock()
	sort.Slice(images, func(i, j int) bool { return images[i].Name < images[j].Name })
	return images
}
