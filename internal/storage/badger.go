// Package storage holds uploaded images in an embedded BadgerDB instance.
//
// Each image is two keys written in one transaction: the raw bytes under
// "image:<id>" and a small JSON header under "image_meta:<id>". The store can
// run purely in memory for tests and local development.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/forgo/marquee/api/internal/model"
)

// Key prefixes for BadgerDB storage
const (
	imageKeyPrefix     = "image:"
	imageMetaKeyPrefix = "image_meta:"
)

// ErrImageNotFound is returned when no image exists under the id
var ErrImageNotFound = errors.New("image not found")

// Config configures the image store
type Config struct {
	Path     string // directory for the database files
	InMemory bool   // ignore Path and keep everything in RAM
}

// BadgerImageStore implements the image store on BadgerDB
type BadgerImageStore struct {
	db *badger.DB
}

type imageMeta struct {
	OwnerID     string    `json:"owner_id,omitempty"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
}

// Open opens (or creates) the image store
func Open(cfg Config) (*BadgerImageStore, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("storage path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithLogger(nil).WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open image store: %w", err)
	}
	return &BadgerImageStore{db: db}, nil
}

// Put stores an image under img.ID
func (s *BadgerImageStore) Put(ctx context.Context, img *model.StoredImage) error {
	if img.ID == "" {
		return errors.New("image id is required")
	}
	if img.CreatedAt.IsZero() {
		img.CreatedAt = time.Now().UTC()
	}

	meta, err := json.Marshal(imageMeta{
		OwnerID:     img.OwnerID,
		ContentType: img.ContentType,
		Size:        int64(len(img.Data)),
		CreatedAt:   img.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal image meta: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(imageKeyPrefix+img.ID), img.Data); err != nil {
			return fmt.Errorf("set image: %w", err)
		}
		if err := txn.Set([]byte(imageMetaKeyPrefix+img.ID), meta); err != nil {
			return fmt.Errorf("set image meta: %w", err)
		}
		return nil
	})
}

// Get loads an image with its bytes
func (s *BadgerImageStore) Get(ctx context.Context, id string) (*model.StoredImage, error) {
	img := &model.StoredImage{ID: id}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(imageMetaKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrImageNotFound
		}
		if err != nil {
			return fmt.Errorf("get image meta: %w", err)
		}

		var meta imageMeta
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("decode image meta: %w", err)
		}
		img.OwnerID = meta.OwnerID
		img.ContentType = meta.ContentType
		img.Size = meta.Size
		img.CreatedAt = meta.CreatedAt

		item, err = txn.Get([]byte(imageKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrImageNotFound
		}
		if err != nil {
			return fmt.Errorf("get image: %w", err)
		}
		img.Data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Delete removes an image; deleting a missing image is not an error
func (s *BadgerImageStore) Delete(ctx context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, key := range []string{imageKeyPrefix + id, imageMetaKeyPrefix + id} {
			if err := txn.Delete([]byte(key)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// Ping reports whether the store accepts reads
func (s *BadgerImageStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("image store is closed")
	}
	return nil
}

// RunGC reclaims space in the value log. Disk-backed stores only.
func (s *BadgerImageStore) RunGC() {
	if s.db.Opts().InMemory {
		return
	}
	for {
		if err := s.db.RunValueLogGC(0.5); err != nil {
			if !errors.Is(err, badger.ErrNoRewrite) {
				slog.Debug("image store gc stopped", slog.String("error", err.Error()))
			}
			return
		}
	}
}

// Close closes the underlying database
func (s *BadgerImageStore) Close() error {
	return s.db.Close()
}
