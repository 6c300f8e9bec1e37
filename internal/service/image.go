package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/forgo/marquee/api/internal/metrics"
	"github.com/forgo/marquee/api/internal/model"
	"github.com/forgo/marquee/api/internal/storage"
)

// DefaultMaxImageBytes is the per-file upload limit
const DefaultMaxImageBytes = 5 << 20

// allowedImageTypes are the sniffed content types accepted for upload
var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// ImageStore persists uploaded image bytes
type ImageStore interface {
	Put(ctx context.Context, img *model.StoredImage) error
	Get(ctx context.Context, id string) (*model.StoredImage, error)
	Delete(ctx context.Context, id string) error
}

// ImageService validates uploads and stores them behind a circuit breaker
type ImageService struct {
	store    ImageStore
	breaker  *gobreaker.CircuitBreaker[*model.StoredImage]
	maxBytes int64
	baseURL  string
}

// ImageServiceConfig holds configuration for the image service
type ImageServiceConfig struct {
	Store    ImageStore
	MaxBytes int64  // Default: 5 MB
	BaseURL  string // public origin used to build image URLs
}

// NewImageService creates a new image service
func NewImageService(cfg ImageServiceConfig) *ImageService {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxImageBytes
	}

	breaker := gobreaker.NewCircuitBreaker[*model.StoredImage](gobreaker.Settings{
		Name:        "image-store",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, storage.ErrImageNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			metrics.RecordBreakerTransition(name, from, to)
		},
	})

	return &ImageService{
		store:    cfg.Store,
		breaker:  breaker,
		maxBytes: cfg.MaxBytes,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// MaxBytes returns the per-file upload limit
func (s *ImageService) MaxBytes() int64 {
	return s.maxBytes
}

// Upload reads one image, checks its size and sniffed type, and stores it
// as owned by ownerID
func (s *ImageService) Upload(ctx context.Context, ownerID string, r io.Reader) (*model.UploadedImage, error) {
	if r == nil {
		return nil, ErrImageRequired
	}

	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		metrics.ImageUploads.WithLabelValues("rejected").Inc()
		return nil, ErrImageRequired
	}
	if int64(len(data)) > s.maxBytes {
		metrics.ImageUploads.WithLabelValues("rejected").Inc()
		return nil, ErrImageTooLarge
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedImageTypes...) {
		metrics.ImageUploads.WithLabelValues("rejected").Inc()
		return nil, ErrUnsupportedImageType
	}

	img := &model.StoredImage{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		ContentType: mtype.String(),
		Size:        int64(len(data)),
		CreatedAt:   time.Now().UTC(),
		Data:        data,
	}

	_, err = s.breaker.Execute(func() (*model.StoredImage, error) {
		return img, s.store.Put(ctx, img)
	})
	if err != nil {
		metrics.ImageUploads.WithLabelValues("failed").Inc()
		return nil, s.mapStoreError(err)
	}

	metrics.ImageUploads.WithLabelValues("stored").Inc()
	return &model.UploadedImage{
		ID:          img.ID,
		URL:         s.URL(img.ID),
		ContentType: img.ContentType,
		Size:        img.Size,
	}, nil
}

// UploadBytes is Upload for an in-memory payload
func (s *ImageService) UploadBytes(ctx context.Context, ownerID string, data []byte) (*model.UploadedImage, error) {
	return s.Upload(ctx, ownerID, bytes.NewReader(data))
}

// Get loads a stored image
func (s *ImageService) Get(ctx context.Context, id string) (*model.StoredImage, error) {
	if id == "" {
		return nil, ErrImageNotFound
	}
	img, err := s.breaker.Execute(func() (*model.StoredImage, error) {
		return s.store.Get(ctx, id)
	})
	if err != nil {
		return nil, s.mapStoreError(err)
	}
	return img, nil
}

// Delete removes a stored image by id
func (s *ImageService) Delete(ctx context.Context, id string) error {
	_, err := s.breaker.Execute(func() (*model.StoredImage, error) {
		return nil, s.store.Delete(ctx, id)
	})
	return s.mapStoreError(err)
}

// DeleteURLs removes every image among urls that this service stored for
// ownerID. Foreign URLs and images uploaded by someone else are skipped;
// failures are logged and do not stop the sweep.
func (s *ImageService) DeleteURLs(ctx context.Context, ownerID string, urls ...string) {
	for _, u := range urls {
		id, ok := s.IDFromURL(u)
		if !ok {
			continue
		}

		img, err := s.Get(ctx, id)
		if errors.Is(err, ErrImageNotFound) {
			continue
		}
		if err == nil && img.OwnerID != ownerID {
			slog.Debug("keeping image owned by another user",
				slog.String("image_id", id),
				slog.String("owner_id", img.OwnerID),
			)
			continue
		}
		if err == nil {
			err = s.Delete(ctx, id)
		}
		if err != nil {
			slog.Warn("failed to delete stored image",
				slog.String("image_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
}

// URL returns the public URL of an image id
func (s *ImageService) URL(id string) string {
	return s.baseURL + "/uploads/" + id
}

// IDFromURL extracts the image id from a URL built by URL
func (s *ImageService) IDFromURL(u string) (string, bool) {
	id, ok := strings.CutPrefix(u, s.baseURL+"/uploads/")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (s *ImageService) mapStoreError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrImageNotFound):
		return ErrImageNotFound
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return ErrImageStoreUnavailable
	}
	return err
}
