package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestImageUpload_StoresSniffedType(t *testing.T) {
	t.Parallel()
	store := newMemImageStore()
	svc := NewImageService(ImageServiceConfig{Store: store, BaseURL: testBaseURL})

	uploaded, err := svc.Upload(context.Background(), "user:kim", bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if uploaded.URL != testBaseURL+"/uploads/"+uploaded.ID {
		t.Errorf("unexpected url %q", uploaded.URL)
	}

	img, err := svc.Get(context.Background(), uploaded.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if img.ContentType != "image/png" || !bytes.Equal(img.Data, pngBytes) {
		t.Errorf("unexpected stored image %s (%d bytes)", img.ContentType, len(img.Data))
	}
	if img.OwnerID != "user:kim" {
		t.Errorf("expected owner user:kim, got %q", img.OwnerID)
	}
}

func TestImageDeleteURLs_OnlyRemovesOwnedImages(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newMemImageStore()
	svc := NewImageService(ImageServiceConfig{Store: store, BaseURL: testBaseURL})

	mine, err := svc.UploadBytes(ctx, "user:kim", pngBytes)
	if err != nil {
		t.Fatal(err)
	}
	theirs, err := svc.UploadBytes(ctx, "user:lee", pngBytes)
	if err != nil {
		t.Fatal(err)
	}

	svc.DeleteURLs(ctx, "user:kim", mine.URL, theirs.URL, testBaseURL+"/uploads/gone", "https://cdn.example.com/x.png")

	if _, err := svc.Get(ctx, mine.ID); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected own image deleted, got %v", err)
	}
	if _, err := svc.Get(ctx, theirs.ID); err != nil {
		t.Errorf("expected other user's image kept, got %v", err)
	}
}

func TestImageUpload_TooLarge(t *testing.T) {
	t.Parallel()
	svc := NewImageService(ImageServiceConfig{Store: newMemImageStore(), MaxBytes: 16})

	if _, err := svc.Upload(context.Background(), "user:kim", bytes.NewReader(pngBytes)); !errors.Is(err, ErrImageTooLarge) {
		t.Errorf("expected ErrImageTooLarge, got %v", err)
	}
}

func TestImageUpload_Empty(t *testing.T) {
	t.Parallel()
	svc := NewImageService(ImageServiceConfig{Store: newMemImageStore()})

	if _, err := svc.Upload(context.Background(), "user:kim", bytes.NewReader(nil)); !errors.Is(err, ErrImageRequired) {
		t.Errorf("expected ErrImageRequired, got %v", err)
	}
}

func TestImageGet_Missing_ReturnsErrImageNotFound(t *testing.T) {
	t.Parallel()
	svc := NewImageService(ImageServiceConfig{Store: newMemImageStore()})

	if _, err := svc.Get(context.Background(), "nope"); !errors.Is(err, ErrImageNotFound) {
		t.Errorf("expected ErrImageNotFound, got %v", err)
	}
}

func TestImageStoreFailures_OpenBreaker(t *testing.T) {
	t.Parallel()
	store := newMemImageStore()
	store.putErr = errors.New("disk full")
	svc := NewImageService(ImageServiceConfig{Store: store})

	var lastErr error
	for i := 0; i < 6; i++ {
		_, lastErr = svc.UploadBytes(context.Background(), "user:kim", pngBytes)
	}
	if !errors.Is(lastErr, ErrImageStoreUnavailable) {
		t.Errorf("expected ErrImageStoreUnavailable once the breaker opens, got %v", lastErr)
	}
}

func TestIDFromURL(t *testing.T) {
	t.Parallel()
	svc := NewImageService(ImageServiceConfig{Store: newMemImageStore(), BaseURL: testBaseURL})

	tests := []struct {
		url    string
		wantID string
		wantOK bool
	}{
		{testBaseURL + "/uploads/abc", "abc", true},
		{testBaseURL + "/uploads/", "", false},
		{testBaseURL + "/uploads/a/b", "", false},
		{"https://cdn.example.com/uploads/abc", "", false},
	}
	for _, tt := range tests {
		id, ok := svc.IDFromURL(tt.url)
		if id != tt.wantID || ok != tt.wantOK {
			t.Errorf("IDFromURL(%q) = %q, %v; want %q, %v", tt.url, id, ok, tt.wantID, tt.wantOK)
		}
	}
}
