package handler

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/forgo/marquee/api/internal/model"
)

// multipartMemory is how much of a multipart form is buffered in memory
// before spilling files to disk
const multipartMemory = 8 << 20

// ImageReader serves stored images
type ImageReader interface {
	Get(ctx context.Context, id string) (*model.StoredImage, error)
}

// UploadHandler serves images from the embedded store
type UploadHandler struct {
	images ImageReader
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(images ImageReader) *UploadHandler {
	return &UploadHandler{images: images}
}

// Get handles GET /uploads/{id}
func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	img, err := h.images.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(img.Data)))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// isMultipart reports whether the request body is multipart/form-data
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseMultipart parses a multipart body of at most maxFiles files of
// maxFile bytes each plus a small JSON part
func parseMultipart(w http.ResponseWriter, r *http.Request, maxFile int64, maxFiles int) error {
	limit := maxFile*int64(maxFiles) + maxJSONBody
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("upload exceeds the maximum request size")
		}
		return errors.New("invalid multipart form")
	}
	return nil
}

// decodeDataPart decodes the JSON "data" field of a multipart form.
// A missing field leaves v untouched.
func decodeDataPart(r *http.Request, v interface{}) error {
	raw := r.FormValue("data")
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

// openFiles opens every file of the named multipart field. The returned
// closer must be called once the readers are consumed.
func openFiles(r *http.Request, field string) ([]io.Reader, func(), error) {
	if r.MultipartForm == nil {
		return nil, func() {}, nil
	}

	headers := r.MultipartForm.File[field]
	files := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	readers := make([]io.Reader, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, func() {}, err
		}
		files = append(files, f)
		readers = append(readers, f)
	}
	return readers, closeAll, nil
}
