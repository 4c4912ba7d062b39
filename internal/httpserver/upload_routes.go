package httpserver

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"chat_backend/internal/domain"
)

const uploadURLPrefix = "/api/uploads/"

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

// uploadStore keeps uploaded images on local disk under dir.
type uploadStore struct {
	dir      string
	maxBytes int64
}

func newUploadStore(dir string, maxBytes int64) *uploadStore {
	if maxBytes <= 0 {
		maxBytes = 5 << 20
	}
	return &uploadStore{dir: dir, maxBytes: maxBytes}
}

// save sniffs the content type, stores the image under a random name and
// returns the URL it is served from.
func (s *uploadStore) save(src io.Reader) (string, error) {
	head := make([]byte, 3072)
	n, err := io.ReadFull(src, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}

	mt := mimetype.Detect(head)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		return "", fmt.Errorf("%w: unsupported file type %s", domain.ErrInvalidInput, mt.String())
	}

	filename := uuid.NewString() + mt.Extension()
	dest := filepath.Join(s.dir, filename)
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}

	written, err := io.Copy(out, io.MultiReader(bytes.NewReader(head), io.LimitReader(src, s.maxBytes-int64(n)+1)))
	if err == nil && written > s.maxBytes {
		err = fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, s.maxBytes)
	}
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close upload: %w", closeErr)
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", err
	}
	return uploadURLPrefix + filename, nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

// parseForm reads a multipart body within the upload limit.
func (s *uploadStore) parseForm(r *http.Request) error {
	if err := r.ParseMultipartForm(s.maxBytes); err != nil {
		return fmt.Errorf("%w: failed to parse multipart form", domain.ErrInvalidInput)
	}
	return nil
}

// formImage stores the optional file in field and returns its URL, or nil when
// the form carries no file.
func (s *uploadStore) formImage(r *http.Request, field string) (*string, error) {
	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s file", domain.ErrInvalidInput, field)
	}
	defer file.Close()

	url, err := s.save(file)
	if err != nil {
		return nil, err
	}
	return &url, nil
}

// formValue returns a pointer to the form value of key, or nil when absent.
func formValue(r *http.Request, key string) *string {
	if r.MultipartForm == nil {
		return nil
	}
	if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
		v := vs[0]
		return &v
	}
	return nil
}

// UploadRoutes returns a sub-router mounted at /api/uploads. Reading files is
// public; uploading requires auth.
func UploadRoutes(store *uploadStore, requireUser func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(requireUser).Post("/", func(w http.ResponseWriter, r *http.Request) {
		if err := store.parseForm(r); err != nil {
			writeError(w, r, err)
			return
		}
		url, err := store.formImage(r, "file")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if url == nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"url": *url})
	})

	r.Get("/{filename}", func(w http.ResponseWriter, r *http.Request) {
		filename := chi.URLParam(r, "filename")
		if filename == "" {
			http.Error(w, "missing filename", http.StatusBadRequest)
			return
		}
		// Prevent path traversal by cleaning the path and not allowing separators.
		if filepath.Base(filename) != filename || strings.HasPrefix(filename, ".") {
			http.Error(w, "invalid filename", http.StatusBadRequest)
			return
		}
		w.Header().Set("X-Content-Type-Options", "nosniff")
		http.ServeFile(w, r, filepath.Join(store.dir, filename))
	})

	return r
}
