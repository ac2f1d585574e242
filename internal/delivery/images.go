package delivery

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidImage = errors.New("invalid image data")

// ImageStore persists message image attachments under a single directory and
// names them <uuid>.<ext>; the stored name is what goes into the message row.
type ImageStore struct {
	dir string
}

func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

// Save decodes a raw or data-URL base64 payload and writes it to disk,
// returning the stored filename. The original filename only contributes
// its extension.
func (s *ImageStore) Save(imageB64, filename string) (string, error) {
	b64data := imageB64
	if strings.HasPrefix(imageB64, "data:") {
		// data:image/png;base64,....
		if _, rest, found := strings.Cut(imageB64, ","); found {
			b64data = rest
		}
	}

	data, err := base64.StdEncoding.DecodeString(b64data)
	if err != nil {
		return "", ErrInvalidImage
	}

	ext := "bin"
	if idx := strings.LastIndex(filename, "."); idx >= 0 && idx < len(filename)-1 {
		ext = filename[idx+1:]
	}

	name := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	return name, nil
}

// Dir returns the directory images are served from.
func (s *ImageStore) Dir() string { return s.dir }
