package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/kirillkom/ingest-buddy/internal/core/domain"
)

const chunkSize = 64 * 1024

// SHA256 hashes file content in fixed-size chunks, so memory use does not
// depend on the file size.
type SHA256 struct{}

func NewSHA256() *SHA256 {
	return &SHA256{}
}

func (SHA256) Hash(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", domain.WrapError(domain.ErrFileRead, "hash file", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, readErr := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", domain.WrapError(domain.ErrFileRead, "hash file", fmt.Errorf("read %s: %w", path, readErr))
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
