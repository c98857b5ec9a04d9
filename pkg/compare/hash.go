package compare

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/sdejongh/mirrorsync/pkg/models"
	"github.com/sdejongh/mirrorsync/pkg/storage"
)

const minBufferSize = 4096

// DigestComparator compares files by a digest of their whole content, read
// block by block
type DigestComparator struct {
	backend    storage.Backend
	name       string
	newHash    func() hash.Hash
	bufferPool *sync.Pool
}

// NewHashComparator creates a SHA-256 comparator. It is the content-exact
// mode.
func NewHashComparator(backend storage.Backend, bufferSize int) *DigestComparator {
	return newDigestComparator(backend, string(models.CompareHash), sha256.New, bufferSize)
}

// NewXXHashComparator creates an xxhash64 comparator. It is faster than
// SHA-256 and still reads the whole content.
func NewXXHashComparator(backend storage.Backend, bufferSize int) *DigestComparator {
	return newDigestComparator(backend, string(models.CompareXXHash), func() hash.Hash { return xxhash.New() }, bufferSize)
}

func newDigestComparator(backend storage.Backend, name string, newHash func() hash.Hash, bufferSize int) *DigestComparator {
	if bufferSize < minBufferSize {
		bufferSize = minBufferSize
	}
	return &DigestComparator{
		backend: backend,
		name:    name,
		newHash: newHash,
		bufferPool: &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, bufferSize)
				return &buf
			},
		},
	}
}

// Compare returns ActionUpdated when the digests differ
func (c *DigestComparator) Compare(ctx context.Context, sourcePath, targetPath string, sourceInfo os.FileInfo) (models.FileAction, error) {
	targetInfo, err := statTarget(c.backend, targetPath)
	if err != nil {
		return models.ActionError, err
	}
	if targetInfo == nil {
		return models.ActionNew, nil
	}

	// Different sizes cannot have equal content
	if sourceInfo.Size() != targetInfo.Size() {
		return models.ActionUpdated, nil
	}

	sourceSum, err := c.Digest(ctx, sourcePath)
	if err != nil {
		return models.ActionError, fmt.Errorf("failed to hash source: %w", err)
	}
	targetSum, err := c.Digest(ctx, targetPath)
	if err != nil {
		return models.ActionError, fmt.Errorf("failed to hash target: %w", err)
	}

	if !bytes.Equal(sourceSum, targetSum) {
		return models.ActionUpdated, nil
	}
	return models.ActionSkipped, nil
}

// Digest computes the digest of the file at path
func (c *DigestComparator) Digest(ctx context.Context, path string) ([]byte, error) {
	file, err := c.backend.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	bufPtr := c.bufferPool.Get().(*[]byte)
	defer c.bufferPool.Put(bufPtr)
	buf := *bufPtr

	h := c.newHash()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		n, err := file.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
	}

	return h.Sum(nil), nil
}

// Name returns the comparator name
func (c *DigestComparator) Name() string {
	return c.name
}
