package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/utafrali/storefront/internal/repository"
)

// Provider stores each slot as <dir>/<key>.json.
type Provider struct {
	dir string
}

// NewProvider creates dir if needed and returns a provider rooted there.
func NewProvider(dir string) (*Provider, error) {
	if dir == "" {
		return nil, errors.New("file slot directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create slot directory: %w", err)
	}
	return &Provider{dir: dir}, nil
}

// Open returns the slot for key. Keys that could escape the directory yield
// a slot whose every call fails.
func (p *Provider) Open(key string) repository.Slot {
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return invalidSlot{key: key}
	}
	return &slot{dir: p.dir, path: filepath.Join(p.dir, key+".json")}
}

// Ping verifies the directory still exists.
func (p *Provider) Ping(context.Context) error {
	info, err := os.Stat(p.dir)
	if err != nil {
		return fmt.Errorf("stat slot directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("slot path %s is not a directory", p.dir)
	}
	return nil
}

// Name returns "file".
func (p *Provider) Name() string { return "file" }

type slot struct {
	dir  string
	path string
}

func (s *slot) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, repository.ErrSlotEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("read slot: %w", err)
	}
	return data, nil
}

// Store writes to a temp file in the same directory and renames it over the
// slot, so readers never observe a partial write.
func (s *slot) Store(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("create temp slot: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp slot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp slot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp slot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace slot: %w", err)
	}
	return nil
}

type invalidSlot struct{ key string }

func (s invalidSlot) Load(context.Context) ([]byte, error) {
	return nil, fmt.Errorf("invalid slot key %q", s.key)
}

func (s invalidSlot) Store(context.Context, []byte) error {
	return fmt.Errorf("invalid slot key %q", s.key)
}
