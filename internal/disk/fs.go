package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// FSDisk stores objects on a filesystem rooted at a directory.
type FSDisk struct {
	name    string
	fs      afero.Fs
	baseURL string
}

// NewFSDisk creates a disk rooted at root on the OS filesystem. baseURL may
// be empty for disks that are not URL addressable.
func NewFSDisk(name, root, baseURL string) (*FSDisk, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create disk root %q: %w", root, err)
	}
	return NewFSDiskWithFs(name, afero.NewBasePathFs(osFs, root), baseURL), nil
}

// NewFSDiskWithFs wraps an existing afero filesystem.
func NewFSDiskWithFs(name string, fsys afero.Fs, baseURL string) *FSDisk {
	return &FSDisk{name: name, fs: fsys, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (d *FSDisk) Name() string { return d.name }

func (d *FSDisk) Exists(_ context.Context, p string) (bool, error) {
	info, err := d.fs.Stat(clean(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", p, err)
	}
	return !info.IsDir(), nil
}

func (d *FSDisk) Get(ctx context.Context, p string) ([]byte, error) {
	f, err := d.Open(ctx, p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p, err)
	}
	return data, nil
}

func (d *FSDisk) Open(_ context.Context, p string) (io.ReadCloser, error) {
	f, err := d.fs.Open(clean(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("open %s: %w", p, err)
	}
	return f, nil
}

// Put writes to a temporary sibling and renames it into place so readers
// never observe a partial file.
func (d *FSDisk) Put(_ context.Context, p string, data []byte, _ string) error {
	target := clean(p)
	if err := d.fs.MkdirAll(path.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", p, err)
	}

	tmp := target + ".tmp"
	if err := afero.WriteFile(d.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if err := d.fs.Rename(tmp, target); err != nil {
		_ = d.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", p, err)
	}
	return nil
}

func (d *FSDisk) Size(_ context.Context, p string) (int64, error) {
	info, err := d.fs.Stat(clean(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return 0, fmt.Errorf("stat %s: %w", p, err)
	}
	return info.Size(), nil
}

func (d *FSDisk) MakeDirectory(_ context.Context, p string) error {
	if err := d.fs.MkdirAll(clean(p), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", p, err)
	}
	return nil
}

// Delete removes p. Missing files are not an error.
func (d *FSDisk) Delete(_ context.Context, p string) error {
	if err := d.fs.Remove(clean(p)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", p, err)
	}
	return nil
}

func (d *FSDisk) URL(_ context.Context, p string) (string, error) {
	if d.baseURL == "" {
		return "", fmt.Errorf("%w: %s", ErrURLUnavailable, d.name)
	}
	return d.baseURL + "/" + escapePath(clean(p)), nil
}

// Health verifies the root is writable.
func (d *FSDisk) Health(_ context.Context) error {
	const probe = ".health"
	if err := afero.WriteFile(d.fs, probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("write health probe: %w", err)
	}
	if err := d.fs.Remove(probe); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove health probe: %w", err)
	}
	return nil
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func escapePath(p string) string {
	parts := strings.Split(p, "/")
	for i, part := range parts {
		parts[i] = url.PathEscape(part)
	}
	return strings.Join(parts, "/")
}
