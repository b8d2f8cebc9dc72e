package disk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
)

// Logical disk names.
const (
	Public = "public"
	Local  = "local"
)

var (
	// ErrNotFound is returned when an object does not exist on a disk.
	ErrNotFound = errors.New("object not found")
	// ErrUnknownDisk is returned by Manager for unconfigured disk names.
	ErrUnknownDisk = errors.New("unknown disk")
	// ErrURLUnavailable is returned when a disk cannot address objects by URL.
	ErrURLUnavailable = errors.New("url unavailable for disk")
)

// Disk is a named object storage surface. Paths are slash-separated and
// relative to the disk root.
type Disk interface {
	Name() string
	Exists(ctx context.Context, path string) (bool, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Put(ctx context.Context, path string, data []byte, contentType string) error
	Size(ctx context.Context, path string) (int64, error)
	// MakeDirectory is idempotent; object stores treat it as a no-op.
	MakeDirectory(ctx context.Context, path string) error
	Delete(ctx context.Context, path string) error
	URL(ctx context.Context, path string) (string, error)
}

// HealthChecker is implemented by disks that can verify their backend.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Manager resolves logical disk names.
type Manager struct {
	disks map[string]Disk
}

// NewManager registers disks under their Name().
func NewManager(disks ...Disk) *Manager {
	m := &Manager{disks: make(map[string]Disk, len(disks))}
	for _, d := range disks {
		m.disks[d.Name()] = d
	}
	return m
}

// Disk returns the disk registered under name.
func (m *Manager) Disk(name string) (Disk, error) {
	d, ok := m.disks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDisk, name)
	}
	return d, nil
}

// Names lists registered disks in sorted order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.disks))
	for name := range m.disks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Health checks every disk that supports it.
func (m *Manager) Health(ctx context.Context) error {
	for _, name := range m.Names() {
		hc, ok := m.disks[name].(HealthChecker)
		if !ok {
			continue
		}
		if err := hc.Health(ctx); err != nil {
			return fmt.Errorf("disk %s: %w", name, err)
		}
	}
	return nil
}
