package disk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerResolvesByName(t *testing.T) {
	public := newMemDisk("https://cdn.example.com")
	local := NewFSDiskWithFs(Local, public.fs, "")
	m := NewManager(public, local)

	d, err := m.Disk(Public)
	require.NoError(t, err)
	assert.Same(t, public, d)

	assert.Equal(t, []string{Local, Public}, m.Names())

	_, err = m.Disk("archive")
	require.ErrorIs(t, err, ErrUnknownDisk)
}

func TestManagerHealthReportsFailingDisk(t *testing.T) {
	m := NewManager(newMemDisk(""), unhealthyDisk{FSDisk: NewFSDiskWithFs(Local, newMemDisk("").fs, "")})

	err := m.Health(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk local")
}

// --- helpers & fakes ---

type unhealthyDisk struct {
	*FSDisk
}

func (unhealthyDisk) Health(context.Context) error {
	return errors.New("backend down")
}
