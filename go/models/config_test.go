package models

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	require.NoError(t, c.Validate())
	assert.Equal(t, uint(32), c.Bits)
	assert.Equal(t, uint64(0xc0000000), c.PhysBase)
	assert.Equal(t, uint64(4), c.WordSize())
	assert.Equal(t, binary.LittleEndian, c.ByteOrder())
}

func TestDecodeConfig(t *testing.T) {
	c, err := DecodeConfig(`
bits = 64
big_endian = true
phys_base = 0x800000000000
trace_sys = true
`)
	require.NoError(t, err)
	assert.Equal(t, uint(64), c.Bits)
	assert.Equal(t, binary.BigEndian, c.ByteOrder())
	assert.Equal(t, uint64(0x800000000000), c.PhysBase)
	assert.True(t, c.TraceSys)
	assert.Equal(t, uint64(0x1000), c.PageSize, "default kept")
}

func TestDecodeConfigInvalid(t *testing.T) {
	for _, data := range []string{
		`bits = 16`,
		`page_size = 3000`,
		`phys_base = 0xc0000800`,
		`phys_base = 0x8000000000`,
		`data_base = 0xd0000000`,
		`bits = "wide"`,
	} {
		_, err := DecodeConfig(data)
		assert.Error(t, err, data)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("stack_pages = 8\n"), 0o644))
	c, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 8, c.StackPages)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
