package models

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

type Config struct {
	// machine word size in bits, 32 or 64
	Bits      uint `toml:"bits"`
	BigEndian bool `toml:"big_endian"`
	// first kernel address; every user address lies below it
	PhysBase uint64 `toml:"phys_base"`
	PageSize uint64 `toml:"page_size"`
	// pages mapped below PhysBase for each process stack
	StackPages int `toml:"stack_pages"`
	// base of the per-process data region user programs allocate from
	DataBase uint64 `toml:"data_base"`

	TraceSys bool `toml:"trace_sys"`
	Strsize  int  `toml:"strsize"`

	Output io.WriteCloser `toml:"-"`
}

// DefaultConfig describes a 32-bit little-endian machine with the user/kernel
// split at 3GiB.
func DefaultConfig() *Config {
	c := &Config{}
	c.Init()
	return c
}

// Init fills any zero fields with defaults.
func (c *Config) Init() {
	if c.Bits == 0 {
		c.Bits = 32
	}
	if c.PhysBase == 0 {
		c.PhysBase = 0xc0000000
	}
	if c.PageSize == 0 {
		c.PageSize = 0x1000
	}
	if c.StackPages == 0 {
		c.StackPages = 2
	}
	if c.DataBase == 0 {
		c.DataBase = 0x08048000
	}
	if c.Strsize == 0 {
		c.Strsize = 32
	}
	if c.Output == nil {
		c.Output = os.Stdout
	}
}

func (c *Config) Validate() error {
	if c.Bits != 32 && c.Bits != 64 {
		return errors.Errorf("unsupported word size: %d bits", c.Bits)
	}
	if c.PageSize&(c.PageSize-1) != 0 {
		return errors.Errorf("page size %#x is not a power of two", c.PageSize)
	}
	if c.PhysBase%c.PageSize != 0 {
		return errors.Errorf("phys_base %#x is not page aligned", c.PhysBase)
	}
	if c.Bits == 32 && c.PhysBase > 1<<32 {
		return errors.Errorf("phys_base %#x does not fit in 32 bits", c.PhysBase)
	}
	if c.DataBase >= c.PhysBase {
		return errors.Errorf("data_base %#x is above phys_base", c.DataBase)
	}
	return nil
}

func (c *Config) ByteOrder() binary.ByteOrder {
	if c.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func (c *Config) WordSize() uint64 {
	return uint64(c.Bits / 8)
}

// DecodeConfig parses TOML on top of the defaults.
func DecodeConfig(data string) (*Config, error) {
	c := &Config{}
	if _, err := toml.Decode(data, c); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}
	c.Init()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config")
	}
	return DecodeConfig(string(data))
}
