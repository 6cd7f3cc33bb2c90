// Package config handles kbye.toml configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	"github.com/quackduck/kbye"
)

// DefaultPath is the file Load reads when $KBYE_CONFIG is not set.
const DefaultPath = "kbye.toml"

// Config represents a kbye.toml file.
type Config struct {
	Server     Server     `toml:"server"`
	Codec      Codec      `toml:"codec"`
	Log        Log        `toml:"log"`
	Dictionary Dictionary `toml:"dictionary"`
}

// Server configures the HTTP server.
type Server struct {
	Listen    string `toml:"listen"`
	CacheSize int    `toml:"cache-size"`
	MaxBody   int64  `toml:"max-body"`
}

// Codec configures encoding and decoding.
type Codec struct {
	BufferSize int `toml:"buffer-size"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Dictionary replaces the default filler words when Groups is set.
type Dictionary struct {
	Groups [][]string `toml:"groups"`
}

// Default returns the configuration used when there is no file.
func Default() *Config {
	return &Config{
		Server: Server{Listen: ":8080", CacheSize: 1024, MaxBody: 1 << 20},
		Codec:  Codec{BufferSize: 16 * 1024},
		Log:    Log{Verbosity: 1},
	}
}

// Parse decodes a TOML document on top of the defaults.
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := toml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	if c.Codec.BufferSize <= 0 {
		return nil, fmt.Errorf("codec.buffer-size must be positive, have %d", c.Codec.BufferSize)
	}
	if c.Server.MaxBody <= 0 {
		return nil, fmt.Errorf("server.max-body must be positive, have %d", c.Server.MaxBody)
	}
	return c, nil
}

// Load reads the file at path. A missing file is not an error when path is DefaultPath: the defaults are used.
// $KBYE_BUFSIZE overrides codec.buffer-size.
func Load(path string) (*Config, error) {
	var c *Config
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if c, err = Parse(data); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && path == DefaultPath:
		c = Default()
	default:
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if s := os.Getenv("KBYE_BUFSIZE"); s != "" {
		bufSize, err := strconv.Atoi(s)
		if err != nil || bufSize <= 0 {
			return nil, fmt.Errorf("invalid buffer size %q in $KBYE_BUFSIZE", s)
		}
		c.Codec.BufferSize = bufSize
	}
	return c, nil
}

// FromEnv loads the file named by $KBYE_CONFIG, or DefaultPath.
func FromEnv() (*Config, error) {
	if path := os.Getenv("KBYE_CONFIG"); path != "" {
		return Load(path)
	}
	return Load(DefaultPath)
}

// Coding builds the Coding described by c. It fails if a custom dictionary is invalid.
func (c *Config) Coding() (*kbye.Coding, error) {
	d := kbye.Default
	if len(c.Dictionary.Groups) > 0 {
		var err error
		if d, err = kbye.NewDictionary(c.Dictionary.Groups); err != nil {
			return nil, fmt.Errorf("invalid dictionary: %w", err)
		}
	}
	coding := kbye.NewCoding(d)
	coding.SetBufferSize(c.Codec.BufferSize)
	return coding, nil
}
