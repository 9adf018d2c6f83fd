// Copyright (C) 2026  Nexedi SA and Contributors.
//
// This program is free software: you can Use, Study, Modify and Redistribute
// it under the terms of the GNU General Public License version 3, or (at your
// option) any later version, as published by the Free Software Foundation.
//
// You can also Link and Combine this program with other software covered by
// the terms of any of the Free Software licenses or any of the Open Source
// Initiative approved licenses and Convey the resulting work. Corresponding
// source of such a combination shall include the source code for all other
// software used.
//
// This program is distributed WITHOUT ANY WARRANTY; without even the implied
// warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//
// See COPYING file for full licensing terms.
// See https://www.nexedi.com/licensing for rationale and options.

package odb
// database configuration

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"lab.nexedi.com/kirr/go123/xerr"
)

// Config describes how to open a database, e.g.
//
//	storage:  sqlite:///var/lib/odb/data.db
//	codec:    msgpack
//	schema:   schema.yaml
//	lazyLoad: true
//	compress: 512
type Config struct {
	Storage  string `yaml:"storage"`            // storage URL
	Codec    string `yaml:"codec"`              // record codec name
	Schema   string `yaml:"schema,omitempty"`   // path to schema YAML; relative to the config file
	LazyLoad bool   `yaml:"lazyLoad"`           // resolve links on access
	Compress int    `yaml:"compress"`           // compress payloads from this size; <0 = never
	ReadOnly bool   `yaml:"readOnly,omitempty"` // open storage read-only
}

// DefaultConfig returns configuration with default values for storage at url.
func DefaultConfig(url string) *Config {
	return &Config{
		Storage:  url,
		Codec:    DefaultCodecName,
		LazyLoad: true,
		Compress: 512,
	}
}

// ParseConfig reads configuration in YAML from r.
//
// Settings missing in r keep their default values. Unknown settings are an error.
func ParseConfig(r io.Reader) (_ *Config, err error) {
	defer xerr.Context(&err, "config")

	cfg := DefaultConfig("")
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err = dec.Decode(cfg)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if cfg.Storage == "" {
		return nil, errors.New("storage is not specified")
	}
	return cfg, nil
}

// LoadConfig reads configuration from YAML file at path.
func LoadConfig(path string) (_ *Config, err error) {
	defer xerr.Contextf(&err, "%s", path)

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, err
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(path), cfg.Schema)
	}
	return cfg, nil
}
