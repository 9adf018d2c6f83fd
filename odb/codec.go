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
// record serialization codecs

import (
	"fmt"
	"sync"
)

// Codec serializes records to bytes and back.
//
// Encode and Decode go through the record codec hooks: ForEachRaw,
// SetLoadedClass, SetLoadedProperty and NewEmbeddedChild.
type Codec interface {
	// Name returns the name the codec is registered under.
	Name() string

	// Encode serializes class and existing properties of rec.
	Encode(rec *Record) ([]byte, error)

	// Decode installs class and properties from data into rec.
	//
	// If fields is not empty only those properties are decoded.
	Decode(rec *Record, data []byte, fields []string) error
}

// DefaultCodecName is the name of the codec used when none is configured.
const DefaultCodecName = "msgpack"

var (
	codecMu       sync.RWMutex
	codecRegistry = map[string]Codec{}
)

// RegisterCodec registers codec under its name.
func RegisterCodec(codec Codec) {
	codecMu.Lock()
	defer codecMu.Unlock()

	name := codec.Name()
	if _, already := codecRegistry[name]; already {
		panic(fmt.Errorf("odb codec %q was already registered", name))
	}
	codecRegistry[name] = codec
}

// CodecByName returns codec registered under name.
func CodecByName(name string) (Codec, error) {
	codecMu.RLock()
	defer codecMu.RUnlock()

	codec, ok := codecRegistry[name]
	if !ok {
		return nil, fmt.Errorf("odb: codec %q not registered", name)
	}
	return codec, nil
}

// Codecs returns names of registered codecs.
func Codecs() []string {
	codecMu.RLock()
	defer codecMu.RUnlock()
	return sortedKeys(codecRegistry)
}

// DefaultCodec returns the default codec, or nil if it is not registered.
func DefaultCodec() Codec {
	codec, _ := CodecByName(DefaultCodecName)
	return codec
}
