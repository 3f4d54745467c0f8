/*
Copyright 2018 The pdfcpu Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package types

import (
	"bytes"
	"fmt"
	"io"

	"github.com/gridref/pdfwriter/pkg/filter"
)

// Filter describes one entry of a stream's /Filter + /DecodeParms pipeline.
type Filter struct {
	Name        string
	DecodeParms Dict
}

// StreamDict represents a PDF stream object: a dictionary plus a raw
// (encoded, as it will be or was written to the file) byte buffer and,
// once decoded, the uncompressed Content.
type StreamDict struct {
	Dict
	StreamLength   *int64
	FilterPipeline []Filter
	Raw            []byte // encoded bytes, exactly as read from / written to the file
	Content        []byte // decoded bytes, populated lazily by Decode
}

// NewStreamDict returns a StreamDict wrapping d with the given raw payload.
func NewStreamDict(d Dict, raw []byte, pipeline []Filter) StreamDict {
	n := int64(len(raw))
	return StreamDict{Dict: d, StreamLength: &n, FilterPipeline: pipeline, Raw: raw}
}

// Clone returns a deep clone of sd.
func (sd StreamDict) Clone() Object {
	sd1 := sd
	sd1.Dict = sd.Dict.Clone().(Dict)
	pl := make([]Filter, len(sd.FilterPipeline))
	for i, f := range sd.FilterPipeline {
		f1 := Filter{Name: f.Name}
		if f.DecodeParms != nil {
			f1.DecodeParms = f.DecodeParms.Clone().(Dict)
		}
		pl[i] = f1
	}
	sd1.FilterPipeline = pl
	raw := make([]byte, len(sd.Raw))
	copy(raw, sd.Raw)
	sd1.Raw = raw
	return sd1
}

func (sd StreamDict) String() string {
	return fmt.Sprintf("%s stream(%d bytes)", sd.Dict.String(), len(sd.Raw))
}

// PDFString renders only the dictionary; the emitter writes the stream
// body separately (spec §4.6: "stream\n<bytes>\nendstream").
func (sd StreamDict) PDFString() string { return sd.Dict.PDFString() }

// HasSoleFilterNamed reports whether sd has exactly one filter, named name.
func (sd StreamDict) HasSoleFilterNamed(name string) bool {
	return len(sd.FilterPipeline) == 1 && sd.FilterPipeline[0].Name == name
}

func parmsForFilter(d Dict) map[string]int {
	if d == nil {
		return nil
	}
	m := map[string]int{}
	for _, k := range d.Keys() {
		if i, ok := d[k].(Integer); ok {
			m[k] = int(i)
		}
	}
	return m
}

// Decode applies sd's filter pipeline to sd.Raw, populating sd.Content.
// It is idempotent: a second call is a no-op once Content is populated.
func (sd *StreamDict) Decode() error {
	if sd.Content != nil {
		return nil
	}
	if sd.FilterPipeline == nil {
		sd.Content = sd.Raw
		return nil
	}

	var r io.Reader = bytes.NewReader(sd.Raw)
	for _, f := range sd.FilterPipeline {
		fi, err := filter.NewFilter(f.Name, parmsForFilter(f.DecodeParms))
		if err != nil {
			return err
		}
		r, err = fi.Decode(r)
		if err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	sd.Content = buf.Bytes()
	return nil
}

// Encode applies sd's filter pipeline to sd.Content, (re)populating sd.Raw
// and the dict's /Length entry.
func (sd *StreamDict) Encode() error {
	if sd.FilterPipeline == nil {
		sd.Raw = sd.Content
		n := int64(len(sd.Raw))
		sd.StreamLength = &n
		sd.Dict["Length"] = Integer(n)
		return nil
	}

	var r io.Reader = bytes.NewReader(sd.Content)
	for i := len(sd.FilterPipeline) - 1; i >= 0; i-- {
		f := sd.FilterPipeline[i]
		fi, err := filter.NewFilter(f.Name, parmsForFilter(f.DecodeParms))
		if err != nil {
			return err
		}
		r, err = fi.Encode(r)
		if err != nil {
			return err
		}
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return err
	}
	sd.Raw = buf.Bytes()
	n := int64(len(sd.Raw))
	sd.StreamLength = &n
	sd.Dict["Length"] = Integer(n)
	return nil
}
