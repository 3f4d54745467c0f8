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
	"fmt"
	"sort"
	"strings"
)

// Dict represents a PDF dictionary: a name-to-value mapping. Key order is
// not semantic, but PDFString always walks keys sorted so that two
// serialization passes over the same dict are byte-identical (Go map
// iteration order is randomized and would otherwise break the two-pass
// offset prediction in pkg/pdfcpu).
type Dict map[string]Object

// NewDict returns an empty Dict.
func NewDict() Dict { return Dict{} }

// Len returns the number of entries.
func (d Dict) Len() int { return len(d) }

// Clone returns a deep clone of d.
func (d Dict) Clone() Object {
	d1 := NewDict()
	for k, v := range d {
		if v != nil {
			v = v.Clone()
		}
		d1[k] = v
	}
	return d1
}

// Find returns the value for key and whether it was present.
func (d Dict) Find(key string) (Object, bool) {
	v, ok := d[key]
	return v, ok
}

// Delete removes key from d.
func (d Dict) Delete(key string) { delete(d, key) }

// IndirectRefEntry returns the IndirectRef stored at key, if any.
func (d Dict) IndirectRefEntry(key string) *IndirectRef {
	v, ok := d.Find(key)
	if !ok {
		return nil
	}
	ir, ok := v.(IndirectRef)
	if !ok {
		return nil
	}
	return &ir
}

// NameEntry returns the Name value stored at key, if any.
func (d Dict) NameEntry(key string) *string {
	v, ok := d.Find(key)
	if !ok {
		return nil
	}
	n, ok := v.(Name)
	if !ok {
		return nil
	}
	s := string(n)
	return &s
}

// sortedKeys returns d's keys in ascending order, for deterministic walks.
func (d Dict) sortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Keys returns d's keys in ascending order.
func (d Dict) Keys() []string { return d.sortedKeys() }

func (d Dict) String() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for _, k := range d.sortedKeys() {
		v := d[k]
		if v == nil {
			sb.WriteString(fmt.Sprintf(" /%s null", k))
			continue
		}
		sb.WriteString(fmt.Sprintf(" /%s %s", k, v.String()))
	}
	sb.WriteString(" >>")
	return sb.String()
}

// PDFString returns d's file-ready serialization, walking keys sorted.
func (d Dict) PDFString() string {
	var sb strings.Builder
	sb.WriteString("<<")
	for _, k := range d.sortedKeys() {
		v := d[k]
		sb.WriteByte('/')
		sb.WriteString(EncodeName(k))
		if v == nil {
			sb.WriteString(" null")
			continue
		}
		switch v.(type) {
		case Dict, Array:
			sb.WriteString(v.PDFString())
		default:
			sb.WriteByte(' ')
			sb.WriteString(v.PDFString())
		}
	}
	sb.WriteString(">>")
	return sb.String()
}
