/*
Copyright 2020 The pdfcpu Authors.

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

package model

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// ExpandPolicy selects which stream classes the Emitter is allowed to
// decode back to raw bytes before re-filtering (spec §4.6 Expand step).
type ExpandPolicy string

// Recognized ExpandPolicy values.
const (
	ExpandOff    ExpandPolicy = "off"
	ExpandImages ExpandPolicy = "images"
	ExpandFonts  ExpandPolicy = "fonts"
	ExpandAll    ExpandPolicy = "all"
)

// GarbageLevel selects how aggressively Save collects and collapses
// objects before writing (spec §6).
type GarbageLevel int

// Recognized GarbageLevel values.
const (
	GarbageNone          GarbageLevel = 0 // no mark/sweep
	GarbageSweepOnly     GarbageLevel = 1 // sweep only
	GarbageCompact       GarbageLevel = 2 // sweep + compact + renumber
	GarbageDedupe        GarbageLevel = 3 // + dedupe (non-stream)
	GarbageDedupeStreams GarbageLevel = 4 // + stream dedupe ("aggressive")
)

// Configuration is the recognized option set of spec §6, persisted the
// way pdfcpu persists its config.yaml: a flat struct with yaml tags,
// loaded once per process and threaded through the Context.
type Configuration struct {
	CreationDate string `yaml:"created"`
	Version      string `yaml:"version"`

	Incremental     bool         `yaml:"incremental"`
	Expand          ExpandPolicy `yaml:"expand"`
	Deflate         bool         `yaml:"deflate"`
	ASCIIHex        bool         `yaml:"ascii"`
	Garbage         GarbageLevel `yaml:"garbage"`
	Linear          bool         `yaml:"linear"`
	Clean           bool         `yaml:"clean"`
	Tight           bool         `yaml:"tight"`
	ContinueOnError bool         `yaml:"continueOnError"`

	// WriteXRefStream selects a cross-reference stream (spec §4.7) over a
	// classic xref table for a non-linearized save. A linearized save
	// always uses classic xref for both its sections, matching MuPDF,
	// which never reaches writexrefstream from its linearize branch.
	WriteXRefStream bool `yaml:"writeXRefStream"`

	Eol string `yaml:"eol"` // line ending setting ("\n", "\r", "\r\n"); the emitter does not read it and always writes "\n"
}

// NewDefaultConfiguration returns the zero-value-safe default
// configuration: no garbage collection, no linearization, classic xref.
func NewDefaultConfiguration() *Configuration {
	return &Configuration{
		Expand: ExpandOff,
		Eol:    "\n",
	}
}

// Validate enforces the mutual-exclusion rules of spec §4.9 / §7
// (Configuration error kind): incremental cannot be combined with
// garbage collection or linearization.
func (c *Configuration) Validate() error {
	if c.Incremental && (c.Garbage > GarbageNone || c.Linear) {
		return errors.Wrap(ErrConfiguration, "incremental is incompatible with garbage and linear")
	}
	return nil
}

// LoadConfiguration reads a yaml configuration file from path.
func LoadConfiguration(path string) (*Configuration, error) {
	bb, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "pdfcpu: LoadConfiguration")
	}
	c := NewDefaultConfiguration()
	if err := yaml.Unmarshal(bb, c); err != nil {
		return nil, errors.Wrap(err, "pdfcpu: LoadConfiguration: unmarshal")
	}
	return c, nil
}

// Save persists c as yaml to path.
func (c *Configuration) Save(path string) error {
	bb, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "pdfcpu: Configuration.Save: marshal")
	}
	return errors.Wrap(os.WriteFile(path, bb, 0644), "pdfcpu: Configuration.Save")
}
