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

package model

import "github.com/pkg/errors"

// Sentinel error kinds for the save pipeline (spec §7). Wrap a sentinel
// with errors.Wrap so errors.Is still matches while the chain keeps the
// underlying cause.
var (
	// ErrConfiguration signals conflicting options, e.g. incremental+linear.
	ErrConfiguration = errors.New("pdfcpu: configuration error")

	// ErrIO signals an open/seek/write failure on the output sink.
	ErrIO = errors.New("pdfcpu: I/O error")

	// ErrCorruptInput signals an unresolvable reference or broken stream header.
	ErrCorruptInput = errors.New("pdfcpu: corrupt input")

	// ErrRetryable signals a lower-layer "try-later" condition from a
	// network-backed resolver; it must propagate unchanged rather than
	// being swallowed as a duff reference.
	ErrRetryable = errors.New("pdfcpu: retryable error")
)

// IsRetryable reports whether err (or something it wraps) is ErrRetryable.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetryable)
}
