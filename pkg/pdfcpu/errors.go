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

package pdfcpu

import (
	"fmt"

	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/pkg/errors"
)

func errCorrupt(format string, args ...interface{}) error {
	return errors.Wrap(model.ErrCorruptInput, fmt.Sprintf(format, args...))
}

func errConfig(format string, args ...interface{}) error {
	return errors.Wrap(model.ErrConfiguration, fmt.Sprintf(format, args...))
}

func errIO(err error, format string, args ...interface{}) error {
	return errors.Wrapf(model.ErrIO, "%s: %v", fmt.Sprintf(format, args...), err)
}
