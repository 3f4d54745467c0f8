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
	"github.com/gridref/pdfwriter/pkg/log"
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/types"
)

// Dedupe implements spec §4.2: for every pair (i,j), i<j, both reachable
// and not already merged, if the objects are structurally equal (raw
// stream bytes too, when both are streams and aggressive is set) collapse
// j into i via wc.Renumber and drop j from the live set. At most one
// match survives per j (first i<j wins). Objects already merged away are
// skipped as targets, so a later duplicate of a merged object collapses
// into the surviving lowest id.
func Dedupe(ctx *model.Context, aggressive bool) error {
	wc := ctx.Write
	merged := 0

	for j := 1; j < ctx.Size(); j++ {
		if model.Flags(wc.Use[j])&model.UseReachable == 0 || wc.Renumber[j] != j {
			continue
		}
		for i := 1; i < j; i++ {
			if model.Flags(wc.Use[i])&model.UseReachable == 0 || wc.Renumber[i] != i {
				continue
			}
			eq, err := compareEntries(ctx, i, j, aggressive)
			if err != nil {
				return err
			}
			if !eq {
				continue
			}
			wc.Renumber[j] = i
			wc.Use[j] &^= model.UseReachable
			merged++
			break
		}
	}

	log.Stats.Printf("Dedupe: merged %d duplicate objects (aggressive=%v)\n", merged, aggressive)
	return nil
}

// compareEntries applies the Non-stream-vs-stream and Stream-vs-stream
// policy of spec §4.2 to objects i and j.
func compareEntries(ctx *model.Context, i, j int, aggressive bool) (bool, error) {
	ei, ok := ctx.FindTableEntry(i, 0)
	if !ok || ei.Object == nil {
		return false, nil
	}
	ej, ok := ctx.FindTableEntry(j, 0)
	if !ok || ej.Object == nil {
		return false, nil
	}

	sdi, iStream := ei.Object.(types.StreamDict)
	sdj, jStream := ej.Object.(types.StreamDict)

	if iStream != jStream {
		// Non-stream vs stream: never equal.
		return false, nil
	}

	if iStream && jStream {
		if !aggressive {
			return false, nil
		}
		return model.EqualStreamDicts(&sdi, &sdj, ctx.XRefTable)
	}

	return model.EqualObjects(ei.Object, ej.Object, ctx.XRefTable)
}
