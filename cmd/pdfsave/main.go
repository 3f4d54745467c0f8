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

// pdfsave drives the save pipeline (pkg/model + pkg/pdfcpu) end to end:
// it builds a small in-memory document, runs it through the configured
// garbage/linearization policy, writes the result, and optionally
// finalizes a signature placeholder (pkg/sign) against the output.
//
// There is no PDF parser in this module (spec §1's Non-goal); pdfsave
// exists to exercise the writer against a document it constructs itself
// rather than one read from an arbitrary inFile, the way pdflib/pdfcpu's
// own command line exercises the full read/write round trip.
package main

import (
	"bytes"
	"crypto"
	"crypto/tls"
	"crypto/x509"
	"flag"
	"fmt"
	"os"

	"github.com/gridref/pdfwriter/pkg/log"
	"github.com/gridref/pdfwriter/pkg/model"
	"github.com/gridref/pdfwriter/pkg/pdfcpu"
	"github.com/gridref/pdfwriter/pkg/sign"
	"github.com/gridref/pdfwriter/pkg/types"
)

const usage = `pdfsave builds a sample document and saves it under the given policy.

Usage:

	pdfsave [flags] outFile

Flags:
`

var (
	garbage     int
	linear      bool
	deflate     bool
	asciiHex    bool
	xrefStream  bool
	incremental bool
	verbose     bool
	certFile    string
	keyFile     string
)

func init() {
	flag.IntVar(&garbage, "garbage", 0, "garbage level 0-4 (spec §6 GarbageLevel)")
	flag.BoolVar(&linear, "linear", false, "web-optimize for incremental rendering")
	flag.BoolVar(&deflate, "deflate", true, "deflate uncompressed streams")
	flag.BoolVar(&asciiHex, "ascii", false, "ascii-hex encode binary stream data")
	flag.BoolVar(&xrefStream, "xrefstream", false, "write a cross-reference stream instead of a classic table")
	flag.BoolVar(&incremental, "incremental", false, "append an incremental update instead of a full rewrite")
	flag.BoolVar(&verbose, "verbose", false, "enable info/debug logging")
	flag.StringVar(&certFile, "cert", "", "PEM certificate to sign the output with (requires -key)")
	flag.StringVar(&keyFile, "key", "", "PEM private key to sign the output with (requires -cert)")
}

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	outFile := flag.Arg(0)

	setupLogging(verbose)

	conf := model.NewDefaultConfiguration()
	conf.Garbage = model.GarbageLevel(garbage)
	conf.Linear = linear
	conf.Deflate = deflate
	conf.ASCIIHex = asciiHex
	conf.WriteXRefStream = xrefStream
	conf.Incremental = incremental

	wantSign := certFile != "" || keyFile != ""
	xt := buildSampleDocument(wantSign)

	ctx := model.NewContext(xt, conf)

	var buf bytes.Buffer
	if err := pdfcpu.Save(ctx, &buf); err != nil {
		log.Info.Fatalf("pdfsave: save: %v", err)
	}
	out := buf.Bytes()

	if wantSign {
		signed, err := finalizeSignature(out)
		if err != nil {
			log.Info.Fatalf("pdfsave: sign: %v", err)
		}
		out = signed
	}

	if err := os.WriteFile(outFile, out, 0644); err != nil {
		log.Info.Fatalf("pdfsave: write %s: %v", outFile, err)
	}
}

func setupLogging(verbose bool) {
	if !verbose {
		return
	}
	if err := log.SetDefaultZapLoggers(); err != nil {
		fmt.Fprintf(os.Stderr, "pdfsave: logging setup: %v\n", err)
	}
}

// buildSampleDocument assembles a minimal one-page document: a catalog,
// a one-node page tree, a Helvetica font resource and a content stream
// drawing a line of text. When withSig is set it also wires an AcroForm
// signature field carrying an unsigned placeholder (spec §6), which
// finalizeSignature locates by content scan once Save has written it.
func buildSampleDocument(withSig bool) *model.XRefTable {
	const (
		catalog = 1
		pages   = 2
		page    = 3
		content = 4
		font    = 5
		info    = 6
		acro    = 7
		sig     = 8
		widget  = 9
	)

	size := info + 1
	if withSig {
		size = widget + 1
	}

	xt := model.NewXRefTable(size)
	put := func(num int, obj types.Object) {
		xt.Table[num] = model.NewXRefTableEntryGen0(obj)
	}

	pageDict := types.Dict{
		"Type":      types.Name("Page"),
		"Parent":    *types.NewIndirectRef(pages, 0),
		"MediaBox":  types.NewIntegerArray(0, 0, 612, 792),
		"Resources": types.Dict{"Font": types.Dict{"F1": *types.NewIndirectRef(font, 0)}},
		"Contents":  *types.NewIndirectRef(content, 0),
	}

	if withSig {
		pageDict["Annots"] = types.Array{*types.NewIndirectRef(widget, 0)}
	}

	put(catalog, types.Dict{
		"Type":  types.Name("Catalog"),
		"Pages": *types.NewIndirectRef(pages, 0),
	})
	put(pages, types.Dict{
		"Type":  types.Name("Pages"),
		"Kids":  types.Array{*types.NewIndirectRef(page, 0)},
		"Count": types.Integer(1),
	})
	put(page, pageDict)

	stream := []byte("BT /F1 24 Tf 72 712 Td (Hello, pdfsave) Tj ET\n")
	put(content, types.NewStreamDict(types.Dict{}, stream, nil))

	put(font, types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
	})
	put(info, types.Dict{
		"Producer": types.StringLiteral("pdfsave"),
	})

	xt.Trailer.Root = types.NewIndirectRef(catalog, 0)
	xt.Trailer.Info = types.NewIndirectRef(info, 0)

	if !withSig {
		return xt
	}

	if d, ok := xt.Table[catalog].Object.(types.Dict); ok {
		d["AcroForm"] = *types.NewIndirectRef(acro, 0)
	}

	byteRange, contentsHex := sign.PreparePlaceholder()
	put(sig, types.Dict{
		"Type":      types.Name("Sig"),
		"Filter":    types.Name("Adobe.PPKLite"),
		"SubFilter": types.Name("adbe.pkcs7.detached"),
		"ByteRange": types.NewIntegerArray(byteRange[0], byteRange[1], byteRange[2], byteRange[3]),
		"Contents":  types.HexLiteral(contentsHex),
	})
	put(acro, types.Dict{
		"Fields":   types.Array{*types.NewIndirectRef(widget, 0)},
		"SigFlags": types.Integer(3),
	})
	put(widget, types.Dict{
		"Type":    types.Name("Annot"),
		"Subtype": types.Name("Widget"),
		"FT":      types.Name("Sig"),
		"Rect":    types.NewIntegerArray(0, 0, 0, 0),
		"V":       *types.NewIndirectRef(sig, 0),
		"P":       *types.NewIndirectRef(page, 0),
	})

	return xt
}

// finalizeSignature locates the /Contents and /ByteRange placeholders
// Save wrote verbatim into out and completes spec §6's post-pass: it
// loads certFile/keyFile (PEM, matching how the teacher's own -upw/-opw
// flags pass credentials on the command line), wraps the resulting
// tls.Certificate in a sign.Signer, and rewrites out in place.
func finalizeSignature(out []byte) ([]byte, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("pdfsave: load keypair: %w", err)
	}
	signer, ok := cert.PrivateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("pdfsave: private key does not implement crypto.Signer")
	}
	leaf := cert.Leaf
	if leaf == nil {
		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("pdfsave: parse leaf certificate: %w", err)
		}
	}

	_, contentsMarker := sign.PreparePlaceholder()
	field, err := sign.LocateField(out, contentsMarker)
	if err != nil {
		return nil, err
	}

	s := sign.NewSigner(leaf, nil, signer)
	return sign.Finalize(out, field, s)
}
