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

// Package sign implements spec §6's signature finalization: after a
// document has been fully serialized with a placeholder signature field
// in place, a post-pass locates the /ByteRange placeholder, rewrites it
// with the real byte spans around /Contents, digests those spans, and
// pastes the resulting CMS SignedData into /Contents.
//
// The cryptographic signing primitive itself (private key material,
// RSA/ECDSA signing) is an external collaborator (spec §1); this
// package only builds the placeholder, locates it, and assembles the
// PKCS#7/CMS container around whatever signature bytes the Signer
// produces.
package sign

import (
	"bytes"
	"crypto"
	"crypto/x509"
	"fmt"

	"github.com/hhrutter/pkcs7"
	"github.com/pkg/errors"
)

// byteRangePlaceholder is the pre-sized sentinel spec §6 names: large
// enough in digit width that the real, always-smaller, final offsets
// never need more characters than the placeholder reserved.
const byteRangePlaceholder = 999999999

// contentsPlaceholderBytes is how many raw signature bytes /Contents
// reserves before the real CMS blob is known. 8192 comfortably fits an
// RSA-4096 PKCS#7 SignedData with a short certificate chain.
// PreparePlaceholder always reserves this size; it takes no size argument.
const contentsPlaceholderBytes = 8192

// Signer is the external collaborator spec §1 carves out: given the
// exact bytes to be signed (the digest input spanning everything but
// the /Contents hex string itself), it returns a complete, DER-encoded
// PKCS#7 SignedData blob ready to paste into /Contents. Implementations
// typically wrap crypto.Signer plus a certificate chain.
type Signer interface {
	Sign(digestInput []byte) ([]byte, error)
}

// pkcs7Signer is the Signer this package ships: a crypto.Signer plus
// its certificate (and any intermediates), wired through
// github.com/hhrutter/pkcs7's SignedData builder.
type pkcs7Signer struct {
	cert  *x509.Certificate
	chain []*x509.Certificate
	key   crypto.Signer
}

// NewSigner returns a Signer that builds a CMS SignedData container over
// a SHA-256 digest of its input, signed by key under cert, with chain
// (if any) carried as additional certificates for verification.
func NewSigner(cert *x509.Certificate, chain []*x509.Certificate, key crypto.Signer) Signer {
	return &pkcs7Signer{cert: cert, chain: chain, key: key}
}

func (s *pkcs7Signer) Sign(digestInput []byte) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(digestInput)
	if err != nil {
		return nil, errors.Wrap(err, "pdfcpu/sign: NewSignedData")
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	if err := sd.AddSigner(s.cert, s.key, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, errors.Wrap(err, "pdfcpu/sign: AddSigner")
	}
	for _, c := range s.chain {
		sd.AddCertificate(c)
	}
	sd.Detach()
	der, err := sd.Finish()
	if err != nil {
		return nil, errors.Wrap(err, "pdfcpu/sign: Finish")
	}
	return der, nil
}

// Field describes one signature dictionary's placeholder, located by
// byte offset within the fully serialized file: contentsStart/End mark
// the hex digits between the < and > of /Contents (the span left
// untouched by the digest), byteRangeStart/End mark the four integers
// of /ByteRange, in file order.
type Field struct {
	ContentsStart, ContentsEnd   int
	ByteRangeStart, ByteRangeEnd int
}

// PreparePlaceholder returns the two dictionary entries a signature
// field needs before the document is serialized (spec §6): a
// /ByteRange array of four sentinel integers, and a /Contents hex
// string of zero bytes sized to contentsPlaceholderBytes. Both are
// wide/long enough that Finalize's in-place rewrite never needs to
// change the file's overall byte length.
func PreparePlaceholder() (byteRange [4]int, contentsHex string) {
	return [4]int{
			byteRangePlaceholder, byteRangePlaceholder,
			byteRangePlaceholder, byteRangePlaceholder,
		},
		zeros(contentsPlaceholderBytes * 2)
}

// LocateField scans final (the fully serialized file) for the literal
// placeholder text PreparePlaceholder wrote, returning its byte
// position. A real implementation would instead carry these offsets
// forward from the Emitter, which already knows each object's position;
// this scan exists for the case where final arrives as an opaque byte
// slice with no such side-channel (e.g. a file round-tripped through a
// separate process).
func LocateField(final []byte, contentsMarker string) (Field, error) {
	ci := bytes.Index(final, []byte(contentsMarker))
	if ci < 0 {
		return Field{}, errors.New("pdfcpu/sign: LocateField: /Contents placeholder not found")
	}
	brMarker := []byte(fmt.Sprintf("%d %d %d %d", byteRangePlaceholder, byteRangePlaceholder, byteRangePlaceholder, byteRangePlaceholder))
	bi := bytes.Index(final, brMarker)
	if bi < 0 {
		return Field{}, errors.New("pdfcpu/sign: LocateField: /ByteRange placeholder not found")
	}
	return Field{
		ContentsStart:  ci,
		ContentsEnd:    ci + len(contentsMarker),
		ByteRangeStart: bi,
		ByteRangeEnd:   bi + len(brMarker),
	}, nil
}

// Finalize implements spec §6's post-pass: given the fully serialized
// file and a located placeholder Field, it computes the real /ByteRange
// (everything before /Contents's opening `<`, then everything after its
// closing `>`, both expressed as the PDF convention of offset+length
// pairs), rewrites the /ByteRange digits in place, signs the digest of
// those two spans via signer, and writes the resulting hex-encoded CMS
// blob into the /Contents span. final is modified in place and
// returned; the total file length never changes; only the reserved
// placeholder bytes are overwritten.
func Finalize(final []byte, f Field, signer Signer) ([]byte, error) {
	// /Contents spans from one byte before ContentsStart (the '<') to one
	// byte after ContentsEnd (the '>'); the digest covers everything else.
	contentsOpen := f.ContentsStart - 1
	contentsClose := f.ContentsEnd + 1
	if contentsOpen < 0 || contentsClose > len(final) {
		return nil, errors.New("pdfcpu/sign: Finalize: /Contents span out of range")
	}

	br := fmt.Sprintf("%d %d %d %d", 0, contentsOpen, contentsClose, len(final)-contentsClose)
	if len(br) > f.ByteRangeEnd-f.ByteRangeStart {
		return nil, errors.New("pdfcpu/sign: Finalize: real /ByteRange wider than its placeholder")
	}
	padded := br + spaces(f.ByteRangeEnd-f.ByteRangeStart-len(br))
	copy(final[f.ByteRangeStart:f.ByteRangeEnd], padded)

	digestInput := make([]byte, 0, contentsOpen+(len(final)-contentsClose))
	digestInput = append(digestInput, final[:contentsOpen]...)
	digestInput = append(digestInput, final[contentsClose:]...)

	der, err := signer.Sign(digestInput)
	if err != nil {
		return nil, err
	}

	hexed := fmt.Sprintf("%x", der)
	if len(hexed) > f.ContentsEnd-f.ContentsStart {
		return nil, errors.New("pdfcpu/sign: Finalize: signature wider than its /Contents placeholder")
	}
	padded2 := hexed + zeros(f.ContentsEnd-f.ContentsStart-len(hexed))
	copy(final[f.ContentsStart:f.ContentsEnd], padded2)

	return final, nil
}

func spaces(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

func zeros(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}
