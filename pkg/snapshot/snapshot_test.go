// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package snapshot

import (
	"testing"

	"github.com/wavetermdev/compsync/pkg/docnode"
)

func TestCaptureIsDeepAndDetached(t *testing.T) {
	root := docnode.MustParse(`<A x="1"><B/><C android:id="@+id/c"/></A>`)
	snap := Capture(root)
	if snap.Source != root || snap.Children[1].Source != root.ChildAt(1) {
		t.Fatalf("snapshot sources not linked")
	}
	root.SetAttribute("", "x", "2")
	root.RemoveChild(root.ChildAt(0))
	if val, _ := snap.GetAttribute("", "x"); val != "1" {
		t.Errorf("snapshot changed with the document: x=%q", val)
	}
	if len(snap.Children) != 2 {
		t.Errorf("snapshot children changed with the document")
	}
	if snap.Children[1].Id() != "@+id/c" {
		t.Errorf("unexpected id %q", snap.Children[1].Id())
	}
	count := 0
	snap.Walk(func(*Snapshot) { count++ })
	if count != 3 {
		t.Errorf("expected 3 snapshots, got %d", count)
	}
	if Capture(nil) != nil {
		t.Errorf("nil capture should be nil")
	}
}

func TestSignature(t *testing.T) {
	sig := func(markup string) uint64 {
		return Capture(docnode.MustParse(markup)).Signature()
	}
	if sig(`<A x="1"><B/></A>`) != sig(`<A x="1"><C k="v"/></A>`) {
		t.Errorf("signature should only depend on the child count, not child content")
	}
	distinct := []string{
		`<A x="1"><B/></A>`,
		`<A x="2"><B/></A>`,
		`<A x="1"/>`,
		`<Z x="1"><B/></Z>`,
		`<A y="1"><B/></A>`,
		`<A android:x="1"><B/></A>`,
	}
	seen := make(map[uint64]string)
	for _, markup := range distinct {
		s := sig(markup)
		if other, found := seen[s]; found {
			t.Errorf("signature collision between %s and %s", other, markup)
		}
		seen[s] = markup
	}
}

func TestSignatureFieldBoundaries(t *testing.T) {
	a := Make(nil, "A", []docnode.Attr{docnode.A("ab", "c")})
	b := Make(nil, "A", []docnode.Attr{docnode.A("a", "bc")})
	if a.Signature() == b.Signature() {
		t.Errorf("attribute name/value boundary not part of the signature")
	}
	if a.Signature() != a.Signature() {
		t.Errorf("signature not stable")
	}
}
