// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package docnode

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseMarkup reads layout markup into a document tree.
// returns (nil, nil) for a document with no elements.
func ParseMarkup(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)
	var root *Node
	var stack []*Node
	for {
		tok, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing markup: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := MakeNode(t.Name.Local, convertAttrs(t.Attr)...)
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("error parsing markup: multiple root elements (%q after %q)", node.tagName, root.tagName)
				}
				root = node
			} else {
				stack[len(stack)-1].AppendChild(node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("error parsing markup: unexpected end element %q", t.Name.Local)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("error parsing markup: unclosed element %q", stack[len(stack)-1].tagName)
	}
	return root, nil
}

func ParseMarkupString(markup string) (*Node, error) {
	return ParseMarkup(strings.NewReader(markup))
}

// MustParse panics on malformed markup, for tests and literals only
func MustParse(markup string) *Node {
	root, err := ParseMarkupString(markup)
	if err != nil {
		panic(err)
	}
	return root
}

func convertAttrs(xmlAttrs []xml.Attr) []Attr {
	var rtn []Attr
	for _, xa := range xmlAttrs {
		// namespace declarations are resolved by the decoder, they are not layout attributes
		if xa.Name.Space == "xmlns" || (xa.Name.Space == "" && xa.Name.Local == "xmlns") {
			continue
		}
		ns := xa.Name.Space
		if ns == "android" {
			// undeclared prefix, layouts routinely omit the xmlns:android declaration in fragments
			ns = AndroidNS
		}
		rtn = append(rtn, Attr{Namespace: ns, Name: xa.Name.Local, Value: xa.Value})
	}
	return rtn
}
