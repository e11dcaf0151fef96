// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package comptree

import (
	"errors"
	"fmt"

	"github.com/wavetermdev/compsync/pkg/docnode"
)

// CheckStructure validates a reconciled tree: every component and every document node
// appears once, tag names agree, parent handles point at the owner, the component
// hierarchy mirrors the document hierarchy, and bounds were computed.
func CheckStructure(roots []*Node) error {
	var errs []error
	seen := make(map[*Node]bool)
	seenTags := make(map[*docnode.Node]*Node)
	idx := MakeIndex(roots)
	for _, root := range roots {
		if root.ParentId != "" && idx.Get(root.ParentId) != nil {
			errs = append(errs, fmt.Errorf("root %s has a parent inside the tree", root))
		}
		checkNode(root, idx, seen, seenTags, &errs)
	}
	return errors.Join(errs...)
}

func checkNode(n *Node, idx *Index, seen map[*Node]bool, seenTags map[*docnode.Node]*Node, errs *[]error) {
	if seen[n] {
		*errs = append(*errs, fmt.Errorf("component %s reachable twice", n))
		return
	}
	seen[n] = true
	if n.Tag == nil {
		*errs = append(*errs, fmt.Errorf("component %s has no tag", n))
	} else {
		if other := seenTags[n.Tag]; other != nil {
			*errs = append(*errs, fmt.Errorf("tag <%s> claimed by both %s and %s", n.Tag.TagName(), other.CompId, n.CompId))
		}
		seenTags[n.Tag] = n
		if n.TagName() != n.Tag.TagName() {
			*errs = append(*errs, fmt.Errorf("component %s bound to <%s>", n, n.Tag.TagName()))
		}
	}
	if n.Bounds.W < 0 || n.Bounds.H < 0 {
		*errs = append(*errs, fmt.Errorf("component %s has uninitialized bounds", n))
	}
	// parent chain cycle
	steps := 0
	for p := idx.Parent(n); p != nil; p = idx.Parent(p) {
		if p == n || steps > idx.Len() {
			*errs = append(*errs, fmt.Errorf("component %s is its own ancestor", n))
			break
		}
		steps++
	}
	for _, child := range n.Children {
		if child == n {
			*errs = append(*errs, fmt.Errorf("component %s is its own child", n))
			continue
		}
		if child.ParentId != n.CompId {
			*errs = append(*errs, fmt.Errorf("child %s of %s has parent handle %q", child, n, child.ParentId))
		}
		if child.Tag != nil && n.Tag != nil && child.Tag.Parent() != n.Tag {
			*errs = append(*errs, fmt.Errorf("child %s tag is not a child of <%s>", child, n.Tag.TagName()))
		}
		checkNode(child, idx, seen, seenTags, errs)
	}
}
