package radix

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Dump writes one line per node, indented with one tab per level:
//
//	key[X]: LABEL - description
//
// X is the branch index under the parent (0 for the root). The description is
// only written for nodes holding a value and when describe is non-nil.
func (t *Tree[V]) Dump(w io.Writer, describe func(V) string) error {
	bw := bufio.NewWriter(w)
	var err error
	t.walk(func(_ string, id NodeID, branch, depth int) bool {
		n := &t.nodes[id]
		line := fmt.Sprintf("%skey[%X]: %s", strings.Repeat("\t", depth), branch, n.label)
		if n.hasValue && describe != nil {
			line += " - " + describe(n.value)
		}
		_, err = bw.WriteString(line + "\n")
		return err == nil
	})
	if err != nil {
		return fmt.Errorf("failed to write radix dump: %w", err)
	}
	return bw.Flush()
}
