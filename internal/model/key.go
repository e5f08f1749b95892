package model

import (
	"fmt"
	"strings"
)

// KeyEncoding selects how a FourTuple is turned into a hexadecimal index key.
type KeyEncoding string

const (
	// KeyFixed pads every field: 8 symbols per address, 4 per port. Distinct
	// tuples always produce distinct keys.
	KeyFixed KeyEncoding = "fixed"
	// KeyVariable writes every field without padding, which lets different
	// tuples collide on the same key, e.g. 0.0.0.1 -> 0.0.0.35 and
	// 0.0.0.18 -> 0.0.0.3 both start with "123". Addresses are still written
	// in network order (192.168.0.1 is C0A80001), so keys differ from tools
	// that print the raw in-memory address of a little-endian host (100A8C0).
	KeyVariable KeyEncoding = "variable"
)

// ParseKeyEncoding validates a configured encoding name. An empty name selects KeyFixed.
func ParseKeyEncoding(s string) (KeyEncoding, error) {
	switch KeyEncoding(strings.ToLower(strings.TrimSpace(s))) {
	case "", KeyFixed:
		return KeyFixed, nil
	case KeyVariable:
		return KeyVariable, nil
	}
	return "", fmt.Errorf("unknown key encoding '%s' (want %q or %q)", s, KeyFixed, KeyVariable)
}

// Key encodes the tuple as uppercase hexadecimal in the order source address,
// destination address, source port, destination port.
func (ft FourTuple) Key(enc KeyEncoding) string {
	if enc == KeyVariable {
		return fmt.Sprintf("%X%X%X%X", ft.SrcIP, ft.DstIP, ft.SrcPort, ft.DstPort)
	}
	return fmt.Sprintf("%08X%08X%04X%04X", ft.SrcIP, ft.DstIP, ft.SrcPort, ft.DstPort)
}
