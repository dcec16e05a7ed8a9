package security

import (
	"encoding/binary"
	"fmt"
	"os"
)

// scrtyPairCount is the number of (challenge-key, expected-exe-checksum)
// pairs in a scrty table file (spec.md §6 "a 4000-byte scrty table (1000
// little-endian u32 pairs; pair 0 is reserved, pair i >= 1 is
// (challenge-key, expected-exe-checksum))").
const scrtyPairCount = 1000

const scrtyFileSize = scrtyPairCount * 8

// ScrtyTable is the loaded challenge-key / expected-exe-checksum table.
type ScrtyTable struct {
	keys   [scrtyPairCount]uint32
	checks [scrtyPairCount]uint32
}

// LoadScrtyTable reads the 8000-byte scrty file (1000 pairs of two
// little-endian u32s) at path.
func LoadScrtyTable(path string) (*ScrtyTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("security: reading scrty table %q: %w", path, err)
	}
	if len(raw) != scrtyFileSize {
		return nil, fmt.Errorf("security: scrty table %q is %d bytes, want %d", path, len(raw), scrtyFileSize)
	}

	var t ScrtyTable
	for i := 0; i < scrtyPairCount; i++ {
		off := i * 8
		t.keys[i] = binary.LittleEndian.Uint32(raw[off : off+4])
		t.checks[i] = binary.LittleEndian.Uint32(raw[off+4 : off+8])
	}
	return &t, nil
}

// Pair returns the (key, expectedExeChecksum) at table index i, for
// i in [1, 999] (index 0 is reserved and always returns ok=false).
func (t *ScrtyTable) Pair(i int) (key, expectedExe uint32, ok bool) {
	if i <= 0 || i >= scrtyPairCount {
		return 0, 0, false
	}
	return t.keys[i], t.checks[i], true
}

// Len returns the number of usable pairs (excludes the reserved entry).
func (t *ScrtyTable) Len() int { return scrtyPairCount - 1 }
