package security

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func writeScrtyFile(t *testing.T) string {
	t.Helper()
	buf := make([]byte, scrtyFileSize)
	for i := 0; i < scrtyPairCount; i++ {
		off := i * 8
		binary.LittleEndian.PutUint32(buf[off:off+4], uint32(i*2))
		binary.LittleEndian.PutUint32(buf[off+4:off+8], uint32(i*2+1))
	}
	path := filepath.Join(t.TempDir(), "scrty")
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadScrtyTable_ParsesPairsAndRejectsWrongSize(t *testing.T) {
	path := writeScrtyFile(t)
	table, err := LoadScrtyTable(path)
	if err != nil {
		t.Fatalf("LoadScrtyTable: %v", err)
	}

	key, expectedExe, ok := table.Pair(1)
	if !ok || key != 2 || expectedExe != 3 {
		t.Fatalf("Pair(1) = %d, %d, %v, want 2, 3, true", key, expectedExe, ok)
	}
	if _, _, ok := table.Pair(0); ok {
		t.Fatalf("Pair(0) should be reserved/unusable")
	}
	if table.Len() != scrtyPairCount-1 {
		t.Fatalf("Len() = %d, want %d", table.Len(), scrtyPairCount-1)
	}
}

func TestLoadScrtyTable_RejectsWrongFileSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := LoadScrtyTable(path); err == nil {
		t.Fatalf("LoadScrtyTable should reject a short file")
	}
}
