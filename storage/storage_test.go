package storage

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"valid", "courses/abc/1712_deadbeef.pdf", true},
		{"valid without extension", "courses/abc/1712_deadbeef", true},
		{"missing prefix", "receipts/abc/file.pdf", false},
		{"bare file", "file.pdf", false},
		{"traversal in middle", "courses/../secrets/file.pdf", false},
		{"traversal at end", "courses/abc/..", false},
		{"empty", "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := CheckKey(tc.key)
			if tc.ok && err != nil {
				t.Fatalf("CheckKey(%q) = %v, want nil", tc.key, err)
			}
			if !tc.ok && !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("CheckKey(%q) = %v, want ErrInvalidKey", tc.key, err)
			}
		})
	}
}

func TestNewKey(t *testing.T) {
	key := NewKey("course-1", "Syllabus Final.PDF")

	if err := CheckKey(key); err != nil {
		t.Fatalf("NewKey produced an invalid key %q: %v", key, err)
	}
	if !strings.HasPrefix(key, "courses/course-1/") {
		t.Fatalf("key %q not scoped to the course", key)
	}
	if !strings.HasSuffix(key, ".pdf") {
		t.Fatalf("key %q did not keep the lowercased extension", key)
	}

	if other := NewKey("course-1", "Syllabus Final.PDF"); other == key {
		t.Fatalf("two generated keys collided: %q", key)
	}
}
