package id

import (
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv4_New(t *testing.T) {
	g := UUIDv4{}
	m := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		id := g.New()
		parsed, err := uuid.Parse(id)
		if err != nil {
			t.Fatalf("invalid id %q: %v", id, err)
		}
		if parsed.Version() != 4 {
			t.Fatalf("version=%d", parsed.Version())
		}
		if _, ok := m[id]; ok {
			t.Fatalf("duplicate id: %s", id)
		}
		m[id] = struct{}{}
	}
}
