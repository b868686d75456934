package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out ULID strings. IDs generated within the same
// millisecond stay lexicographically increasing.
type Generator struct {
	mu   sync.Mutex
	mono io.Reader
}

// NewGenerator seeds a monotonic entropy source from crypto/rand.
func NewGenerator() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewSeeded(seed)
}

// NewSeeded is NewGenerator with a fixed seed, for reproducible tests.
func NewSeeded(seed int64) *Generator {
	return &Generator{mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)}
}

// Next returns a ULID whose timestamp part is t.
func (g *Generator) Next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), g.mono)
	if err != nil {
		// Only reachable when the monotonic counter overflows inside one millisecond.
		panic(err)
	}
	return id.String()
}

// New is Next(time.Now()).
func (g *Generator) New() string {
	return g.Next(time.Now())
}
