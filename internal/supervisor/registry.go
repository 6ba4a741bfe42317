package supervisor

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/arloliu/fanin/internal/hash"
	"github.com/arloliu/fanin/internal/reader"
)

// readerHandle is the supervisor's view of one spawned reader. err is written
// by the reader goroutine before the handle is sent on the results channel.
type readerHandle struct {
	token  uint64
	reader *reader.Reader
	err    error
}

// registry maps reader tokens to live handles.
type registry struct {
	seed       uint64
	generation atomic.Uint64
	entries    *xsync.Map[uint64, *readerHandle]
}

func newRegistry(seed uint64) *registry {
	return &registry{
		seed:    seed,
		entries: xsync.NewMap[uint64, *readerHandle](),
	}
}

// add registers h under a fresh token and returns it.
func (r *registry) add(h *readerHandle) uint64 {
	for {
		token := hash.ReaderToken(r.seed, h.reader.Partition(), r.generation.Add(1))
		if _, loaded := r.entries.LoadOrStore(token, h); !loaded {
			h.token = token
			return token
		}
	}
}

// remove deletes the entry for token. It reports false if the token was
// already removed.
func (r *registry) remove(token uint64) bool {
	_, ok := r.entries.LoadAndDelete(token)
	return ok
}

func (r *registry) size() int {
	return r.entries.Size()
}

func (r *registry) rangeHandles(fn func(h *readerHandle) bool) {
	r.entries.Range(func(_ uint64, h *readerHandle) bool {
		return fn(h)
	})
}
