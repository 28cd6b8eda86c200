package arena

import (
	"context"
	"crypto/rand"
	"sync"
)

// Peer is the live transport handle for one connection. Implementations must
// be comparable (pointer receivers) so the registry can key on them.
type Peer interface {
	Send(ctx context.Context, frame ServerFrame) error
}

// Registry is the bidirectional mapping between ephemeral connection
// identities and live transport handles. It is process-local routing state
// only; it never owns game records.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]Peer
	identity map[Peer]string
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]Peer),
		identity: make(map[Peer]string),
	}
}

// Register mints a fresh ephemeral identity and binds it to the peer.
func (r *Registry) Register(p Peer) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := randToken(identityAlphabet, 8)
	for _, taken := r.byID[id]; taken; _, taken = r.byID[id] {
		id = randToken(identityAlphabet, 8)
	}
	r.byID[id] = p
	r.identity[p] = id
	return id
}

// Unregister removes both directions of the binding. No-op for unknown peers.
func (r *Registry) Unregister(p Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.identity[p]
	if !ok {
		return
	}
	delete(r.identity, p)
	delete(r.byID, id)
}

// Resolve returns the peer bound to an identity. A nil result means the peer
// is currently disconnected; outbound dispatch is then dropped.
func (r *Registry) Resolve(identity string) Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[identity]
}

// IdentityOf is the reverse lookup, used on disconnect.
func (r *Registry) IdentityOf(p Peer) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identity[p]
	return id, ok
}

// Len reports the number of live bindings.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

const (
	identityAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	gameIDAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewGameID returns a 6-char uppercase alphanumeric game identifier. Game and
// player identities use independent namespaces.
func NewGameID() string {
	return randToken(gameIDAlphabet, 6)
}

func randToken(alphabet string, n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("arena: crypto/rand unavailable: " + err.Error())
	}
	for i := range b {
		b[i] = alphabet[int(b[i])%len(alphabet)]
	}
	return string(b)
}
