package verifier

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vocdoni/zk-ballotbox/log"
)

const (
	RefAccept = "accept"
	RefReject = "reject"
	// RefGroth16Prefix precedes a verifying key file name, relative to the
	// resolver directory.
	RefGroth16Prefix = "groth16:"
)

var ErrUnknownRef = errors.New("unknown verifier reference")

// Resolver turns the verifier references stored in election configurations
// into Verifier instances, caching loaded keys.
type Resolver struct {
	dir   string
	mu    sync.Mutex
	cache map[string]Verifier
}

// NewResolver returns a resolver loading verifying keys from dir.
func NewResolver(dir string) *Resolver {
	return &Resolver{dir: dir, cache: make(map[string]Verifier)}
}

// Register binds a custom reference to v, overriding any previous binding.
func (r *Resolver) Register(ref string, v Verifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[ref] = v
}

// Resolve returns the verifier for ref.
func (r *Resolver) Resolve(ref string) (Verifier, error) {
	switch ref {
	case RefAccept:
		return AcceptAll, nil
	case RefReject:
		return RejectAll, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[ref]; ok {
		return v, nil
	}
	name, ok := strings.CutPrefix(ref, RefGroth16Prefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRef, ref)
	}
	if name == "" || !filepath.IsLocal(name) {
		return nil, fmt.Errorf("%w: %q is not a local key file", ErrUnknownRef, ref)
	}
	v, err := LoadGroth16(filepath.Join(r.dir, name))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", ref, err)
	}
	log.Infow("loaded groth16 verifying key", "ref", ref, "publicInputs", v.NbPublicInputs())
	r.cache[ref] = v
	return v, nil
}
