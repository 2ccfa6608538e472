// Package verifier holds the proof verification oracles the ballot box
// consults before mutating an election: one for registrations and one for
// votes. They are opaque capabilities injected at construction; this package
// provides the interface, the public input layouts, test doubles and a gnark
// Groth16 implementation.
package verifier

import (
	"math/big"
	"sync"
)

// Verifier checks a proof against its public inputs. It returns false when
// the proof does not verify and an error only when the artifacts cannot be
// processed at all. Implementations must be safe for concurrent use and free
// of side effects.
type Verifier interface {
	Verify(proof []byte, publicInputs []*big.Int) (bool, error)
}

// Func adapts a function to the Verifier interface.
type Func func(proof []byte, publicInputs []*big.Int) (bool, error)

func (f Func) Verify(proof []byte, publicInputs []*big.Int) (bool, error) {
	return f(proof, publicInputs)
}

// AcceptAll accepts every proof. Only for development ledgers and tests.
var AcceptAll Verifier = Func(func([]byte, []*big.Int) (bool, error) { return true, nil })

// RejectAll rejects every proof.
var RejectAll Verifier = Func(func([]byte, []*big.Int) (bool, error) { return false, nil })

// Call is one invocation seen by a Recorder.
type Call struct {
	Proof        []byte
	PublicInputs []*big.Int
}

// Recorder is a test double that records its calls and answers with Accept.
type Recorder struct {
	mu     sync.Mutex
	Accept bool
	calls  []Call
}

func (r *Recorder) Verify(proof []byte, publicInputs []*big.Int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Proof: proof, PublicInputs: publicInputs})
	return r.Accept, nil
}

// Calls returns a copy of the recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// SetAccept changes the answer of the following calls.
func (r *Recorder) SetAccept(accept bool) {
	r.mu.Lock()
	r.Accept = accept
	r.mu.Unlock()
}

func words(values ...[]byte) []*big.Int {
	out := make([]*big.Int, len(values))
	for i, v := range values {
		out[i] = new(big.Int).SetBytes(v)
	}
	return out
}

// RegistrationInputs is the public input vector of a registration proof:
// the root before the insertion, the inserted leaf and the resulting root.
func RegistrationInputs(oldRoot, leaf, newRoot []byte) []*big.Int {
	return words(oldRoot, leaf, newRoot)
}

// VoteInputs is the public input vector of a vote proof: the current
// eligibility root, the nullifier and the election id.
func VoteInputs(root, nullifier, electionID []byte) []*big.Int {
	return words(root, nullifier, electionID)
}

// WinnerInputs is the public input vector of a winner proof, which only
// reveals the winning option.
func WinnerInputs(winner uint64) []*big.Int {
	return []*big.Int{new(big.Int).SetUint64(winner)}
}
