package lock

import (
	"errors"

	"github.com/nervosnetwork/polyjuice-old/rlp"
)

// Error is a specific rejection reason. Every failing validation step
// aborts the call with one of these; the calling environment treats any
// of them as a flat rejection, distinguished only by the verdict code.
type Error struct {
	code int
	msg  string
}

func (e *Error) Error() string { return e.msg }

// Code returns the numeric verdict code of the rejection.
func (e *Error) Code() int { return e.code }

// The codes keep the magnitudes of the deployed verifier so callers
// driving the lock by exit status see the same case distinctions.
var (
	ErrBufferNotEnough    = &Error{2, "lock: buffer not enough"}
	ErrLoadWitness        = &Error{3, "lock: cannot load witness"}
	ErrLoadScript         = &Error{7, "lock: cannot load script"}
	ErrInvalidScript      = &Error{8, "lock: invalid script layout"}
	ErrLoadData           = &Error{9, "lock: cannot load cell data"}
	ErrTooManyMainCells   = &Error{10, "lock: more than one main cell"}
	ErrLoadCapacity       = &Error{11, "lock: cannot load capacity"}
	ErrSignatureParse     = &Error{15, "lock: cannot parse signature"}
	ErrRecoverPubkey      = &Error{16, "lock: cannot recover public key"}
	ErrSerializePubkey    = &Error{17, "lock: cannot serialize public key"}
	ErrPubkeyHashMismatch = &Error{18, "lock: recovered address mismatch"}
	ErrArguments          = &Error{19, "lock: invalid arguments"}
	ErrDataLength         = &Error{20, "lock: invalid witness length"}
	ErrLoadTxHash         = &Error{21, "lock: cannot load transaction hash"}
	ErrInvalidNonce       = &Error{22, "lock: nonce mismatch"}
	ErrRLP                = &Error{23, "lock: malformed transaction structure"}
	ErrInvalidCapacity    = &Error{24, "lock: conservation equation violated"}
	ErrChainIDNotFit      = &Error{25, "lock: chain id exceeds one byte"}
	ErrInvalidV           = &Error{26, "lock: invalid recovery id"}
	ErrOverflow           = &Error{27, "lock: fee multiplication overflow"}
)

// VerdictCode maps a validation result to its numeric verdict: 0 means
// authorized, any non-zero value is the specific rejection reason.
// Codec failures keep the code slots of the original verifier.
func VerdictCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	switch {
	case errors.Is(err, rlp.ErrTooManyTokens):
		return 2
	case errors.Is(err, rlp.ErrInvalidLength):
		return 3
	case errors.Is(err, rlp.ErrExpectedString):
		return 4
	case errors.Is(err, rlp.ErrValueTooLarge):
		return 5
	case errors.Is(err, rlp.ErrInvalidValue):
		return 6
	}
	// Truncation, buffer and any unclassified failures share the
	// catch-all slot, as in the deployed verifier.
	return 1
}
