// Package rlp implements a span-based codec for the recursive
// length-prefix serialization used by Ethereum transactions.
//
// Unlike a streaming decoder, this codec never copies payload bytes:
// decoding fills a fixed-capacity arena of tokens whose spans point back
// into the caller's buffer, and encoding re-serializes a token subtree
// into canonical minimal form. Tokens can be rewritten between the two
// steps, which is how the replay-protected signing payload of a
// transaction is rebuilt from its signed serialization.
package rlp

import "errors"

var (
	// ErrTruncated is returned when a declared length runs past the end
	// of the input, or a token span runs past the source buffer.
	ErrTruncated = errors.New("rlp: input truncated")

	// ErrTooManyTokens is returned when decoding needs more tokens than
	// the arena can hold.
	ErrTooManyTokens = errors.New("rlp: token arena exhausted")

	// ErrInvalidLength is returned for a negative payload length.
	ErrInvalidLength = errors.New("rlp: invalid length")

	// ErrBufferTooSmall is returned when the destination buffer cannot
	// hold the assembled encoding.
	ErrBufferTooSmall = errors.New("rlp: output buffer too small")

	// ErrBadIndex is returned for a token index outside the arena.
	ErrBadIndex = errors.New("rlp: token index out of range")

	// ErrUnresolvedList is returned when assembling a list whose
	// children were never decoded.
	ErrUnresolvedList = errors.New("rlp: unresolved list token")

	// ErrExpectedString is returned when an integer is read from a
	// non-string token.
	ErrExpectedString = errors.New("rlp: token is not a string")

	// ErrValueTooLarge is returned when an integer field is wider than
	// 16 bytes.
	ErrValueTooLarge = errors.New("rlp: integer larger than 16 bytes")

	// ErrInvalidValue is returned for an empty or zero-led integer
	// field.
	ErrInvalidValue = errors.New("rlp: invalid integer value")
)

// Kind represents the kind of value contained in a token.
type Kind int8

const (
	// String is a byte string; the token spans its payload bytes.
	String Kind = iota
	// List is a resolved list; the token spans its child token indices.
	List
	// pendingList is a list whose payload span has been located but not
	// yet decoded into child tokens. It only exists while Parse runs.
	pendingList
)

// Token is a decoded item. String tokens hold a half-open byte span into
// the source buffer; resolved list tokens hold a half-open index span
// into the arena identifying their children in document order.
type Token struct {
	kind       Kind
	start, end int
}

// StringToken returns a string token spanning src[start:end].
func StringToken(start, end int) Token {
	return Token{kind: String, start: start, end: end}
}

// ListToken returns a list token whose children are the arena tokens in
// [start, end).
func ListToken(start, end int) Token {
	return Token{kind: List, start: start, end: end}
}

// Kind returns the token kind.
func (t Token) Kind() Kind { return t.kind }

// IsString reports whether the token is a byte string.
func (t Token) IsString() bool { return t.kind == String }

// IsList reports whether the token is a resolved list.
func (t Token) IsList() bool { return t.kind == List }

// StringLen returns the payload length of a string token.
func (t Token) StringLen() int { return t.end - t.start }

// ListLen returns the number of children of a list token.
func (t Token) ListLen() int { return t.end - t.start }

// Children returns the arena index span of a list token's children.
func (t Token) Children() (start, end int) { return t.start, t.end }

// Bytes returns the span of src covered by a string token.
func (t Token) Bytes(src []byte) ([]byte, error) {
	if t.kind != String {
		return nil, ErrExpectedString
	}
	if t.start > t.end || t.end > len(src) {
		return nil, ErrTruncated
	}
	return src[t.start:t.end], nil
}

// Arena is a bounded slab of tokens filled by Parse. It holds no
// reference to the source buffer and can be reused across calls via
// Reset. The zero capacity arena rejects all input.
type Arena struct {
	tokens []Token
	max    int
}

// NewArena creates an arena holding at most max tokens.
func NewArena(max int) *Arena {
	return &Arena{tokens: make([]Token, 0, max), max: max}
}

// Reset discards all tokens, keeping the allocation.
func (a *Arena) Reset() { a.tokens = a.tokens[:0] }

// Len returns the number of decoded tokens.
func (a *Arena) Len() int { return len(a.tokens) }

// Token returns the token at index i. It panics if i is out of range,
// like a slice access; callers index within spans produced by Parse.
func (a *Arena) Token(i int) Token { return a.tokens[i] }

// Set replaces the token at index i. It panics if i is out of range.
func (a *Arena) Set(i int, t Token) { a.tokens[i] = t }

func (a *Arena) alloc() (int, error) {
	if len(a.tokens) >= a.max {
		return 0, ErrTooManyTokens
	}
	a.tokens = append(a.tokens, Token{})
	return len(a.tokens) - 1, nil
}
