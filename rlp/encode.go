package rlp

// Assemble re-serializes the token subtree rooted at index root into
// dst, returning the number of bytes written. The output is the
// canonical minimal encoding: a one-byte string below 0x80 is emitted
// verbatim, every other string gets a 0x80-offset length prefix, and a
// list's prefix is sized from the total encoded length of its children.
// Rebuilding a transaction's signing payload depends on this exactness.
func Assemble(src []byte, a *Arena, root int, dst []byte) (int, error) {
	if dst == nil {
		dst = []byte{}
	}
	return assemble(src, a, root, dst)
}

// AssembledSize returns the length Assemble would produce for the token
// subtree rooted at root, without writing anything.
func AssembledSize(src []byte, a *Arena, root int) (int, error) {
	return assemble(src, a, root, nil)
}

// assemble writes the encoding of token root to dst. A nil dst is a
// probe pass: bytes are counted but not written and no capacity applies.
func assemble(src []byte, a *Arena, root int, dst []byte) (int, error) {
	if root < 0 || root >= a.Len() {
		return 0, ErrBadIndex
	}
	t := a.tokens[root]
	switch t.kind {
	case String:
		payload, err := t.Bytes(src)
		if err != nil {
			return 0, err
		}
		if len(payload) == 1 && payload[0] < 0x80 {
			if err := writeByte(dst, 0, payload[0]); err != nil {
				return 0, err
			}
			return 1, nil
		}
		prefix, err := encodeLength(dst, len(payload), 0x80)
		if err != nil {
			return 0, err
		}
		for i, b := range payload {
			if err := writeByte(dst, prefix+i, b); err != nil {
				return 0, err
			}
		}
		return prefix + len(payload), nil

	case List:
		// Size the children first so the list prefix is known before
		// any payload byte is committed.
		total := 0
		for i := t.start; i < t.end; i++ {
			n, err := assemble(src, a, i, nil)
			if err != nil {
				return 0, err
			}
			total += n
		}
		pos, err := encodeLength(dst, total, 0xC0)
		if err != nil {
			return 0, err
		}
		for i := t.start; i < t.end; i++ {
			child := dst
			if dst != nil {
				child = dst[pos:]
			}
			n, err := assemble(src, a, i, child)
			if err != nil {
				return 0, err
			}
			pos += n
		}
		return pos, nil

	default:
		return 0, ErrUnresolvedList
	}
}

// encodeLength writes the length prefix for a payload of n bytes using
// the given base offset: lengths below 56 fold into a single byte,
// larger ones are emitted as a width marker followed by the minimal
// big-endian bytes of the length.
func encodeLength(dst []byte, n int, offset byte) (int, error) {
	if n < 0 {
		return 0, ErrInvalidLength
	}
	if n < 56 {
		if err := writeByte(dst, 0, byte(n)+offset); err != nil {
			return 0, err
		}
		return 1, nil
	}
	width := 0
	for v := n; v > 0; v >>= 8 {
		width++
	}
	if err := writeByte(dst, 0, byte(width)+offset+55); err != nil {
		return 0, err
	}
	for i := 0; i < width; i++ {
		b := byte(n >> (8 * (width - 1 - i)))
		if err := writeByte(dst, 1+i, b); err != nil {
			return 0, err
		}
	}
	return width + 1, nil
}

// writeByte stores c at dst[i]. A nil dst counts without storing.
func writeByte(dst []byte, i int, c byte) error {
	if dst == nil {
		return nil
	}
	if i >= len(dst) {
		return ErrBufferTooSmall
	}
	dst[i] = c
	return nil
}
