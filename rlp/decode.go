package rlp

// Parse decodes src into a and returns the number of tokens produced.
//
// Decoding runs in two phases. The first pass splits the input into
// top-level items: strings become finished tokens immediately, lists are
// recorded as placeholders carrying only their payload span. The second
// phase repeatedly scans the arena for placeholders and decodes each
// one's payload as a new single-level pass, converting the placeholder
// into a list token over the freshly allocated children. The loop
// reaches a fixed point once no placeholder remains, so nesting depth is
// bounded by arena capacity rather than recursion.
func Parse(src []byte, a *Arena) (int, error) {
	a.Reset()
	p := &parser{src: src, arena: a}
	if err := p.parseLevel(0, len(src)); err != nil {
		return 0, err
	}
	for pending := true; pending; {
		pending = false
		for i := 0; i < a.Len(); i++ {
			t := a.tokens[i]
			if t.kind != pendingList {
				continue
			}
			pending = true
			first := a.Len()
			if err := p.parseLevel(t.start, t.end); err != nil {
				return 0, err
			}
			a.tokens[i] = ListToken(first, a.Len())
		}
	}
	return a.Len(), nil
}

type parser struct {
	src   []byte
	arena *Arena
}

// parseLevel decodes the items of src[start:end] without descending into
// lists.
func (p *parser) parseLevel(start, end int) error {
	for start < end {
		t, next, err := p.parseItem(start)
		if err != nil {
			return err
		}
		i, err := p.arena.alloc()
		if err != nil {
			return err
		}
		p.arena.tokens[i] = t
		start = next
	}
	return nil
}

// parseItem decodes the single item starting at pos and returns it along
// with the position of the next item. Lists come back as placeholders.
func (p *parser) parseItem(pos int) (Token, int, error) {
	if pos >= len(p.src) {
		return Token{}, 0, ErrTruncated
	}
	lead := p.src[pos]
	pos++
	switch {
	case lead < 0x80:
		// Single byte below 0x80 is its own encoding.
		return StringToken(pos-1, pos), pos, nil

	case lead < 0xB8:
		n := int(lead - 0x80)
		if pos+n > len(p.src) {
			return Token{}, 0, ErrTruncated
		}
		return StringToken(pos, pos+n), pos + n, nil

	case lead < 0xC0:
		n, next, err := p.beLength(pos, int(lead-0xB7))
		if err != nil {
			return Token{}, 0, err
		}
		return StringToken(next, next+n), next + n, nil

	case lead < 0xF8:
		n := int(lead - 0xC0)
		if pos+n > len(p.src) {
			return Token{}, 0, ErrTruncated
		}
		return Token{kind: pendingList, start: pos, end: pos + n}, pos + n, nil

	default:
		n, next, err := p.beLength(pos, int(lead-0xF7))
		if err != nil {
			return Token{}, 0, err
		}
		return Token{kind: pendingList, start: next, end: next + n}, next + n, nil
	}
}

// beLength reads a big-endian payload length of the given byte width at
// pos and verifies the payload fits in the remaining input.
func (p *parser) beLength(pos, width int) (n, next int, err error) {
	if pos+width > len(p.src) {
		return 0, 0, ErrTruncated
	}
	var l uint64
	for i := 0; i < width; i++ {
		l = l<<8 | uint64(p.src[pos+i])
	}
	next = pos + width
	if l > uint64(len(p.src)-next) {
		return 0, 0, ErrTruncated
	}
	return int(l), next, nil
}
