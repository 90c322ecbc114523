package command

import (
	"encoding/binary"
	"errors"
	"fmt"

	"botd/internal/protocol"
)

const groupSeparator = "*"

// memReply hex encodes raw memory for legacy socket clients.
func (h *Handler) memReply(buf []byte) []byte {
	if h.hexReplies() {
		return protocol.Hexify(buf, false)
	}
	return buf
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func (h *Handler) peekAt(base uint64, params []string) ([]byte, error) {
	if err := arity(params, 2); err != nil {
		return nil, err
	}
	off, err := protocol.ParseUint(params[0])
	if err != nil {
		return nil, err
	}
	size, err := protocol.ParseUint(params[1])
	if err != nil {
		return nil, err
	}
	buf, err := h.mem.Peek(h.md.PID, base+off, size)
	if err != nil {
		return nil, err
	}
	return h.memReply(buf), nil
}

func (h *Handler) peekMultiAt(base uint64, params []string) ([]byte, error) {
	if len(params) < 2 || len(params)%2 != 0 {
		return nil, fmt.Errorf("%w: need offset/size pairs, got %d values", errArity, len(params))
	}
	n := len(params) / 2
	addrs := make([]uint64, n)
	sizes := make([]uint64, n)
	for i := 0; i < n; i++ {
		off, err := protocol.ParseUint(params[2*i])
		if err != nil {
			return nil, err
		}
		size, err := protocol.ParseUint(params[2*i+1])
		if err != nil {
			return nil, err
		}
		addrs[i], sizes[i] = base+off, size
	}
	buf, err := h.mem.PeekMulti(h.md.PID, addrs, sizes)
	if err != nil {
		return nil, err
	}
	return h.memReply(buf), nil
}

func (h *Handler) pokeAt(base uint64, params []string) ([]byte, error) {
	if err := arity(params, 2); err != nil {
		return nil, err
	}
	off, err := protocol.ParseUint(params[0])
	if err != nil {
		return nil, err
	}
	data, err := protocol.ParseBytes(params[1])
	if err != nil {
		return nil, err
	}
	return nil, h.mem.Poke(h.md.PID, base+off, data)
}

func (h *Handler) peek(p []string) ([]byte, error)         { return h.peekAt(h.md.HeapBase, p) }
func (h *Handler) peekAbsolute(p []string) ([]byte, error) { return h.peekAt(0, p) }
func (h *Handler) peekMain(p []string) ([]byte, error)     { return h.peekAt(h.md.MainBase, p) }

func (h *Handler) peekMulti(p []string) ([]byte, error) { return h.peekMultiAt(h.md.HeapBase, p) }
func (h *Handler) peekAbsoluteMulti(p []string) ([]byte, error) {
	return h.peekMultiAt(0, p)
}
func (h *Handler) peekMainMulti(p []string) ([]byte, error) { return h.peekMultiAt(h.md.MainBase, p) }

func (h *Handler) poke(p []string) ([]byte, error)         { return h.pokeAt(h.md.HeapBase, p) }
func (h *Handler) pokeAbsolute(p []string) ([]byte, error) { return h.pokeAt(0, p) }
func (h *Handler) pokeMain(p []string) ([]byte, error)     { return h.pokeAt(h.md.MainBase, p) }

// chain is a parsed pointer expression: main offset, intermediate jumps and
// the final offset added to the resolved pointer.
type chain struct {
	main  int64
	jumps []int64
	final int64
}

// parseChain reads "main [jumps...] final".
func parseChain(tokens []string) (chain, error) {
	if len(tokens) < 2 {
		return chain{}, fmt.Errorf("%w: pointer needs main and final offsets", errArity)
	}
	vals := make([]int64, len(tokens))
	for i, t := range tokens {
		v, err := protocol.ParseInt(t)
		if err != nil {
			return chain{}, err
		}
		vals[i] = v
	}
	return chain{main: vals[0], jumps: vals[1 : len(vals)-1], final: vals[len(vals)-1]}, nil
}

func (h *Handler) follow(c chain) uint64 {
	return h.mem.FollowPointer(h.md.PID, h.md.MainBase, c.main, c.jumps)
}

func (h *Handler) pointerAll(p []string) ([]byte, error) {
	c, err := parseChain(p)
	if err != nil {
		return nil, err
	}
	val := h.follow(c)
	if val != 0 {
		val += uint64(c.final)
	} else {
		h.log.Debug().Msg("pointer resolved to null, final offset not applied")
	}
	return h.memReply(le64(val)), nil
}

func (h *Handler) pointerRelative(p []string) ([]byte, error) {
	c, err := parseChain(p)
	if err != nil {
		return nil, err
	}
	val := h.follow(c)
	if val != 0 {
		val += uint64(c.final)
		val -= h.md.HeapBase
	} else {
		h.log.Debug().Msg("pointer resolved to null, final offset not applied")
	}
	return h.memReply(le64(val)), nil
}

// sizedChain parses "size main [jumps...] final".
func sizedChain(tokens []string) (uint64, chain, error) {
	if len(tokens) < 3 {
		return 0, chain{}, fmt.Errorf("%w: sized pointer needs at least 3 values", errArity)
	}
	size, err := protocol.ParseInt(tokens[0])
	if err != nil {
		return 0, chain{}, err
	}
	if size < 0 {
		return 0, chain{}, errors.New("negative size")
	}
	c, err := parseChain(tokens[1:])
	return uint64(size), c, err
}

func (h *Handler) pointerPeek(p []string) ([]byte, error) {
	size, c, err := sizedChain(p)
	if err != nil {
		return nil, err
	}
	addr := h.follow(c) + uint64(c.final)
	buf, err := h.mem.Peek(h.md.PID, addr, size)
	if err != nil {
		return nil, err
	}
	return h.memReply(buf), nil
}

func (h *Handler) pointerPeekMulti(p []string) ([]byte, error) {
	if err := atLeast(p, 3); err != nil {
		return nil, err
	}
	var addrs, sizes []uint64
	for _, group := range protocol.SplitGroups(p, groupSeparator) {
		if len(group) < 4 {
			continue
		}
		size, c, err := sizedChain(group)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, h.follow(c)+uint64(c.final))
		sizes = append(sizes, size)
	}
	if len(addrs) == 0 {
		return nil, nil
	}
	buf, err := h.mem.PeekMulti(h.md.PID, addrs, sizes)
	if err != nil {
		return nil, err
	}
	return h.memReply(buf), nil
}

func (h *Handler) pointerPoke(p []string) ([]byte, error) {
	if err := atLeast(p, 3); err != nil {
		return nil, err
	}
	data, err := protocol.ParseBytes(p[0])
	if err != nil {
		return nil, err
	}
	c, err := parseChain(p[1:])
	if err != nil {
		return nil, err
	}
	return nil, h.mem.Poke(h.md.PID, h.follow(c)+uint64(c.final), data)
}
