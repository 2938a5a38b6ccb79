package format

import "fmt"

// FreeHeader is the decoded form of the metadata stored at the start of a
// free block. It is only meaningful while the block sits on a free list; once
// the block is handed out the bytes belong to the caller.
type FreeHeader struct {
	Order uint8
	// Next is the basic-block index of the next free block in the same list,
	// or -1 at the end of the list.
	Next int
}

// PutFreeHeader encodes h at off.
func PutFreeHeader(b []byte, off int, h FreeHeader) {
	b[off+FreeTagOffset] = FreeTag
	b[off+FreeOrderOffset] = h.Order
	link := uint32(NoLink)
	if h.Next >= 0 {
		link = uint32(h.Next) + 1
	}
	PutU32(b, off+FreeNextOffset, link)
}

// PutFreeNext rewrites only the next link of the header at off.
func PutFreeNext(b []byte, off int, next int) {
	link := uint32(NoLink)
	if next >= 0 {
		link = uint32(next) + 1
	}
	PutU32(b, off+FreeNextOffset, link)
}

// DecodeFreeHeader decodes the header at off, checking the tag byte.
func DecodeFreeHeader(b []byte, off int) (FreeHeader, error) {
	if off < 0 || off+FreeHeaderSize > len(b) {
		return FreeHeader{}, fmt.Errorf("free header at %d: %w", off, ErrTruncated)
	}
	if b[off+FreeTagOffset] != FreeTag {
		return FreeHeader{}, fmt.Errorf("free header at %d: tag 0x%02x: %w",
			off, b[off+FreeTagOffset], ErrNotFree)
	}
	link := ReadU32(b, off+FreeNextOffset)
	return FreeHeader{
		Order: b[off+FreeOrderOffset],
		Next:  int(link) - 1,
	}, nil
}

// ClearFreeHeader zeroes the header bytes at off so a handed-out block does
// not carry a stale tag.
func ClearFreeHeader(b []byte, off int) {
	clear(b[off : off+FreeHeaderSize])
}
