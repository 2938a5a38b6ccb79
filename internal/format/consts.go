// Package format houses the low-level layout of the metadata buddykit writes
// into arena memory. The goal is to keep encoding focused and allocation-free
// and independent from the public API so the allocator can orchestrate it.
package format

var (
	// FreeTag marks the first byte of a block that currently sits on a free list.
	// Layout:
	//   0x00  0xB5
	FreeTag = byte(0xB5)
)

const (
	// FreeHeaderSize is the number of bytes a free block header occupies at
	// the start of a free block. The basic block size must be strictly larger.
	//
	// Layout (little-endian):
	//
	//	Offset  Size  Description
	//	0x00    1     FreeTag
	//	0x01    1     Order of the block relative to the base order
	//	0x02    4     Next link: basic-block index of the next free block + 1,
	//	              0 terminates the list
	FreeHeaderSize = 6

	// FreeTagOffset is the offset of the tag byte inside a free header.
	FreeTagOffset = 0x00

	// FreeOrderOffset is the offset of the order byte inside a free header.
	FreeOrderOffset = 0x01

	// FreeNextOffset is the offset of the next link inside a free header.
	FreeNextOffset = 0x02

	// NoLink is the encoded value of an empty next link.
	NoLink = 0
)
