package anm

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

type ChannelKind uint8

const (
	KIND_IDENTITY ChannelKind = 0
	KIND_CONSTANT ChannelKind = 1
	KIND_ANIMATED ChannelKind = 2
)

// sanity cap on the classification bitfield, rejects corrupt
// section offsets before any allocation happens
const MAX_BITFIELD_SIZE = 10000

type channelGroup struct {
	Kinds         []ChannelKind
	ConstantCount int
	AnimatedCount int
}

type classification struct {
	Rotation channelGroup
	Position channelGroup
	Scale    channelGroup
}

// parseClassification expands the 2-bit-per-channel bitfield.
// Within every 32-bit little-endian word the 16 codes are packed
// most-significant pair first: code i sits at bit 30-2*i. Getting
// this ordering wrong misaligns every classification silently, so
// it stays in this one place.
func parseClassification(bitfield []byte, boneCount uint32) (*classification, error) {
	if len(bitfield) > MAX_BITFIELD_SIZE {
		return nil, errors.Wrapf(ErrTruncated, "bitfield size %d over sanity cap", len(bitfield))
	}

	// every group starts word-aligned
	wordsPerGroup := (boneCount + 15) / 16
	if int64(wordsPerGroup)*3*4 > int64(len(bitfield)) {
		return nil, errors.Wrapf(ErrTruncated, "bitfield size %d < %d words * 3 groups",
			len(bitfield), wordsPerGroup)
	}

	c := &classification{}
	groups := [3]*channelGroup{&c.Rotation, &c.Position, &c.Scale}

	for iGroup, group := range groups {
		group.Kinds = make([]ChannelKind, boneCount)
		groupBase := uint32(iGroup) * wordsPerGroup * 4

		for iBone := uint32(0); iBone < boneCount; iBone++ {
			word := binary.LittleEndian.Uint32(bitfield[groupBase+(iBone/16)*4:])
			code := (word >> (30 - 2*(iBone%16))) & 3

			switch ChannelKind(code) {
			case KIND_IDENTITY:
			case KIND_CONSTANT:
				group.ConstantCount++
			case KIND_ANIMATED:
				group.AnimatedCount++
			default:
				return nil, errors.Wrapf(ErrInconsistent, "unknown channel code %d (group %d bone %d)",
					code, iGroup, iBone)
			}
			group.Kinds[iBone] = ChannelKind(code)
		}
	}

	return c, nil
}
