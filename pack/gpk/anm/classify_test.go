package anm

import (
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
)

// 18 bones need two words per group, every group stays word-aligned
func buildBitfield(t *testing.T, boneCount uint32, codes map[int]map[uint32]ChannelKind) []byte {
	t.Helper()

	wordsPerGroup := (boneCount + 15) / 16
	words := make([]uint32, 3*wordsPerGroup)
	for iGroup, group := range codes {
		for iBone, kind := range group {
			iWord := uint32(iGroup)*wordsPerGroup + iBone/16
			words[iWord] |= uint32(kind) << (30 - 2*(iBone%16))
		}
	}

	bitfield := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(bitfield[i*4:], w)
	}
	return bitfield
}

func TestClassificationWordOrdering(t *testing.T) {
	codes := map[int]map[uint32]ChannelKind{
		0: {0: KIND_CONSTANT, 15: KIND_ANIMATED, 16: KIND_CONSTANT, 17: KIND_ANIMATED},
		1: {5: KIND_ANIMATED},
		2: {17: KIND_CONSTANT},
	}

	c, err := parseClassification(buildBitfield(t, 18, codes), 18)
	if err != nil {
		t.Fatalf("parseClassification: %v", err)
	}

	groups := [3]*channelGroup{&c.Rotation, &c.Position, &c.Scale}
	for iGroup, group := range groups {
		for iBone := uint32(0); iBone < 18; iBone++ {
			expected := codes[iGroup][iBone]
			if group.Kinds[iBone] != expected {
				t.Errorf("group %d bone %d: kind %d, expected %d",
					iGroup, iBone, group.Kinds[iBone], expected)
			}
		}
	}

	if c.Rotation.ConstantCount != 2 || c.Rotation.AnimatedCount != 2 {
		t.Errorf("rotation tallies: %+v", c.Rotation)
	}
	if c.Position.ConstantCount != 0 || c.Position.AnimatedCount != 1 {
		t.Errorf("position tallies: %+v", c.Position)
	}
	if c.Scale.ConstantCount != 1 || c.Scale.AnimatedCount != 0 {
		t.Errorf("scale tallies: %+v", c.Scale)
	}
}

func TestClassificationReservedCode(t *testing.T) {
	bitfield := buildBitfield(t, 4, map[int]map[uint32]ChannelKind{
		1: {2: ChannelKind(3)},
	})

	if _, err := parseClassification(bitfield, 4); errors.Cause(err) != ErrInconsistent {
		t.Fatalf("expected ErrInconsistent for code 3, got %v", err)
	}
}

func TestClassificationTooSmall(t *testing.T) {
	if _, err := parseClassification(make([]byte, 8), 18); errors.Cause(err) != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestClassificationSanityCap(t *testing.T) {
	if _, err := parseClassification(make([]byte, MAX_BITFIELD_SIZE+1), 2); errors.Cause(err) != ErrTruncated {
		t.Fatalf("expected ErrTruncated over sanity cap, got %v", err)
	}
}
