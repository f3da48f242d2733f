package anm

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/pack/gpk"
	"github.com/velraen/gpk_browser/pack/gpk/skl"
	"github.com/velraen/gpk_browser/status"
	"github.com/velraen/gpk_browser/utils"
)

const ANIMATION_MAGIC = 0x6AB06AB0

const HEADER_SIZE = 0x60

// All V1 section offsets and segment body offsets are relative
// to this position inside the blob.
const V1_BASE = 0x20

// Start of the V1 sub-header.
const V1_SUBHEADER = 0x60

const V0_SENTINEL = 0xFFFFFFFF

// One uncompressed V0 keyframe: quat wxyz + position + scale.
const V0_KEYFRAME_SIZE = 10 * 4

// Constant-table positions carry a 0.1 world-to-storage scale and
// are multiplied back on read. Animated channels bake the factor
// into their dequantization offset/scale instead. Do not "fix" the
// multiplier, the game data really is authored this way.
const POSITION_STORE_SCALE = 10.0

var (
	ErrBadMagic     = errors.New("header signature mismatch")
	ErrTruncated    = errors.New("read exceeds buffer bounds")
	ErrInconsistent = errors.New("derived invariants violated")
)

// Keyframe is the decoded pose of a single bone at a single frame.
type Keyframe struct {
	Rotation mgl32.Quat
	Position mgl32.Vec3
	Scale    mgl32.Vec3
}

// Pose holds one Keyframe per bone for a single frame.
type Pose []Keyframe

type Animation struct {
	Name       string
	Fps        float32
	FrameCount uint32
	BoneCount  uint32
	IsV0       bool

	// V1 animations are stored in world space and need no parent
	// chaining, V0 poses are joint-local.
	IsWorldSpace bool

	// nil when the header was readable but keyframe sections
	// failed structural checks.
	Frames []Pose
}

func (a *Animation) Duration() float32 {
	if a.Fps == 0 {
		return 0
	}
	return float32(a.FrameCount) / a.Fps
}

func u32(d []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(d[off : off+4])
}

func f32(d []byte, off uint32) float32 {
	return math.Float32frombits(u32(d, off))
}

type header struct {
	fps        float32
	frameCount uint32
	boneCount  uint32
	isV0       bool
	name       string
}

func parseHeader(blob []byte) (*header, error) {
	if len(blob) < HEADER_SIZE {
		return nil, errors.Wrapf(ErrTruncated, "blob size %d < header size", len(blob))
	}
	if u32(blob, 0) != ANIMATION_MAGIC {
		return nil, errors.Wrapf(ErrBadMagic, "got 0x%.8x", u32(blob, 0))
	}

	h := &header{
		fps:        f32(blob, 0x08),
		frameCount: u32(blob, 0x0C),
		isV0:       u32(blob, 0x48) == V0_SENTINEL,
	}

	boneField := u32(blob, 0x10)
	if h.isV0 {
		h.boneCount = boneField
	} else {
		h.boneCount = boneField & 0xFFFF
	}

	if nameOffset := u32(blob, 0x50); nameOffset != 0 && nameOffset < uint32(len(blob)) {
		h.name = utils.BytesToString(blob[nameOffset:])
	}

	return h, nil
}

// Decode parses an animation blob. restPose may be nil, untouched
// bones then fall back to identity transforms instead of the
// skeleton's bind pose.
//
// On a structural failure past the header the returned Animation
// still carries the metadata (name, fps, frame/bone counts) with
// Frames == nil, alongside the error.
func Decode(blob []byte, restPose []skl.JointRestPose) (*Animation, error) {
	h, err := parseHeader(blob)
	if err != nil {
		return nil, err
	}

	a := &Animation{
		Name:         h.name,
		Fps:          h.fps,
		FrameCount:   h.frameCount,
		BoneCount:    h.boneCount,
		IsV0:         h.isV0,
		IsWorldSpace: !h.isV0,
	}

	// reject absurd counts before allocating frame storage
	if uint64(h.frameCount)*uint64(h.boneCount) > 0x1000000 {
		return a, errors.Wrapf(ErrInconsistent, "implausible frame*bone count %d*%d", h.frameCount, h.boneCount)
	}

	if h.isV0 {
		err = decodeV0(a, blob)
	} else {
		err = decodeV1(a, blob, restPose)
	}
	if err != nil {
		a.Frames = nil
		return a, err
	}
	return a, nil
}

func decodeV0(a *Animation, blob []byte) error {
	need := int64(HEADER_SIZE) + int64(a.FrameCount)*int64(a.BoneCount)*V0_KEYFRAME_SIZE
	if need > int64(len(blob)) {
		return errors.Wrapf(ErrTruncated, "V0 frame data needs %d bytes, have %d", need, len(blob))
	}

	a.Frames = make([]Pose, a.FrameCount)
	off := uint32(HEADER_SIZE)
	for iFrame := range a.Frames {
		pose := make(Pose, a.BoneCount)
		for iBone := range pose {
			k := &pose[iBone]
			k.Rotation = mgl32.Quat{
				W: f32(blob, off),
				V: mgl32.Vec3{f32(blob, off+4), f32(blob, off+8), f32(blob, off+12)},
			}
			k.Position = mgl32.Vec3{f32(blob, off+16), f32(blob, off+20), f32(blob, off+24)}
			k.Scale = mgl32.Vec3{f32(blob, off+28), f32(blob, off+32), f32(blob, off+36)}
			off += V0_KEYFRAME_SIZE
		}
		a.Frames[iFrame] = pose
	}

	return nil
}

func (a *Animation) Marshal(rsrc *gpk.EntryResource) (interface{}, error) {
	type Result struct {
		Meta          *Animation
		Duration      float32
		Decoded       bool
		DecodedFrames int
	}
	fake := *a
	fake.Frames = nil
	return &Result{
		Meta:          &fake,
		Duration:      a.Duration(),
		Decoded:       a.Frames != nil,
		DecodedFrames: len(a.Frames),
	}, nil
}

// findSkeleton locates the skeleton stored next to the animation
// inside the same package.
func findSkeleton(rsrc *gpk.EntryResource) *skl.Skeleton {
	e := rsrc.Gpk.FindEntryByMagic(skl.SKELETON_MAGIC)
	if e == nil {
		return nil
	}
	inst, err := rsrc.Gpk.GetInstanceFromEntry(e.Id)
	if err != nil {
		status.Error("Skeleton %q of package %q unusable: %v", e.Name, rsrc.Gpk.Name(), err)
		return nil
	}
	s, _ := inst.(*skl.Skeleton)
	return s
}

func findRestPose(rsrc *gpk.EntryResource) []skl.JointRestPose {
	if s := findSkeleton(rsrc); s != nil {
		return s.RestPose()
	}
	return nil
}

func init() {
	gpk.SetHandler(ANIMATION_MAGIC, func(rsrc *gpk.EntryResource) (gpk.File, error) {
		a, err := Decode(rsrc.Data, findRestPose(rsrc))
		if err != nil {
			if a == nil {
				return nil, err
			}
			// metadata survived, report and serve what we have
			status.Error("Animation %q present but undecodable: %v", rsrc.Name(), err)
			return a, nil
		}
		status.Info("Decoded animation %q: %d frames, %d bones, %.1f fps",
			a.Name, a.FrameCount, a.BoneCount, a.Fps)
		return a, nil
	})
}
