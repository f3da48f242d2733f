package skl

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/velraen/gpk_browser/pack/gpk"
	"github.com/velraen/gpk_browser/utils"
)

const SKELETON_MAGIC = 0x6AB05CE1
const HEADER_SIZE = 0x20
const JOINT_SIZE = 0x48

const JOINT_PARENT_NONE = -1

type Joint struct {
	Id     int16
	Name   string
	Parent int32
	Flags  uint32

	WorldPosition mgl32.Vec3
	WorldRotation mgl32.Quat
	WorldScale    mgl32.Vec3
}

// JointRestPose is the bind-time world transform of one joint,
// used as fallback for bones an animation does not touch.
type JointRestPose struct {
	Parent        int32
	WorldPosition mgl32.Vec3
	WorldRotation mgl32.Quat
	WorldScale    mgl32.Vec3
}

type Skeleton struct {
	Joints []Joint
}

func u32(d []byte, off uint32) uint32 {
	return binary.LittleEndian.Uint32(d[off : off+4])
}

func f32(d []byte, off uint32) float32 {
	return math.Float32frombits(u32(d, off))
}

func vec3(d []byte, off uint32) mgl32.Vec3 {
	return mgl32.Vec3{f32(d, off), f32(d, off+4), f32(d, off+8)}
}

func NewFromData(data []byte) (*Skeleton, error) {
	if len(data) < HEADER_SIZE {
		return nil, errors.Errorf("Skeleton buffer too small: %d", len(data))
	}
	if u32(data, 0) != SKELETON_MAGIC {
		return nil, errors.Errorf("Invalid skeleton magic 0x%.8x", u32(data, 0))
	}

	jointsCount := u32(data, 4)
	jointsOffset := u32(data, 8)

	if int64(jointsOffset)+int64(jointsCount)*JOINT_SIZE > int64(len(data)) {
		return nil, errors.Errorf("Joint table out of buffer (count %d, offset 0x%x)", jointsCount, jointsOffset)
	}

	s := &Skeleton{Joints: make([]Joint, jointsCount)}

	for i := range s.Joints {
		raw := data[jointsOffset+uint32(i)*JOINT_SIZE:]

		j := &s.Joints[i]
		j.Id = int16(i)
		j.Parent = int32(u32(raw, 0))
		j.Flags = u32(raw, 4)
		j.WorldPosition = vec3(raw, 8)
		j.WorldRotation = mgl32.Quat{
			V: mgl32.Vec3{f32(raw, 0x14), f32(raw, 0x18), f32(raw, 0x1c)},
			W: f32(raw, 0x20),
		}
		j.WorldScale = vec3(raw, 0x24)
		j.Name = utils.BytesToString(raw[0x30:0x48])

		if j.Parent != JOINT_PARENT_NONE && (j.Parent < 0 || j.Parent >= int32(i)) {
			return nil, errors.Errorf("Joint %d has invalid parent %d", i, j.Parent)
		}
	}

	return s, nil
}

// RestPose flattens the joint table for the animation decoder.
func (s *Skeleton) RestPose() []JointRestPose {
	rest := make([]JointRestPose, len(s.Joints))
	for i := range s.Joints {
		j := &s.Joints[i]
		rest[i] = JointRestPose{
			Parent:        j.Parent,
			WorldPosition: j.WorldPosition,
			WorldRotation: j.WorldRotation,
			WorldScale:    j.WorldScale,
		}
	}
	return rest
}

func (s *Skeleton) Marshal(rsrc *gpk.EntryResource) (interface{}, error) {
	return s, nil
}

func init() {
	gpk.SetHandler(SKELETON_MAGIC, func(rsrc *gpk.EntryResource) (gpk.File, error) {
		return NewFromData(rsrc.Data)
	})
}
