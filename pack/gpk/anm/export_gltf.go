package anm

import (
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/velraen/gpk_browser/config"
	"github.com/velraen/gpk_browser/pack/gpk/skl"
)

// ExportGLTF converts decoded poses to a glTF document with one node
// per bone. World-space (V1) animations come out as flat root nodes,
// V0 local poses keep the skeleton's parenting.
func (a *Animation) ExportGLTF(skeleton *skl.Skeleton) (*gltf.Document, error) {
	if a.Frames == nil {
		return nil, fmt.Errorf("animation %q has no decoded frames", a.Name)
	}

	doc := gltf.NewDocument()
	exportScale := config.GetSettings().ExportScale

	boneNodes := make([]uint32, a.BoneCount)
	for iBone := uint32(0); iBone < a.BoneCount; iBone++ {
		name := fmt.Sprintf("bone_%d", iBone)
		if skeleton != nil && iBone < uint32(len(skeleton.Joints)) {
			name = skeleton.Joints[iBone].Name
		}

		k := &a.Frames[0][iBone]
		node := &gltf.Node{
			Name:        name,
			Translation: k.Position.Mul(exportScale),
			Rotation:    k.Rotation.V.Vec4(k.Rotation.W),
			Scale:       k.Scale,
		}

		boneNodes[iBone] = uint32(len(doc.Nodes))
		doc.Nodes = append(doc.Nodes, node)
	}

	isRoot := make([]bool, a.BoneCount)
	for i := range isRoot {
		isRoot[i] = true
	}
	if !a.IsWorldSpace && skeleton != nil {
		for iBone := uint32(0); iBone < a.BoneCount && iBone < uint32(len(skeleton.Joints)); iBone++ {
			parent := skeleton.Joints[iBone].Parent
			if parent != skl.JOINT_PARENT_NONE && uint32(parent) < a.BoneCount {
				p := doc.Nodes[boneNodes[parent]]
				p.Children = append(p.Children, boneNodes[iBone])
				isRoot[iBone] = false
			}
		}
	}
	for iBone, root := range isRoot {
		if root {
			doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, boneNodes[iBone])
		}
	}

	times := make([]float32, a.FrameCount)
	fps := a.Fps
	if fps == 0 {
		fps = 30
	}
	for i := range times {
		times[i] = float32(i) / fps
	}
	timesAccessor := modeler.WriteAccessor(doc, gltf.Target(0), times)

	anim := &gltf.Animation{Name: a.Name}

	addSampler := func(output uint32, node uint32, path gltf.TRSProperty) {
		anim.Samplers = append(anim.Samplers, &gltf.AnimationSampler{
			Input:         gltf.Index(timesAccessor),
			Output:        gltf.Index(output),
			Interpolation: gltf.InterpolationLinear,
		})
		anim.Channels = append(anim.Channels, &gltf.Channel{
			Sampler: gltf.Index(uint32(len(anim.Samplers) - 1)),
			Target:  gltf.ChannelTarget{Node: gltf.Index(node), Path: path},
		})
	}

	for iBone := uint32(0); iBone < a.BoneCount; iBone++ {
		rotations := make([][4]float32, a.FrameCount)
		translations := make([][3]float32, a.FrameCount)
		scales := make([][3]float32, a.FrameCount)

		for iFrame := range a.Frames {
			k := &a.Frames[iFrame][iBone]
			rotations[iFrame] = k.Rotation.V.Vec4(k.Rotation.W)
			translations[iFrame] = k.Position.Mul(exportScale)
			scales[iFrame] = k.Scale
		}

		addSampler(modeler.WriteAccessor(doc, gltf.Target(0), rotations), boneNodes[iBone], gltf.TRSRotation)
		addSampler(modeler.WriteAccessor(doc, gltf.Target(0), translations), boneNodes[iBone], gltf.TRSTranslation)
		addSampler(modeler.WriteAccessor(doc, gltf.Target(0), scales), boneNodes[iBone], gltf.TRSScale)
	}

	doc.Animations = append(doc.Animations, anim)

	return doc, nil
}
