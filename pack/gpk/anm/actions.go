package anm

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"gopkg.in/yaml.v3"

	"github.com/velraen/gpk_browser/pack/gpk"
	"github.com/velraen/gpk_browser/webutils"
)

func (a *Animation) HttpAction(rsrc *gpk.EntryResource, w http.ResponseWriter, r *http.Request, action string) {
	switch action {
	case "gltf":
		doc, err := a.ExportGLTF(findSkeleton(rsrc))
		if err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to export gltf"))
			return
		}

		var buffer bytes.Buffer
		enc := gltf.NewEncoder(&buffer)
		enc.AsBinary = true
		if err := enc.Encode(doc); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to encode gltf"))
			return
		}

		webutils.WriteFile(w, &buffer, fmt.Sprintf("%s.glb", rsrc.Name()))
	case "asyaml":
		var buffer bytes.Buffer
		enc := yaml.NewEncoder(&buffer)
		enc.SetIndent(2)

		if err := enc.Encode(a); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to marshal yaml"))
			return
		}
		if err := enc.Close(); err != nil {
			webutils.WriteError(w, errors.Wrapf(err, "Failed to close yaml encoder"))
			return
		}

		webutils.WriteFile(w, &buffer, fmt.Sprintf("%s.yaml", rsrc.Name()))
	default:
		webutils.WriteError(w, errors.Errorf("Unknown action %q", action))
	}
}
