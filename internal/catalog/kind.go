package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Kind is the coarse asset category derived from a file extension.
type Kind int

const (
	Unsupported Kind = iota
	RigidModel
	SceneModel
	Video
	Audio
	Image
)

// Supported lists every kind the gallery displays, in filter-menu order.
var Supported = []Kind{RigidModel, SceneModel, Video, Audio, Image}

var kindLabels = map[Kind]string{
	Unsupported: "unsupported",
	RigidModel:  "fbx",
	SceneModel:  "glb",
	Video:       "video",
	Audio:       "audio",
	Image:       "image",
}

var extensionKinds = map[string]Kind{
	".fbx":  RigidModel,
	".glb":  SceneModel,
	".gltf": SceneModel,
	".mp4":  Video,
	".webm": Video,
	".ogg":  Video,
	".mp3":  Audio,
	".wav":  Audio,
	".jpg":  Image,
	".jpeg": Image,
	".png":  Image,
	".gif":  Image,
	".webp": Image,
}

// String returns the label used by search, kind sorting and the CLI.
func (k Kind) String() string {
	if s, ok := kindLabels[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Extensions returns the lower-case extensions that classify as k, sorted.
func (k Kind) Extensions() []string {
	var exts []string
	for ext, kind := range extensionKinds {
		if kind == k {
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts
}

// Classify maps a file name to its Kind by extension, case-insensitively.
func Classify(name string) Kind {
	return extensionKinds[strings.ToLower(filepath.Ext(name))]
}

// ParseKind parses a label as returned by Kind.String. "model" is accepted
// for RigidModel and "scene" or "gltf" for SceneModel.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fbx", "model", "rigid":
		return RigidModel, nil
	case "glb", "gltf", "scene":
		return SceneModel, nil
	case "video":
		return Video, nil
	case "audio":
		return Audio, nil
	case "image":
		return Image, nil
	}
	return Unsupported, fmt.Errorf("unknown asset kind %q", s)
}

// ParseKinds parses a comma-separated list of kind labels.
func ParseKinds(s string) ([]Kind, error) {
	var kinds []Kind
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		k, err := ParseKind(part)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
