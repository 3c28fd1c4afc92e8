package types

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Face is a single face detection: where it is and how sure the detector was
type Face struct {
	Box        Box     `json:"box"`
	Confidence float64 `json:"confidence"`
}

// FaceReport is the structured answer a vision model returns for a tile
type FaceReport struct {
	Faces       []Face `json:"faces"`
	Description string `json:"description"`
}

// MaxConfidence returns the highest confidence among faces, 0 when there are none
func MaxConfidence(faces []Face) float64 {
	best := 0.0
	for _, f := range faces {
		if f.Confidence > best {
			best = f.Confidence
		}
	}
	return best
}

// EncodeOptions controls how a tile is written to disk
type EncodeOptions struct {
	Format   string
	Quality  int
	Lossless bool
}
