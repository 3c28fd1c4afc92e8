// Package detection turns an image into a list of scored face boxes.
package detection

import (
	"context"
	"image"

	"github.com/menta2k/tile-curator/pkg/client"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/types"
)

// FaceDetector finds faces in an image. Boxes are normalized to [0,1].
type FaceDetector interface {
	DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error)
}

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// FacePrompt asks a vision model for every human face in the image
const FacePrompt = `You are a face detector.

Return JSON only:
{
  "faces": [
    {"box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0}, "confidence": 0.0}
  ],
  "description": "short neutral sentence (≤ 12 words)"
}

HARD RULES
- One entry per human face that is visible in the image, including partial and small faces.
- All coordinates are normalized to [0,1] (NOT pixels); x,y is the top-left corner.
- confidence is your certainty in [0,1] that the box contains a real human face.
- Statues, drawings and faces on screens count only with confidence below 0.5.
- If there are no faces, return {"faces": [], "description": "..."}.
- Do not guess identities.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

const (
	// modelMaxDim is the long side a tile is downscaled to before it is sent to a model
	modelMaxDim  = 1024
	modelQuality = 90
)

// Detector locates faces with a chat-style vision model
type Detector struct {
	client    client.VisionClient
	model     string
	prompt    string
	processor *processing.Processor
}

// NewDetector creates a new detector with a vision client
func NewDetector(client client.VisionClient, model string) *Detector {
	return &Detector{
		client:    client,
		model:     model,
		prompt:    FacePrompt,
		processor: processing.NewProcessor(),
	}
}

// WithPrompt replaces the face prompt
func (d *Detector) WithPrompt(prompt string) *Detector {
	d.prompt = prompt
	return d
}

// DetectFaces sends the image to the model and returns the cleaned-up faces
func (d *Detector) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", modelMaxDim, modelQuality)
	if err != nil {
		return nil, err
	}
	report, err := d.client.LocateFaces(ctx, d.model, d.prompt, imgB64)
	if err != nil {
		return nil, err
	}
	return normalizeFaces(report.Faces), nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, img image.Image) (string, error) {
	imgB64, err := d.processor.PrepareImageForModel(img, "jpg", modelMaxDim, modelQuality)
	if err != nil {
		return "", err
	}
	return d.client.SimpleQuery(ctx, d.model, SimpleTestPrompt, imgB64)
}

// normalizeFaces clamps boxes and confidences into range and drops empty boxes
func normalizeFaces(faces []types.Face) []types.Face {
	out := make([]types.Face, 0, len(faces))
	for _, f := range faces {
		f.Box = NormalizeBox(f.Box, 0, 0)
		f.Confidence = clamp(f.Confidence, 0, 1)
		if f.Box.W <= 0 || f.Box.H <= 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeBox ensures box coordinates are within [0,1]. Boxes that look like
// pixel coordinates are divided by the image size when it is known.
func NormalizeBox(b types.Box, imgW, imgH int) types.Box {
	if imgW > 0 && imgH > 0 && (b.X > 1 || b.Y > 1 || b.W > 1 || b.H > 1) {
		b = types.Box{
			X: b.X / float64(imgW),
			Y: b.Y / float64(imgH),
			W: b.W / float64(imgW),
			H: b.H / float64(imgH),
		}
	}

	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}
