// Package insightface detects faces through an InsightFace embedding server.
package insightface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/tile-curator/pkg/detection"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/types"
)

const (
	defaultURL     = "http://localhost:8000"
	defaultTimeout = 300 * time.Second
	faceEndpoint   = "/embed/face"
)

// Client calls the face endpoint of an InsightFace server
type Client struct {
	baseURL   string
	client    *http.Client
	processor *processing.Processor
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultURL
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		client:    &http.Client{},
		processor: processing.NewProcessor(),
	}
}

// faceDetection is a single face in the server response
type faceDetection struct {
	FaceIndex int       `json:"face_index"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2] in pixels
	DetScore  float64   `json:"det_score"`
}

type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []faceDetection `json:"faces"`
	Model      string          `json:"model"`
}

var _ detection.FaceDetector = (*Client)(nil)

// DetectFaces uploads the image as JPEG and converts the returned pixel boxes
// to normalized boxes scored by the detector's det_score.
func (c *Client) DetectFaces(ctx context.Context, img image.Image) ([]types.Face, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	data, err := c.processor.Encode(img, "jpg", 0, 95)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	body, err := c.postMultipartImage(ctx, faceEndpoint, data)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	faces := make([]types.Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.BBox) != 4 {
			return nil, fmt.Errorf("face %d: bbox has %d values, want 4", f.FaceIndex, len(f.BBox))
		}
		box := detection.NormalizeBox(types.Box{
			X: f.BBox[0] / float64(w),
			Y: f.BBox[1] / float64(h),
			W: (f.BBox[2] - f.BBox[0]) / float64(w),
			H: (f.BBox[3] - f.BBox[1]) / float64(h),
		}, 0, 0)
		faces = append(faces, types.Face{Box: box, Confidence: f.DetScore})
	}
	return faces, nil
}

// postMultipartImage posts the image as the "file" form field and returns the response body
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "tile.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}
