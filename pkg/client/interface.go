package client

import (
	"context"

	"github.com/menta2k/tile-curator/pkg/types"
)

// VisionClient is a chat-style vision model backend that can be asked to locate faces
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceReport, error)
}
