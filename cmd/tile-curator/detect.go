package main

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	tilecurator "github.com/menta2k/tile-curator"
	"github.com/menta2k/tile-curator/pkg/detection"
	"github.com/menta2k/tile-curator/pkg/filter"
	"github.com/menta2k/tile-curator/pkg/processing"
	"github.com/menta2k/tile-curator/pkg/types"
)

var detectCmd = &cobra.Command{
	Use:   "detect <image>",
	Short: "Run face detection on a single image",
	Long: `Run the configured face detector on one image and print the faces as JSON,
together with the decision the background filter would take.

Examples:
  tile-curator detect tiles/scene_3.jpg --overlay scene_3_faces.png
  tile-curator detect tiles/scene_3.jpg --backend ollama --model qwen2.5vl:7b --describe`,
	Args: cobra.ExactArgs(1),
	RunE: runDetect,
}

func init() {
	addDetectorFlags(detectCmd)
	detectCmd.Flags().String("overlay", "", "Write an image with the face boxes drawn to this path")
	detectCmd.Flags().Bool("describe", false, "Ask a vision model to describe the image first (ollama and llamacpp only)")
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	curator, err := newCurator()
	if err != nil {
		return err
	}
	detector, err := curator.Detector()
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"backend": cfg.Detector.Backend,
		"url":     tilecurator.DetectorURL(cfg.Detector),
	}).Debug("face detector ready")

	processor := processing.NewProcessor()
	img, err := processor.LoadImage(args[0])
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "describe") {
		d, ok := detector.(*detection.Detector)
		if !ok {
			return fmt.Errorf("--describe needs a vision model backend, not %s", cfg.Detector.Backend)
		}
		desc, err := d.TestVision(cmd.Context(), img)
		if err != nil {
			return fmt.Errorf("vision test failed: %w", err)
		}
		fmt.Printf("description: %s\n", desc)
	}

	faces, err := detector.DetectFaces(cmd.Context(), img)
	if err != nil {
		return err
	}
	best := types.MaxConfidence(faces)
	js, _ := json.MarshalIndent(types.FaceReport{Faces: faces}, "", "  ")
	fmt.Println(string(js))

	verdict := "keep"
	if best < filter.FaceConfidenceThreshold {
		verdict = "skip"
	}
	fmt.Printf("best confidence %.2f (threshold %.2f): %s\n", best, filter.FaceConfidenceThreshold, verdict)

	if path := mustGetString(cmd, "overlay"); path != "" {
		overlay := processor.CreateFaceOverlay(img, faces, filter.FaceConfidenceThreshold)
		if err := processor.SaveImage(overlay, path, types.EncodeOptions{Format: processing.ResolveExtension(processing.FormatSource, path), Quality: 90}); err != nil {
			return fmt.Errorf("overlay save failed: %w", err)
		}
		logger.WithField("path", path).Info("wrote overlay")
	}
	return nil
}
