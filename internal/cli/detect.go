package cli

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	overlayeditor "github.com/menta2k/overlay-editor"
	"github.com/menta2k/overlay-editor/pkg/detection"
	"github.com/menta2k/overlay-editor/pkg/placement"
	"github.com/menta2k/overlay-editor/pkg/processing"
	"github.com/menta2k/overlay-editor/pkg/types"
)

// DetectReport is the JSON printed by the detect command
type DetectReport struct {
	Source     string               `json:"source"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Detections []types.Detection    `json:"detections"`
	Placement  *placement.Placement `json:"placement,omitempty"`
	Probe      string               `json:"probe,omitempty"`
}

func newDetectCmd(opts *rootOptions) *cobra.Command {
	var (
		backend string
		probe   bool
	)

	cmd := &cobra.Command{
		Use:   "detect <image-path-or-url>",
		Short: "Print the faces found in a photo as JSON",
		Long: `Runs the configured face detector and prints every detection together
with the overlay placement the editor would start from.

With --probe a vision model backend is first asked to describe the image,
which shows whether the model receives the picture at all.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Detector.Backend = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Detector.Timeout)
			defer cancel()

			processor := processing.NewProcessor()
			det, err := detection.New(ctx, cfg.DetectionConfig(), processor)
			if err != nil {
				return fmt.Errorf("failed to create detector: %w", err)
			}

			overlay, err := processor.LoadOverlay(cfg.Output.OverlayPath)
			if err != nil {
				return err
			}
			oe, err := overlayeditor.NewWithConfig(det, overlay, cfg.Placement)
			if err != nil {
				return err
			}

			img, err := oe.LoadImage(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to load image: %w", err)
			}

			report := DetectReport{
				Source: args[0],
				Width:  img.Bounds().Dx(),
				Height: img.Bounds().Dy(),
			}

			if probe {
				vd, ok := det.(*detection.VisionDetector)
				if !ok {
					return fmt.Errorf("--probe needs the ollama or llamacpp backend")
				}
				answer, err := vd.TestVision(ctx, img)
				if err != nil {
					return fmt.Errorf("vision probe failed: %w", err)
				}
				report.Probe = answer
			}

			dets, err := oe.DetectFaces(ctx, img)
			if err != nil {
				return fmt.Errorf("face detection failed: %w", err)
			}
			report.Detections = dets
			if report.Detections == nil {
				report.Detections = []types.Detection{}
			}

			primary, err := detection.Primary(dets)
			switch {
			case err == nil:
				b := overlay.Bounds()
				pl := placement.AutoPlace(primary.Box, placement.Overlay{Width: b.Dx(), Height: b.Dy()}, cfg.Placement)
				report.Placement = &pl
			case errors.Is(err, detection.ErrNoFace):
				log.Info("No face detected")
			default:
				return err
			}

			data, err := jsoniter.MarshalIndent(report, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Detector backend: cascade, ollama or llamacpp")
	cmd.Flags().BoolVar(&probe, "probe", false, "Ask the vision model to describe the image first")

	return cmd
}
