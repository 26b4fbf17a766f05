package cli

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	overlayeditor "github.com/menta2k/overlay-editor"
	"github.com/menta2k/overlay-editor/internal/utils"
	"github.com/menta2k/overlay-editor/pkg/detection"
	"github.com/menta2k/overlay-editor/pkg/editor"
	"github.com/menta2k/overlay-editor/pkg/processing"
)

const stdinSource = "-"

func newRenderCmd(opts *rootOptions) *cobra.Command {
	var (
		output      string
		overlayPath string
		backend     string
		allFaces    bool
		debug       bool
		noDetect    bool
	)

	cmd := &cobra.Command{
		Use:   "render <image-path-or-url|->",
		Short: "Stamp the overlay on a photo and save it",
		Long: `Loads a photo, places the overlay over the detected face and writes the
result as PNG. Without a face the overlay is centered on the photo.
Pass - to read the photo from stdin.`,
		Example: `  # Write 67ified.png next to the current directory
  overlay-editor render photo.jpg

  # Cover every face in a group photo
  overlay-editor render --all-faces team.jpg -o team_67.png

  # Also write the detection debug view
  overlay-editor render --debug https://example.com/photo.webp`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := opts.load()
			if err != nil {
				return err
			}
			if overlayPath != "" {
				cfg.Output.OverlayPath = overlayPath
			}
			if backend != "" {
				cfg.Detector.Backend = backend
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			if allFaces && noDetect {
				return fmt.Errorf("--all-faces needs face detection")
			}

			source := args[0]
			switch {
			case source == stdinSource, utils.IsURL(source):
			case !utils.FileExists(source):
				return fmt.Errorf("input file does not exist: %s", source)
			case !utils.IsImageFile(source):
				log.WithFields(logrus.Fields{"source": source}).Warn("Unrecognized image extension, trying to decode anyway")
			}

			if output == "" {
				output = filepath.Join(cfg.Output.OutputDir, utils.ExportName(cfg.Output.Filename))
			}
			if err := utils.EnsureDir(filepath.Dir(output)); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Detector.Timeout)
			defer cancel()

			processor := processing.NewProcessor()
			overlay, err := processor.LoadOverlay(cfg.Output.OverlayPath)
			if err != nil {
				return err
			}

			var det detection.FaceDetector
			if !noDetect {
				det, err = detection.New(ctx, cfg.DetectionConfig(), processor)
				if err != nil {
					if allFaces {
						return fmt.Errorf("failed to create detector: %w", err)
					}
					log.WithError(err).Warn("Face detector unavailable, using manual placement")
					det = nil
				}
			}

			oe, err := overlayeditor.NewWithConfig(det, overlay, cfg.Placement)
			if err != nil {
				return err
			}

			log.WithFields(logrus.Fields{"source": source}).Info("Loading image")
			var img image.Image
			if source == stdinSource {
				img, err = oe.LoadImageFromReader(cmd.InOrStdin())
			} else {
				img, err = oe.LoadImage(ctx, source)
			}
			if err != nil {
				return fmt.Errorf("failed to load image: %w", err)
			}

			info := oe.GetImageInfo(img)
			log.WithFields(logrus.Fields{
				"width":  info.Width,
				"height": info.Height,
				"ratio":  fmt.Sprintf("%.2f", info.AspectRatio),
			}).Debug("Image loaded")

			ed, status, err := oe.Render(ctx, img, allFaces)
			if ed == nil {
				return err
			}
			if err != nil && det != nil {
				log.WithError(err).Warn("Face detection failed")
			}

			if err := oe.SaveFrame(ed, output); err != nil {
				return err
			}
			printStatus(cmd, ed, status, output)

			if debug {
				debugPath := utils.GenerateOutputFilename(output, "", cfg.Output.DebugSuffix)
				if err := oe.SaveDebug(ed, debugPath); err != nil {
					return fmt.Errorf("failed to save debug image: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Debug image saved: %s\n", debugPath)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default <output_dir>/"+editor.ExportFilename+")")
	cmd.Flags().StringVar(&overlayPath, "overlay", "", "Overlay image (default built-in 67)")
	cmd.Flags().StringVar(&backend, "backend", "", "Detector backend: cascade, ollama or llamacpp")
	cmd.Flags().BoolVar(&allFaces, "all-faces", false, "Put an overlay on every detected face")
	cmd.Flags().BoolVar(&debug, "debug", false, "Also save an image with detection boxes")
	cmd.Flags().BoolVar(&noDetect, "no-detect", false, "Skip face detection and center the overlay")

	return cmd
}

func printStatus(cmd *cobra.Command, ed *editor.Editor, status editor.Status, output string) {
	snap := ed.Snapshot()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n", status.Message)
	if !snap.Placement.IsZero() {
		fmt.Fprintf(out, "Overlay: %.0fx%.0f at (%.0f,%.0f)\n",
			snap.Placement.Width, snap.Placement.Height, snap.Placement.X, snap.Placement.Y)
	}
	fmt.Fprintf(out, "Saved: %s\n", output)
}

