package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kaomask/kaomask"
	"github.com/kaomask/kaomask/detector"
	"github.com/kaomask/kaomask/preprocess"
	"github.com/kaomask/kaomask/render"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

var composeOpts struct {
	landmarkFile   string
	slotFile       string
	backgroundFile string
	maskFile       string
	outputFile     string
	noGuide        bool
}

var composeCmd = &cobra.Command{
	Use:   "compose <image_path>",
	Short: "Composite a single still image using a saved landmark result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runCompose(args[0])
	},
}

func init() {
	composeCmd.Flags().StringVarP(&composeOpts.landmarkFile, "landmarks", "l", "", "Landmark result file (JSON/CBOR packet, or packed fp16 .bin)")
	composeCmd.Flags().StringVarP(&composeOpts.slotFile, "slot", "s", "assets/slot.json", "Slot specification file")
	composeCmd.Flags().StringVarP(&composeOpts.backgroundFile, "background", "b", "assets/character.png", "Character background image")
	composeCmd.Flags().StringVarP(&composeOpts.maskFile, "mask", "m", "assets/mask.png", "Soft-edged mask image")
	composeCmd.Flags().StringVarP(&composeOpts.outputFile, "out", "o", "composite.png", "Output image file")
	composeCmd.Flags().BoolVar(&composeOpts.noGuide, "no-guide", false, "Disable the guide ellipse")
	composeCmd.MarkFlagRequired("landmarks")
	rootCmd.AddCommand(composeCmd)
}

func runCompose(imagePath string) error {

	spec, err := kaomask.LoadSlotSpec(composeOpts.slotFile)

	if err != nil {
		return err
	}

	frame := gocv.IMRead(imagePath, gocv.IMReadColor)

	if frame.Empty() {
		return fmt.Errorf("error reading image from: %s", imagePath)
	}
	defer frame.Close()

	lm, err := loadLandmarks(composeOpts.landmarkFile)

	if err != nil {
		return err
	}

	canvasW, canvasH := int(spec.ImageSize[0]), int(spec.ImageSize[1])

	if spec.Preview != nil {
		canvasW, canvasH = spec.Preview.Width, spec.Preview.Height
	}

	comp, err := render.NewCompositor(composeOpts.backgroundFile,
		composeOpts.maskFile, canvasW, canvasH)

	if err != nil {
		return err
	}
	defer comp.Close()

	sampler := preprocess.NewSampler()
	defer sampler.Close()

	surface := gocv.NewMat()
	defer surface.Close()

	dst := spec.DestAnchors(canvasW, canvasH)

	var guide *render.GuideStyle

	if !composeOpts.noGuide {
		g := render.DefaultGuideStyle()
		guide = &g
	}

	anchors, ok := kaomask.ExtractAnchors(lm, frame.Cols(), frame.Rows())

	if !ok {
		// no face in the landmark file, render background and guide only
		empty := gocv.NewMat()
		defer empty.Close()

		if err := comp.Compose(&surface, empty, nil, 0, dst, guide); err != nil {
			return err
		}
	} else {
		side := kaomask.RoiSide(anchors.EyeDist(), spec.Slot.RoiScale)
		sim := kaomask.SolveSimilarity(anchors, dst, side)

		roi := gocv.NewMat()
		defer roi.Close()

		if err := sampler.Sample(frame, anchors.EyeMid(), int(side), &roi); err != nil {
			return err
		}

		if err := comp.Compose(&surface, roi, &sim, side, dst, guide); err != nil {
			return err
		}
	}

	if ok := gocv.IMWrite(composeOpts.outputFile, surface); !ok {
		return fmt.Errorf("error writing output image to: %s", composeOpts.outputFile)
	}

	logger.WithField("out", composeOpts.outputFile).Info("composite written")

	return nil
}

// loadLandmarks reads a landmark result file.  A .bin extension is decoded
// as packed fp16 pairs, anything else as a JSON or CBOR detector packet.
func loadLandmarks(path string) (kaomask.LandmarkSet, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, fmt.Errorf("error reading landmark file: %w", err)
	}

	if strings.HasSuffix(path, ".bin") {
		return kaomask.DecodeFloat16Landmarks(data)
	}

	return detector.DecodePacket(data)
}
