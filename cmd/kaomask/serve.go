package main

import (
	"fmt"

	"github.com/kaomask/kaomask"
	"github.com/kaomask/kaomask/detector"
	"github.com/kaomask/kaomask/internal/config"
	"github.com/kaomask/kaomask/preprocess"
	"github.com/kaomask/kaomask/render"
	"github.com/kaomask/kaomask/server"
	"github.com/kaomask/kaomask/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveNoGuide bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the live compositing session with the preview server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoGuide, "no-guide", false, "Disable the face placement guide ellipse")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {

	cfg, err := config.Load()

	if err != nil {
		return err
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}

	spec, err := kaomask.LoadSlotSpec(cfg.SlotPath)

	if err != nil {
		return err
	}

	canvasW, canvasH := canvasSize(cfg, spec)

	comp, err := render.NewCompositor(cfg.BackgroundPath, cfg.MaskPath, canvasW, canvasH)

	if err != nil {
		return err
	}
	defer comp.Close()

	sampler := preprocess.NewSampler()
	defer sampler.Close()

	source, err := detector.NewRemote(cfg.DetectorURL)

	if err != nil {
		return fmt.Errorf("error connecting landmark detector: %w", err)
	}
	defer source.Close()

	opts := session.Options{Logger: logger}

	if !serveNoGuide {
		guide := render.DefaultGuideStyle()
		opts.Guide = &guide
	}

	sess, err := session.New(spec, comp, sampler, source, opts)

	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Arm(); err != nil {
		return err
	}

	srv := server.New(sess, cfg.Device, logger)

	return srv.Run(cmd.Context(), cfg.Addr)
}

// canvasSize resolves the destination surface dimensions: explicit config
// wins, then the authored preview, then the slot image size
func canvasSize(cfg config.Config, spec *kaomask.SlotSpec) (int, int) {

	if cfg.CanvasWidth > 0 && cfg.CanvasHeight > 0 {
		return cfg.CanvasWidth, cfg.CanvasHeight
	}

	if spec.Preview != nil {
		return spec.Preview.Width, spec.Preview.Height
	}

	return int(spec.ImageSize[0]), int(spec.ImageSize[1])
}
