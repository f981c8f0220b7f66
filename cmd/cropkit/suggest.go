package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/selection"
	"github.com/menta2k/cropkit/pkg/suggest"
	"github.com/menta2k/cropkit/pkg/types"
)

type suggestReport struct {
	Source     string          `yaml:"source"`
	Backend    string          `yaml:"backend"`
	Label      string          `yaml:"label,omitempty"`
	Confidence float64         `yaml:"confidence,omitempty"`
	Crop       types.Region    `yaml:"crop"`
	Subject    *types.Region   `yaml:"subject,omitempty"`
	Edges      types.CropEdges `yaml:"edges"`
	Overlay    string          `yaml:"overlay,omitempty"`
	Output     string          `yaml:"output,omitempty"`
}

func newSuggestCmd(g *globals) *cobra.Command {
	var ratio, backend, model, cascade string
	var overlay, apply, check bool
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "suggest <image>...",
		Short: "Propose a crop with smartcrop or a vision model",
		Long: `Ask a suggestion backend for the best crop of each image and print it.

The smartcrop backend runs locally. The faces backend frames the faces a pigo
cascade finds and falls back to smartcrop. The ollama and llamacpp backends send
a downscaled copy of the image to a vision model and frame the subject it finds.`,
		Example: `  # Square crop proposals for a folder, saved as debug overlays
  cropkit suggest photos/ --ratio 1:1 --overlay

  # Crop to the subject a local model finds
  cropkit suggest cat.jpg --backend ollama --apply

  # Confirm the model receives the image before relying on it
  cropkit suggest cat.jpg --backend llamacpp --check

  # Portrait crops around faces
  cropkit suggest team.jpg --backend faces --cascade facefinder --ratio 3:4`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg.Suggest
			if backend != "" {
				cfg.Backend = backend
			}
			if model != "" {
				cfg.Model = model
			}
			if cascade != "" {
				cfg.CascadeFile = cascade
			}
			if !cmd.Flags().Changed("ratio") {
				ratio = g.cfg.Selection.Ratio
			}
			r, err := selection.ParseRatio(ratio)
			if err != nil {
				return err
			}

			s, err := suggest.New(cfg)
			if err != nil {
				return err
			}
			sources, err := expandSources(args)
			if err != nil {
				return err
			}
			if check {
				c, ok := s.(suggest.Checker)
				if !ok {
					return fmt.Errorf("backend %s cannot be checked, use ollama or llamacpp", cfg.Backend)
				}
				return runCheck(cmd.Context(), cmd.OutOrStdout(), g, c, sources)
			}
			return runSuggest(cmd.Context(), cmd.OutOrStdout(), g, s, sources, r, overlay, apply, out.resolve(cmd, g))
		},
	}

	cmd.Flags().StringVarP(&ratio, "ratio", "r", "free", "Aspect ratio: free, 1:1, 16:9, ... (default from config)")
	cmd.Flags().StringVarP(&backend, "backend", "b", "", "Backend: smartcrop, faces, ollama or llamacpp (default from config)")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Vision model name (default from config)")
	cmd.Flags().StringVar(&cascade, "cascade", "", "pigo face cascade file for the faces backend (default from config)")
	cmd.Flags().BoolVar(&overlay, "overlay", false, "Save a PNG with the crop and subject drawn on the image")
	cmd.Flags().BoolVar(&apply, "apply", false, "Crop each image to its suggestion")
	cmd.Flags().BoolVar(&check, "check", false, "Only ask the vision model to describe each image")
	out.register(cmd)

	return cmd
}

func runSuggest(ctx context.Context, w io.Writer, g *globals, s suggest.Suggester, sources []string, ratio float64, overlay, apply bool, out outputFlags) error {
	kit := g.kit()
	eng := kit.Engine()
	enc := yaml.NewEncoder(w)
	defer enc.Close()

	for _, src := range sources {
		data, err := eng.LoadSource(ctx, src)
		if err != nil {
			return err
		}
		img, err := eng.DecodeImage(data)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}

		sug, err := s.Suggest(ctx, img, ratio)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		log.Debugf("%s: %s suggested %v", src, sug.Backend, sug.Rect)

		rep := suggestReport{
			Source:     src,
			Backend:    sug.Backend,
			Label:      sug.Label,
			Confidence: sug.Confidence,
			Crop:       types.RegionOf(sug.Rect),
			Edges:      types.EdgesOf(sug.Rect, img.Bounds().Sub(img.Bounds().Min)),
		}
		if !sug.Subject.Empty() {
			subject := types.RegionOf(sug.Subject)
			rep.Subject = &subject
		}

		if overlay {
			p := utils.GenerateOutputFilename(sourceName(src), outputDir(out.dir, src), "", "_suggest", "png")
			if !out.overwrite {
				p = utils.UniquePath(p)
			}
			if err := utils.EnsureDir(outputDir(out.dir, src)); err != nil {
				return err
			}
			if err := eng.SaveImage(suggest.DebugOverlay(img, sug), p, "png", 0, false); err != nil {
				return fmt.Errorf("failed to save overlay: %w", err)
			}
			rep.Overlay = p
		}

		if apply {
			saved, err := cropTo(kit, data, src, sug.Rect, out)
			if err != nil {
				return fmt.Errorf("failed to crop %s: %w", src, err)
			}
			rep.Output = saved
		}

		if err := enc.Encode(rep); err != nil {
			return err
		}
	}
	return nil
}

func runCheck(ctx context.Context, w io.Writer, g *globals, c suggest.Checker, sources []string) error {
	eng := g.kit().Engine()
	for _, src := range sources {
		data, err := eng.LoadSource(ctx, src)
		if err != nil {
			return err
		}
		img, err := eng.DecodeImage(data)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		answer, err := c.Check(ctx, img)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		fmt.Fprintf(w, "%s: %s\n", src, answer)
	}
	return nil
}
