package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/cropkit"
	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/commit"
	"github.com/menta2k/cropkit/pkg/delivery"
	"github.com/menta2k/cropkit/pkg/engine"
)

type outputFlags struct {
	dir       string
	suffix    string
	overwrite bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.dir, "out", "o", "", "Output directory (default: next to the source)")
	cmd.Flags().StringVar(&o.suffix, "suffix", "", "Suffix inserted before the extension (default from config)")
	cmd.Flags().BoolVar(&o.overwrite, "overwrite", false, "Replace existing files instead of numbering new ones")
}

// resolve fills unset flags from the config
func (o outputFlags) resolve(cmd *cobra.Command, g *globals) outputFlags {
	if !cmd.Flags().Changed("out") {
		o.dir = g.cfg.Output.Dir
	}
	if !cmd.Flags().Changed("suffix") {
		o.suffix = g.cfg.Output.Suffix
	}
	if !cmd.Flags().Changed("overwrite") {
		o.overwrite = g.cfg.Output.Overwrite
	}
	return o
}

func newCropCmd(g *globals) *cobra.Command {
	var top, right, bottom, left string
	var jobs int
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "crop <image>...",
		Short: "Crop fixed edges from images",
		Long: `Remove fixed amounts from the edges of one or more images without opening a
window. Edges are pixels or percentages of the matching dimension. Arguments
may be files, directories, glob patterns or http(s) URLs.`,
		Example: `  # Trim 10% from the left and right of every JPEG in a folder
  cropkit crop 'photos/*.jpg' --left 10% --right 10%

  # Remove a 40 pixel header and write into out/
  cropkit crop scan.png --top 40 --out out/

  # One image at a time
  cropkit crop 'scans/*.png' --bottom 5% --jobs 1`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := engine.ParseEdgeCropOptions(top, right, bottom, left)
			if err != nil {
				return err
			}
			if opts.IsZero() {
				return fmt.Errorf("nothing to crop: set at least one of --top, --right, --bottom or --left")
			}
			sources, err := expandSources(args)
			if err != nil {
				return err
			}
			return runCrop(cmd.Context(), cmd.OutOrStdout(), g, sources, opts, out.resolve(cmd, g), jobs)
		},
	}

	cmd.Flags().StringVar(&top, "top", "", "Amount to remove from the top (pixels or %)")
	cmd.Flags().StringVar(&right, "right", "", "Amount to remove from the right (pixels or %)")
	cmd.Flags().StringVar(&bottom, "bottom", "", "Amount to remove from the bottom (pixels or %)")
	cmd.Flags().StringVar(&left, "left", "", "Amount to remove from the left (pixels or %)")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Number of images cropped in parallel")
	out.register(cmd)

	return cmd
}

// cropResult is the outcome line for one source, empty when it failed
type cropResult struct {
	line string
}

func runCrop(ctx context.Context, w io.Writer, g *globals, sources []string, opts engine.EdgeCropOptions, out outputFlags, jobs int) error {
	kit := g.kit()
	results := make([]cropResult, len(sources))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, jobs))
	for i, src := range sources {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Debugf("[%d/%d] cropping %s", i+1, len(sources), src)
			line, err := cropOne(ctx, kit, src, opts, out)
			if err != nil {
				log.Printf("Failed to crop %s: %v", src, err)
				return nil
			}
			results[i] = cropResult{line: line}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.line == "" {
			failed++
			continue
		}
		fmt.Fprintln(w, r.line)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(sources))
	}
	return nil
}

func cropOne(ctx context.Context, kit *cropkit.Kit, src string, opts engine.EdgeCropOptions, out outputFlags) (string, error) {
	eng := kit.Engine()
	data, err := eng.LoadSource(ctx, src)
	if err != nil {
		return "", err
	}
	info, err := eng.Inspect(data)
	if err != nil {
		return "", err
	}
	if err := engine.ValidateCropOptions(opts, info.Width, info.Height); err != nil {
		return "", err
	}

	edges := opts.Resolve(info.Width, info.Height)
	r := image.Rect(edges.Left, edges.Top, info.Width-edges.Right, info.Height-edges.Bottom)
	saved, err := cropTo(kit, data, src, r, out)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %s (%dx%d)", src, saved, r.Dx(), r.Dy()), nil
}

// cropTo crops data to r and writes the result, returning its path
func cropTo(kit *cropkit.Kit, data []byte, src string, r image.Rectangle, out outputFlags) (string, error) {
	fd := delivery.NewFileDeliverer(outputDir(out.dir, src), out.overwrite)
	if _, err := kit.Crop(data, sourceName(src), r, fd, commit.WithSuffix(out.suffix)); err != nil {
		return "", err
	}
	return fd.LastPath(), nil
}
