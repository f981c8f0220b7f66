package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/delivery"
	"github.com/menta2k/cropkit/pkg/engine"
	"github.com/menta2k/cropkit/pkg/types"
)

const convertedSuffix = "_converted"

func newConvertCmd(g *globals) *cobra.Command {
	var width, height, dpi, jobs int
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "convert <image>...",
		Short: "Resize images and set their DPI",
		Long: `Resize one or more images and write their print resolution into the file's
density metadata (JFIF for JPEG, pHYs for PNG). A zero width or height keeps
the aspect ratio. Results are written next to the source with a _converted
suffix unless --out or --suffix say otherwise.`,
		Example: `  # Scale to 1920 pixels wide
  cropkit convert photo.jpg --width 1920

  # Mark every PNG as 300 DPI without resizing
  cropkit convert 'scans/*.png' --dpi 300

  # Both, into out/
  cropkit convert 'photos/*.jpg' --width 800 --height 600 --dpi 150 --out out/`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if width < 0 || height < 0 || dpi < 0 {
				return fmt.Errorf("--width, --height and --dpi must not be negative")
			}
			if width == 0 && height == 0 && dpi == 0 {
				return fmt.Errorf("nothing to convert: set --width, --height or --dpi")
			}
			sources, err := expandSources(args)
			if err != nil {
				return err
			}

			opts := types.ProcessOptions{
				Resize: width > 0 || height > 0,
				Width:  width,
				Height: height,
				DPI:    dpi,
			}
			o := out
			if !cmd.Flags().Changed("out") {
				o.dir = g.cfg.Output.Dir
			}
			if !cmd.Flags().Changed("overwrite") {
				o.overwrite = g.cfg.Output.Overwrite
			}
			return runConvert(cmd.Context(), cmd.OutOrStdout(), g, sources, opts, o, jobs)
		},
	}

	cmd.Flags().IntVar(&width, "width", 0, "Target width in pixels")
	cmd.Flags().IntVar(&height, "height", 0, "Target height in pixels")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "Resolution to record, e.g. 72, 96, 150 or 300")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", runtime.NumCPU(), "Number of images converted in parallel")
	out.register(cmd)
	cmd.Flags().Lookup("suffix").DefValue = convertedSuffix
	out.suffix = convertedSuffix

	return cmd
}

func runConvert(ctx context.Context, w io.Writer, g *globals, sources []string, opts types.ProcessOptions, out outputFlags, jobs int) error {
	eng := g.kit().Engine()
	lines := make([]string, len(sources))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(1, jobs))
	for i, src := range sources {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			log.Debugf("[%d/%d] converting %s", i+1, len(sources), src)
			line, err := convertOne(ctx, eng, src, opts, out)
			if err != nil {
				log.Printf("Failed to convert %s: %v", src, err)
				return nil
			}
			lines[i] = line
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	failed := 0
	for _, line := range lines {
		if line == "" {
			failed++
			continue
		}
		fmt.Fprintln(w, line)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(sources))
	}
	return nil
}

func convertOne(ctx context.Context, eng *engine.Engine, src string, opts types.ProcessOptions, out outputFlags) (string, error) {
	data, err := eng.LoadSource(ctx, src)
	if err != nil {
		return "", err
	}
	info, err := eng.Inspect(data)
	if err != nil {
		return "", err
	}

	res := eng.Process(data, opts)
	if !res.Success {
		return "", fmt.Errorf("%s", res.Error)
	}

	// keep the source extension unless the encoder switched formats
	ext := ""
	if res.Format != info.Format {
		ext = formatExt(res.Format)
	}
	name := filepath.Base(utils.GenerateOutputFilename(sourceName(src), "", "", out.suffix, ext))

	fd := delivery.NewFileDeliverer(outputDir(out.dir, src), out.overwrite)
	if err := fd.Deliver(types.Delivery{Name: name, Data: res.Data}); err != nil {
		return "", err
	}

	result, err := eng.Inspect(res.Data)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s -> %s (%dx%d, %d dpi)", src, fd.LastPath(), result.Width, result.Height, result.DPI), nil
}

func formatExt(format string) string {
	if format == "jpeg" {
		return "jpg"
	}
	return format
}
