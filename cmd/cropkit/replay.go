package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit"
	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/commit"
	"github.com/menta2k/cropkit/pkg/delivery"
	"github.com/menta2k/cropkit/pkg/dialog"
	"github.com/menta2k/cropkit/pkg/replay"
)

func newReplayCmd(g *globals) *cobra.Command {
	var dryRun bool
	var width, height float64
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "replay <image> <script.yaml>",
		Short: "Play a recorded selection session without a window",
		Long: `Open the image in a headless crop dialog and feed it the pointer, touch and
button events listed in the script. Dialog notices are logged and a summary of
the final selection is printed as YAML.`,
		Example: `  # Replay a session and keep the crop in memory only
  cropkit replay photo.jpg session.yaml --dry-run

  # Replay against a smaller window
  cropkit replay photo.jpg session.yaml --width 800 --height 600`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, scriptPath := args[0], args[1]
			script, err := replay.Load(scriptPath)
			if err != nil {
				return err
			}

			out = out.resolve(cmd, g)
			cfg := *g.cfg
			cfg.Output.Suffix = out.suffix
			kit := cropkit.New(&cfg)

			data, err := kit.Engine().LoadSource(cmd.Context(), src)
			if err != nil {
				return err
			}

			var deliverer commit.Deliverer = delivery.NewFileDeliverer(outputDir(out.dir, src), out.overwrite)
			if dryRun {
				deliverer = &delivery.Memory{}
			}
			var opts []dialog.Option
			if width > 0 && height > 0 {
				opts = append(opts, dialog.WithArea(width, height))
			}
			dlg := kit.NewDialog(deliverer, opts...)

			suggester, err := kit.Suggester()
			if err != nil {
				log.Printf("Suggestions disabled: %v", err)
			}

			report, err := replay.NewRunner(dlg, suggester).Run(cmd.Context(), script, data, sourceName(src))
			if err != nil {
				return err
			}
			if fd, ok := deliverer.(*delivery.FileDeliverer); ok && fd.LastPath() != "" {
				report.Delivered = fd.LastPath()
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			if err := enc.Encode(report); err != nil {
				return err
			}
			if len(report.Failures) > 0 {
				return fmt.Errorf("%d step(s) failed", len(report.Failures))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Keep crops in memory instead of writing them")
	cmd.Flags().Float64Var(&width, "width", 0, "Container width the canvas is fitted to (default from config)")
	cmd.Flags().Float64Var(&height, "height", 0, "Window height the canvas is fitted to (default from config)")
	out.register(cmd)

	return cmd
}
