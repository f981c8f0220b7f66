package main

import (
	"fmt"

	"fyne.io/fyne/v2/app"
	"github.com/spf13/cobra"

	"github.com/menta2k/cropkit"
	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/pkg/delivery"
	"github.com/menta2k/cropkit/pkg/fyneui"
	"github.com/menta2k/cropkit/pkg/suggest"
)

const appID = "io.github.menta2k.cropkit"

func newSelectCmd(g *globals) *cobra.Command {
	var noSuggest bool
	var out outputFlags

	cmd := &cobra.Command{
		Use:   "select <image>",
		Short: "Select a crop region in a window",
		Long: `Open the image in a crop window. Drag to select, pick an aspect ratio, then
Apply Crop to save the result. Escape or Cancel closes without saving.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src := args[0]
			out = out.resolve(cmd, g)
			cfg := *g.cfg
			cfg.Output.Suffix = out.suffix
			kit := cropkit.New(&cfg)

			data, err := kit.Engine().LoadSource(cmd.Context(), src)
			if err != nil {
				return err
			}
			fd := delivery.NewFileDeliverer(outputDir(out.dir, src), out.overwrite)

			var suggester suggest.Suggester
			if !noSuggest {
				if suggester, err = kit.Suggester(); err != nil {
					log.Printf("Suggestions disabled: %v", err)
				}
			}

			w := fyneui.NewWindow(app.NewWithID(appID), kit.Config(), kit.Engine(), fd, suggester)
			if err := w.Open(data, sourceName(src)); err != nil {
				return err
			}
			w.ShowAndRun()

			if p := fd.LastPath(); p != "" {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noSuggest, "no-suggest", false, "Hide the Suggest button")
	out.register(cmd)

	return cmd
}
