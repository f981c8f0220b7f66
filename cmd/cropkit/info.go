package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/cropkit/internal/utils"
	"github.com/menta2k/cropkit/pkg/engine"
)

type imageInfo struct {
	Source      string `yaml:"source"`
	engine.Info `yaml:",inline"`
	Size        string `yaml:"size"`
}

func newInfoCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "info <image>...",
		Short: "Show dimensions, format and aspect ratio",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, err := expandSources(args)
			if err != nil {
				return err
			}

			eng := g.kit().Engine()
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			for _, src := range sources {
				data, err := eng.LoadSource(cmd.Context(), src)
				if err != nil {
					return err
				}
				info, err := eng.Inspect(data)
				if err != nil {
					return fmt.Errorf("%s: %w", src, err)
				}
				if err := enc.Encode(imageInfo{
					Source: src,
					Info:   info,
					Size:   utils.FormatFileSize(int64(info.Bytes)),
				}); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
