package main

import (
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/menta2k/cropkit"
	"github.com/menta2k/cropkit/internal/config"
	"github.com/menta2k/cropkit/internal/log"
	"github.com/menta2k/cropkit/internal/utils"
)

// globals holds what the root command resolves before any subcommand runs
type globals struct {
	configPath string
	debug      bool
	logFile    string

	cfg       *config.Config
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:   "cropkit",
		Short: "Interactive and scripted image cropping",
		Long: `cropkit selects a crop region on a scaled view of an image and saves the
cropped result next to the source.

Select interactively in a window, replay a recorded session headlessly, ask a
saliency or vision backend for a suggestion, crop fixed edges in batch or
resize and set the DPI of many images at once.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			return g.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if g.logCloser != nil {
				_ = g.logCloser.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Config file (default "+config.GetConfigPath()+")")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&g.logFile, "log-file", "", "Write logs to a rotating file instead of stderr")

	cmd.AddCommand(newSelectCmd(g))
	cmd.AddCommand(newReplayCmd(g))
	cmd.AddCommand(newSuggestCmd(g))
	cmd.AddCommand(newCropCmd(g))
	cmd.AddCommand(newConvertCmd(g))
	cmd.AddCommand(newInfoCmd(g))
	cmd.AddCommand(newConfigCmd(g))

	return cmd
}

func (g *globals) setup() error {
	p := g.configPath
	if p == "" {
		p = config.GetConfigPath()
	}
	cfg, err := config.Load(p)
	if err != nil {
		return err
	}
	if g.debug {
		cfg.Log.Debug = true
	}
	if g.logFile != "" {
		cfg.Log.File = g.logFile
	}

	closer, err := log.Setup(cfg.LogOptions())
	if err != nil {
		return err
	}
	g.cfg = cfg
	g.logCloser = closer
	log.Debugf("config %s loaded", p)
	return nil
}

func (g *globals) kit() *cropkit.Kit {
	return cropkit.New(g.cfg)
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// expandSources resolves each argument to image files. URLs pass through.
func expandSources(args []string) ([]string, error) {
	var sources []string
	for _, arg := range args {
		if isURL(arg) {
			sources = append(sources, arg)
			continue
		}
		files, err := utils.ExpandInputs(arg)
		if err != nil {
			return nil, err
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("no image files match %s", arg)
		}
		sources = append(sources, files...)
	}
	return sources, nil
}

// sourceName is the file name a source is saved under
func sourceName(src string) string {
	if isURL(src) {
		if u, err := url.Parse(src); err == nil {
			if base := path.Base(u.Path); base != "/" && base != "." {
				return base
			}
		}
		return "image"
	}
	return filepath.Base(src)
}

// outputDir is dir, or the source's directory when dir is empty
func outputDir(dir, src string) string {
	if dir != "" {
		return dir
	}
	if isURL(src) {
		return "."
	}
	return filepath.Dir(src)
}
