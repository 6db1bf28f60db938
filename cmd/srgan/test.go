package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/data"
	"github.com/born-ml/srgan/internal/logging"
	"github.com/born-ml/srgan/internal/model"
	"github.com/born-ml/srgan/internal/types"
)

// UpscaleCommand returns the command that upscales images with a trained
// generator.
func UpscaleCommand() *cobra.Command {
	var optPath, input, output string
	cmd := &cobra.Command{
		Use:   "test",
		Short: "Upscale an image, or every image of a directory, with the generator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := config.LoadFile(optPath)
			if err != nil {
				return err
			}
			opt.IsTrain = false
			if opt.Path.PretrainModelG == "" {
				logging.Warn("No pretrain_model_G given, the generator is randomly initialised", types.Model)
			}
			m, err := model.NewSRGANModel(opt)
			if err != nil {
				return err
			}

			pairs, err := testPairs(input, output)
			if err != nil {
				return err
			}
			for _, p := range pairs {
				if err := cmd.Context().Err(); err != nil {
					return err
				}
				if err := upscale(m, p[0], p[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", p[0], p[1])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&optPath, "opt", "", "path to the options YAML file")
	cmd.Flags().StringVar(&input, "input", "", "LR image or directory of LR images")
	cmd.Flags().StringVar(&output, "output", "", "SR image, or directory when --input is a directory")
	for _, name := range []string{"opt", "input", "output"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func upscale(m *model.SRGANModel, in, out string) error {
	lr, err := data.LoadImage(in)
	if err != nil {
		return err
	}
	m.FeedData(data.Batch{LR: lr.MustReshape(append([]int{1}, lr.Shape()...))}, false)
	m.Test()
	return data.SavePNG(out, m.CurrentVisuals(false).SR)
}

// testPairs maps input images to output paths. A directory input yields one
// <name>.png per image under the output directory.
func testPairs(input, output string) ([][2]string, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return [][2]string{{input, output}}, nil
	}
	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, err
	}
	var pairs [][2]string
	for _, e := range entries {
		if e.IsDir() || !data.IsImage(e.Name()) {
			continue
		}
		base := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		pairs = append(pairs, [2]string{filepath.Join(input, e.Name()), filepath.Join(output, base+".png")})
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("no images in %s", input)
	}
	return pairs, nil
}
