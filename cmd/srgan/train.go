package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/srgan/internal/config"
	"github.com/born-ml/srgan/internal/train"
)

// TrainCommand returns the command that runs a training job from an options
// file.
func TrainCommand() *cobra.Command {
	var optPath, resume string
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from a YAML options file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opt, err := config.LoadFile(optPath)
			if err != nil {
				return err
			}
			if !opt.IsTrain {
				return fmt.Errorf("%s: is_train is not set", optPath)
			}
			if resume != "" {
				opt.Path.ResumeState = resume
			}

			res, err := train.Run(cmd.Context(), opt, nil)
			if err != nil {
				return fmt.Errorf("training %s: %w", opt.Name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "run %s finished at epoch %d, iter %d\n", res.RunID, res.Epoch, res.Iter)
			return nil
		},
	}
	cmd.Flags().StringVar(&optPath, "opt", "", "path to the options YAML file")
	cmd.Flags().StringVar(&resume, "resume", "", "training state to resume from, overrides path.resume_state")
	_ = cmd.MarkFlagRequired("opt")
	return cmd
}
