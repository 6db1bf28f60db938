package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/born-ml/srgan/internal/serialization"
)

// ExportCommand returns the command that converts network weights to
// SafeTensors.
func ExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export [checkpoint.pth] [output.safetensors]",
		Short: "Export network weights as a SafeTensors file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := serialization.ReadFile(args[0])
			if err != nil {
				return err
			}
			if f.Header.Kind != serialization.KindNetwork {
				return fmt.Errorf("%s holds %s, only network weights can be exported", args[0], f.Header.Kind)
			}
			md := map[string]string{"model_type": f.Header.ModelType}
			for k, v := range f.Header.Metadata {
				md[k] = v
			}
			if err := serialization.WriteSafeTensors(args[1], f.Tensors, md); err != nil {
				return fmt.Errorf("failed to export %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d tensors to %s\n", len(f.Tensors), args[1])
			return nil
		},
	}
}

// InspectCommand prints the header of a checkpoint or training state.
func InspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [file]",
		Short: "Show the header of a .pth or .state file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := serialization.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			h := f.Header
			fmt.Fprintf(out, "kind: %s\n", h.Kind)
			if h.ModelType != "" {
				fmt.Fprintf(out, "model_type: %s\n", h.ModelType)
			}
			fmt.Fprintf(out, "created_at: %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"))

			keys := make([]string, 0, len(h.Metadata))
			for k := range h.Metadata {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s: %s\n", k, h.Metadata[k])
			}
			fmt.Fprintf(out, "tensors: %d\n", len(h.Tensors))
			for _, t := range h.Tensors {
				fmt.Fprintf(out, "  %s %v\n", t.Name, t.Shape)
			}
			return nil
		},
	}
}
