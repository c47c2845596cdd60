package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fgrzl/resourcekit"
	"github.com/fgrzl/resourcekit/pkg/resource"
	"github.com/spf13/cobra"
)

func setCmd(opts *rootOptions) *cobra.Command {
	client := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Write values",
	}
	client.bind(cmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "trait <device> <trait> <json>",
		Short: "Replace the value of a trait",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := json.RawMessage(args[2])
			if !json.Valid(payload) {
				return fmt.Errorf("value is not valid JSON: %s", args[2])
			}

			cfg, err := opts.load()
			if err != nil {
				return err
			}
			binding, closePool, err := client.connect(cfg)
			if err != nil {
				return err
			}
			defer closePool()

			tracker := resource.NewTracker[*resourcekit.TraitValue]("set-trait")
			value, err := resourcekit.UpdateTrait(cmd.Context(), tracker, binding, args[0], args[1], payload)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(value)
		},
	})

	return cmd
}
