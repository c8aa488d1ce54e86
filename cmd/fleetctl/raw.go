package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/fleetconsole/internal/wire/schema"
)

func rawCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "raw <Action> [fields-json]",
		Short: "Invocar una acción arbitraria y mostrar la respuesta normalizada",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !known(args[0]) {
				return fmt.Errorf("unknown action %q", args[0])
			}
			var fields map[string]any
			if len(args) == 2 {
				if err := json.Unmarshal([]byte(args[1]), &fields); err != nil {
					return fmt.Errorf("fields: %w", err)
				}
			}

			res := a.fc.Call(cmd.Context(), args[0], fields)
			for _, w := range res.Warnings {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning:", w)
			}
			if res.Data != nil {
				if err := a.print(cmd, res.Data); err != nil {
					return err
				}
			}
			return res.Error()
		},
	}
}

func known(action string) bool {
	for _, a := range schema.Default().Actions() {
		if a == action {
			return true
		}
	}
	return false
}
