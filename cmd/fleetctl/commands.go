package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/fleetconsole/internal/detailfile"
	"github.com/dropDatabas3/fleetconsole/internal/fleet"
)

func groupsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "groups", Short: "Agent groups"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Listar agent groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := a.fc.ListAgentGroups(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, groups)
		},
	}

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Ver un agent group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.fc.GetAgentGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, g)
		},
	}

	var value string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Crear un agent group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.fc.CreateAgentGroup(cmd.Context(), fleet.AgentGroup{Name: args[0], Value: value}); err != nil {
				return err
			}
			return a.print(cmd, "created "+args[0])
		},
	}
	create.Flags().StringVar(&value, "value", "", "Tag con el que matchean los agentes")

	var newValue string
	update := &cobra.Command{
		Use:   "update <name>",
		Short: "Actualizar el tag de un agent group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.fc.UpdateAgentGroup(cmd.Context(), fleet.AgentGroup{Name: args[0], Value: newValue}); err != nil {
				return err
			}
			return a.print(cmd, "updated "+args[0])
		},
	}
	update.Flags().StringVar(&newValue, "value", "", "Nuevo tag")

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Borrar un agent group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.fc.DeleteAgentGroup(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd, "deleted "+args[0])
		},
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

func configsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "configs", Short: "Configs"}

	list := &cobra.Command{
		Use:   "list",
		Short: "Listar configs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configs, err := a.fc.ListConfigs(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(cmd, configs)
		},
	}

	get := &cobra.Command{
		Use:   "get <name>",
		Short: "Ver un config con su detalle",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.fc.GetConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, c)
		},
	}

	write := func(use, short, verb string, fn func(*cobra.Command, fleet.ConfigDetail) error) *cobra.Command {
		var detail, file string
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				body, err := detailArg(detail, file)
				if err != nil {
					return err
				}
				if err := fn(cmd, fleet.ConfigDetail{Name: args[0], Detail: body}); err != nil {
					return err
				}
				return a.print(cmd, verb+" "+args[0])
			},
		}
		c.Flags().StringVar(&detail, "detail", "", "Contenido del config")
		c.Flags().StringVar(&file, "detail-file", "", "Archivo .yaml, .yml, .json o .jsonc con el contenido")
		return c
	}

	create := write("create <name>", "Crear un config", "created", func(cmd *cobra.Command, cd fleet.ConfigDetail) error {
		return a.fc.CreateConfig(cmd.Context(), cd)
	})
	update := write("update <name>", "Actualizar el contenido de un config", "updated", func(cmd *cobra.Command, cd fleet.ConfigDetail) error {
		return a.fc.UpdateConfig(cmd.Context(), cd)
	})

	del := &cobra.Command{
		Use:   "delete <name>",
		Short: "Borrar un config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.fc.DeleteConfig(cmd.Context(), args[0]); err != nil {
				return err
			}
			return a.print(cmd, "deleted "+args[0])
		},
	}

	cmd.AddCommand(list, get, create, update, del)
	return cmd
}

func detailArg(detail, file string) (string, error) {
	switch {
	case detail != "" && file != "":
		return "", errors.New("--detail and --detail-file are mutually exclusive")
	case file != "":
		return detailfile.Load(file)
	default:
		return detail, nil
	}
}

func agentsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "agents", Short: "Agentes"}

	var group string
	list := &cobra.Command{
		Use:   "list",
		Short: "Listar los agentes de un grupo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			agents, err := a.fc.ListAgents(cmd.Context(), group)
			if err != nil {
				return err
			}
			return a.print(cmd, agents)
		},
	}
	list.Flags().StringVar(&group, "group", "default", "Agent group")

	cmd.AddCommand(list)
	return cmd
}

func applyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <config> <group>...",
		Short: "Aplicar un config a uno o más agent groups",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			batch := a.fc.ApplyMany(cmd.Context(), args[0], args[1:])
			if err := a.print(cmd, batch); err != nil {
				return err
			}
			return batchErr(batch)
		},
	}
}

func removeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <config> <group>",
		Short: "Quitar un config de un agent group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.fc.RemoveConfigFromAgentGroup(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.print(cmd, fmt.Sprintf("removed %s from %s", args[0], args[1]))
		},
	}
}

func appliedCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "applied", Short: "Asociaciones vigentes"}

	configs := &cobra.Command{
		Use:   "configs <group>",
		Short: "Configs aplicados a un agent group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.fc.GetAppliedConfigsForAgentGroup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, names)
		},
	}
	groups := &cobra.Command{
		Use:   "groups <config>",
		Short: "Agent groups a los que está aplicado un config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := a.fc.GetAppliedAgentGroups(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.print(cmd, names)
		},
	}

	cmd.AddCommand(configs, groups)
	return cmd
}

func batchErr(b fleet.Batch) error {
	if err := b.FirstError(); err != nil {
		return fmt.Errorf("%d of %d failed: %w", len(b.Failed()), len(b.Outcomes), err)
	}
	return nil
}
