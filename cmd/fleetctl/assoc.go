package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/fleetconsole/internal/association"
	"github.com/dropDatabas3/fleetconsole/internal/observability/logger"
)

// anchorFlags elige el lado de la relación: --group edita los configs del
// grupo, --config edita los grupos del config.
type anchorFlags struct {
	group  string
	config string
}

func (f *anchorFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.group, "group", "", "Editar los configs de este agent group")
	cmd.Flags().StringVar(&f.config, "config", "", "Editar los agent groups de este config")
	cmd.MarkFlagsMutuallyExclusive("group", "config")
}

func (a *app) editor(ctx context.Context, f *anchorFlags) (*association.Editor, error) {
	log := logger.FromWithFields(ctx, logger.Layer("editor"))
	switch {
	case f.group != "":
		return association.NewEditor(association.GroupConfigs(a.fc, f.group), log), nil
	case f.config != "":
		return association.NewEditor(association.ConfigGroups(a.fc, f.config), log), nil
	default:
		return nil, errors.New("one of --group or --config is required")
	}
}

func assocCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "assoc", Short: "Editor de asociaciones config <-> agent group"}

	var showF anchorFlags
	show := &cobra.Command{
		Use:   "show",
		Short: "Abrir las asociaciones vigentes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.editor(cmd.Context(), &showF)
			if err != nil {
				return err
			}
			openErr := e.Open(cmd.Context())
			if !e.IsOpen() {
				return openErr
			}
			if err := a.print(cmd, e.Snapshot()); err != nil {
				return err
			}
			return openErr
		},
	}
	showF.bind(show)

	var rmF anchorFlags
	remove := &cobra.Command{
		Use:   "remove <member>...",
		Short: "Quitar varias asociaciones en un solo commit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.editor(cmd.Context(), &rmF)
			if err != nil {
				return err
			}
			if err := e.Open(cmd.Context()); err != nil && !e.IsOpen() {
				return err
			}
			for _, m := range args {
				if err := e.StageRemove(m); err != nil {
					return errors.Join(err, errors.New("not associated: "+m))
				}
			}
			batch, err := e.Commit(cmd.Context())
			if perr := a.print(cmd, batch); perr != nil {
				return perr
			}
			if err != nil {
				return err
			}
			return a.print(cmd, e.Snapshot())
		},
	}
	rmF.bind(remove)

	var addF anchorFlags
	add := &cobra.Command{
		Use:   "add [member]...",
		Short: "Sin argumentos lista los candidatos; con argumentos los asocia",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.editor(cmd.Context(), &addF)
			if err != nil {
				return err
			}
			if err := e.Open(cmd.Context()); err != nil && !e.IsOpen() {
				return err
			}
			if len(args) == 0 {
				cands, err := e.Edit(cmd.Context(), association.ActionAdd, "")
				if err != nil {
					return err
				}
				return a.print(cmd, cands)
			}
			batch, err := e.ApplySelected(cmd.Context(), args)
			if perr := a.print(cmd, batch); perr != nil {
				return perr
			}
			return err
		},
	}
	addF.bind(add)

	cmd.AddCommand(show, remove, add)
	return cmd
}
