package main

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/functree/modules/functionality"
	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/application"
	"github.com/iota-uz/functree/pkg/logging"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down|status]",
		Short:     "Apply, roll back or inspect the tree schema",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			mm := application.NewMigrationManager(pool, logging.ConsoleLogger(logrus.InfoLevel))
			mm.RegisterSchema(functionality.Schema())
			switch args[0] {
			case "up":
				return mm.Up(ctx)
			case "down":
				return mm.Down(ctx)
			default:
				return mm.Status(ctx)
			}
		},
	}
}

func newTreeCmd() *cobra.Command {
	var (
		opts   backendOptions
		format string
		view   string
	)
	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print the functionality tree of a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(format); err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.close()

			roots, err := b.svc.GetTree(b.ctx, b.tenantID)
			if err != nil {
				return err
			}
			return renderTree(cmd.OutOrStdout(), format, view, b.tenantID, roots)
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text|json|yaml")
	cmd.Flags().StringVar(&view, "view", "nested", "json/yaml layout: nested|flat")
	return cmd
}

func newCreateCmd() *cobra.Command {
	var (
		opts      backendOptions
		format    string
		kind      string
		name      string
		reference string
		position  string
		save      string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a folder or functionality",
		RunE: func(cmd *cobra.Command, args []string) error {
			nodeKind, err := services.ParseNodeKind(kind)
			if err != nil {
				return err
			}
			pos, err := services.ParseRelativePosition(position)
			if err != nil {
				return err
			}
			ref, err := parseOptionalUUID(reference, "reference")
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.close()

			node, err := b.svc.CreateNode(b.ctx, b.tenantID, services.CreateNodeInput{
				Kind:        nodeKind,
				Name:        strings.TrimSpace(name),
				ReferenceID: ref,
				Position:    pos,
			})
			if err != nil {
				return err
			}
			if err := b.saveFixture(save); err != nil {
				return err
			}
			return renderNode(cmd.OutOrStdout(), format, node)
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text|json|yaml")
	cmd.Flags().StringVar(&kind, "kind", "functionality", "folder|functionality")
	cmd.Flags().StringVar(&name, "name", "", "node name")
	cmd.Flags().StringVar(&reference, "reference", "", "reference node id (empty places at the root level)")
	cmd.Flags().StringVar(&position, "position", "LAST_CHILD", "LAST_CHILD|ABOVE|BELOW")
	cmd.Flags().StringVar(&save, "save", "", "write the resulting tree to this fixture file (requires --fixture)")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newMoveCmd() *cobra.Command {
	var (
		opts      backendOptions
		format    string
		nodeID    string
		reference string
		position  string
		save      string
	)
	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a node relative to a reference node",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseOptionalUUID(nodeID, "id")
			if err != nil {
				return err
			}
			if id == nil {
				return fmt.Errorf("--id is required")
			}
			pos, err := services.ParseRelativePosition(position)
			if err != nil {
				return err
			}
			ref, err := parseOptionalUUID(reference, "reference")
			if err != nil {
				return err
			}
			b, err := openBackend(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer b.close()

			node, err := b.svc.MoveNode(b.ctx, b.tenantID, services.MoveNodeInput{
				NodeID:      *id,
				ReferenceID: ref,
				Position:    pos,
			})
			if err != nil {
				return err
			}
			if err := b.saveFixture(save); err != nil {
				return err
			}
			return renderNode(cmd.OutOrStdout(), format, node)
		},
	}
	opts.bind(cmd.Flags())
	cmd.Flags().StringVar(&format, "format", formatText, "output format: text|json|yaml")
	cmd.Flags().StringVar(&nodeID, "id", "", "node to move")
	cmd.Flags().StringVar(&reference, "reference", "", "reference node id (empty moves to the root level)")
	cmd.Flags().StringVar(&position, "position", "LAST_CHILD", "LAST_CHILD|ABOVE|BELOW")
	cmd.Flags().StringVar(&save, "save", "", "write the resulting tree to this fixture file (requires --fixture)")
	return cmd
}
