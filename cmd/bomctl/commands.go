package main

import (
	"errors"
	"fmt"

	"github.com/bitfantasy/nimo-bom/internal/plm/bomtree"
	"github.com/bitfantasy/nimo-bom/internal/plm/entity"
	"github.com/spf13/cobra"
)

var errNodeNotFound = errors.New("node not found")

type rootOptions struct {
	encoding string
	output   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "bomctl",
		Short: "Inspect and edit 7-level BOM trees",
		Long: `bomctl works on BOM files without a server. Inputs may be a JSON node
tree (.json) or the 11-column row format (.xlsx, .csv).

Examples:
  bomctl tree laptop.xlsx
  bomctl cost laptop.csv --breakdown
  bomctl toggle laptop.json 0-0-0-0-0-1 -o laptop.json
  bomctl convert legacy.csv laptop.xlsx --encoding gbk`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.encoding, "encoding", "", "CSV input encoding: utf-8 (default), gbk, gb18030")

	root.AddCommand(
		newTreeCmd(opts),
		newCostCmd(opts),
		newMutationCmd(opts, "toggle", "Toggle an L6 primary between Active and Inactive", entity.LevelPart, toggle),
		newMutationCmd(opts, "replace", "Replace an L6 primary with its L7 substitute", entity.LevelSubstitute, replace),
		newMutationCmd(opts, "delete-substitute", "Remove an L7 substitute", entity.LevelSubstitute, deleteSubstitute),
		newConvertCmd(opts),
	)
	return root
}

func newTreeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tree FILE",
		Short: "Print the tree with level tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := loadTree(args[0], opts.encoding)
			if err != nil {
				return err
			}
			renderTree(cmd.OutOrStdout(), roots)
			return nil
		},
	}
}

func newCostCmd(opts *rootOptions) *cobra.Command {
	var breakdown bool
	cmd := &cobra.Command{
		Use:   "cost FILE",
		Short: "Roll up the cost of active L6/L7 lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := loadTree(args[0], opts.encoding)
			if err != nil {
				return err
			}
			renderCost(cmd.OutOrStdout(), roots, breakdown)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&breakdown, "breakdown", "b", false, "Print one line per active part")
	return cmd
}

type mutation func(roots []*entity.BOMNode, key string) ([]*entity.BOMNode, error)

func toggle(roots []*entity.BOMNode, key string) ([]*entity.BOMNode, error) {
	return bomtree.ToggleL6Status(roots, key), nil
}

func replace(roots []*entity.BOMNode, key string) ([]*entity.BOMNode, error) {
	res, err := bomtree.Replace(roots, key)
	return res.Roots, err
}

func deleteSubstitute(roots []*entity.BOMNode, key string) ([]*entity.BOMNode, error) {
	return bomtree.DeleteSubstitute(roots, key).Roots, nil
}

func newMutationCmd(opts *rootOptions, use, short string, level entity.Level, apply mutation) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use + " FILE KEY",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := loadTree(args[0], opts.encoding)
			if err != nil {
				return err
			}
			key := args[1]
			node, _ := bomtree.Find(roots, key)
			if node == nil {
				return fmt.Errorf("%w: %s", errNodeNotFound, key)
			}
			if node.Level != level {
				return fmt.Errorf("%s is %s, %s needs %s", key, node.Level.Code(), use, level.Code())
			}

			next, err := apply(roots, key)
			if err != nil {
				return err
			}
			if opts.output != "" && opts.output != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s %s: total cost %s\n", use, key, bomtree.TotalCost(next).StringFixed(2))
			}
			return writeTree(cmd.OutOrStdout(), opts.output, next)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the result to this file (.json, .xlsx, .csv); stdout JSON when empty")
	return cmd
}

func newConvertCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "convert IN OUT",
		Short: "Convert between .json, .xlsx and .csv",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			roots, err := loadTree(args[0], opts.encoding)
			if err != nil {
				return err
			}
			if err := bomtree.Check(roots); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}
			return writeTree(cmd.OutOrStdout(), args[1], roots)
		},
	}
}
