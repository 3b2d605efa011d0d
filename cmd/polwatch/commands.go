package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/polwatch/monitor"
	"github.com/hazyhaar/polwatch/policydiff"
	"github.com/hazyhaar/polwatch/store"
	"github.com/hazyhaar/polwatch/workflow"
)

func newCompareCmd(g *globalFlags) *cobra.Command {
	var policy string
	var withDiff bool
	cmd := &cobra.Command{
		Use:   "compare OLD NEW",
		Short: "Compare two policy files and print the report as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, logger, err := g.load()
			if err != nil {
				return err
			}
			oldText, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			newText, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			if policy == "" {
				policy = strings.TrimSuffix(filepath.Base(args[1]), filepath.Ext(args[1]))
			}

			res := policydiff.NewComparator(policydiff.WithLogger(logger)).Compare(policy, string(oldText), string(newText))
			out := monitor.CompareResponse{Report: res.Serialize()}
			if withDiff && res.HasChanges {
				if out.Diff, err = policydiff.UnifiedDiff(policy, string(oldText), string(newText)); err != nil {
					return err
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "policy name (default: NEW file name)")
	cmd.Flags().BoolVar(&withDiff, "diff", false, "include a unified paragraph diff")
	return cmd
}

func newSnapshotCmd(g *globalFlags) *cobra.Command {
	var source string
	cmd := &cobra.Command{
		Use:   "snapshot POLICY FILE",
		Short: "Store a captured version of a policy (FILE may be - for stdin)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readInput(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			svc, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			rec, err := svc.AddSnapshot(cmd.Context(), args[0], source, string(content))
			if errors.Is(err, store.ErrUnchanged) {
				return printJSON(cmd.OutOrStdout(), map[string]string{"status": "unchanged", "policy_name": args[0]})
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"status":       "stored",
				"id":           rec.ID,
				"policy_name":  rec.PolicyName,
				"content_hash": rec.ContentHash,
				"captured_at":  rec.CapturedAt,
			})
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "URL the text was captured from")
	return cmd
}

func newCheckCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check [POLICY...]",
		Short: "Check policies for changes (all configured or stored policies when none given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			br, err := svc.CheckBatch(cmd.Context(), args)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), br); err != nil {
				return err
			}
			for _, r := range br.Results {
				if r.Status == workflow.StatusFailed {
					return fmt.Errorf("check %s failed at %s: %s", r.PolicyName, r.FailedStep, r.Error)
				}
			}
			return nil
		},
	}
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
