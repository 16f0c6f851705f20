package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/chat-go-sdk/vectorstore"
)

const storeExt = ".fcvs"

func newVSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vs",
		Short: "Inspect, validate and convert vector store files",
	}
	cmd.AddCommand(newInspectCmd(), newValidateCmd(), newConvertCmd())
	return cmd
}

func readStore(cmd *cobra.Command, path string) ([]vectorstore.Entry, error) {
	if filepath.Ext(path) != storeExt {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s does not have the %s extension\n", path, storeExt)
	}
	return vectorstore.ReadFile(path)
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show size, entry count and dimensions of a store file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			entries, err := readStore(cmd, path)
			if err != nil {
				return err
			}
			info, err := os.Stat(path)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "File\t%s\n", path)
			fmt.Fprintf(w, "Size\t%d bytes (~%.2f KB)\n", info.Size(), float64(info.Size())/1024)
			fmt.Fprintf(w, "Vectors\t%d\n", len(entries))
			if len(entries) > 0 {
				dims := map[int]int{}
				keys := map[string]bool{}
				for _, e := range entries {
					dims[len(e.Vector)]++
					for k := range e.Metadata {
						keys[k] = true
					}
				}
				fmt.Fprintf(w, "Dimensions\t%s\n", formatDims(dims))
				fmt.Fprintf(w, "Metadata keys\t%s\n", strings.Join(sortedKeys(keys), ", "))
				fmt.Fprintf(w, "First id\t%s\n", entries[0].ID)
			}
			return w.Flush()
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a file is a well-formed vector store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := readStore(cmd, args[0])
			if err != nil {
				return err
			}
			dims := map[int]int{}
			for _, e := range entries {
				dims[len(e.Vector)]++
			}
			if len(dims) > 1 {
				return fmt.Errorf("%w: mixed vector dimensions %s", vectorstore.ErrInvalidDocument, formatDims(dims))
			}
			cmd.Printf("Valid: %s holds %d vectors\n", args[0], len(entries))
			return nil
		},
	}
}

func newConvertCmd() *cobra.Command {
	var (
		to     string
		output string
		force  bool
		indent bool
	)
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a store file to plain JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.ToLower(to) != "json" {
				return fmt.Errorf("conversion to %q is not supported; only json is available", to)
			}
			path := args[0]
			entries, err := readStore(cmd, path)
			if err != nil {
				return err
			}

			if output == "" {
				output = strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
			}
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists; pass --force to overwrite", output)
				} else if !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			if err := vectorstore.WriteFile(output, entries, indent); err != nil {
				return err
			}
			cmd.Printf("Converted %s to %s\n", path, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "json", "target format")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: input with .json extension)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing output file")
	cmd.Flags().BoolVar(&indent, "indent", true, "indent the output")
	return cmd
}
