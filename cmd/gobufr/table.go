package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/d21d3q/gobufr/pkg/gobufr"
)

var (
	tableCmd = &cobra.Command{
		Use:   "table <descriptor...>",
		Short: "Look up descriptors in the tables",
		Long: "table prints the table entry of each element descriptor and the expansion of\n" +
			"sequences and replications, followed by the source file and its BLAKE3 digest.",
		Args: cobra.MinimumNArgs(1),
		RunE: runTable,
	}

	tableID gobufr.TableID
)

func init() {
	f := tableCmd.Flags()
	f.IntVar(&tableID.MasterVersion, "master-version", 13, "master table version")
	f.IntVar(&tableID.Centre, "centre", 0, "originating centre, for local tables")
	f.IntVar(&tableID.LocalVersion, "local-version", 0, "local table version")
}

func runTable(cmd *cobra.Command, args []string) error {
	c, err := newCodec()
	if err != nil {
		return err
	}
	t, err := c.Tables(tableID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, arg := range args {
		code, err := gobufr.ParseCode(arg)
		if err != nil {
			return err
		}
		if code.F() == 0 {
			info, err := t.B.Lookup(code)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, info)
			continue
		}
		codes, err := c.Expand(tableID, []gobufr.Code{code})
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s expands to %d elements:\n", code, len(codes))
		for _, e := range codes {
			if info, err := t.B.Lookup(e); err == nil {
				fmt.Fprintf(out, "  %s\n", info)
			} else {
				fmt.Fprintf(out, "  %s\n", e)
			}
		}
	}
	fmt.Fprintf(out, "tables: %s (blake3 %s)\n", t.Source, t.Digest)
	return nil
}
