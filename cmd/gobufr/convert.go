package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/d21d3q/gobufr/internal/archive"
	"github.com/d21d3q/gobufr/pkg/gobufr"
)

var (
	convertCmd = &cobra.Command{
		Use:   "convert <input> <output>",
		Short: "Re-encode messages as BUFR or CREX",
		Long: "convert decodes every message of input and writes it to output in the target format.\n" +
			"Use - for stdin or stdout.",
		Args: cobra.ExactArgs(2),
		RunE: runConvert,
	}

	convertTo       string
	convertEdition  int
	convertCompress bool
	convertCheck    bool
	convertZstd     bool
	convertTemplate string
)

func init() {
	f := convertCmd.Flags()
	f.StringVar(&convertTo, "to", "bufr", "output format: bufr or crex")
	f.IntVar(&convertEdition, "edition", 0, "BUFR edition of the output (2, 3 or 4)")
	f.BoolVar(&convertCompress, "compressed", false, "use BUFR data compression")
	f.BoolVar(&convertCheck, "check-digit", false, "write CREX check digits")
	f.BoolVar(&convertZstd, "zstd", false, "zstd compress the output stream")
	f.StringVar(&convertTemplate, "template", "", "category.subcategory.local for messages without one")
	f.BoolVar(&skipErrors, "skip-errors", false, "log and skip messages that fail to convert")
}

func runConvert(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("edition") {
		cfg.Encode.Edition = convertEdition
	}
	if flags.Changed("compressed") {
		cfg.Encode.Compressed = convertCompress
	}
	if flags.Changed("check-digit") {
		cfg.Encode.CheckDigit = convertCheck
	}
	if flags.Changed("zstd") {
		cfg.Output.Zstd = convertZstd
	}
	if flags.Changed("template") {
		cfg.Encode.Template = convertTemplate
	}
	if flags.Changed("skip-errors") {
		cfg.SkipErrors = skipErrors
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	copts := gobufr.ConvertOptions{Compressed: cfg.Encode.Compressed, CheckDigit: cfg.Encode.CheckDigit}
	switch strings.ToLower(convertTo) {
	case "bufr":
		copts.Format = gobufr.BUFR
		copts.Edition = cfg.Encode.Edition
	case "crex":
		copts.Format = gobufr.CREX
	default:
		return fmt.Errorf("unknown output format %q", convertTo)
	}

	c, err := newCodec()
	if err != nil {
		return err
	}
	in, err := openInput(args[0])
	if err != nil {
		return err
	}
	if in != os.Stdin {
		defer in.Close()
	}
	out := cmd.OutOrStdout()
	if args[1] != "-" {
		f, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	w, err := archive.NewWriter(out, cfg.Output.Zstd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	eopts := gobufr.EncodeOptions{Template: cfg.Encode.Template}
	aopts := archive.Options{SkipErrors: cfg.SkipErrors, Log: logrus.StandardLogger()}
	err = c.DecodeStream(ctx, in, args[0], aopts, func(raw archive.Raw, m *gobufr.Message) error {
		data, err := c.Encode(ctx, gobufr.Convert(m, copts), eopts)
		if err := aopts.Handle(raw, err); err != nil {
			return fmt.Errorf("%s: %w", raw, err)
		}
		if data == nil {
			return nil
		}
		return w.Write(data)
	})
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"output": args[1], "messages": w.Count()}).Info("conversion complete")
	return nil
}
