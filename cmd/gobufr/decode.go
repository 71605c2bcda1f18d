package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/d21d3q/gobufr/internal/archive"
	"github.com/d21d3q/gobufr/pkg/gobufr"
)

var (
	decodeCmd = &cobra.Command{
		Use:   "decode [file...]",
		Short: "Decode messages and print their summaries",
		Long: "decode scans the files (or stdin) for BUFR and CREX messages, possibly zstd compressed,\n" +
			"and prints one summary per message. With --hex and no files it reads hex messages line by line.",
		RunE: runDecode,
	}

	decodeFormat string
	decodeHex    bool
	skipErrors   bool
)

func init() {
	decodeCmd.Flags().StringVarP(&decodeFormat, "format", "f", "", "output format: json, yaml or cbor")
	decodeCmd.Flags().BoolVar(&decodeHex, "hex", false, "read hex encoded messages from stdin, one per line")
	decodeCmd.Flags().BoolVar(&skipErrors, "skip-errors", false, "log and skip messages that fail to decode")
}

func runDecode(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("format") {
		cfg.Output.Format = decodeFormat
	}
	if cmd.Flags().Changed("skip-errors") {
		cfg.SkipErrors = skipErrors
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	c, err := newCodec()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if decodeHex {
		return runInteractive(ctx, c, cmd.InOrStdin(), out)
	}
	if len(args) == 0 {
		args = []string{"-"}
	}
	opts := archive.Options{SkipErrors: cfg.SkipErrors, Log: logrus.StandardLogger()}
	for _, name := range args {
		if err := decodeFile(ctx, c, name, opts, out); err != nil {
			return err
		}
	}
	return nil
}

func decodeFile(ctx context.Context, c *gobufr.Codec, name string, opts archive.Options, out io.Writer) error {
	f, err := openInput(name)
	if err != nil {
		return err
	}
	if f != os.Stdin {
		defer f.Close()
	}
	count := 0
	err = c.DecodeStream(ctx, f, name, opts, func(raw archive.Raw, m *gobufr.Message) error {
		count++
		return printSummary(out, gobufr.Summarize(m, raw.Source, raw.Offset))
	})
	logrus.WithFields(logrus.Fields{"file": name, "messages": count}).Debug("file decoded")
	return err
}

func printSummary(out io.Writer, s gobufr.Summary) error {
	data, err := s.Render(cfg.Output.Format)
	if err != nil {
		return err
	}
	if _, err := out.Write(data); err != nil {
		return err
	}
	if cfg.Output.Format == "json" {
		_, err = fmt.Fprintln(out)
	}
	return err
}

func runInteractive(ctx context.Context, c *gobufr.Codec, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	logrus.Info("gobufr hex mode. Paste a hex message and press Enter (Ctrl+D to exit).")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m, err := c.DecodeHex(ctx, line)
		if err != nil {
			logrus.WithError(err).Error("failed to decode message")
			continue
		}
		if err := printSummary(out, gobufr.Summarize(m, "hex", 0)); err != nil {
			return err
		}
	}
	return scanner.Err()
}
