package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/d21d3q/gobufr/internal/config"
	"github.com/d21d3q/gobufr/pkg/gobufr"
)

var (
	rootCmd = &cobra.Command{
		Use:   "gobufr",
		Short: "Decode and encode WMO BUFR and CREX messages",
		Long:  "gobufr decodes, converts and inspects BUFR and CREX messages using the gobufr library.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
			return loadConfig(cmd)
		},
		SilenceUsage: true,
	}

	configPath string
	tablesDir  string
	verbose    bool

	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML configuration file (default $"+config.EnvVar+")")
	rootCmd.PersistentFlags().StringVar(&tablesDir, "tables", "", "directory holding bufr_<version>.yaml table files")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(decodeCmd, convertCmd, tableCmd)
}

func main() {
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}

func loadConfig(cmd *cobra.Command) error {
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("tables") {
		cfg.Tables.Dir = tablesDir
	}
	logrus.WithField("tables", cfg.Tables.Dir).Debug("configuration loaded")
	return nil
}

func newCodec() (*gobufr.Codec, error) {
	return gobufr.New(gobufr.Options{
		TablesDir: cfg.Tables.Dir,
		Limits: gobufr.Limits{
			MaxProgram:   cfg.Limits.MaxProgram,
			MaxVariables: cfg.Limits.MaxVariables,
		},
		Log: logrus.StandardLogger(),
	})
}

// openInput returns stdin for "-" and the named file otherwise.
func openInput(name string) (*os.File, error) {
	if name == "-" {
		return os.Stdin, nil
	}
	return os.Open(name)
}
