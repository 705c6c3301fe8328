package main

import (
	"fmt"
	"log"
	"os"

	"lm-go/internal/util"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var version = "dev"

// CLI holds the flags and collaborators shared by every command
type CLI struct {
	verbose    bool
	jsonOutput bool
	logger     *zap.Logger
	logLevel   zap.AtomicLevel
	rootCmd    *cobra.Command
}

func main() {
	c := NewCLI()
	if err := c.rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCLI builds the command tree
func NewCLI() *CLI {
	c := &CLI{}
	c.rootCmd = &cobra.Command{
		Use:           "lm",
		Short:         "Train, evaluate and sample n-gram language models",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.initLogger(cmd.Name() == "serve")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	c.rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	c.rootCmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "Print results as JSON")

	c.rootCmd.AddCommand(
		c.newTrainCommand(),
		c.newEvalCommand(),
		c.newGenerateCommand(),
		c.newTraceCommand(),
		c.newServeCommand(),
	)
	return c
}

// initLogger builds the zap logger. The server logs to stdout and all.log;
// the other commands keep stdout for their results.
func (c *CLI) initLogger(server bool) error {
	cfgZap := zap.NewProductionConfig()
	cfgZap.Level.SetLevel(zapcore.InfoLevel)
	if c.verbose {
		cfgZap.Level.SetLevel(zapcore.DebugLevel)
	}
	if server {
		cfgZap.OutputPaths = []string{"stdout", "all.log"}
	} else {
		cfgZap.OutputPaths = []string{"stderr"}
	}

	logger, err := cfgZap.Build()
	if err != nil {
		log.Println("Failed to initialize logger:", err)
		return err
	}
	c.logger = logger
	c.logLevel = cfgZap.Level
	return nil
}

// printJSON writes v to stdout as indented JSON
func (c *CLI) printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// relative shortens paths under the working directory for display
func relative(path string) string {
	wd, err := os.Getwd()
	if err != nil {
		return path
	}
	return util.ToRelativePath(wd, path)
}
