package main

import (
	"errors"
	"io"
	"io/fs"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/chat-go-sdk/config"
	"github.com/becomeliminal/chat-go-sdk/session"
)

const defaultConfigFile = "chatctl.yaml"

// app carries state shared by every subcommand.
type app struct {
	configPath string
	envFile    string
	verbose    bool

	cfg      *config.Config
	registry *session.Registry
	creds    *config.Credentials
	logger   *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Chat with language models, run RAG queries and manage vector stores",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./"+defaultConfigFile+" when present)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file with API keys")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log memory and retrieval activity")

	root.AddCommand(
		newModelsCmd(a),
		newAskCmd(a),
		newChatCmd(a),
		newRAGCmd(a),
		newServeCmd(a),
		newVSCmd(),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	a.logger = log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	if !a.verbose {
		a.logger.SetOutput(io.Discard)
	}

	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	path := a.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigFile); err == nil {
			path = defaultConfigFile
		} else if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if path == "" {
		a.cfg = config.Default()
	} else {
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}

	a.creds = a.cfg.Credentials()
	config.InitCredentials(a.creds)
	a.registry = a.cfg.BuildRegistry()
	return nil
}

// newSession builds a session for the named model, logging through a.logger.
func (a *app) newSession(model string) (*session.Session, error) {
	return a.cfg.NewSession(a.registry, model, a.creds, session.WithLogger(a.logger))
}
