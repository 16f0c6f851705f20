package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/chat-go-sdk/memory"
	"github.com/becomeliminal/chat-go-sdk/session"
)

type sessionFlags struct {
	model       string
	system      string
	temperature float64
	maxTokens   int
	stream      bool
	longTerm    bool
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "configured model name (default: default_model)")
	cmd.Flags().StringVarP(&f.system, "system", "s", "", "system prompt")
	cmd.Flags().Float64VarP(&f.temperature, "temperature", "t", 0, "sampling temperature")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "maximum reply tokens")
	cmd.Flags().BoolVar(&f.stream, "stream", false, "print the reply as it is generated")
	cmd.Flags().BoolVar(&f.longTerm, "long-term", false, "record turns to long-term memory and replay recent ones")
}

func (f *sessionFlags) apply(cmd *cobra.Command, a *app, s *session.Session) error {
	if f.system != "" {
		s.SysPrompt(f.system)
	}
	if cmd.Flags().Changed("temperature") {
		s.Temperature(f.temperature)
	}
	if f.maxTokens > 0 {
		s.MaxTokens(f.maxTokens)
	}
	if f.longTerm && !s.Memory().LongTermEnabled() {
		recent := a.cfg.Memory.RecentTurns
		if len(s.History()) > 0 {
			recent = 0
		}
		return s.EnableMemory(true, true, recent)
	}
	return nil
}

func newAskCmd(a *app) *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newSession(flags.model)
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, a, s); err != nil {
				return err
			}
			return reply(cmd.Context(), cmd.OutOrStdout(), s, strings.Join(args, " "), flags.stream)
		},
	}
	flags.register(cmd)
	return cmd
}

func newChatCmd(a *app) *cobra.Command {
	var (
		flags    sessionFlags
		loadPath string
		savePath string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat; type 'reset' to clear history, 'exit' to quit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				s   *session.Session
				err error
			)
			if loadPath != "" {
				s, err = a.loadSession(loadPath)
			} else {
				s, err = a.newSession(flags.model)
			}
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, a, s); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chat started with %s/%s. Type 'reset' to clear history, 'exit' to quit.\n", s.Provider(), s.Model())
			if err := chatLoop(cmd.Context(), cmd.InOrStdin(), out, s, flags.stream); err != nil {
				return err
			}
			if savePath != "" {
				if err := s.Save(savePath); err != nil {
					return err
				}
				fmt.Fprintf(out, "Session saved to %s\n", savePath)
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&loadPath, "load", "", "resume a saved session file")
	cmd.Flags().StringVar(&savePath, "save", "", "save the session to this file on exit")
	return cmd
}

// loadSession resumes a saved session with the configured memory settings.
// A restored conversation is not topped up from the long-term log.
func (a *app) loadSession(path string) (*session.Session, error) {
	s, err := a.registry.Load(path, a.creds,
		session.WithMemory(memory.New(a.cfg.Memory.Dir)), session.WithLogger(a.logger))
	if err != nil {
		return nil, err
	}
	if a.cfg.Memory.LongTerm {
		recent := a.cfg.Memory.RecentTurns
		if len(s.History()) > 0 {
			recent = 0
		}
		if err := s.EnableMemory(true, true, recent); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, s *session.Session, stream bool) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, ">>> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch strings.ToLower(line) {
		case "":
			continue
		case "exit", "quit":
			fmt.Fprintln(out, "Goodbye.")
			return nil
		case "reset":
			s.Reset()
			fmt.Fprintln(out, "[Context cleared]")
			continue
		}

		if err := reply(ctx, out, s, line, stream); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(out, "[Error: %v]\n", err)
		}
	}
}

func reply(ctx context.Context, out io.Writer, s *session.Session, prompt string, stream bool) error {
	if !stream {
		resp, err := s.Ask(ctx, prompt)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, resp.Content)
		return nil
	}

	for chunk, err := range s.AskStream(ctx, prompt) {
		if err != nil {
			fmt.Fprintln(out)
			return err
		}
		fmt.Fprint(out, chunk.Content)
	}
	fmt.Fprintln(out)
	return nil
}
