package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/chat-go-sdk/rag"
	"github.com/becomeliminal/chat-go-sdk/server"
	"github.com/becomeliminal/chat-go-sdk/session"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr      string
		accessLog bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP and websocket API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			embedder, closeEmbedder, err := a.cfg.NewEmbedder(ctx, a.creds)
			if err != nil {
				return err
			}
			defer closeEmbedder()
			store, err := a.cfg.NewStore(a.logger)
			if err != nil {
				return err
			}

			opts := []server.Option{
				server.WithRegistry(a.registry),
				server.WithLogger(a.logger),
				server.WithRAG(func(llm rag.Asker) (*rag.Engine, error) {
					return a.cfg.NewEngine(llm, embedder, store, a.logger)
				}, embedder, store, a.cfg.RAG.TextField),
			}
			if accessLog {
				opts = append(opts, server.WithAccessLog())
			}
			srv := server.New(func(model string) (*session.Session, error) {
				return a.newSession(model)
			}, opts...)

			errc := make(chan error, 1)
			go func() { errc <- srv.Start(addr) }()
			cmd.Printf("Listening on %s\n", addr)

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if a.cfg.RAG.Path != "" && store.Len() > 0 {
				return store.Save(a.cfg.RAG.Path)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: server.addr)")
	cmd.Flags().BoolVar(&accessLog, "access-log", false, "log every request")
	return cmd
}
