package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/becomeliminal/chat-go-sdk/rag"
)

func newRAGCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rag",
		Short: "Index documents and answer questions from them",
	}
	cmd.AddCommand(newRAGIndexCmd(a), newRAGAskCmd(a))
	return cmd
}

func (a *app) storePath(flag string) (string, error) {
	if flag != "" {
		a.cfg.RAG.Path = flag
	}
	if a.cfg.RAG.Path == "" {
		return "", errors.New("no vector store path: pass --store or set rag.path")
	}
	return a.cfg.RAG.Path, nil
}

func newRAGIndexCmd(a *app) *cobra.Command {
	var (
		storeFlag string
		chunkSize int
		overlap   int
	)
	cmd := &cobra.Command{
		Use:   "index <file>...",
		Short: "Embed text files and add them to the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, err := a.storePath(storeFlag)
			if err != nil {
				return err
			}

			var docs []rag.Document
			for _, file := range args {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				doc := rag.Document{
					ID:       filepath.Base(file),
					Text:     string(data),
					Metadata: map[string]any{"file": file},
				}
				if chunkSize <= 0 {
					docs = append(docs, doc)
					continue
				}
				chunks, err := rag.ChunkDocument(doc, chunkSize, overlap)
				if err != nil {
					return fmt.Errorf("%s: %w", file, err)
				}
				docs = append(docs, chunks...)
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

			ids, err := rag.IndexDocuments(ctx, embedder, store, a.cfg.RAG.TextField, docs...)
			if err != nil {
				return err
			}
			if err := store.Save(path); err != nil {
				return err
			}
			cmd.Printf("Indexed %d documents into %s (%d total)\n", len(ids), path, store.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&storeFlag, "store", "", "vector store file (default: rag.path)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "split files into chunks of this many characters")
	cmd.Flags().IntVar(&overlap, "overlap", 0, "characters shared between neighbouring chunks")
	return cmd
}

func newRAGAskCmd(a *app) *cobra.Command {
	var (
		model     string
		storeFlag string
		template  string
		topK      int
		strict    bool
		trace     bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the vector store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := a.storePath(storeFlag); err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("template") {
				a.cfg.RAG.Template = template
			}
			if flags.Changed("top-k") {
				a.cfg.RAG.TopK = topK
			}
			if flags.Changed("strict") {
				a.cfg.RAG.StrictMode = strict
			}
			if flags.Changed("trace") {
				a.cfg.RAG.Trace = trace
				if trace {
					a.logger.SetOutput(cmd.ErrOrStderr())
				}
			}
			if a.cfg.RAG.StrictMode {
				a.logger.SetOutput(cmd.ErrOrStderr())
			}

			s, err := a.newSession(model)
			if err != nil {
				return err
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
			engine, err := a.cfg.NewEngine(s, embedder, store, a.logger)
			if err != nil {
				return err
			}

			resp, err := engine.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Content)
			return nil
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "configured model name")
	cmd.Flags().StringVar(&storeFlag, "store", "", "vector store file (default: rag.path)")
	cmd.Flags().StringVar(&template, "template", "", "prompt template: auto, context_question, qa_block or plain")
	cmd.Flags().IntVarP(&topK, "top-k", "k", rag.DefaultTopK, "documents to retrieve")
	cmd.Flags().BoolVar(&strict, "strict", false, "warn when nothing relevant is found")
	cmd.Flags().BoolVar(&trace, "trace", false, "log each retrieval step")
	return cmd
}
