// Package app provides the docquery server application.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kart-io/docquery/cmd/docquery/app/options"
	"github.com/kart-io/docquery/pkg/app"
)

const (
	// Name is the name of the application.
	Name = "docquery"

	commandDesc = `Document Q&A service

Indexes uploaded documents into a vector store and answers questions over
them with retrieval-augmented generation.

This server provides:
  - Document ingestion (plain text, markdown, CSV, PDF, DOCX)
  - Scoped semantic retrieval with deterministic ranking
  - Chat answers with cited sources
  - Table extraction: one prompt per column, one document per row,
    with a persistent per-cell answer cache
  - Offline evaluation over labeled examples`
)

// NewApp creates and returns a new App object with default parameters.
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(Name),
		app.WithShortDescription("Document Q&A RAG service"),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

// run contains the main logic for initializing and running the server.
func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		return server.Run(ctx)
	}
}

// setupSignalContext returns a context cancelled on SIGINT or SIGTERM.
// A second signal forces immediate exit.
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
