// Command indexer publishes a document index from passages that were
// chunked elsewhere. It reads a JSON array of {id, text, page, offset}
// objects and writes the index to the configured backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/notice-extractor/internal/bootstrap"
	"github.com/kirillkom/notice-extractor/internal/config"
	"github.com/kirillkom/notice-extractor/internal/core/domain"
	"github.com/kirillkom/notice-extractor/internal/observability/logging"
)

func main() {
	ownerID := flag.String("owner", "", "owner id")
	documentID := flag.String("document", "", "document id")
	passagesPath := flag.String("passages", "", "path to a JSON array of passages")
	flag.Parse()

	cfg := config.Load()
	cfg.ConversationBackend = bootstrap.ConversationBackendNone
	slog.SetDefault(logging.NewJSONLogger("indexer", cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	raw, err := os.ReadFile(*passagesPath)
	if err != nil {
		log.Fatalf("read passages: %v", err)
	}
	var passages []domain.Passage
	if err := json.Unmarshal(raw, &passages); err != nil {
		log.Fatalf("decode passages: %v", err)
	}

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: "indexer"})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	ref := domain.DocumentIndexRef{OwnerID: *ownerID, DocumentID: *documentID}
	handle, err := app.Builder.Build(ctx, ref, passages)
	if err != nil {
		slog.Error("index_build_failed", "ref", ref.String(), "kind", domain.FailureKind(err), "error", err.Error())
		os.Exit(1)
	}
	slog.Info("index_built",
		"ref", ref.String(),
		"backend", cfg.IndexBackend,
		"passages", handle.Len(),
		"dim", handle.Dim(),
	)
}
