package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/apidex/apidex/internal/store"
)

// indexBatchSize is how many documents are embedded and written per
// round. Keeps memory flat on large corpora.
const indexBatchSize = 64

// docRecord is one line of the JSONL ingestion format.
type docRecord struct {
	ID       string         `json:"id"`
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

func newIndexCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index API documentation from a JSONL file",
		Long: `Index documents into the local search index.

The input is JSON Lines: one document object per line with fields
"id" (required), "title", "content", and "metadata".

Examples:
  apidex index --file docs.jsonl
  cat docs.jsonl | apidex index --file -`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, file)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "JSONL input file (\"-\" for stdin)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, file string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var input io.Reader
	if file == "-" {
		input = cmd.InOrStdin()
	} else {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		input = f
	}

	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	// One indexer at a time per data directory.
	lock := store.NewIndexLock(cfg.Paths.DataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring index lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another apidex process is indexing %s", cfg.Paths.DataDir)
	}
	defer func() { _ = lock.Unlock() }()

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	total, err := indexStream(ctx, p, input)
	if err != nil {
		_ = p.close(total > 0)
		return err
	}
	if err := p.close(true); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents in %s\n", total, time.Since(start).Round(time.Millisecond))
	return nil
}

func indexStream(ctx context.Context, p *pipeline, input io.Reader) (int, error) {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)

	batch := make([]*store.Document, 0, indexBatchSize)
	total := 0
	line := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.engine.Index(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec docRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return total, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		if rec.ID == "" {
			return total, fmt.Errorf("line %d: missing document id", line)
		}

		batch = append(batch, &store.Document{
			ID:       rec.ID,
			Title:    rec.Title,
			Content:  rec.Content,
			Metadata: rec.Metadata,
		})
		if len(batch) >= indexBatchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return total, fmt.Errorf("reading input: %w", err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}
