// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/recollect"
	"github.com/poiesic/recollect/api"
	"github.com/poiesic/recollect/config"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/ingest"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "recollect",
		Usage: "Searchable conversation archive built from Telegram chat exports",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config file",
				EnvVars: []string{"RECOLLECT_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest a Telegram export file into the archive",
				ArgsUsage: "[export.json]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "mode",
						Aliases: []string{"m"},
						Usage:   "Ingestion mode: incremental or force",
						Value:   "incremental",
					},
					&cli.StringFlag{
						Name:  "source-tag",
						Usage: "Tag ingested documents with a source chat name",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search the archive for relevant conversations",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return (defaults from config)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum blended score (defaults from config)",
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Answer a question from retrieved conversations",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of conversations to retrieve (defaults from config)",
					},
					&cli.Float64Flag{
						Name:  "threshold",
						Usage: "Minimum blended score (defaults from config)",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (defaults from config)",
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "Show archive document counts and recent runs",
				Action: statsCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func ingestCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	mode, err := ingest.ParseMode(c.String("mode"))
	if err != nil {
		return err
	}

	path := c.Args().First()
	if path == "" {
		path = cfg.Ingest.ExportPath
	}
	if path == "" {
		return fmt.Errorf("no export file given and none configured")
	}

	archive, err := recollect.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	fmt.Fprintf(os.Stderr, "Ingesting %s (%s mode)\n", path, mode)

	report, err := archive.IngestFile(c.Context, path, mode, c.String("source-tag"))
	if report != nil {
		printReport(os.Stderr, report)
	}
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	return nil
}

func searchCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("query required")
	}

	archive, err := recollect.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	results, err := archive.Search(c.Context, query, topK(c, cfg), threshold(c, cfg))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	fmt.Printf("Found %d results\n", len(results))
	for i, hit := range results {
		fmt.Printf("\n%d. %s [%.3f]\n", i+1, hit.Document.ThreadID, hit.Score)
		fmt.Println(hit.Document.Body)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	question := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(question) == "" {
		return fmt.Errorf("question required")
	}

	archive, err := recollect.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	results, err := archive.Search(c.Context, question, topK(c, cfg), threshold(c, cfg))
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 {
		fmt.Println("No relevant conversations found.")
		return nil
	}

	answer, err := archive.Generator().Generate(c.Context, buildPrompt(question, results))
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	fmt.Println(answer)
	fmt.Println("\nSources:")
	for _, hit := range results {
		fmt.Printf("  %s [%.3f]\n", hit.Document.ThreadID, hit.Score)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("addr") {
		cfg.API.Addr = c.String("addr")
	}

	archive, err := recollect.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	server, err := api.NewServer(cfg.API.Addr, cfg.API.Token, archive)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

func statsCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	archive, err := recollect.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer archive.Close()

	count, err := archive.CountDocuments(c.Context)
	if err != nil {
		return err
	}
	fmt.Printf("Documents: %d\n", count)

	runs, err := archive.RecentRuns(c.Context, 5)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No ingestion runs recorded.")
		return nil
	}

	fmt.Println("\nRecent runs:")
	for _, run := range runs {
		fmt.Printf("  %s  %-11s  ok=%d failed=%d skipped=%d\n",
			run.StartedAt.Format(time.RFC3339), run.Mode,
			run.Succeeded, run.Failed, run.DocumentsSkipped)
	}
	return nil
}

// loadConfig resolves the configuration and applies its log level unless
// the command line already chose one.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if !c.IsSet("log-level") && cfg.LogLevel != "" {
		if err := applyLogLevel(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// topK resolves the result count: flag beats config.
func topK(c *cli.Context, cfg *config.Config) int {
	if c.IsSet("top-k") {
		return c.Int("top-k")
	}
	return cfg.Search.TopK
}

// threshold resolves the score floor: flag beats config.
func threshold(c *cli.Context, cfg *config.Config) float32 {
	if c.IsSet("threshold") {
		return float32(c.Float64("threshold"))
	}
	return cfg.Search.ScoreThreshold
}

func printReport(w io.Writer, report *core.RunReport) {
	fmt.Fprintf(w, "Run %s (%s)\n", report.RunID, report.Mode)
	fmt.Fprintf(w, "  messages: %d (%d dropped)\n", report.MessagesTotal, report.MessagesDropped)
	fmt.Fprintf(w, "  threads:  %d\n", report.ThreadsDetected)
	fmt.Fprintf(w, "  ingested: %d succeeded, %d failed, %d skipped\n",
		report.Succeeded, report.Failed, report.DocumentsSkipped)
	if report.OrderingWarnings > 0 {
		fmt.Fprintf(w, "  ordering warnings: %d\n", report.OrderingWarnings)
	}
	for _, ingestErr := range report.Errors {
		fmt.Fprintf(w, "  error doc %d: %s\n", ingestErr.DocumentID, ingestErr.Reason)
	}
}

// buildPrompt frames retrieved conversations as grounding context for the
// generation model.
func buildPrompt(question string, results []*core.SearchResult) string {
	var b strings.Builder
	b.WriteString("Answer the question using only the conversation excerpts below.\n")
	b.WriteString("If the excerpts do not contain the answer, say that the archive has no record of it.\n\n")
	for i, hit := range results {
		fmt.Fprintf(&b, "Excerpt %d:\n%s\n\n", i+1, hit.Document.Body)
	}
	fmt.Fprintf(&b, "Question: %s\n", question)
	return b.String()
}

func setupLogger(c *cli.Context) error {
	return applyLogLevel(c.String("log-level"))
}

func applyLogLevel(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
