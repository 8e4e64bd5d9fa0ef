// Command review-agent runs one review turn from the terminal: it uploads the
// PDFs in the given folder, attaches them to the assistant for retrieval,
// asks the question, waits for the run to finish, and prints the transcript.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"review-agent/internal/domain"
	"review-agent/internal/integrations/openai"
	"review-agent/internal/integrations/paramstore"
	"review-agent/internal/repository"
	"review-agent/internal/usecase"
)

func main() {
	var (
		docsDir      = flag.String("docs", "", "folder of PDF files to upload and attach (optional)")
		question     = flag.String("question", "", "question to ask the assistant (required)")
		threadID     = flag.String("thread", "", "existing thread to resume (optional; default starts a new thread)")
		pollInterval = flag.Duration("poll-interval", 500*time.Millisecond, "delay between run status polls")
		maxWait      = flag.Duration("max-wait", 10*time.Minute, "maximum time to wait for the run (0 = no limit)")
		showHistory  = flag.Bool("history", false, "print the archived turns for -thread and exit")
	)
	flag.Parse()

	if *showHistory {
		if strings.TrimSpace(*threadID) == "" {
			fmt.Fprintln(os.Stderr, "usage: review-agent -history -thread <id>")
			os.Exit(2)
		}
	} else if strings.TrimSpace(*question) == "" {
		fmt.Fprintln(os.Stderr, "usage: review-agent -question <text> [-docs <folder>] [-thread <id>]")
		os.Exit(2)
	}

	stateTable := mustEnv("STATE_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	assistantID := os.Getenv("ASSISTANT_ID") // empty: create a new assistant

	ctx := context.Background()

	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	stateClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), stateTable)
	if err != nil {
		slog.Error("failed to create state client", "err", err)
		os.Exit(1)
	}
	if *showHistory {
		turns, err := stateClient.GetHistory(ctx, *threadID, 100)
		if err != nil {
			slog.Error("failed to load thread history", "threadId", *threadID, "err", err)
			os.Exit(1)
		}
		printHistory(*threadID, turns)
		return
	}

	apiClient, err := openai.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create assistants client", "err", err)
		os.Exit(1)
	}

	ingestor, err := usecase.NewIngestor(apiClient)
	if err != nil {
		slog.Error("failed to create ingestor", "err", err)
		os.Exit(1)
	}
	sessions, err := usecase.NewSessionService(apiClient)
	if err != nil {
		slog.Error("failed to create session service", "err", err)
		os.Exit(1)
	}
	runs, err := usecase.NewRunController(apiClient, sessions)
	if err != nil {
		slog.Error("failed to create run controller", "err", err)
		os.Exit(1)
	}
	reviewService, err := usecase.NewReviewService(ssmClient, apiClient, ingestor, sessions, runs, stateClient, paramPrefix, assistantID, 0)
	if err != nil {
		slog.Error("failed to create review service", "err", err)
		os.Exit(1)
	}

	var paths []string
	if *docsDir != "" {
		paths, err = pdfPaths(*docsDir)
		if err != nil {
			slog.Error("failed to enumerate documents", "dir", *docsDir, "err", err)
			os.Exit(1)
		}
		slog.Info("found documents", "dir", *docsDir, "count", len(paths))
	}

	out, err := reviewService.RunTurn(ctx, usecase.TurnInput{
		Question:      *question,
		ThreadID:      *threadID,
		DocumentPaths: paths,
		PollInterval:  *pollInterval,
		MaxWait:       *maxWait,
	})
	if err != nil {
		slog.Error("review turn failed", "err", err)
		os.Exit(1)
	}

	for _, f := range out.IngestFailures {
		slog.Warn("document upload failed", "path", f.Path, "err", f.Err)
	}
	for _, d := range out.Documents {
		slog.Info("uploaded document", "file", d.Filename, "fileId", d.FileID)
	}
	slog.Info("run finished", "threadId", out.ThreadID, "runId", out.Run.ID, "status", out.Run.Status)

	printTranscript(out.Messages)
}

// pdfPaths enumerates the folder and keeps only PDF files, sorted by name so
// upload order is stable across invocations.
func pdfPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func printHistory(threadID string, turns []domain.Turn) {
	fmt.Printf("# Thread %s (%d archived turns)\n", threadID, len(turns))
	for _, t := range turns {
		fmt.Printf("Q: %s\nA: %s\n\n", t.Question, t.Answer)
	}
}

func printTranscript(msgs []domain.Message) {
	fmt.Println("# Messages")
	for _, m := range msgs {
		fmt.Printf("%s: %s\n", m.Role, m.Text())
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}
