// Command vibecheck checks that a VibeProxy endpoint is reachable, lists the
// models it serves and optionally probes a model or runs a single chat turn.
//
// Usage:
//
//	vibecheck [--url=URL] [--model=ID] [--probe] [--message=TEXT] [--system=PROMPT] [--stream]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/vibeproxy/vibeproxy-go/pkg/conversation"
	"github.com/vibeproxy/vibeproxy-go/pkg/logging"
	"github.com/vibeproxy/vibeproxy-go/pkg/vibeproxy"
)

type options struct {
	url      string
	model    string
	probe    bool
	message  string
	system   string
	stream   bool
	timeout  time.Duration
	logLevel string
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("vibecheck", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.url, "url", "", "VibeProxy base URL (default $VIBEPROXY_URL or http://localhost:8317/v1)")
	fs.StringVar(&opts.model, "model", "", "model id (default $VIBEPROXY_MODEL)")
	fs.BoolVar(&opts.probe, "probe", false, "send a short test prompt to the model")
	fs.StringVar(&opts.message, "message", "", "run one chat turn with this user message")
	fs.StringVar(&opts.system, "system", "", "system prompt for the chat turn")
	fs.BoolVar(&opts.stream, "stream", false, "stream the chat turn")
	fs.DurationVar(&opts.timeout, "timeout", 0, "request timeout (default $VIBEPROXY_TIMEOUT or 60s)")
	fs.StringVar(&opts.logLevel, "log-level", "error", "log level")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// run returns the process exit code: 0 on success, 1 when a check failed and
// 2 on bad flags.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}

	logger := logging.NewWithWriter(opts.logLevel, "text", stderr)
	client := vibeproxy.New(vibeproxy.Config{
		BaseURL: opts.url,
		Model:   opts.model,
		Timeout: opts.timeout,
	}, vibeproxy.WithLogger(logger))
	cfg := client.Config()

	fmt.Fprintf(stdout, "VibeProxy: %s\n", cfg.BaseURL)

	health := client.HealthCheck(ctx)
	if !health.Healthy {
		fmt.Fprintf(stdout, "[FAIL] %s\n", health.Message)
		return 1
	}
	fmt.Fprintf(stdout, "[OK] %s\n", health.Message)

	models, err := client.ListModels(ctx)
	if err != nil {
		fmt.Fprintf(stdout, "[FAIL] list models: %v\n", err)
		return 1
	}
	for _, group := range vibeproxy.GroupByProvider(models) {
		fmt.Fprintf(stdout, "\n%s (%d)\n", group.Provider, len(group.Models))
		for _, m := range group.Models {
			fmt.Fprintf(stdout, "  %-40s %s\n", m.ID, m.DisplayName())
		}
	}

	code := 0
	if opts.probe {
		probe := client.TestModel(ctx, opts.model)
		status := "OK"
		if !probe.Success {
			status = "FAIL"
			code = 1
		}
		fmt.Fprintf(stdout, "\n[%s] probe %s: %s\n", status, probe.Model, probe.Message)
	}

	if opts.message != "" {
		if err := chat(ctx, client, opts, stdout); err != nil {
			fmt.Fprintf(stdout, "\n[FAIL] chat: %v\n", err)
			code = 1
		}
	}
	return code
}

func chat(ctx context.Context, client *vibeproxy.Client, opts options, stdout io.Writer) error {
	sessions := conversation.NewManager(client)
	sessionID := uuid.NewString()
	turn := conversation.Options{
		Options:      vibeproxy.Options{Model: opts.model},
		SystemPrompt: opts.system,
	}

	fmt.Fprintf(stdout, "\nsession %s\n> %s\n", sessionID, opts.message)

	if !opts.stream {
		reply, err := sessions.Send(ctx, sessionID, opts.message, turn)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "%s\n(finish: %s, messages: %d)\n", reply.Content, reply.FinishReason, reply.MessageCount)
		return nil
	}

	stream, err := sessions.SendStream(ctx, sessionID, opts.message, turn)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(stdout)
			return nil
		}
		if err != nil {
			fmt.Fprintln(stdout)
			return err
		}
		switch chunk.Type {
		case vibeproxy.ChunkText:
			fmt.Fprint(stdout, chunk.Content)
		case vibeproxy.ChunkDone:
			fmt.Fprintf(stdout, "\n(finish: %s)\n", chunk.FinishReason)
		}
	}
}
