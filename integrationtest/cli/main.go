// Package main provides an interactive CLI for exercising the retry
// pipeline against scripted scenarios and, optionally, a live model.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/conorluddy/persuader"
	"github.com/conorluddy/persuader/loggers"
	"github.com/conorluddy/persuader/providers"
	"github.com/conorluddy/persuader/schema"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorWhite  = "\033[37m"
	colorBold   = "\033[1m"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr,
			"%sError: %v%s\n",
			colorRed, err, colorReset)
		os.Exit(1)
	}
}

type menuItem struct {
	name        string
	description string
	run         func(ctx context.Context) (*persuader.RunResult, error)
}

func reviewSchema() *schema.Schema {
	return schema.MustCompile(schema.Object(
		schema.String("name", "Name of the reviewed dish.").MinLength(1).Required(),
		schema.Integer("score", "Quality score.").Min(1).Max(10).Required(),
		schema.String("verdict", "Overall verdict.").Enum("buy", "skip").Required(),
	))
}

const reviewInput = `The truffle ramen at Kaede is outstanding: rich broth,
perfect noodles, worth every yen. I'd go back tomorrow.`

func newPipeline(provider persuader.Provider) *persuader.Pipeline {
	return persuader.New(provider).
		RegisterHook(loggers.NewStreamHook())
}

func scenarios() []menuItem {
	return []menuItem{
		{
			name:        "Happy Path",
			description: "Conforming response on the first attempt",
			run: func(ctx context.Context) (*persuader.RunResult, error) {
				provider := providers.NewScripted().
					AddResponse(`{"name": "Truffle Ramen", "score": 9, "verdict": "buy"}`)
				return newPipeline(provider).Run(ctx, &persuader.Request{
					Schema: reviewSchema(),
					Input:  reviewInput,
				})
			},
		},
		{
			name:        "Parse Recovery",
			description: "Prose response, then valid JSON after feedback",
			run: func(ctx context.Context) (*persuader.RunResult, error) {
				provider := providers.NewScripted().
					AddResponse("Sure! The dish sounds great, I'd rate it highly.").
					AddResponse(`{"name": "Truffle Ramen", "score": 9, "verdict": "buy"}`)
				return newPipeline(provider).Run(ctx, &persuader.Request{
					Schema: reviewSchema(),
					Input:  reviewInput,
				})
			},
		},
		{
			name:        "Validation Recovery",
			description: "Out-of-range score corrected on the second attempt",
			run: func(ctx context.Context) (*persuader.RunResult, error) {
				provider := providers.NewScripted().
					AddResponse(`{"name": "Truffle Ramen", "score": 15, "verdict": "amazing"}`).
					AddResponse(`{"name": "Truffle Ramen", "score": 10, "verdict": "buy"}`)
				return newPipeline(provider).Run(ctx, &persuader.Request{
					Schema: reviewSchema(),
					Input:  reviewInput,
				})
			},
		},
		{
			name:        "Exhaustion",
			description: "Persistently bad responses until the budget runs out",
			run: func(ctx context.Context) (*persuader.RunResult, error) {
				provider := providers.NewScripted().
					AddResponse(`{"score": 15}`).
					AddResponse(`{"score": 15}`).
					AddResponse(`{"score": 15}`)
				return newPipeline(provider).Run(ctx, &persuader.Request{
					Schema: reviewSchema(),
					Input:  reviewInput,
				})
			},
		},
		{
			name:        "Transient Provider Error",
			description: "Rate-limit error absorbed between two attempts",
			run: func(ctx context.Context) (*persuader.RunResult, error) {
				provider := providers.NewScripted().
					AddResponse("not json at all").
					AddError(persuader.RetryableProviderError("scripted",
						fmt.Errorf("429 too many requests"))).
					AddResponse(`{"name": "Truffle Ramen", "score": 9, "verdict": "buy"}`)
				return newPipeline(provider).Run(ctx, &persuader.Request{
					Schema: reviewSchema(),
					Input:  reviewInput,
				})
			},
		},
		{
			name:        "Live Extraction",
			description: "Run against a real model (needs PERSUADER_TEST_XAI_KEY)",
			run: func(ctx context.Context) (*persuader.RunResult, error) {
				apiKey := os.Getenv("PERSUADER_TEST_XAI_KEY")
				if apiKey == "" {
					return nil, fmt.Errorf(
						"PERSUADER_TEST_XAI_KEY is not set")
				}
				llm, err := openai.New(
					openai.WithToken(apiKey),
					openai.WithBaseURL("https://api.x.ai/v1"),
					openai.WithModel("grok-4-1-fast"),
				)
				if err != nil {
					return nil, fmt.Errorf("failed to create LLM: %w", err)
				}
				provider := providers.NewLCG(llm).WithModelName("grok-4-1-fast")
				return newPipeline(provider).Run(ctx, &persuader.Request{
					Schema:  reviewSchema(),
					Context: "You extract structured restaurant reviews.",
					Input:   reviewInput,
				})
			},
		},
	}
}

func run() error {
	rl, err := readline.New(
		colorCyan +
			"Enter selection (or 'q' to quit): " +
			colorReset)
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	items := scenarios()

	fmt.Printf("%s%sPipeline Scenarios:%s\n",
		colorBold, colorYellow, colorReset)
	fmt.Printf("%s%s%s\n",
		colorYellow, strings.Repeat("=", 19), colorReset)
	for i, item := range items {
		fmt.Printf("  %s%d.%s %s%s%s - %s\n",
			colorCyan, i+1, colorReset,
			colorWhite, item.name, colorReset,
			item.description)
	}
	fmt.Println()

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				fmt.Printf("\n%sGoodbye!%s\n", colorGreen, colorReset)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "q" || input == "Q" {
			fmt.Printf("%sGoodbye!%s\n", colorGreen, colorReset)
			return nil
		}

		num, err := strconv.Atoi(input)
		if err != nil || num < 1 || num > len(items) {
			fmt.Printf(
				"%sInvalid selection. Please enter 1-%d.%s\n\n",
				colorRed, len(items), colorReset)
			continue
		}

		item := items[num-1]
		fmt.Printf("\n%sRunning: %s%s\n\n", colorBold, item.name, colorReset)

		ctx, cancel := context.WithCancel(context.Background())
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			cancel()
		}()

		result, err := item.run(ctx)
		signal.Stop(sigCh)
		cancel()

		switch {
		case err != nil:
			fmt.Printf("\n%sScenario error: %v%s\n\n",
				colorRed, err, colorReset)
		case result.OK:
			fmt.Printf("\n%sConforming value after %d attempt(s).%s\n\n",
				colorGreen, result.AttemptCount(), colorReset)
		default:
			fmt.Printf("\n%sRun failed (%s) after %d attempt(s).%s\n\n",
				colorRed, result.Err.Kind, result.AttemptCount(), colorReset)
		}
	}
}
