package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/szaher/meemo/internal/config"
	"github.com/szaher/meemo/internal/curriculum"
	"github.com/szaher/meemo/internal/gen"
	"github.com/szaher/meemo/internal/llm"
	"github.com/szaher/meemo/internal/session"
	"github.com/szaher/meemo/internal/slide"
	"github.com/szaher/meemo/internal/stream"
	"github.com/szaher/meemo/internal/telemetry"
	"github.com/szaher/meemo/internal/tutor"
	"github.com/szaher/meemo/internal/visual"
)

func newChatCmd() *cobra.Command {
	var course string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive tutoring session in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if course != "" {
				cfg.Course.Topic = course
			}
			return runChat(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&course, "course", "", "Course topic (overrides config)")
	return cmd
}

// consoleEmitter prints turn events as terminal output. Tokens stream
// inline; structural events become short notices.
type consoleEmitter struct{}

func (consoleEmitter) Emit(event *stream.Event) {
	switch event.Type {
	case stream.Token:
		if content, ok := event.Data["content"].(string); ok {
			fmt.Print(content)
		}
	case stream.SlideCreated:
		if sl, ok := event.Data["slide"].(slide.Slide); ok {
			fmt.Printf("\n\n  [slide %d] %s\n", sl.SlideNumber+1, sl.Title)
		}
	case stream.TurnEnd:
		fmt.Println()
	}
}

func runChat(ctx context.Context, cfg *config.Config) error {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := telemetry.NewLogger(os.Stderr, level)

	client, model := llm.NewClientForModel(cfg.Model.Name)
	port := gen.NewPort(client, model,
		gen.WithLimiter(gen.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)),
		gen.WithTemperature(cfg.Model.Temperature),
		gen.WithMaxTokens(cfg.Model.MaxTokens),
		gen.WithLogger(logger),
	)
	builder := slide.NewBuilder(port, visual.NewGenerator(port, visual.WithLogger(logger)), logger)

	policy, err := tutor.NewRoutingPolicy(cfg.Policy.QuestionExpr, cfg.Policy.SkipKeywords, cfg.Policy.UseClassifier)
	if err != nil {
		return fmt.Errorf("routing policy: %w", err)
	}
	engine := tutor.NewEngine(port, builder, cfg.Course.Topic,
		tutor.WithPolicy(policy),
		tutor.WithEngineLogger(logger),
	)

	var cur curriculum.Curriculum
	if cfg.Course.File != "" {
		cur, err = curriculum.LoadFile(cfg.Course.File)
		if err != nil {
			return fmt.Errorf("load course: %w", err)
		}
	} else {
		cur = curriculum.Builtin(cfg.Course.Topic)
	}

	store := session.NewMemoryStore(0)
	controller := stream.NewController(engine, store, curriculum.NewProvider(cur), stream.WithLogger(logger))

	sessionID, err := controller.Create(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Course: %s (type 'exit' to quit)\n\n", cur.Course)

	emitter := consoleEmitter{}
	result, err := controller.SubmitMessage(ctx, sessionID, tutor.StartUtterance, emitter)
	if err != nil {
		return err
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if result.Stage == tutor.StageCompleted {
			fmt.Println("\nCourse complete! 🎓")
			return nil
		}

		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		result, err = controller.SubmitMessage(ctx, sessionID, input, emitter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "\n%s\n", tutor.FriendlyError(err))
			continue
		}
	}
}
