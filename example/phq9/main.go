package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cobaltplatform/screeningflow/flow"
	"github.com/cobaltplatform/screeningflow/transport"
	"github.com/cobaltplatform/screeningflow/types"
)

func main() {
	conf := flag.String("config", "config.json", "path to config file")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()
	config, err := loadConfig(*conf)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	if err := startApp(context.Background(), config); err != nil {
		log.Fatalf("start app: %v", err)
	}
}

func buildService(config *Config) (transport.ScreeningService, string, func(), error) {
	if config.BaseURL == "" {
		return newDemoService(), demoEntryContextID, func() {}, nil
	}
	client, err := transport.NewClient(transport.Config{
		BaseURL:           config.BaseURL,
		AccessToken:       config.AccessToken,
		RequestsPerSecond: 5,
	})
	if err != nil {
		return nil, "", nil, err
	}
	return transport.NewScreeningAPI(client), config.EntryContextID, client.AbortAll, nil
}

func startApp(ctx context.Context, config *Config) error {
	service, entryContextID, shutdown, err := buildService(config)
	if err != nil {
		return err
	}
	defer shutdown()
	if entryContextID == "" {
		return fmt.Errorf("no entry context id configured")
	}

	done := make(chan struct{})
	controller := flow.NewController(service, flow.Hooks{
		OnFlowComplete: func() {
			close(done)
		},
		OnConfirmationDismissed: func() {
			fmt.Println("(returning to the question)")
		},
		OnError: func(err error) {
			fmt.Printf("something went wrong: %v\n", err)
		},
	}, slog.Default())
	defer controller.Close()

	if err := controller.LoadContext(ctx, entryContextID); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		select {
		case <-done:
			fmt.Println("\nAll done — thank you. Your care team will follow up.")
			return nil
		default:
		}

		snap := controller.Snapshot()
		switch snap.State {
		case flow.StateConfirming:
			if err := runConfirmation(ctx, controller, snap, reader); err != nil {
				return err
			}
		case flow.StateQuestion:
			if err := runQuestion(ctx, controller, snap, reader); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unexpected state %q", snap.State)
		}
	}
}

func runConfirmation(ctx context.Context, controller *flow.Controller, snap flow.Snapshot, reader *bufio.Reader) error {
	fmt.Println()
	fmt.Print(types.FormatConfirmationPrompt(*snap.Prompt))
	fmt.Print("continue? [y/n/back]: ")
	input, err := readLine(reader)
	if err != nil {
		return err
	}
	switch input {
	case "y", "yes", "":
		return controller.AcceptConfirmation(ctx)
	case "back":
		return controller.Previous(ctx)
	default:
		if snap.Variant == flow.ConfirmPreSubmit {
			controller.DismissConfirmation()
			return nil
		}
		return controller.Previous(ctx)
	}
}

func runQuestion(ctx context.Context, controller *flow.Controller, snap flow.Snapshot, reader *bufio.Reader) error {
	rendered, err := types.FormatQuestion(*snap.Question, snap.Selections)
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Print(rendered)
	fmt.Print("> ")
	input, err := readLine(reader)
	if err != nil {
		return err
	}

	switch input {
	case "back":
		return controller.Previous(ctx)
	case "", "next":
		if !controller.CanSubmit() {
			fmt.Println("please answer before continuing")
			return nil
		}
		return controller.Submit(ctx)
	}

	q := *snap.Question
	switch q.Type {
	case types.QuestionTypeText:
		answerID, ok := firstOptionID(q)
		if !ok {
			fmt.Println("this question has no answer field; type back or next")
			return nil
		}
		controller.SetText(answerID, input)
		return controller.Submit(ctx)
	case types.QuestionTypeDate:
		answerID, ok := firstOptionID(q)
		if !ok {
			fmt.Println("this question has no answer field; type back or next")
			return nil
		}
		day, err := time.Parse("2006-01-02", input)
		if err != nil {
			fmt.Println("please enter a date as YYYY-MM-DD")
			return nil
		}
		controller.SetDate(answerID, day)
		return controller.Submit(ctx)
	}

	index, err := strconv.Atoi(input)
	if err != nil || index < 1 || index > len(q.AnswerOptions) {
		fmt.Println("please pick an option number, or type back/next")
		return nil
	}
	if err := controller.SelectOption(ctx, q.AnswerOptions[index-1].AnswerID); err != nil {
		return err
	}
	// Single-click kinds already submitted; the rest wait for "next" so
	// checkbox groups can take multiple picks.
	if !q.Type.AutoSubmit() && q.Type.SingleSelect() {
		return controller.Submit(ctx)
	}
	return nil
}

// firstOptionID returns the answer field for single-field text/date
// questions. Malformed questions with no options get a message, not a panic.
func firstOptionID(q types.Question) (string, bool) {
	if len(q.AnswerOptions) == 0 {
		return "", false
	}
	return q.AnswerOptions[0].AnswerID, true
}

func readLine(reader *bufio.Reader) (string, error) {
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(input)), nil
}
