package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/zulandar/signalbox/internal/assemble"
	"github.com/zulandar/signalbox/internal/intent"
	"github.com/zulandar/signalbox/internal/trace"
)

// answerer is the slice of the engine the ask command needs.
type answerer interface {
	Handle(ctx context.Context, req intent.Request) (*assemble.Response, *trace.AgentTrace, error)
}

type askOpts struct {
	interactive bool
	asJSON      bool
	showTrace   bool
}

func newAskCmd() *cobra.Command {
	var (
		configPath string
		opts       askOpts
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a diagnostic question from the terminal",
		Long: "Answers one question given as arguments or on stdin. With no arguments on an\n" +
			"interactive terminal, starts a prompt that answers each line until EOF or \"exit\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.buildEngine(); err != nil {
				return err
			}
			opts.interactive = len(args) == 0 && term.IsTerminal(int(os.Stdin.Fd()))

			stop := a.runEnrichment(cmd.Context(), cmd.ErrOrStderr())
			err = runAsk(cmd.Context(), a.engine, cmd.InOrStdin(), cmd.OutOrStdout(), args, opts)
			stop()
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Signalbox config file")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the response as JSON")
	cmd.Flags().BoolVar(&opts.showTrace, "trace", false, "print the execution trace after the answer")
	return cmd
}

func runAsk(ctx context.Context, ans answerer, in io.Reader, out io.Writer, args []string, opts askOpts) error {
	if len(args) > 0 {
		return askOnce(ctx, ans, out, strings.Join(args, " "), opts)
	}
	if !opts.interactive {
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("read question: %w", err)
		}
		return askOnce(ctx, ans, out, string(data), opts)
	}

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "sb> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "exit", "quit":
			return nil
		default:
			if err := askOnce(ctx, ans, out, line, opts); err != nil {
				fmt.Fprintf(out, "error: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "sb> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func askOnce(ctx context.Context, ans answerer, out io.Writer, question string, opts askOpts) error {
	req := intent.Request{
		ID:        uuid.NewString(),
		Channel:   "cli",
		UserID:    os.Getenv("USER"),
		Payload:   intent.Payload{Kind: intent.KindText, Content: question},
		Timestamp: time.Now().UTC(),
	}
	resp, tr, err := ans.Handle(ctx, req)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		payload := map[string]any{"response": resp}
		if opts.showTrace {
			payload["trace"] = tr
		}
		return enc.Encode(payload)
	}

	printResponse(out, resp)
	if opts.showTrace && tr != nil {
		printTrace(out, tr)
	}
	return nil
}

func printResponse(out io.Writer, resp *assemble.Response) {
	fmt.Fprintf(out, "[route %s]", resp.Route)
	if resp.Unverified {
		fmt.Fprint(out, " unverified")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, resp.Answer)

	if len(resp.Notes) > 0 {
		fmt.Fprintln(out, "\nNotes:")
		for _, n := range resp.Notes {
			fmt.Fprintf(out, "  - %s\n", n)
		}
	}
	if len(resp.FollowUps) > 0 {
		fmt.Fprintln(out, "\nNext steps:")
		for _, f := range resp.FollowUps {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	if len(resp.Citations) > 0 {
		ids := make([]string, 0, len(resp.Citations))
		for _, c := range resp.Citations {
			ids = append(ids, c.Kind+":"+c.ID)
		}
		fmt.Fprintf(out, "\nSources: %s\n", strings.Join(ids, ", "))
	}
}

func printTrace(out io.Writer, tr *trace.AgentTrace) {
	fmt.Fprintf(out, "\nTrace %s: vendor=%s confidence=%.2f coverage=%s total=%s\n",
		tr.RequestID, tr.Vendor, tr.Confidence, tr.Coverage, tr.Total.Round(time.Microsecond))
	for _, st := range tr.Stages {
		fmt.Fprintf(out, "  %-15s %s\n", st.Stage, st.Duration.Round(time.Microsecond))
	}
	if len(tr.Flags) > 0 {
		fmt.Fprintf(out, "  flags: %s\n", strings.Join(tr.Flags, ", "))
	}
}
