// Command speakctl is the terminal client: it records a spoken sample,
// submits it for analysis, renders the coaching feedback, and runs the
// session gate (one-time feedback ask, sign-in wall, streaks).
//
// Usage:
//
//	speakctl record [-goal "Work English"] [-prompt "..."]
//	speakctl login -token <jwt>
//	speakctl logout
//	speakctl stats
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"speakcoach/internal/auth"
	"speakcoach/internal/capture"
	"speakcoach/internal/coach"
	"speakcoach/internal/gate"
	"speakcoach/internal/prompts"
	"speakcoach/internal/submit"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		args = []string{"record"}
	}
	switch args[0] {
	case "record":
		return cmdRecord(args[1:])
	case "login":
		return cmdLogin(args[1:])
	case "logout":
		return cmdLogout()
	case "stats":
		return cmdStats()
	default:
		return fmt.Errorf("unknown command %q (want record, login, logout, or stats)", args[0])
	}
}

func statePaths() (counters, token string, err error) {
	counters, err = gate.DefaultStatePath()
	if err != nil {
		return "", "", err
	}
	return counters, filepath.Join(filepath.Dir(counters), "token"), nil
}

func openGate() (*gate.Gate, *auth.TokenSource, error) {
	countersPath, tokenPath, err := statePaths()
	if err != nil {
		return nil, nil, err
	}
	g, err := gate.New(&gate.FileStore{Path: countersPath}, gate.DefaultAuthThreshold)
	if err != nil {
		return nil, nil, err
	}

	ts := &auth.TokenSource{Path: tokenPath}
	tok, err := ts.Load()
	if err != nil {
		return nil, nil, err
	}
	if (tok != "") != g.Counters().Authenticated {
		if err := g.SetAuthenticated(tok != ""); err != nil {
			return nil, nil, err
		}
	}
	return g, ts, nil
}

func cmdRecord(args []string) error {
	fs := flag.NewFlagSet("record", flag.ExitOnError)
	serverURL := fs.String("server", envOr("SPEAKCOACH_URL", "http://localhost:3000"), "analysis service URL")
	goal := fs.String("goal", prompts.DefaultGoal, "practice goal category")
	promptText := fs.String("prompt", "", "speaking prompt (default: picked for the goal)")
	maxSeconds := fs.Int("max-seconds", int(capture.DefaultMaxDuration/time.Second), "hard recording cap in seconds")
	if err := fs.Parse(args); err != nil {
		return err
	}

	g, ts, err := openGate()
	if err != nil {
		return err
	}
	if err := g.Allow(); err != nil {
		if errors.Is(err, gate.ErrAuthRequired) {
			fmt.Println("You've used your free sessions. Run `speakctl login -token <jwt>` to keep practicing.")
			return nil
		}
		return err
	}

	if *promptText == "" {
		*promptText = prompts.Random(*goal)
	}

	sess, err := record(*goal, *promptText, time.Duration(*maxSeconds)*time.Second)
	if err != nil {
		return err
	}

	client := submit.NewClient(*serverURL)
	if tok, err := ts.Load(); err == nil && tok != "" {
		client.SetToken(tok)
	}

	fmt.Println("Analyzing...")
	result, err := client.Analyze(context.Background(), sess)
	if err != nil {
		// Leave the user re-armed: no counters advanced, just retry.
		return fmt.Errorf("submission failed (you can re-record and try again): %w", err)
	}

	render(result)

	// Best-effort persistence; never blocks the flow.
	if err := client.RecordSession(context.Background(), sess.DurationSec, result.FriendlyLevel, *goal); err != nil {
		fmt.Fprintln(os.Stderr, "note: could not record session:", err)
	}

	action, err := g.Advance(time.Now(), result.Fallback)
	if err != nil {
		return err
	}
	switch action {
	case gate.ActionAskFeedback:
		askFeedback(g, client)
	case gate.ActionRequireAuth:
		fmt.Println("\nEnjoying it? Sign in to keep your streak going: `speakctl login -token <jwt>`.")
	}

	c := g.Counters()
	fmt.Printf("\nSessions: %d   Streak: %d day(s)\n", c.SessionsTotal, c.StreakCount)
	return nil
}

func record(goal, promptText string, maxDuration time.Duration) (capture.Session, error) {
	dev, err := capture.NewMalgoDevice(capture.Format{SampleRate: 16000, Channels: 1})
	if err != nil {
		return capture.Session{}, err
	}
	defer dev.Close()

	rec := capture.NewRecorder(dev, capture.Format{SampleRate: 16000, Channels: 1}, maxDuration)

	fmt.Printf("Prompt: %s\n", promptText)
	fmt.Printf("Recording (up to %s). Press Enter to stop.\n", maxDuration)
	if err := rec.Start(); err != nil {
		var pe *capture.PermissionError
		if errors.As(err, &pe) {
			return capture.Session{}, fmt.Errorf("mic permission denied or unavailable: %w", pe.Err)
		}
		return capture.Session{}, err
	}

	waitForEnterOr(maxDuration)
	if err := rec.Stop(); err != nil {
		return capture.Session{}, err
	}
	fmt.Printf("Recorded %s.\n", rec.Elapsed().Round(time.Second))
	return rec.Session(goal, promptText)
}

// waitForEnterOr returns when the user presses Enter or the cap
// elapses, whichever comes first.
func waitForEnterOr(limit time.Duration) {
	done := make(chan struct{})
	go func() {
		bufio.NewReader(os.Stdin).ReadString('\n')
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(limit):
		fmt.Println("Time's up.")
	}
}

func render(r coach.Result) {
	fmt.Println()
	if r.Fallback {
		fmt.Println("Not enough speech to assess.")
		fmt.Printf("One thing to fix: %s\n", r.OneThingToFix)
		fmt.Printf("Next prompt:      %s\n", r.NextPrompt)
		return
	}

	fmt.Printf("Level:     %s (%s, %d/100)\n", r.FriendlyLevel, r.CEFREstimate, r.LevelScore)
	fmt.Printf("Fluency:   %d wpm, %d fillers — %s\n", r.Fluency.WPM, r.Fluency.Fillers, r.Fluency.Note)
	fmt.Printf("Relevance: %d/100 — %s\n", r.Relevance.Score, r.Relevance.Note)
	if r.Rationale != "" {
		fmt.Printf("Why:       %s\n", r.Rationale)
	}

	if len(r.GrammarIssues) > 0 {
		fmt.Println("\nGrammar:")
		for _, g := range r.GrammarIssues {
			fmt.Printf("  - %s\n    Try: %s (%s)\n", g.Error, g.Fix, g.Why)
		}
	}
	if len(r.Pronunciation) > 0 {
		fmt.Println("\nPronunciation:")
		for _, p := range r.Pronunciation {
			fmt.Printf("  - %s: %s (practice: %s)\n", p.SoundOrWord, p.Issue, p.MinimalPair)
		}
	}

	fmt.Printf("\nOne thing to fix: %s\n", r.OneThingToFix)
	fmt.Printf("Next prompt:      %s\n", r.NextPrompt)
}

func askFeedback(g *gate.Gate, client *submit.Client) {
	fb, skipped := solicitFeedback(os.Stdin, os.Stdout, g)
	if skipped {
		fmt.Println("Skipped. Thanks anyway!")
		return
	}
	if err := client.RecordFeedback(context.Background(), fb.Name, fb.Email, fb.Rating, fb.Text); err != nil {
		// Feedback delivery is best-effort; the gate is resolved anyway.
		fmt.Fprintln(os.Stderr, "note: could not deliver feedback:", err)
	}
	fmt.Println("Thanks!")
}

// solicitFeedback prompts until the user gives a rating or a note, or
// confirms the skip. An empty submit is rejected with a re-prompt, not
// skipped on the user's behalf. Either outcome resolves the gate.
func solicitFeedback(in io.Reader, out io.Writer, g *gate.Gate) (gate.Feedback, bool) {
	reader := bufio.NewReader(in)
	fmt.Fprintln(out, "\nQuick question — how was that? Rate 1-5 or add a note.")

	for {
		fmt.Fprint(out, "Rating (1-5, blank for none): ")
		ratingLine, rerr := reader.ReadString('\n')
		rating, _ := strconv.Atoi(strings.TrimSpace(ratingLine))

		fmt.Fprint(out, "Anything to add? ")
		textLine, terr := reader.ReadString('\n')
		text := strings.TrimSpace(textLine)

		fb := gate.Feedback{Rating: rating, Text: text}
		err := g.SubmitFeedback(fb)
		if err == nil {
			return fb, false
		}
		fmt.Fprintln(out, err)

		// A closed stdin can't answer any further prompt.
		if rerr != nil || terr != nil {
			_ = g.SkipFeedback()
			return gate.Feedback{}, true
		}
		if errors.Is(err, gate.ErrEmptyFeedback) {
			fmt.Fprint(out, "Skip the question? [y/N]: ")
			ans, aerr := reader.ReadString('\n')
			if aerr != nil || strings.EqualFold(strings.TrimSpace(ans), "y") {
				_ = g.SkipFeedback()
				return gate.Feedback{}, true
			}
		}
	}
}

func cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	token := fs.String("token", "", "JWT issued by the auth provider")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("login requires -token")
	}

	g, ts, err := openGate()
	if err != nil {
		return err
	}
	if err := ts.Save(*token); err != nil {
		return err
	}
	if err := g.SetAuthenticated(true); err != nil {
		return err
	}
	fmt.Println("Signed in.")
	return nil
}

func cmdLogout() error {
	g, ts, err := openGate()
	if err != nil {
		return err
	}
	if err := ts.Clear(); err != nil {
		return err
	}
	if err := g.SetAuthenticated(false); err != nil {
		return err
	}
	fmt.Println("Signed out.")
	return nil
}

func cmdStats() error {
	g, _, err := openGate()
	if err != nil {
		return err
	}
	c := g.Counters()
	fmt.Printf("Sessions:   %d\n", c.SessionsTotal)
	fmt.Printf("Streak:     %d day(s)\n", c.StreakCount)
	fmt.Printf("Last active: %s\n", orDash(c.LastActiveDay))
	fmt.Printf("Signed in:  %v\n", c.Authenticated)
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
