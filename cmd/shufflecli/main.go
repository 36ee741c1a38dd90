// Package main provides the shufflebox CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/shufflebox/internal/api/connect"
)

var (
	app    = kingpin.New("shufflecli", "shufflebox session client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "API token (or set SHUFFLEBOX_API_TOKEN env)").Envar("SHUFFLEBOX_API_TOKEN").String()

	// sources command
	sourcesCmd = app.Command("sources", "List configured sources")

	// start command
	startCmd    = app.Command("start", "Start a session over a source")
	startSource = startCmd.Arg("source", "Source name").Required().String()
	startIndex  = startCmd.Flag("index", "Index of the first track").Default("0").Int()
	startRandom = startCmd.Flag("random", "Start from a random track").Bool()
	startChunk  = startCmd.Flag("chunk-size", "Tracks drawn per chunk (0: server default)").Default("0").Int()
	startResume = startCmd.Flag("resume", "Resume the stored pass of the source").Bool()
	startRepeat = startCmd.Flag("repeat", "Repeat mode").Default("off").Enum("off", "all", "one")

	// stop command
	stopCmd     = app.Command("stop", "Stop a session")
	stopSession = stopCmd.Arg("session-id", "Session ID").Required().String()

	// next command
	nextCmd     = app.Command("next", "Move to the next track")
	nextSession = nextCmd.Arg("session-id", "Session ID").Required().String()

	// prev command
	prevCmd     = app.Command("prev", "Move back to the previous track")
	prevSession = prevCmd.Arg("session-id", "Session ID").Required().String()

	// current command
	currentCmd     = app.Command("current", "Show the current track")
	currentSession = currentCmd.Arg("session-id", "Session ID").Required().String()

	// repeat command
	repeatCmd     = app.Command("repeat", "Set the repeat mode")
	repeatSession = repeatCmd.Arg("session-id", "Session ID").Required().String()
	repeatMode    = repeatCmd.Arg("mode", "Repeat mode").Required().Enum("off", "all", "one")

	// restart command
	restartCmd     = app.Command("restart", "Replay the pass from its start track")
	restartSession = restartCmd.Arg("session-id", "Session ID").Required().String()

	// status command
	statusCmd     = app.Command("status", "Show session status")
	statusSession = statusCmd.Arg("session-id", "Session ID").Required().String()

	// list command
	listCmd = app.Command("list", "List active sessions").Alias("ls")

	// subscribe command
	subscribeCmd     = app.Command("subscribe", "Subscribe to session events")
	subscribeSession = subscribeCmd.Arg("session-id", "Session ID (default: every session)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Check API token
	if *token == "" {
		fmt.Println("Error: API token is required (use --token or SHUFFLEBOX_API_TOKEN env)")
		os.Exit(1)
	}

	// Create client
	client := apiconnect.NewShuffleServiceClient(http.DefaultClient, *server, *token)

	ctx := context.Background()

	// Execute command
	switch command {
	case sourcesCmd.FullCommand():
		listSources(ctx, client)
	case startCmd.FullCommand():
		start(ctx, client)
	case stopCmd.FullCommand():
		exitOnError(client.StopSession(ctx, *stopSession))
		fmt.Println("Session stopped")
	case nextCmd.FullCommand():
		printStep(must(client.Next(ctx, *nextSession)))
	case prevCmd.FullCommand():
		printStep(must(client.Prev(ctx, *prevSession)))
	case currentCmd.FullCommand():
		printStep(must(client.Current(ctx, *currentSession)))
	case repeatCmd.FullCommand():
		st := must(client.SetRepeat(ctx, *repeatSession, *repeatMode))
		fmt.Printf("Repeat: %s\n", st.Repeat)
	case restartCmd.FullCommand():
		must(client.Restart(ctx, *restartSession))
		fmt.Println("Pass restarted, next track is the start track")
	case statusCmd.FullCommand():
		printStatus(must(client.Status(ctx, *statusSession)))
	case listCmd.FullCommand():
		listSessions(ctx, client)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client, *subscribeSession)
	}
}

func must[T any](v T, err error) T {
	exitOnError(err)
	return v
}

func exitOnError(err error) {
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func listSources(ctx context.Context, client *apiconnect.Client) {
	sources := must(client.ListSources(ctx))
	fmt.Println("Sources:")
	for _, name := range sources {
		fmt.Printf("  %s\n", name)
	}
}

func start(ctx context.Context, client *apiconnect.Client) {
	st := must(client.StartSession(ctx, &apiconnect.StartSessionRequest{
		Source:      *startSource,
		StartIndex:  *startIndex,
		RandomStart: *startRandom,
		ChunkSize:   *startChunk,
		Resume:      *startResume,
		Repeat:      *startRepeat,
	}))
	fmt.Printf("Started! Session ID: %s\n", st.SessionID)
	printStatus(st)
}

func listSessions(ctx context.Context, client *apiconnect.Client) {
	sessions := must(client.ListSessions(ctx))
	if len(sessions) == 0 {
		fmt.Println("No active sessions")
		return
	}

	fmt.Printf("%-36s  %-16s  %-12s  %-6s  %s\n", "SESSION", "SOURCE", "PLAYED", "REPEAT", "STARTED")
	for _, s := range sessions {
		played := fmt.Sprintf("%s/%s", humanize.Comma(int64(s.TotalPlayed)), humanize.Comma(int64(s.TotalLength)))
		fmt.Printf("%-36s  %-16s  %-12s  %-6s  %s\n",
			s.SessionID, s.Source, played, s.Repeat, humanize.Time(s.StartedAt))
	}
}

func printStatus(s *apiconnect.SessionStatus) {
	fmt.Println("\n=== SESSION STATUS ===")
	fmt.Printf("Session ID: %s\n", s.SessionID)
	fmt.Printf("Source: %s\n", s.Source)
	fmt.Printf("Start Index: %d\n", s.StartIndex)
	if s.Current >= 0 {
		fmt.Printf("Current Index: %d\n", s.Current)
	} else {
		fmt.Println("Current Index: none (next starts the pass over)")
	}
	fmt.Printf("Played: %s of %s (%s)\n",
		humanize.Comma(int64(s.TotalPlayed)),
		humanize.Comma(int64(s.TotalLength)),
		percent(s.TotalPlayed, s.TotalLength))
	fmt.Printf("Drawn: %s (chunk size %d)\n", humanize.Comma(int64(s.Drawn)), s.ChunkSize)
	fmt.Printf("State: %s\n", formatState(s.State))
	fmt.Printf("Completed: %v\n", s.Completed)
	fmt.Printf("Repeat: %s\n", s.Repeat)
	fmt.Printf("Started: %s\n", humanize.Time(s.StartedAt))
	fmt.Println()
}

func printStep(s *apiconnect.StepResponse) {
	fmt.Printf("[%s/%s] index %d",
		humanize.Comma(int64(s.TotalPlayed)), humanize.Comma(int64(s.TotalLength)), s.Index)
	if s.Track != nil {
		fmt.Printf(": %s", formatTrack(s.Track))
	} else {
		fmt.Print(": (unresolved)")
	}
	fmt.Println()
}

func formatTrack(t *apiconnect.TrackInfo) string {
	var b strings.Builder
	b.WriteString(t.Name)
	if len(t.Artists) > 0 {
		b.WriteString(" - ")
		b.WriteString(strings.Join(t.Artists, ", "))
	}
	if t.DurationMs > 0 {
		d := time.Duration(t.DurationMs) * time.Millisecond
		fmt.Fprintf(&b, " (%d:%02d)", int(d.Minutes()), int(d.Seconds())%60)
	}
	if t.URL != "" {
		fmt.Fprintf(&b, " <%s>", t.URL)
	}
	return b.String()
}

func formatState(state string) string {
	switch state {
	case "can_continue_chunk":
		return "▶️  Playing"
	case "has_ended_and_more_chunks":
		return "⏭  Chunk finished (more to draw)"
	case "has_ended_no_chunks":
		return "⏹  Pass finished"
	default:
		return "❓ Unknown"
	}
}

func percent(n, total int) string {
	if total == 0 {
		return "0%"
	}
	return humanize.FtoaWithDigits(float64(n)*100/float64(total), 1) + "%"
}

func subscribe(ctx context.Context, client *apiconnect.Client, sessionID string) {
	stream, err := client.Subscribe(ctx, sessionID)
	exitOnError(err)
	defer stream.Close()

	fmt.Println("Subscribed to events. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	// Receive events
	for stream.Receive() {
		printNotification(stream.Msg())
	}

	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func printNotification(n *apiconnect.Notification) {
	fmt.Printf("\n[Sequence: %d] === %s ===\n", n.SequenceNo, strings.ToUpper(strings.ReplaceAll(n.Type, "_", " ")))
	fmt.Printf("  Session: %s (%s)\n", n.SessionID, n.Source)
	if n.Index >= 0 {
		fmt.Printf("  Index: %d\n", n.Index)
	}
	if n.Track != nil {
		fmt.Printf("  Track: %s\n", formatTrack(n.Track))
	}
	fmt.Printf("  Played: %d/%d\n", n.TotalPlayed, n.TotalLength)
	fmt.Printf("  State: %s\n", formatState(n.State))
	fmt.Printf("  Repeat: %s\n", n.Repeat)
}
