package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/annel0/blockworld/internal/auth"
	"github.com/annel0/blockworld/internal/eventbus"
)

const (
	defaultServerAddr = nats.DefaultURL
	timeFormat        = "2006-01-02T15:04:05Z"
	idleTimeout       = time.Second
)

func main() {
	var (
		serverAddr = flag.String("server", defaultServerAddr, "NATS server address")
		command    = flag.String("cmd", "tail", "Command: tail, stats, token")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		since      = flag.String("since", "1h", "Time duration since now (e.g., 1h, 30m) or RFC3339 time")
		limit      = flag.Int("limit", 100, "Maximum number of events")
		follow     = flag.Bool("follow", false, "Follow new events (like tail -f)")
		secret     = flag.String("secret", os.Getenv("BLOCKWORLD_JWT_SECRET"), "JWT secret (base64) for token command")
		operator   = flag.String("operator", "admin", "Operator name for token command")
		admin      = flag.Bool("admin", true, "Issue admin token")
		ttl        = flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	)
	flag.Parse()

	switch *command {
	case "token":
		if err := issueToken(*secret, *operator, *admin, *ttl); err != nil {
			log.Fatalf("❌ Token failed: %v", err)
		}
		return
	case "tail", "stats":
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: tail, stats, token")
		os.Exit(1)
	}

	start, err := parseSinceTime(*since, time.Now())
	if err != nil {
		log.Fatalf("❌ Invalid since: %v", err)
	}

	nc, err := nats.Connect(*serverAddr, nats.Name("event-cli"))
	if err != nil {
		log.Fatalf("❌ Failed to connect to server: %v", err)
	}
	defer nc.Close()

	js, err := nc.JetStream()
	if err != nil {
		log.Fatalf("❌ JetStream unavailable: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := &ReadOptions{
		EventTypes: parseStringList(*eventTypes),
		Start:      start,
		Limit:      *limit,
		Follow:     *follow,
	}

	switch *command {
	case "tail":
		if err := tailEvents(ctx, js, opts); err != nil {
			log.Fatalf("❌ Tail failed: %v", err)
		}
	case "stats":
		opts.Follow = false
		opts.Limit = 0
		if err := showStats(ctx, js, opts); err != nil {
			log.Fatalf("❌ Stats failed: %v", err)
		}
	}
}

// ReadOptions параметры чтения потока событий
type ReadOptions struct {
	EventTypes []string
	Start      time.Time
	Limit      int // 0: без ограничения
	Follow     bool
}

// readEvents читает события из потока начиная с opts.Start и передаёт их fn.
// Без Follow чтение заканчивается, когда новых сообщений нет idleTimeout.
func readEvents(ctx context.Context, js nats.JetStreamContext, opts *ReadOptions, fn func(*eventbus.Envelope)) (int, error) {
	subject := eventbus.Subject("*")
	if len(opts.EventTypes) == 1 {
		subject = eventbus.Subject(opts.EventTypes[0])
	}

	sub, err := js.SubscribeSync(subject, nats.OrderedConsumer(), nats.StartTime(opts.Start))
	if err != nil {
		return 0, fmt.Errorf("failed to subscribe: %w", err)
	}
	defer func() { _ = sub.Unsubscribe() }()

	filter := make(map[string]bool, len(opts.EventTypes))
	for _, t := range opts.EventTypes {
		filter[t] = true
	}

	count := 0
	for opts.Limit == 0 || count < opts.Limit {
		wait := idleTimeout
		if opts.Follow {
			wait = time.Hour
		}
		msgCtx, cancel := context.WithTimeout(ctx, wait)
		msg, err := sub.NextMsgWithContext(msgCtx)
		cancel()
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			if opts.Follow && ctx.Err() == nil {
				continue
			}
			return count, nil
		case errors.Is(err, context.Canceled):
			return count, nil
		case err != nil:
			return count, err
		}

		var ev eventbus.Envelope
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			fmt.Printf("⚠️  bad event on %s: %v\n", msg.Subject, err)
			continue
		}
		if len(filter) > 0 && !filter[ev.EventType] {
			continue
		}
		fn(&ev)
		count++
	}
	return count, nil
}

// tailEvents выводит события
func tailEvents(ctx context.Context, js nats.JetStreamContext, opts *ReadOptions) error {
	fmt.Printf("🎬 Tailing events since %s (limit: %d, follow: %v)\n", opts.Start.UTC().Format(timeFormat), opts.Limit, opts.Follow)

	count, err := readEvents(ctx, js, opts, printEvent)
	if err != nil {
		return err
	}
	fmt.Printf("\n📊 Total events: %d\n", count)
	return nil
}

// showStats выводит статистику событий по типам
func showStats(ctx context.Context, js nats.JetStreamContext, opts *ReadOptions) error {
	fmt.Println("📊 Event statistics")

	byType := make(map[string]int)
	destroyed := 0
	count, err := readEvents(ctx, js, opts, func(ev *eventbus.Envelope) {
		byType[ev.EventType]++
		var change eventbus.BlockChangeEvent
		if json.Unmarshal(ev.Payload, &change) == nil && change.Destroyed {
			destroyed++
		}
	})
	if err != nil {
		return err
	}

	fmt.Printf("Period: %s - now\n", opts.Start.UTC().Format(timeFormat))
	fmt.Printf("Total events: %d (destroyed blocks: %d)\n", count, destroyed)
	fmt.Println("\nBy event type:")
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Printf("  %s: %d events\n", t, byType[t])
	}
	return nil
}

// issueToken выпускает токен оператора для REST API
func issueToken(secret, operator string, admin bool, ttl time.Duration) error {
	if secret == "" {
		return errors.New("secret is required (flag -secret or BLOCKWORLD_JWT_SECRET)")
	}
	signer, err := auth.NewSigner(secret, ttl)
	if err != nil {
		return err
	}
	token, err := signer.Issue(operator, admin)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s [%s] %s\n",
		ev.Timestamp.Format("15:04:05"),
		ev.Source,
		ev.EventType,
		ev.ID)

	var change eventbus.BlockChangeEvent
	if err := json.Unmarshal(ev.Payload, &change); err != nil {
		return
	}
	fmt.Printf("  Block: (%d,%d,%d) %s -> %s tick=%d flags=%s\n",
		change.Pos.X, change.Pos.Y, change.Pos.Z,
		change.Old, change.New, change.Tick, change.Flags)
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// parseSinceTime парсит относительное время типа "1h", "30m"
func parseSinceTime(since string, from time.Time) (time.Time, error) {
	if since == "" {
		return from, nil
	}

	duration, err := time.ParseDuration(since)
	if err != nil {
		// Пробуем парсить как абсолютное время
		return time.Parse(timeFormat, since)
	}

	return from.Add(-duration), nil
}
