package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"webtoonhub/pkg/logger"
)

type anyEvent map[string]any

func main() {
	addr := flag.String("addr", "127.0.0.1:7070", "TCP sync server address")
	pretty := flag.Bool("pretty", true, "pretty print JSON events")
	types := flag.String("types", "", "comma-separated event type prefixes to show (e.g. webtoon.,upload.)")
	debug := flag.Bool("debug", false, "verbose logging")
	flag.Parse()

	log := logger.Must(*debug).Named("sync-client")
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	filter := splitPrefixes(*types)
	for {
		if err := run(ctx, *addr, *pretty, filter, log); err != nil {
			log.Warn("disconnected", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second): // auto reconnect
		}
	}
}

func run(ctx context.Context, addr string, pretty bool, filter []string, log *zap.Logger) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	stopClose := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopClose()

	log.Info("connected", zap.String("addr", addr))

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := sc.Bytes()

		var obj anyEvent
		if err := json.Unmarshal(line, &obj); err != nil {
			// not JSON? print raw
			fmt.Println(string(line))
			continue
		}
		if !wanted(obj, filter) {
			continue
		}

		if !pretty {
			fmt.Println(string(line))
			continue
		}
		b, _ := json.MarshalIndent(obj, "", "  ")
		fmt.Println(string(b))
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return os.ErrClosed
}

func splitPrefixes(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wanted(ev anyEvent, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	t, _ := ev["type"].(string)
	for _, p := range prefixes {
		if strings.HasPrefix(t, p) {
			return true
		}
	}
	return false
}
