// Command inspector dumps recent events for one reporting key straight from
// the database. Handy while wiring up a new reporter without the dashboard.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/apiwatch/apiwatch/internal/config"
	"github.com/apiwatch/apiwatch/internal/model"
	"github.com/apiwatch/apiwatch/internal/repository"
)

func main() {
	apiKey := flag.String("key", "", "reporting api key to inspect")
	path := flag.String("path", "", "optional route path filter")
	limit := flag.Int("limit", 50, "max events to print")
	asJSON := flag.Bool("json", false, "print raw JSON instead of a table")
	flag.Parse()

	if *apiKey == "" {
		fmt.Fprintln(os.Stderr, "usage: inspector -key <apiKey> [-path /route] [-limit n] [-json]")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := repository.NewDB(cfg)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows := []*model.Event{}
	query := `
		SELECT id, api_key, type, method, path, status, duration_ms,
		       message, response, console_logs, external_calls, timestamp, created_at
		FROM events WHERE api_key = $1`
	args := []interface{}{*apiKey}
	if *path != "" {
		query += ` AND path = $2`
		args = append(args, *path)
	}
	query += fmt.Sprintf(` ORDER BY timestamp DESC LIMIT %d`, *limit)

	if err := db.SelectContext(ctx, &rows, query, args...); err != nil {
		log.Fatalf("query: %v", err)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(rows)
		return
	}

	fmt.Printf("%-25s %-14s %-6s %-30s %6s %8s\n", "TIMESTAMP", "TYPE", "METHOD", "PATH", "STATUS", "MS")
	for _, e := range rows {
		fmt.Printf("%-25s %-14s %-6s %-30s %6d %8d\n",
			e.Timestamp.Format(time.RFC3339), e.Type, e.Method, e.Path, e.Status, e.DurationMs)
	}
	fmt.Printf("\n%d events\n", len(rows))
}
