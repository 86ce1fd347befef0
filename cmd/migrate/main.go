// migrate applies the SQL migrations in migrations/postgres against the
// configured database. Files pair as NNN_name_up.sql / NNN_name_down.sql and
// run in lexical order (reversed for down).
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brewpass/brewpass/internal/config"
	migrations "github.com/brewpass/brewpass/migrations/postgres"
)

// embeddedPrefix marks paths resolved from the embedded filesystem.
const embeddedPrefix = "embed://"

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML config (env-only when empty)")
		dir        = flag.String("dir", "migrations/postgres", "migrations directory (contains *_up.sql and *_down.sql)")
	)
	flag.Parse()

	// Positional args: [action] [steps]
	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}

	var cfg *config.Config
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load: %v", err)
		}
	} else {
		cfg = config.LoadFromEnv()
	}
	if cfg.Storage.DSN == "" {
		log.Fatal("no DSN configured (storage.dsn / STORAGE_DSN)")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	switch action {
	case "up":
		files, err := listSQL(*dir, "_up.sql")
		if err != nil {
			log.Fatalf("list up: %v", err)
		}
		if len(files) == 0 {
			log.Println("no *_up.sql migrations found, nothing to do")
			return
		}
		sort.Strings(files)
		if steps > 0 && steps < len(files) {
			files = files[:steps]
		}
		log.Printf("applying %d up migration(s)", len(files))
		apply(ctx, pool, files)

	case "down":
		files, err := listSQL(*dir, "_down.sql")
		if err != nil {
			log.Fatalf("list down: %v", err)
		}
		if len(files) == 0 {
			log.Println("no *_down.sql migrations found, nothing to do")
			return
		}
		sort.Strings(files)
		reverseInPlace(files)
		if steps > 0 && steps < len(files) {
			files = files[:steps]
		}
		log.Printf("applying %d down migration(s)", len(files))
		apply(ctx, pool, files)

	default:
		log.Fatalf("unknown action %q, use: up | down [steps]", action)
	}
}

func apply(ctx context.Context, pool *pgxpool.Pool, files []string) {
	for _, f := range files {
		if err := execSQLFile(ctx, pool, f); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
	}
	log.Println("done")
}

// listSQL prefers on-disk migrations and falls back to the embedded copies
// when the directory is not shipped alongside the binary.
func listSQL(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return listEmbedded(suffix)
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, filepath.Join(dir, e.Name()))
		}
	}
	return out, nil
}

func listEmbedded(suffix string) ([]string, error) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			out = append(out, embeddedPrefix+e.Name())
		}
	}
	return out, nil
}

func reverseInPlace(ss []string) {
	for i, j := 0, len(ss)-1; i < j; i, j = i+1, j-1 {
		ss[i], ss[j] = ss[j], ss[i]
	}
}

func execSQLFile(ctx context.Context, pool *pgxpool.Pool, path string) error {
	var b []byte
	var err error
	if name, ok := strings.CutPrefix(path, embeddedPrefix); ok {
		b, err = migrations.FS.ReadFile(name)
	} else {
		b, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	start := time.Now()
	if _, err := pool.Exec(ctx, string(b)); err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	log.Printf("OK %s (%s)", filepath.Base(path), time.Since(start).Truncate(time.Millisecond))
	return nil
}
