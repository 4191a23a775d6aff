// Command cleanup-orphans deletes staged documents that no preprint row
// references. Submissions that fail after the upload was staged leave such
// files behind; this job reconciles the store against the database.
//
// Usage:
//
//	cleanup-orphans [-dry-run] [-min-age 1h]
//
// Requires DATABASE_DSN and STORAGE_LOCAL_DIR (or the s3 storage variables
// with STORAGE_BACKEND=s3) to be set.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openscholar/preprintd/internal/adapter/postgres/preprint"
	"github.com/openscholar/preprintd/internal/adapter/storage/local"
	"github.com/openscholar/preprintd/internal/adapter/storage/s3"
	"github.com/openscholar/preprintd/internal/config"
)

type store interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, key string) error
}

func main() {
	dryRun := flag.Bool("dry-run", false, "report orphans without deleting them")
	minAge := flag.Duration("min-age", time.Hour, "skip files newer than this (may belong to an in-flight submission)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("connect to database: %v", err)
	}
	defer pool.Close()

	var files store
	switch cfg.Storage.Backend {
	case "s3":
		files, err = s3.New(ctx, cfg.Storage)
	default:
		files, err = local.New(cfg.Storage.LocalDir)
	}
	if err != nil {
		log.Fatalf("init file store: %v", err)
	}

	locations, err := preprint.New(pool).ListLocations(ctx)
	if err != nil {
		log.Fatalf("list document locations: %v", err)
	}
	referenced := make(map[string]bool, len(locations))
	for _, loc := range locations {
		referenced[loc] = true
	}

	keys, err := files.List(ctx)
	if err != nil {
		log.Fatalf("list stored files: %v", err)
	}

	cutoff := time.Now().Add(-*minAge)
	deleted := 0
	for _, key := range keys {
		if referenced[key] || stagedAfter(key, cutoff) {
			continue
		}
		if *dryRun {
			fmt.Printf("orphan: %s\n", key)
			deleted++
			continue
		}
		if err := files.Delete(ctx, key); err != nil {
			log.Printf("delete %s: %v", key, err)
			continue
		}
		deleted++
	}

	if *dryRun {
		fmt.Printf("Found %d orphaned documents (dry run).\n", deleted)
	} else {
		fmt.Printf("Deleted %d orphaned documents.\n", deleted)
	}
}

// stagedAfter reads the unix millisecond prefix of a storage key and reports
// whether the file was staged after the cutoff. Keys without a parsable
// prefix are treated as recent so they are never deleted by mistake.
func stagedAfter(key string, cutoff time.Time) bool {
	prefix, _, ok := strings.Cut(key, "-")
	if !ok {
		return true
	}
	millis, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return true
	}
	return time.UnixMilli(millis).After(cutoff)
}
