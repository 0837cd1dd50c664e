// cmd/tools/catalog-loader/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"service-discovery/internal/catalog"
	"service-discovery/internal/common/config"
	"service-discovery/internal/common/database"
	"service-discovery/internal/common/logger"
	"service-discovery/internal/models"
)

func main() {
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	loadCmd := flag.NewFlagSet("load", flag.ExitOnError)
	indexCmd := flag.NewFlagSet("index", flag.ExitOnError)

	validatePath := validateCmd.String("path", "configs/catalog.sample.json", "Path to catalog file")

	loadPath := loadCmd.String("path", "configs/catalog.sample.json", "Path to catalog file")
	loadDryRun := loadCmd.Bool("dry-run", false, "Validate and report without writing")
	loadSchema := loadCmd.Bool("ensure-schema", true, "Create the services table if missing")

	indexPath := indexCmd.String("path", "configs/catalog.sample.json", "Path to catalog file")
	indexDryRun := indexCmd.Bool("dry-run", false, "Validate and report without writing")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		doc, err := catalog.ReadFile(*validatePath)
		if err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		summarize(doc.Services)
		fmt.Println("Catalog validation passed.")

	case "load":
		loadCmd.Parse(os.Args[2:])
		if err := load(*loadPath, *loadDryRun, *loadSchema); err != nil {
			fmt.Printf("Error loading catalog: %v\n", err)
			os.Exit(1)
		}

	case "index":
		indexCmd.Parse(os.Args[2:])
		if err := index(*indexPath, *indexDryRun); err != nil {
			fmt.Printf("Error indexing catalog: %v\n", err)
			os.Exit(1)
		}

	case "help":
		fallthrough
	default:
		help()
	}
}

func load(path string, dryRun, ensureSchema bool) error {
	doc, err := catalog.ReadFile(path)
	if err != nil {
		return err
	}
	summarize(doc.Services)
	if dryRun {
		fmt.Printf("Dry run: %d services would be written to PostgreSQL\n", len(doc.Services))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		return err
	}

	store := catalog.NewPostgresLookup(pg.DB, 0, logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format))
	if ensureSchema {
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
	}
	if err := store.Upsert(ctx, doc.Services); err != nil {
		return err
	}
	fmt.Printf("Loaded %d services into PostgreSQL\n", len(doc.Services))
	return nil
}

func index(path string, dryRun bool) error {
	doc, err := catalog.ReadFile(path)
	if err != nil {
		return err
	}
	summarize(doc.Services)
	if dryRun {
		fmt.Printf("Dry run: %d services would be indexed\n", len(doc.Services))
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := es.Ping(ctx); err != nil {
		return err
	}

	lookup := catalog.NewElasticsearchLookup(es.Client, es.Index, 0, logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format))
	if err := lookup.Index(ctx, doc.Services); err != nil {
		return err
	}
	fmt.Printf("Indexed %d services into %s\n", len(doc.Services), es.Index)
	return nil
}

func summarize(services []models.ServiceRecord) {
	counts := make(map[models.Category]int)
	for _, s := range services {
		counts[s.Category]++
	}
	categories := make([]string, 0, len(counts))
	for c := range counts {
		categories = append(categories, string(c))
	}
	sort.Strings(categories)

	fmt.Printf("Catalog: %d services\n", len(services))
	for _, c := range categories {
		fmt.Printf("  %-14s %d\n", c, counts[models.Category(c)])
	}
}

func help() {
	fmt.Println("Usage: catalog-loader <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  validate -path <file>                 Check a catalog file")
	fmt.Println("  load     -path <file> [-dry-run]      Upsert the catalog into PostgreSQL")
	fmt.Println("  index    -path <file> [-dry-run]      Bulk index the catalog into Elasticsearch")
	fmt.Println("  help                                  Show this help")
}
