// Backfills review slots and assignments on papers created before slots existed.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"peer-review-api/config"
	"peer-review-api/services"
	"peer-review-api/storage/backend"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	var (
		dryRun   bool
		pageSize int
	)
	flag.BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	flag.IntVar(&pageSize, "page-size", 100, "papers loaded per batch")
	flag.Parse()

	if pageSize <= 0 {
		log.Fatal("page-size must be greater than 0")
	}

	settings := config.Load()
	logFile, _ := config.InitLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}

	ctx := context.Background()
	store, closeStore, err := backend.Open(ctx, settings)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer closeStore()

	// No notifications are sent while migrating.
	workflow := services.NewReviewWorkflowService(store, nil, settings.DefaultReviewDays)
	summary, err := services.NewMigrationService(store, workflow).Run(ctx, services.MigrationInput{
		PageSize: pageSize,
		DryRun:   dryRun,
	})
	if err != nil {
		log.Fatalf("review slot migration failed: %v", err)
	}

	if dryRun {
		fmt.Println("Dry run, nothing was written")
	}
	fmt.Printf("Papers scanned: %d, updated: %d\n", summary.PapersScanned, summary.PapersUpdated)
	fmt.Printf("Slots initialized: %d, occupied: %d, overflow: %d\n",
		summary.SlotsInitialized,
		summary.SlotsOccupied,
		summary.SlotsOverflow,
	)
	fmt.Printf("Assignments created: %d, failed: %d\n", summary.AssignmentsCreated, summary.Failed)

	if summary.Failed > 0 {
		os.Exit(2)
	}
}
