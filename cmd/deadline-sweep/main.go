package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"peer-review-api/config"
	"peer-review-api/services"
	"peer-review-api/storage/backend"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	var (
		reportOnly bool
		timeout    time.Duration
	)
	flag.BoolVar(&reportOnly, "report", false, "print overdue and due-soon assignments without changing anything")
	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "maximum run time")
	flag.Parse()

	settings := config.Load()
	logFile, _ := config.InitLogging(settings)
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	store, closeStore, err := backend.Open(ctx, settings)
	if err != nil {
		log.Fatalf("open storage: %v", err)
	}
	defer closeStore()

	notifications := services.NewNotificationService(store, config.NewMailer(settings), settings.AppBaseURL)
	deadlines := services.NewDeadlineService(store, notifications)

	if reportOnly {
		report, err := deadlines.CheckDeadlines(ctx)
		if err != nil {
			log.Fatalf("deadline report failed: %v", err)
		}
		fmt.Printf("Overdue: %d\n", len(report.Overdue))
		for _, d := range report.Overdue {
			fmt.Printf("  paper %s reviewer %s (%s)\n", d.PaperID, d.ReviewerID, d.DueIn)
		}
		fmt.Printf("Due within a week: %d\n", len(report.DueSoon))
		for _, d := range report.DueSoon {
			fmt.Printf("  paper %s reviewer %s (%s)\n", d.PaperID, d.ReviewerID, d.DueIn)
		}
		return
	}

	summary, err := deadlines.Sweep(ctx)
	notifications.Wait()
	if err != nil {
		if errors.Is(err, services.ErrSweepRunning) {
			fmt.Println("Another deadline sweep is running, nothing to do")
			return
		}
		log.Fatalf("deadline sweep failed: %v", err)
	}

	fmt.Printf("Assignments scanned: %d\n", summary.Scanned)
	fmt.Printf("Marked overdue: %d, reminders sent: %d, failed: %d\n",
		summary.MarkedOverdue,
		summary.RemindersSent,
		summary.Failed,
	)
	fmt.Printf("Expired on closed papers: %d, changed during sweep: %d\n", summary.Expired, summary.Skipped)

	if summary.Failed > 0 {
		os.Exit(2)
	}
}
