package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"spot/internal/attendance"
	"spot/internal/clock"
	"spot/internal/config"
	"spot/internal/qrtoken"
	"spot/internal/queue"
	"spot/internal/roster"
	"spot/internal/session"
	"spot/internal/store"
)

// Worker runs the expiry sweeper on a fixed interval and consumes
// attendance events for notification fan-out.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "spot:attendance")
	}

	clk := clock.New(cfg.Timezone)
	sections := roster.NewRepository(db.Client)
	tokens := qrtoken.NewService(qrtoken.NewRepository(db.Client), session.NewRepository(db.Client), sections, clk, cfg.QRCodeTTL)
	attRepo := attendance.NewRepository(db.Client)

	// Sweeper loop. A failed sweep is retried on the next tick; verification
	// re-checks expiry on every scan regardless.
	go func() {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := tokens.Sweep(ctx)
				if err != nil {
					log.Printf("sweep failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("sweep deactivated %d expired code(s)", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for messages...")
	for msg := range messages {
		if msg.Type != "attendance" {
			continue
		}

		id, err := strconv.ParseInt(string(msg.Body), 10, 64)
		if err != nil {
			log.Printf("bad attendance event body %q: %v", msg.Body, err)
			continue
		}

		rec, err := attRepo.ByID(ctx, id)
		if err != nil {
			log.Printf("fetch attendance %d failed: %v", id, err)
			continue
		}

		section, err := sections.SectionByID(ctx, rec.SectionID)
		if err != nil {
			log.Printf("fetch section %d failed: %v", rec.SectionID, err)
			continue
		}

		// Notification delivery lives outside this service; the event log is
		// the hand-off point.
		log.Printf("attendance logged: student %d, %s (section %d), %s",
			rec.StudentID, section.CourseName, rec.SectionID, rec.Date.Format("2006-01-02"))
	}

	log.Println("worker stopped")
}
