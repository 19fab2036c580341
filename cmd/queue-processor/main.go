// cmd/queue-processor/main.go
//
// One-shot email queue drain, intended to be run from cron. Prints the run
// summary as JSON on stdout and exits non-zero when the run aborts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"pizzahost-workers/internal/common/config"
	"pizzahost-workers/internal/common/database"
	"pizzahost-workers/internal/common/logger"
	"pizzahost-workers/internal/dispatch"
	"pizzahost-workers/internal/queueproc"
	"pizzahost-workers/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rdb, err := database.NewRedis(cfg.Redis)
	if err != nil {
		zapLog.Fatal("redis init failed", zap.Error(err))
	}
	defer rdb.Close()

	if err := rdb.Ping(ctx); err != nil {
		zapLog.Fatal("redis ping failed", zap.Error(err))
	}

	processor := queueproc.NewProcessor(
		store.NewEmailQueue(rdb.GetClient()),
		dispatch.NewRelay(cfg.SMTP),
		log,
	)

	summary, runErr := processor.RunOnce(ctx)

	out, _ := json.Marshal(summary)
	fmt.Println(string(out))

	if runErr != nil {
		zapLog.Error("queue run aborted", zap.Error(runErr))
		os.Exit(1)
	}
}
