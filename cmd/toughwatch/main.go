package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talkincode/toughwatch/config"
	"github.com/talkincode/toughwatch/internal/adminapi"
	"github.com/talkincode/toughwatch/internal/app"
	"github.com/talkincode/toughwatch/internal/webserver"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	configFile  = flag.String("c", "toughwatch.yml", "configuration file")
	showVersion = flag.Bool("v", false, "print version and exit")
)

// set through -ldflags at build time
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("toughwatch %s (built %s)\n", version, buildTime)
		return
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	application := app.NewApplication(cfg)
	if err := application.Init(cfg); err != nil {
		log.Fatalf("initialize application: %v", err)
	}
	defer application.Release()

	webserver.Init(cfg, application)
	adminapi.InitRouter()

	application.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return webserver.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return webserver.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zap.S().Errorf("run error %s", err)
	}
}
