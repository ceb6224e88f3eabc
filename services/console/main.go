package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/apt/events"
	"github.com/appetiteclub/apt/middleware"

	"github.com/savoria/savoria/pkg"
	"github.com/savoria/savoria/services/console/internal/branch"
	"github.com/savoria/savoria/services/console/internal/kitchen"
	"github.com/savoria/savoria/services/console/internal/session"
)

const (
	appNamespace = "CONSOLE"
	appName      = "console"
	appVersion   = "0.1.0"
)

func main() {
	config, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("Cannot setup %s(%s): %v", appName, appVersion, err)
	}

	logLevel, _ := config.GetString("log.level")
	logger := apt.NewLogger(logLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	sessionDir, _ := config.GetString("session.dir")
	if sessionDir == "" {
		sessionDir = os.ExpandEnv("$HOME/.savoria/session")
	}
	sessions, err := session.NewFileStore(sessionDir, logger)
	if err != nil {
		log.Fatalf("Cannot open session store: %v", err)
	}

	branchRepo, err := branch.NewAPIBranchRepo(config, sessions, logger)
	if err != nil {
		log.Fatalf("Cannot create branch repository: %v", err)
	}
	orderRepo, err := kitchen.NewAPIOrderRepo(config, sessions, logger)
	if err != nil {
		log.Fatalf("Cannot create order repository: %v", err)
	}

	var publisher events.Publisher
	var subscriber events.Subscriber
	natsURL, _ := config.GetString("nats.url")
	if natsURL != "" {
		natsPublisher, err := pkg.NewNATSPublisher(natsURL)
		if err != nil {
			log.Fatalf("Cannot connect to NATS publisher: %v", err)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher

		natsSubscriber, err := pkg.NewNATSSubscriber(natsURL, logger)
		if err != nil {
			log.Fatalf("Cannot connect to NATS subscriber: %v", err)
		}
		defer natsSubscriber.Close()
		subscriber = natsSubscriber
	}

	cacheTTL, _ := config.GetString("branches.cache.ttl")
	ttl, err := time.ParseDuration(cacheTTL)
	if err != nil {
		ttl = 0
	}
	cache := branch.NewListCache(branchRepo, ttl, logger)
	manager := branch.NewManager(branchRepo, cache, sessions, branch.Filters{}, logger)
	hub := branch.NewHub(manager, branchRepo, sessions, branch.NewSwitchNotifier(), publisher, logger)

	board := kitchen.NewBoard(orderRepo, logger)

	// Prefer the websocket feed when one is configured; fall back to the
	// message bus when running next to the broker.
	var feed kitchen.LiveFeed
	feedURL, _ := config.GetString("feed.url")
	switch {
	case feedURL != "":
		feed = kitchen.NewWSFeed(feedURL, sessions.TenantID(), board, logger)
	case subscriber != nil:
		feed = kitchen.NewBusFeed(subscriber, board, logger)
	}

	pollInterval, _ := config.GetString("poll.interval")
	interval, err := time.ParseDuration(pollInterval)
	if err != nil {
		interval = 0
	}
	poller := kitchen.NewPoller(orderRepo, board, feed, interval, logger)

	branchHandler := branch.NewHandler(hub, branchRepo, logger)
	kitchenHandler := kitchen.NewHandler(board, logger)

	stack := middleware.DefaultStack(middleware.StackOptions{
		Logger:      logger,
		DisableCORS: true,
	})
	stack = append(stack, middleware.InternalOnly())

	options := []apt.Option{
		apt.WithConfig(config),
		apt.WithLogger(logger),
		apt.WithHTTPMiddleware(stack...),
		apt.WithHTTPServerModules("web.port", branchHandler, kitchenHandler),
		apt.WithHealthChecks(appName),
	}
	if feed != nil {
		options = append(options, apt.WithLifecycle(poller, feed))
	} else {
		options = append(options, apt.WithLifecycle(poller))
	}

	ms := apt.NewMicro(options...)
	logger.Infof("Starting %s(%s)", appName, appVersion)

	if err := ms.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped with error: %v", appName, appVersion, err)
	}

	logger.Infof("%s(%s) stopped", appName, appVersion)
}
