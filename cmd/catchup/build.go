// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bureau-foundation/catchup/lib/config"
	"github.com/bureau-foundation/catchup/lib/optin"
	"github.com/bureau-foundation/catchup/lib/ref"
	"github.com/bureau-foundation/catchup/messaging"
	"github.com/bureau-foundation/catchup/monitor"
	"github.com/bureau-foundation/catchup/notify"
	"github.com/bureau-foundation/catchup/queryapi"
	"github.com/bureau-foundation/catchup/readstate"
	"github.com/bureau-foundation/catchup/timeline"
	"github.com/bureau-foundation/catchup/trigger"
)

// agent is the assembled process. close releases what build opened,
// in reverse order.
type agent struct {
	monitor   *monitor.Monitor
	debouncer *trigger.Debouncer
	api       http.Handler
	closers   []func() error
}

func (a *agent) close(logger *slog.Logger) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

// build wires the components described by cfg. The session is checked
// against the homeserver before anything is persisted or started.
func build(ctx context.Context, cfg *config.Config, httpClient *http.Client, logger *slog.Logger) (built *agent, err error) {
	built = &agent{}
	defer func() {
		if err != nil {
			built.close(logger)
			built = nil
		}
	}()

	userID, err := ref.ParseUserID(cfg.Matrix.UserID)
	if err != nil {
		return nil, fmt.Errorf("matrix.user_id: %w", err)
	}
	rooms, err := parseRooms(cfg.Rooms)
	if err != nil {
		return nil, err
	}
	ignore, err := parseUsers(cfg.IgnoreSenders)
	if err != nil {
		return nil, fmt.Errorf("ignore_senders: %w", err)
	}
	ignore = append(ignore, userID)

	token, err := cfg.AccessToken()
	if err != nil {
		return nil, err
	}
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Matrix.HomeserverURL,
		HTTPClient:    httpClient,
		Logger:        logger,
		AppService:    cfg.Matrix.AppService,
	})
	if err != nil {
		return nil, err
	}
	session := client.SessionFromToken(userID, token)
	whoami, err := session.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking access token: %w", err)
	}
	if whoami != userID {
		return nil, fmt.Errorf("access token belongs to %s, not matrix.user_id %s", whoami, userID)
	}

	store, err := optin.Open(cfg.State.Backend, cfg.State.Path, logger)
	if err != nil {
		return nil, err
	}
	built.closers = append(built.closers, store.Close)

	features, err := featuresFromConfig(cfg.Features)
	if err != nil {
		return nil, err
	}
	registry, err := trigger.NewRegistry(ctx, features, store)
	if err != nil {
		return nil, err
	}

	fetcher, err := timeline.NewFetcher(timeline.Config{
		Source:         monitor.NewMatrixSource(session),
		PageSize:       cfg.Scan.PageSize,
		RequestTimeout: cfg.Scan.RequestTimeout,
		UnreadScanCap:  cfg.Scan.UnreadScanCap,
		IgnoreSenders:  ignore,
		Formatter:      timeline.Formatter{Layout: cfg.Scan.LineTimeFormat},
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	receipts := readstate.NewReceiptBook(0)
	resolver, err := readstate.NewResolver(readstate.ResolverConfig{
		Live:    receipts,
		Durable: monitor.NewMatrixMarkers(session, cfg.Matrix.AppService),
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(cfg, session, built, logger)
	if err != nil {
		return nil, err
	}

	debouncer, err := trigger.NewDebouncer(trigger.DebouncerConfig{
		Registry:      registry,
		Counter:       fetcher,
		Notifier:      notifier,
		Concurrency:   cfg.Notify.Concurrency,
		NotifyTimeout: cfg.Notify.Timeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	built.debouncer = debouncer

	built.monitor, err = monitor.New(monitor.Config{
		Session:     session,
		Rooms:       rooms,
		IgnoreUsers: ignore,
		Fetcher:     fetcher,
		Receipts:    receipts,
		Resolver:    resolver,
		Debouncer:   debouncer,
		Sync: monitor.SyncConfig{
			Timeout:    cfg.Sync.Timeout,
			MaxBackoff: cfg.Sync.MaxBackoff,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	if cfg.API.Listen != "" {
		built.api = queryapi.New(built.monitor, logger)
	}
	return built, nil
}

// buildNotifier fans out to every enabled delivery channel. With none
// enabled, firings are only logged by the debouncer.
func buildNotifier(cfg *config.Config, sender notify.Sender, built *agent, logger *slog.Logger) (trigger.Notifier, error) {
	var fanout notify.Fanout

	if cfg.Notify.Matrix.Enabled {
		sources := make(map[string]string, len(cfg.Features))
		for _, feature := range cfg.Features {
			sources[feature.Name] = feature.Message
		}
		messages, err := notify.ParseMessages(sources)
		if err != nil {
			return nil, err
		}
		var room ref.RoomID
		if cfg.Notify.Matrix.Room != "" {
			if room, err = ref.ParseRoomID(cfg.Notify.Matrix.Room); err != nil {
				return nil, fmt.Errorf("notify.matrix.room: %w", err)
			}
		}
		matrixNotifier, err := notify.NewMatrixNotifier(notify.MatrixConfig{
			Sender:   sender,
			Messages: messages,
			Room:     room,
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		fanout = append(fanout, matrixNotifier)
	}

	if cfg.Notify.NATS.Enabled() {
		natsNotifier, err := notify.Connect(notify.NATSConfig{
			URL:           cfg.Notify.NATS.URL,
			Name:          cfg.Notify.NATS.Name,
			SubjectPrefix: cfg.Notify.NATS.SubjectPrefix,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		built.closers = append(built.closers, natsNotifier.Close)
		fanout = append(fanout, natsNotifier)
	}

	if len(fanout) == 0 {
		logger.Warn("no notification channel enabled; firings are only logged")
	}
	return fanout, nil
}

func featuresFromConfig(configs []config.FeatureConfig) ([]trigger.Feature, error) {
	features := make([]trigger.Feature, 0, len(configs))
	for _, fc := range configs {
		mode, err := trigger.ParseDeltaMode(fc.DeltaMode)
		if err != nil {
			return nil, err
		}
		feature := trigger.Feature{
			Name:        fc.Name,
			MinDelta:    fc.MinDelta,
			MinInterval: fc.MinInterval,
			DeltaMode:   mode,
		}
		if err := feature.Validate(); err != nil {
			return nil, err
		}
		features = append(features, feature)
	}
	return features, nil
}

func parseRooms(raw []string) ([]ref.RoomID, error) {
	rooms := make([]ref.RoomID, 0, len(raw))
	var errs []error
	for _, value := range raw {
		room, err := ref.ParseRoomID(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("rooms: %w", err))
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, errors.Join(errs...)
}

func parseUsers(raw []string) ([]ref.UserID, error) {
	users := make([]ref.UserID, 0, len(raw))
	for _, value := range raw {
		user, err := ref.ParseUserID(value)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}
