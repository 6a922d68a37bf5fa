// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"

	"github.com/bureau-foundation/catchup/lib/config"
	"github.com/bureau-foundation/catchup/trigger"
)

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"--config", "/etc/catchup.yaml", "-v"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	want := options{configPath: "/etc/catchup.yaml", envFile: ".env", verbose: true}
	if diff := cmp.Diff(want, opts, cmp.AllowUnexported(options{})); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}

	if _, err := parseFlags([]string{"extra"}); err == nil {
		t.Error("positional argument accepted")
	}
	if _, err := parseFlags([]string{"--help"}); err != pflag.ErrHelp {
		t.Errorf("--help error = %v, want pflag.ErrHelp", err)
	}
}

func TestNewHandler(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(newHandler(&buffer, false, slog.LevelInfo))
	logger.Debug("hidden")
	logger.Info("shown", "room_id", "!r:local")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("non-terminal output is not JSON: %q", buffer.String())
	}
	if record["msg"] != "shown" || record["room_id"] != "!r:local" {
		t.Errorf("record = %v", record)
	}

	buffer.Reset()
	slog.New(newHandler(&buffer, true, slog.LevelDebug)).Debug("plain")
	if !strings.Contains(buffer.String(), "msg=plain") {
		t.Errorf("terminal output = %q", buffer.String())
	}
}

func TestFeaturesFromConfig(t *testing.T) {
	features, err := featuresFromConfig([]config.FeatureConfig{
		{Name: "digest", MinDelta: 20, MinInterval: time.Hour},
		{Name: "ping", MinDelta: 5, DeltaMode: "cumulative"},
	})
	if err != nil {
		t.Fatalf("featuresFromConfig: %v", err)
	}
	want := []trigger.Feature{
		{Name: "digest", MinDelta: 20, MinInterval: time.Hour, DeltaMode: trigger.Consecutive},
		{Name: "ping", MinDelta: 5, DeltaMode: trigger.Cumulative},
	}
	if diff := cmp.Diff(want, features); diff != "" {
		t.Errorf("features mismatch (-want +got):\n%s", diff)
	}

	if _, err := featuresFromConfig([]config.FeatureConfig{{Name: "x", MinDelta: 1, DeltaMode: "sometimes"}}); err == nil {
		t.Error("unknown delta mode accepted")
	}
}

func fakeHomeserver(t *testing.T, whoami string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"errcode":"M_UNKNOWN_TOKEN","error":"bad token"}`))
			return
		}
		switch r.URL.Path {
		case "/_matrix/client/v3/account/whoami":
			_, _ = w.Write([]byte(`{"user_id":"` + whoami + `"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errcode":"M_NOT_FOUND","error":"nope"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, homeserver string) *config.Config {
	t.Helper()
	t.Setenv("CATCHUP_TEST_TOKEN", "secret")
	cfg := config.Default()
	cfg.Matrix.HomeserverURL = homeserver
	cfg.Matrix.UserID = "@catchup:local"
	cfg.Matrix.AccessTokenEnv = "CATCHUP_TEST_TOKEN"
	cfg.Rooms = []string{"!general:local"}
	cfg.Features = []config.FeatureConfig{{Name: "digest", MinDelta: 10}}
	cfg.State.Path = t.TempDir()
	cfg.Notify.Matrix.Enabled = true
	cfg.API.Listen = "127.0.0.1:0"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return cfg
}

func TestBuild(t *testing.T) {
	server := fakeHomeserver(t, "@catchup:local")
	cfg := testConfig(t, server.URL)
	logger := slog.New(slog.DiscardHandler)

	agent, err := build(context.Background(), cfg, server.Client(), logger)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer agent.close(logger)

	if agent.api == nil {
		t.Error("query API not built although api.listen is set")
	}
	if got := agent.monitor.Rooms(); len(got) != 1 || got[0].String() != "!general:local" {
		t.Errorf("rooms = %v", got)
	}

	request := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	recorder := httptest.NewRecorder()
	agent.api.ServeHTTP(recorder, request)
	if recorder.Code != http.StatusOK {
		t.Errorf("healthz = %d", recorder.Code)
	}
}

func TestBuildRejectsForeignToken(t *testing.T) {
	server := fakeHomeserver(t, "@someone-else:local")
	cfg := testConfig(t, server.URL)

	_, err := build(context.Background(), cfg, server.Client(), slog.New(slog.DiscardHandler))
	if err == nil || !strings.Contains(err.Error(), "@someone-else:local") {
		t.Errorf("build error = %v, want token owner mismatch", err)
	}
}

func TestBuildRequiresToken(t *testing.T) {
	server := fakeHomeserver(t, "@catchup:local")
	cfg := testConfig(t, server.URL)
	t.Setenv("CATCHUP_TEST_TOKEN", "")

	if _, err := build(context.Background(), cfg, server.Client(), slog.New(slog.DiscardHandler)); err == nil {
		t.Error("build succeeded without an access token")
	}
}
