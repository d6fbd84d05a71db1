package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/obsidianstack/winsight/agent/internal/config"
	"github.com/obsidianstack/winsight/agent/internal/devices"
	"github.com/obsidianstack/winsight/agent/internal/pipeline"
	"github.com/obsidianstack/winsight/agent/internal/report"
	"github.com/obsidianstack/winsight/agent/internal/rules"
	"github.com/obsidianstack/winsight/agent/internal/security"
	"github.com/obsidianstack/winsight/agent/internal/shipper"
	"github.com/obsidianstack/winsight/agent/internal/source"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single pass over everything the sources return, then exit")
	compare := flag.String("compare", "", "compare two NDJSON exports: base.ndjson,current.ndjson")
	compareOut := flag.String("compare-out", "", "write the comparison JSON here instead of stdout")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if *compare != "" {
		if err := runCompare(*compare, *compareOut); err != nil {
			slog.Error("compare failed", "err", err)
			os.Exit(1)
		}
		return
	}

	slog.Info("winsight-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	agent := cfg.Agent
	level.Set(agent.SlogLevel())
	slog.Info("config loaded",
		"id", agent.ID,
		"sources", len(agent.Sources),
		"interval", agent.Interval,
		"window", agent.Window,
		"server_endpoint", agent.Server.Endpoint,
	)

	ruleSet := rules.LoadOrEmpty(agent.RulesFile)
	eventPatterns := append(append([]string{}, agent.EventPatterns...), ruleSet.EventPatterns...)
	filePatterns := append(append([]string{}, agent.FilePatterns...), ruleSet.FilePatterns...)

	var sources []source.Source
	for _, src := range agent.Sources {
		s, err := source.New(src, filePatterns)
		if err != nil {
			slog.Error("skipping source, could not build it", "source", src.ID, "err", err)
			continue
		}
		sources = append(sources, s)
		slog.Info("registered source", "id", src.ID, "type", src.Type)
	}
	if len(sources) == 0 {
		slog.Warn("no sources configured, reports will be empty")
	}

	p := pipeline.New(pipeline.Options{
		Host:          agent.ID,
		Window:        agent.Window,
		TopN:          agent.TopN,
		Resolver:      devices.NewStaticResolver(agent.Devices),
		EventPatterns: eventPatterns,
		Samples: report.SampleOptions{
			Count:       agent.Samples.Count,
			SortBy:      agent.Samples.SortBy,
			Order:       agent.Samples.Order,
			PerChannel:  agent.Samples.PerChannel,
			PerProvider: agent.Samples.PerProvider,
		},
		BDFOverrides:  agent.BDFOverrides,
		Rules:         ruleSet,
	}, sources)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		res := p.Once(ctx)
		if err := pipeline.WriteOutputs(agent.Output, res); err != nil {
			slog.Error("failed to write outputs", "err", err)
			os.Exit(1)
		}
		if agent.Output.ReportPath == "" {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(res.Report); err != nil {
				slog.Error("failed to print report", "err", err)
				os.Exit(1)
			}
		}
		logReport(res)
		return
	}

	// Declared rules hot-reload; term patterns and sources stay as loaded.
	if agent.RulesFile != "" {
		go func() {
			if err := rules.Watch(ctx, agent.RulesFile, func(set *rules.Set) {
				p.SetRules(set)
				slog.Info("rules hot-reloaded", "rules", len(set.Rules))
			}); err != nil {
				slog.Error("rules watcher stopped", "err", err)
			}
		}()
	}

	// Config hot-reload updates the log level only.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			level.Set(updated.Agent.SlogLevel())
			slog.Info("config hot-reloaded", "log_level", updated.Agent.LogLevel)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	go security.Audit(ctx, agent)

	var ship *shipper.Shipper
	if agent.Server.Endpoint != "" {
		ship, err = shipper.New(agent.Server)
		if err != nil {
			slog.Error("failed to build shipper", "err", err)
			os.Exit(1)
		}
		go ship.Run(ctx)
	}

	tick := func() {
		res := p.Tick(ctx)
		if err := pipeline.WriteOutputs(agent.Output, res); err != nil {
			slog.Warn("failed to write outputs", "err", err)
		}
		if ship != nil {
			ship.Ship(res.Report)
		}
		logReport(res)
	}

	tick()
	ticker := time.NewTicker(agent.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("winsight-agent shutting down")
			return
		case <-ticker.C:
			tick()
		}
	}
}

func logReport(res *pipeline.Result) {
	r := res.Report
	slog.Info("analysis pass complete",
		"events", r.Total,
		"dropped", r.Dropped,
		"hints", len(r.Hints),
		"score", r.PerformanceScore,
		"risk", r.RiskGrade,
	)
}

func runCompare(arg, out string) error {
	paths := strings.Split(arg, ",")
	if len(paths) != 2 {
		return fmt.Errorf("-compare wants base,current; got %q", arg)
	}
	cmp, err := report.CompareNDJSON(strings.TrimSpace(paths[0]), strings.TrimSpace(paths[1]))
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(cmp, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}
