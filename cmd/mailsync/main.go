package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/homemade/mailsync/sync"
	"github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "mailsync.yaml", "Path to configuration file")
	secretsEnv := flag.String("secrets-env", "", "Name of a JSON-valued env var holding secrets referenced by the config")
	docs := flag.Bool("docs", false, "Print the configured column mapping as CSV and exit")
	record := flag.Bool("record", false, "Record API requests under testdata/.requests")
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	sync.Init(sync.SQLServer2Mailchimp)

	f, err := os.Open(*configPath)
	if err != nil {
		logrus.Fatalf("failed to open config: %v", err)
	}
	defer f.Close()

	cfg, err := sync.YAMLConfigUnmarshaler{}.Unmarshal(sync.JSONCompositeEnvVar{Parent: *secretsEnv}, f)
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	if *docs {
		csv, err := sync.GenerateMappingDocumentation(cfg).FormatCSV()
		if err != nil {
			logrus.Fatalf("failed to generate mapping documentation: %v", err)
		}
		os.Stdout.WriteString(csv)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logrus.Info("interrupt received, shutting down")
		cancel()
	}()

	result, err := sync.Run(sync.RunParams{
		Config:   cfg,
		Fetcher:  sync.RowExtractor{Settings: cfg.SQL},
		Audience: sync.AudienceFetcherAndUpdater{SyncContext: &sync.SyncContext{Config: cfg, RecordRequests: *record}},
		Context:  ctx,
	})
	if err != nil {
		logrus.Fatalf("run aborted: %v", err)
	}

	logrus.Infof("run complete: %d succeeded, %d failed, %d skipped (%d rows)",
		result.Succeeded, result.Failed, result.Skipped, result.Total())

	// The summary record is the process output; individual row failures
	// only surface through the failed counter and the exit code stays 0.
	enc := json.NewEncoder(os.Stdout)
	if err := enc.Encode(result); err != nil {
		logrus.Fatalf("failed to encode run result: %v", err)
	}
}
