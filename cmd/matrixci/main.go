package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/systemstart/matrixci/pkg/api"
	"github.com/systemstart/matrixci/pkg/logging"
	"github.com/systemstart/matrixci/pkg/runner"
)

var version = "dev"

const (
	_ = iota
	exitDotenvError
	exitLoadPipelineFailed
	exitConfigError
	exitRunFailed
	exitPipelineFileNotSpecified
	exitUnknownEventType
	exitUnknownReportFormat
	exitReportWriteFailed
)

const (
	reportText = "text"
	reportYAML = "yaml"
)

var (
	pipelineFile    string
	pipelineDir     string
	maxDepth        int
	eventType       string
	branch          string
	maxParallel     int
	maxParallelJobs int
	reportFormat    string
	loggingType     string
	logLevel        string
	showVersion     bool
)

func init() {
	flag.StringVar(
		&pipelineFile,
		"pipeline",
		"",
		"pipeline definition YAML file")
	flag.StringVar(
		&pipelineDir,
		"pipeline-dir",
		"",
		"directory to search for matrixci.yaml files (alternative to -pipeline)")
	flag.IntVar(
		&maxDepth,
		"max-depth",
		-1,
		"max directory recursion depth for -pipeline-dir (-1 = unlimited, 0 = root only)")
	flag.StringVar(
		&eventType,
		"event",
		api.EventPush,
		"trigger event type: push or pull_request")
	flag.StringVar(
		&branch,
		"branch",
		"master",
		"branch the trigger event refers to")
	flag.IntVar(
		&maxParallel,
		"max-parallel",
		0,
		"max concurrent instances per job (0 = unlimited, 1 = sequential)")
	flag.IntVar(
		&maxParallelJobs,
		"max-parallel-jobs",
		0,
		"max concurrent jobs (0 = unlimited)")
	flag.StringVar(
		&reportFormat,
		"report",
		reportText,
		"report format: text or yaml")
	flag.StringVar(
		&loggingType,
		"logging-type",
		"tint",
		"logging type: json, text or tint")
	flag.StringVar(
		&logLevel,
		"log-level",
		"info",
		"logging level: debug, info, warn, error")
	flag.BoolVar(
		&showVersion,
		"version",
		false,
		"print version and exit")
}

func main() {
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	_ = logging.Initialize(loggingType, logLevel)

	includeEnv()
	checkFlags()

	exit := 0
	for _, pipeline := range loadPipelines() {
		report := run(pipeline)
		writeReport(report)

		if report.ConfigError != "" && exit == 0 {
			exit = exitConfigError
		}
		if report.Outcome == runner.Failure && exit == 0 {
			exit = exitRunFailed
		}
	}
	os.Exit(exit)
}

func run(pipeline *api.Pipeline) *runner.RunReport {
	invoker := runner.NewRegistry()
	invoker.Register(api.ActionRun, runner.ShellAction(pipeline.Env))
	invoker.Register("checkout", runner.NoopAction())

	r := runner.New(pipeline, invoker)
	r.MaxParallel = maxParallel
	r.MaxParallelJobs = maxParallelJobs

	event := runner.Event{Type: eventType, Branch: branch}

	report, err := r.Trigger(context.Background(), event)
	if err != nil && report == nil {
		slog.Error("run failed", "error", err)
		os.Exit(exitRunFailed)
	}
	if err != nil {
		slog.Error("configuration error", "error", err)
	}
	return report
}

func writeReport(report *runner.RunReport) {
	var err error
	switch reportFormat {
	case reportText:
		err = report.WriteText(os.Stdout)
	case reportYAML:
		err = report.WriteYAML(os.Stdout)
	default:
		slog.Error("unknown report format", "format", reportFormat)
		os.Exit(exitUnknownReportFormat)
	}
	if err != nil {
		slog.Error("failed to write report", "error", err)
		os.Exit(exitReportWriteFailed)
	}
}

func loadPipelines() []*api.Pipeline {
	if pipelineFile != "" {
		pipeline, err := api.Load(pipelineFile)
		if err != nil {
			slog.Error("failed to load pipeline definition", "filename", pipelineFile, "error", err)
			os.Exit(exitLoadPipelineFailed)
		}
		return []*api.Pipeline{pipeline}
	}

	pipelines, err := api.Discover(pipelineDir, maxDepth)
	if err != nil {
		slog.Error("failed to discover pipeline definitions", "dir", pipelineDir, "error", err)
		os.Exit(exitLoadPipelineFailed)
	}
	if len(pipelines) == 0 {
		slog.Warn("no pipeline definitions found", "dir", pipelineDir)
	}
	slog.Info("discovered pipelines", "count", len(pipelines))
	return pipelines
}

func checkFlags() {
	if pipelineFile == "" && pipelineDir == "" {
		slog.Error("one of -pipeline or -pipeline-dir must be set")
		os.Exit(exitPipelineFileNotSpecified)
	}
	if eventType != api.EventPush && eventType != api.EventPullRequest {
		slog.Error("-event must be push or pull_request", "event", eventType)
		os.Exit(exitUnknownEventType)
	}
}

func includeEnv() {
	err := godotenv.Load()
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("failed to load .env", "error", err)
			os.Exit(exitDotenvError)
		}
		slog.Debug("no .env file found")
	} else {
		slog.Info("using .env file")
	}
}
