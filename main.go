package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"git.fiblab.net/sim/walkability/metrics"
	"git.fiblab.net/sim/walkability/scenario"
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
)

var (
	// 配置信息
	mongoURI        = flag.String("mongo_uri", "", "mongo db uri")
	scenarioPathStr = flag.String("scenario", "", "scenario file or database and collection [format: {fspath} or {db}.{col}]")
	outputPathStr   = flag.String("output", "", "report file or database and collection, can be empty [format: {fspath} or {db}.{col}]")
	algo            = flag.String("algo", algoBoth, "algorithm to run [greedy, exact, both]")
	workers         = flag.Int("workers", runtime.NumCPU(), "goroutines for shortest path trees and gain evaluation")
	logLevel        = flag.String("log-level", "info", "log level [debug, info, warn, error, fatal, panic]")

	// 性能测试
	benchmark = flag.Bool("benchmark", false, "benchmark mode")
	pprofAddr = flag.String("pprof", "localhost:52102", "pprof and metrics listening address")

	LOG_LEVELS = map[string]logrus.Level{
		"debug": logrus.DebugLevel,
		"info":  logrus.InfoLevel,
		"warn":  logrus.WarnLevel,
		"error": logrus.ErrorLevel,
		"fatal": logrus.FatalLevel,
		"panic": logrus.PanicLevel,
	}
)

func main() {
	logrus.SetFormatter(&easy.Formatter{
		TimestampFormat: "2006-01-02 15:04:05.0000",
		LogFormat:       "[%module%] [%time%] [%lvl%] %msg%\n",
	})
	flag.Parse()
	if level, ok := LOG_LEVELS[*logLevel]; ok {
		logrus.SetLevel(level)
	} else {
		logrus.Fatalf("invalid log level: %s", *logLevel)
	}
	metrics.RegisterDefault()

	if *pprofAddr != "" {
		// 启动pprof与metrics
		startHTTPDebugger(*pprofAddr)
	}

	// 退出信号取消当前运行
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *benchmark {
		// 性能测试
		runBenchmark(ctx)
		return
	}

	scenarioPath, err := scenario.NewPath(*scenarioPathStr)
	if err != nil {
		log.Fatalf("invalid scenario path: %s", err)
	}
	if scenarioPath == nil {
		log.Fatal("-scenario is required")
	}
	outputPath, err := scenario.NewPath(*outputPathStr)
	if err != nil {
		log.Fatalf("invalid output path: %s", err)
	}

	planner, err := NewPlanner(ctx, *mongoURI, scenarioPath, outputPath, *workers)
	if err != nil {
		log.Fatalf("failed to init planner: %v", err)
	}
	defer planner.Close()

	if _, err := planner.Run(ctx, *algo); err != nil {
		log.Errorf("run failed: %v", err)
		planner.Close()
		os.Exit(1)
	}
	log.Info("walkability closes")
}
