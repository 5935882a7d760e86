package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nsgate/nsgate/pkg/config"
	"github.com/nsgate/nsgate/pkg/runner"
	log "github.com/sirupsen/logrus"
)

// VersionNumber is recorded in the log very early at startup, the same
// place proxy/main.go records zdm-proxy's own version.
const VersionNumber = "1.0"

var (
	displayVersion = flag.Bool("version", false, "Display the gateway version and exit")
	configFile     = flag.String("config", "", "Path to a YAML configuration file")
)

func main() {
	flag.Parse()
	if *displayVersion {
		fmt.Printf("nsgate version %v\n", VersionNumber)
		os.Exit(0)
	}

	log.Infof("nsgate version %v", VersionNumber)

	conf, err := config.Load(*configFile)
	if err != nil {
		log.Errorf("Error loading configuration: %v. Aborting startup.", err)
		os.Exit(1)
	}

	logLevel, err := conf.ParseLogLevel()
	if err != nil {
		log.Errorf("Error loading log level configuration: %v. Aborting startup.", err)
		os.Exit(1)
	}
	log.SetLevel(logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	runSignalListener(cancel)
	log.Info("SIGINT/SIGTERM listener started.")

	if err := runner.Run(ctx, conf); err != nil {
		log.Errorf("gateway exited with error: %v", err)
		os.Exit(1)
	}
}

func runSignalListener(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Debugf("received signal: %v", sig)
		cancel()
	}()
}
