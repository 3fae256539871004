package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jroedel/gluehwodisp/app/sdk/appgluehwo"
	"github.com/jroedel/gluehwodisp/business/busclient/busclienttempdata"
	"github.com/jroedel/gluehwodisp/business/busclient/busconfiggopher"
	"github.com/jroedel/gluehwodisp/business/busclient/busstatus"
	"github.com/jroedel/gluehwodisp/foundation/brewfatherapi"
	"github.com/jroedel/gluehwodisp/foundation/clientdb"
	"github.com/jroedel/gluehwodisp/foundation/logger"
	"github.com/jroedel/gluehwodisp/foundation/mqttpub"
)

var (
	localConfigPath              string
	logLevel                     string
	skipBoot                     bool
	configFetchIntervalInSeconds int
)

func init() {
	flag.StringVar(&localConfigPath, "local-config-path", "", "The path to the hardware configuration file")
	flag.StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	flag.BoolVar(&skipBoot, "skip-boot", false, "Don't show the boot message")
	flag.IntVar(&configFetchIntervalInSeconds, "config-fetch-interval", 60, "The number of seconds between polling the config file")
}

/*
build for raspberry pi using `env GOOS=linux GOARCH=arm GOARM=6 go build`
*/
func main() {
	flag.Parse()
	if err := validateParams(); err != nil {
		log.Fatal(err)
	}
	logger, err := logger.New("gluehwo", logLevel)
	if err != nil {
		log.Fatal(err)
	}
	if err := run(logger); err != nil {
		logger.Fatalf("[main] %s", err)
	}
}

func run(logger *logrus.Logger) error {
	cg, err := busconfiggopher.New(localConfigPath)
	if err != nil {
		return fmt.Errorf("create config gopher: %w", err)
	}
	//if the config can't be read at startup we exit; later on, read errors are tolerated
	config, err := cg.FetchConfig()
	if err != nil {
		return err
	}
	logger.Infof("[main] loaded config from %s", cg.Path())

	hw, err := appgluehwo.OpenHardware(config, logger)
	if err != nil {
		return fmt.Errorf("open hardware: %w", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Errorf("[main] closing hardware: %s", err)
		}
	}()

	thCfg := busclienttempdata.Config{
		Logger:             logger,
		Thresholds:         config.Bands,
		BrewfatherInterval: config.Brewfather.Interval.Duration,
	}
	for _, s := range config.Sensors {
		thCfg.Sensors = append(thCfg.Sensors, s.Name)
	}

	if config.Log.Driver != "" {
		db, err := clientdb.New(string(config.Log.Driver), config.Log.Dsn)
		if err != nil {
			return fmt.Errorf("open reading log: %w", err)
		}
		defer db.Close()
		thCfg.DB = db
	}

	if config.Mqtt.Broker != "" {
		clientID := config.Mqtt.ClientId
		if clientID == "" {
			clientID = "gluehwo-" + uuid.NewString()[:8]
		}
		pub, err := mqttpub.New(config.Mqtt.Broker, clientID, config.Mqtt.Topic)
		if err != nil {
			//readings still reach the display and the strip
			logger.Errorf("[main] mqtt disabled: %s", err)
		} else {
			defer pub.Close()
			thCfg.Publisher = pub
		}
	}

	bfLogId := config.Brewfather.LogId
	if bfLogId == "" {
		bfLogId = os.Getenv("BREWFATHER_LOG_ID")
	}
	if bfLogId != "" {
		bf, err := brewfatherapi.New(bfLogId)
		if err != nil {
			return err
		}
		thCfg.Brewfather = bf
		thCfg.DeviceName = "gluehwo"
	}

	th, err := busclienttempdata.New(thCfg)
	if err != nil {
		return fmt.Errorf("create temp handler: %w", err)
	}

	var status *busstatus.Status
	if config.StatusAddr != "" {
		status, err = busstatus.New(logger, config.Bands)
		if err != nil {
			return fmt.Errorf("create status: %w", err)
		}
	}

	app, err := appgluehwo.New(appgluehwo.Params{
		ConfigGopher:        cg,
		Config:              config,
		Hardware:            hw,
		Logger:              logger,
		TempHandler:         th,
		Status:              status,
		SkipBoot:            skipBoot,
		ConfigFetchInterval: time.Duration(configFetchIntervalInSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("create app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.Start(ctx, config.StatusAddr); err != nil {
		return fmt.Errorf("start app: %w", err)
	}
	app.Wait()
	logger.Info("[main] shut down")
	return nil
}

// validate user input, falling back to the environment
func validateParams() error {
	if localConfigPath == "" {
		localConfigPath = os.Getenv("GLUEHWO_CONFIG")
		if localConfigPath == "" {
			localConfigPath = "gluehwo.json"
		}
	}
	if logLevel == "" {
		logLevel = os.Getenv("GLUEHWO_LOG_LEVEL")
	}
	if configFetchIntervalInSeconds <= 0 {
		return fmt.Errorf("config-fetch-interval must be positive, got %d", configFetchIntervalInSeconds)
	}
	return nil
}
