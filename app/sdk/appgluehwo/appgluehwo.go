package appgluehwo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jroedel/gluehwodisp/business/busclient/busband"
	"github.com/jroedel/gluehwodisp/business/busclient/busclienttempdata"
	"github.com/jroedel/gluehwodisp/business/busclient/busconfiggopher"
	"github.com/jroedel/gluehwodisp/business/busclient/busconversion"
	"github.com/jroedel/gluehwodisp/business/busclient/busdisplay"
	"github.com/jroedel/gluehwodisp/business/busclient/busstatus"
)

type Logger interface {
	Printf(string, ...interface{})
}

const DefaultConfigFetchInterval = 60 * time.Second

type Params struct {
	//required
	ConfigGopher *busconfiggopher.ConfigGopher
	Config       busconfiggopher.HardwareConfig
	Hardware     *Hardware
	Logger       *logrus.Logger

	//optional
	TempHandler         *busclienttempdata.TempHandler
	Status              *busstatus.Status
	SkipBoot            bool
	ConfigFetchInterval time.Duration
}

type App struct {
	//required
	cg     *busconfiggopher.ConfigGopher
	sched  *busconversion.Scheduler
	logger *logrus.Logger

	//optional
	boot   *busdisplay.BootMessage
	th     *busclienttempdata.TempHandler
	status *busstatus.Status

	//internal
	currentConfig       busconfiggopher.HardwareConfig
	configFetchInterval time.Duration
	wg                  sync.WaitGroup
}

func New(p Params) (*App, error) {
	if p.ConfigGopher == nil {
		return nil, errors.New("app construct: ConfigGopher is required")
	}
	if p.Hardware == nil || p.Hardware.Bus == nil || p.Hardware.Strip == nil {
		return nil, errors.New("app construct: Hardware with a bus and a strip is required")
	}
	if p.Logger == nil {
		return nil, errors.New("app construct: Logger is required")
	}
	config := p.Config

	sensors := make([]busconversion.Sensor, 0, len(config.Sensors))
	for _, s := range config.Sensors {
		sensors = append(sensors, busconversion.Sensor{Name: s.Name, ID: s.Address})
	}
	sched, err := busconversion.New(p.Hardware.Bus, sensors, config.SensorBus.ResolutionBits, p.Logger)
	if err != nil {
		return nil, fmt.Errorf("app construct: %w", err)
	}

	leds, err := busband.NewIndicator(p.Hardware.Strip, config.Bands, config.Offsets(), config.LedStrip.ClearBeforeSet)
	if err != nil {
		return nil, fmt.Errorf("app construct: %w", err)
	}
	sched.AddConsumer("leds", leds)

	app := &App{
		cg:                  p.ConfigGopher,
		sched:               sched,
		logger:              p.Logger,
		th:                  p.TempHandler,
		status:              p.Status,
		currentConfig:       config,
		configFetchInterval: p.ConfigFetchInterval,
	}
	if app.configFetchInterval <= 0 {
		app.configFetchInterval = DefaultConfigFetchInterval
	}

	if p.Hardware.Display != nil {
		screen, err := busdisplay.NewScreen(p.Hardware.Display)
		if err != nil {
			return nil, fmt.Errorf("app construct: %w", err)
		}
		sched.AddConsumer("lcd", screen)

		if !p.SkipBoot && config.BootMessage.Duration.Duration > 0 {
			boot, err := busdisplay.NewBootMessage(p.Hardware.Display, p.Hardware.Keypad, p.Logger)
			if err != nil {
				return nil, fmt.Errorf("app construct: %w", err)
			}
			boot.Text = config.BootMessage.Text
			boot.Duration = config.BootMessage.Duration.Duration
			app.boot = boot
		}
	}

	sched.AddConsumer("log", busconversion.ConsumerFunc(app.logReadings))
	if app.status != nil {
		sched.AddConsumer("status", app.status)
		sched.OnConsumerError = app.status.ConsumerFailed
	}
	if app.th != nil && app.th.Enabled() {
		sched.AddConsumer("tempdata", app.th)
	}

	return app, nil
}

// Start shows the boot message and then starts the control loop and its
// helpers in the background. Use Wait to block until they have stopped.
func (app *App) Start(ctx context.Context, statusAddr string) error {
	//the first conversion runs while the boot message is up
	app.sched.RequestConversion(time.Now())

	if app.boot != nil {
		skipped, err := app.boot.Show(ctx)
		if err != nil {
			return fmt.Errorf("boot message: %w", err)
		}
		if skipped {
			app.logger.Info("[app] boot message skipped")
		}
	}

	if app.th != nil && app.th.Enabled() {
		app.goRun(func() {
			if err := app.th.Run(ctx); err != nil {
				app.logger.Errorf("[app] temp handler stopped: %s", err)
			}
		})
	}
	if app.status != nil && statusAddr != "" {
		app.goRun(func() {
			if err := app.status.ListenAndServe(ctx, statusAddr); err != nil {
				app.logger.Errorf("[app] %s", err)
			}
		})
	}
	pollInterval := app.currentConfig.PollInterval.Duration
	app.logger.Infof("[app] beginning control loop for %d sensor(s), conversions take %s", len(app.currentConfig.Sensors), app.sched.Wait())
	app.goRun(func() { app.watchConfig(ctx) })
	app.goRun(func() { app.run(ctx, pollInterval) })
	return nil
}

func (app *App) goRun(f func()) {
	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		f()
	}()
}

// Wait blocks until everything Start launched has returned
func (app *App) Wait() {
	app.wg.Wait()
}

func (app *App) run(ctx context.Context, pollInterval time.Duration) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case now := <-ticker.C:
			app.sched.Tick(now)
		case <-ctx.Done():
			app.logger.Info("[app] control loop stopped")
			return
		}
	}
}

// watchConfig polls the config file. Hardware settings only apply on restart,
// so a change is reported, not applied.
func (app *App) watchConfig(ctx context.Context) {
	ticker := time.NewTicker(app.configFetchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			config, err := app.cg.FetchConfig()
			if err != nil {
				app.logger.Warnf("[app] fetching config: %s", err)
				continue
			}
			if !busconfiggopher.AreConfigsEqual(config, app.currentConfig) {
				app.logger.Warnf("[app] %s changed, restart to apply it", app.cg.Path())
				app.currentConfig = config
			}
		case <-ctx.Done():
			return
		}
	}
}

func (app *App) logReadings(readings []busconversion.Reading) error {
	for _, r := range readings {
		entry := app.logger.WithFields(logrus.Fields{
			"sensor":  r.Sensor,
			"celsius": r.Celsius,
		})
		if r.Err != nil {
			entry.WithError(r.Err).Warn("[reading] sensor read failed")
			continue
		}
		entry.Info("[reading]")
	}
	return nil
}
