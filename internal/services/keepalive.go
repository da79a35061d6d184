package services

import (
	"context"

	"storefront-notify/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Pinger probes open connections and reports how many it dropped.
type Pinger interface {
	Ping() int
	Count() int
}

// specParser accepts standard five field specs, six field specs with a
// leading seconds field, and descriptors such as "@every 30s".
var specParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

type CronKeepAliveScheduler struct {
	cron   *cron.Cron
	spec   string
	pinger Pinger
	log    logger.Logger
}

func NewCronKeepAliveScheduler(spec string, pinger Pinger, log logger.Logger) *CronKeepAliveScheduler {
	if spec == "" {
		spec = "@every 30s"
	}
	return &CronKeepAliveScheduler{
		cron:   cron.New(cron.WithParser(specParser)),
		spec:   spec,
		pinger: pinger,
		log:    log,
	}
}

func (s *CronKeepAliveScheduler) Start(ctx context.Context) error {
	s.log.Info("Starting keep-alive scheduler", "spec", s.spec)

	_, err := s.cron.AddFunc(s.spec, s.probe)
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *CronKeepAliveScheduler) Stop() error {
	s.log.Info("Stopping keep-alive scheduler")
	<-s.cron.Stop().Done()
	return nil
}

func (s *CronKeepAliveScheduler) probe() {
	dropped := s.pinger.Ping()
	s.log.Debug("Keep-alive probe done", "dropped", dropped, "connections", s.pinger.Count())
}
