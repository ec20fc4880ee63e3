// SPDX-License-Identifier: GPL-3.0-or-later
package main

import (
	"context"
	"time"

	"github.com/prado2016/investra-ai-sub003/config"
	"github.com/prado2016/investra-ai-sub003/imapconnection"
	"github.com/prado2016/investra-ai-sub003/log"
	"github.com/prado2016/investra-ai-sub003/mailsync"
	"github.com/prado2016/investra-ai-sub003/persistence"

	"github.com/sirupsen/logrus"
)

func main() {
	log.InitLogging("debug")
	logger := log.Logger(log.LOG_MAIN)

	conf, err := config.ReadConfig("config.toml")
	if err != nil {
		logger.WithField("error", err).Fatal("Could not load config")
	}

	if conf.Loglevel != nil {
		log.SetLogLevel(*conf.Loglevel)
	}

	p, err := persistence.NewPersistence(conf.Database)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not connect to database")
	}
	defer p.Close()

	syncer, err := mailsync.NewSyncer(
		p,
		imapconnection.NewConnector,
		mailsync.ThrottleDelay(time.Duration(conf.ThrottleSeconds)*time.Second),
		mailsync.AttemptTimeout(time.Duration(conf.AttemptTimeoutSeconds)*time.Second),
	)
	if err != nil {
		logger.WithField("error", err).Fatal("Could not start syncer")
	}

	ctx := context.Background()

	runPass := func() {
		summary := syncer.SyncAll(ctx)
		entry := logger.WithFields(logrus.Fields{
			"run":      summary.RunID,
			"configs":  summary.TotalConfigs,
			"synced":   summary.TotalSynced,
			"duration": summary.Duration,
		})
		if len(summary.Errors) > 0 {
			entry.WithField("errors", summary.Errors).Warn("Sync pass finished with errors")
		} else {
			entry.Info("Sync pass finished")
		}

		stats, err := syncer.Stats()
		if err != nil {
			logger.WithField("error", err).Warn("Could not aggregate stats")
			return
		}
		logger.WithFields(logrus.Fields{
			"active":   stats.ActiveConfigs,
			"recent":   stats.SyncedLastHour,
			"messages": stats.TotalMessages,
			"inError":  stats.ErrorConfigs,
		}).Debug("Mailbox stats")
	}

	runPass()
	if conf.IntervalMinutes == 0 {
		return
	}

	logger.WithField("interval", conf.IntervalMinutes).Info("Scheduling recurring syncs")
	ticker := time.NewTicker(time.Duration(conf.IntervalMinutes) * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		runPass()
	}
}
