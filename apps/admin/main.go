package main

import (
	"context"
	"fmt"
	"os"

	"github.com/juju/clock"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/core/school"
	logsvc "github.com/DexterJames00/EduTrack360/services/logger"
	"github.com/DexterJames00/EduTrack360/services/telegram"
	"github.com/DexterJames00/EduTrack360/storage/database"
	sqlxrepos "github.com/DexterJames00/EduTrack360/storage/database/sqlx"
)

var logger *logsvc.RollbarLogger

func main() {
	conf := core.NewConfig()
	rootLogger := logsvc.NewRollbarLogger(os.Stderr, conf)
	logger = rootLogger.Component("admin")

	// set up DB
	ctx := context.Background()
	errAndDie(database.CreateIfNotExist(ctx, conf))
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(database.Ping(ctx, db))

	// set up services
	credRepo := sqlxrepos.NewCredentialRepository(db)
	bot := telegram.NewClient(conf.Bot, credential.NewReader(credRepo), rootLogger.Component("telegram"))

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		out:      os.Stdout,
		schools:  school.NewService(sqlxrepos.NewSchoolRepository(db)),
		channels: channel.NewService(sqlxrepos.NewChannelRepository(db), clock.WallClock),
		creds:    credential.NewService(credRepo, bot, clock.WallClock, conf.Bot.WebhookSecret),
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("%s failed: %v", os.Args[1], err), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
