package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"net/mail"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"

	echoapi "github.com/DexterJames00/EduTrack360/apps/api/echo"
	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/core/notify"
	"github.com/DexterJames00/EduTrack360/core/registration"
	"github.com/DexterJames00/EduTrack360/core/school"
	emailsvc "github.com/DexterJames00/EduTrack360/services/email"
	logsvc "github.com/DexterJames00/EduTrack360/services/logger"
	"github.com/DexterJames00/EduTrack360/services/telegram"
	"github.com/DexterJames00/EduTrack360/storage/database"
	sqlxrepos "github.com/DexterJames00/EduTrack360/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	rootLogger := logsvc.NewRollbarLogger(os.Stdout, conf)
	rootLogger.Enable(!conf.Debug && conf.RollbarToken != "")
	logger := rootLogger.Component("api")
	dbLogger := rootLogger.Component("db")

	// set up DB
	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Error("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, rootLogger.Component("email"))
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, rootLogger.Component("email"))
	}

	clk := clock.WallClock
	credRepo := sqlxrepos.NewCredentialRepository(db)
	bot := telegram.NewClient(conf.Bot, credential.NewReader(credRepo), rootLogger.Component("telegram"))

	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db))
	channelSvc := channel.NewService(sqlxrepos.NewChannelRepository(db), clk)
	credSvc := credential.NewService(credRepo, bot, clk, conf.Bot.WebhookSecret)
	regSvc := registration.NewService(conf.AppName, schoolSvc, channelSvc, bot, rootLogger.Component("registration"))

	dispatchOpts := []notify.Option{notify.WithWorkers(conf.Dispatch.Workers)}
	if conf.Dispatch.ReportEmail != "" {
		if addrs, err := mail.ParseAddressList(conf.Dispatch.ReportEmail); err == nil {
			dispatchOpts = append(dispatchOpts, notify.WithGapReport(mailSvc, derefAddresses(addrs)...))
		} else {
			logger.Warn(fmt.Sprintf("ignoring invalid dispatch.reportEmail %q", conf.Dispatch.ReportEmail), err)
		}
	}
	dispatcher := notify.NewDispatcher(
		sqlxrepos.NewOutboxRepository(db),
		schoolSvc,
		channelSvc,
		bot,
		clk,
		rootLogger.Component("dispatch"),
		dispatchOpts...,
	)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	// register the webhook when a public url is configured and a credential is active
	if conf.Bot.PublicURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Bot.RequestTimeout)
		if hookURL, err := credSvc.ConfigureWebhook(ctx, conf.Bot.PublicURL); err != nil {
			logger.Warn("registering webhook", err)
		} else {
			logger.Info(fmt.Sprintf("webhook registered at %s", hookURL))
		}
		cancel()
	}

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(echoapi.ServerDeps{
		Conf:         conf,
		Logger:       logger,
		Registration: regSvc,
		Dispatcher:   dispatcher,
		Schools:      schoolSvc,
		Channels:     channelSvc,
		Credentials:  credSvc,
		Validate:     validate,
		Translator:   translator,
	})

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Error(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Error(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	ctx := context.Background()
	if err := database.CreateIfNotExist(ctx, conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Ping(ctx, db); err != nil {
		return nil, err
	}
	if err = database.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func derefAddresses(addrs []*mail.Address) []mail.Address {
	out := make([]mail.Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, *a)
	}
	return out
}
