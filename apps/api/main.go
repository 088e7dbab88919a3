package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	echoapi "github.com/trezcool/karo/apps/api/echo"
	"github.com/trezcool/karo/core"
	"github.com/trezcool/karo/core/billing"
	"github.com/trezcool/karo/core/school"
	"github.com/trezcool/karo/core/student"
	emailsvc "github.com/trezcool/karo/services/email"
	"github.com/trezcool/karo/services/gateway/paystack"
	logsvc "github.com/trezcool/karo/services/logger"
	"github.com/trezcool/karo/storage/database"
	sqlxrepos "github.com/trezcool/karo/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	db, err := setUpDB(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error("closing database", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	gateway := paystack.NewService(conf, logger)

	schoolRepo := sqlxrepos.NewSchoolRepository(db)
	studentRepo := sqlxrepos.NewStudentRepository(db)
	billingRepo := sqlxrepos.NewBillingRepository(db)

	schoolSvc := school.NewService(schoolRepo, studentRepo, mailSvc, gateway, conf)
	studentSvc := student.NewService(studentRepo)
	billingSvc := billing.NewService(billingRepo, studentRepo, schoolRepo, mailSvc)

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	school.RegisterValidators(validate, translator)

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Address:        fmt.Sprintf("%s:%d", conf.Server.Host, conf.Server.Port),
		Conf:           conf,
		Logger:         logger,
		Validate:       validate,
		Translator:     translator,
		SchoolSvc:      schoolSvc,
		StudentSvc:     studentSvc,
		BillingSvc:     billingSvc,
		SignalShutdown: func() { shutdown <- syscall.SIGTERM },
	})

	go server.Start()

	// =========================================================================
	// Shutdown

	sig := <-shutdown
	logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

	// give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
	defer cancel()

	if err = server.Stop(ctx); err != nil {
		logger.Fatal(fmt.Sprintf("could not stop server gracefully: %v", err), err)
	}
}

func setUpDB(conf *core.Config) (*sql.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db); err != nil {
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
