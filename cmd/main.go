package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	gokitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/gorilla/sessions"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"

	"github.com/jnikolaeva/kongclient/internal/config"
	"github.com/jnikolaeva/kongclient/internal/kong/application"
	"github.com/jnikolaeva/kongclient/internal/kong/infrastructure/stub"
	"github.com/jnikolaeva/kongclient/internal/kong/infrastructure/transport"
)

const (
	appName          = "kong"
	metricsNamespace = "kong_client"
)

const usage = `usage: kong <command> [flags]

commands:
  create-account   -username -email -password
  login            -username -password
  submit-property  -username -password -name -bedrooms -bathrooms -sqft -address -agent -description [-price] [photo files...]
  list-properties  -username -password
  stub             serve an in-memory kong on APP_PORT
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "@timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	} else {
		logger.WithError(err).Warn("unknown log level, using info")
	}

	errorLogger := gokitlog.NewJSONLogger(gokitlog.NewSyncWriter(os.Stderr))
	errorLogger = level.NewFilter(errorLogger, goKitLevel(cfg.LogLevel))
	errorLogger = gokitlog.With(errorLogger,
		"appName", appName,
		"@timestamp", gokitlog.DefaultTimestampUTC,
	)

	command, args := os.Args[1], os.Args[2:]
	if command == "stub" {
		runStub(cfg, logger, errorLogger)
		return
	}

	if err := runClientCommand(cfg, errorLogger, command, args); err != nil {
		logger.WithFields(logrus.Fields{"command": command}).Error(err.Error())
		os.Exit(1)
	}
}

func runClientCommand(cfg *config.Config, errorLogger gokitlog.Logger, command string, args []string) error {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password")
	dumpMetrics := fs.Bool("metrics", false, "print client metrics to stderr when done")

	email := new(string)
	name, address, description := new(string), new(string), new(string)
	bedrooms, bathrooms := new(uint), new(uint)
	sqft, price := new(float64), new(float64)
	agent := new(int64)

	switch command {
	case "create-account":
		email = fs.String("email", "", "account email, omitted when empty")
	case "submit-property":
		name = fs.String("name", "", "property name")
		bedrooms = fs.Uint("bedrooms", 0, "number of bedrooms")
		bathrooms = fs.Uint("bathrooms", 0, "number of bathrooms")
		sqft = fs.Float64("sqft", 0, "floor area in square feet")
		address = fs.String("address", "", "street address")
		agent = fs.Int64("agent", 0, "agent id")
		description = fs.String("description", "", "free text description")
		price = fs.Float64("price", -1, "asking price, omitted when negative")
	case "login", "list-properties":
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Errorf("unknown command '%s'", command)
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	opts := []transport.Option{
		transport.WithEndpoints(transport.Endpoints{
			Accounts:   cfg.AccountsPath,
			Auth:       cfg.AuthPath,
			Properties: cfg.PropertiesPath,
		}),
		transport.WithLogger(errorLogger),
	}
	if *dumpMetrics {
		opts = append(opts, transport.WithMetrics(transport.NewPrometheusMetrics(metricsNamespace)))
	}
	if cfg.Timeout > 0 {
		httpClient, err := transport.NewHTTPClient(cfg.Timeout)
		if err != nil {
			return err
		}
		opts = append(opts, transport.WithHTTPClient(httpClient))
	}
	client, err := transport.NewClient(cfg.BaseURL, opts...)
	if err != nil {
		return err
	}

	ctx := context.Background()
	credentials := application.AccountAuthInput{Username: *username, Password: *password}

	var result interface{}
	switch command {
	case "create-account":
		in := application.AccountCreationInput{Username: *username, Password: *password}
		if *email != "" {
			in.Email = email
		}
		result, err = client.CreateAccount(ctx, in)
	case "login":
		result, err = client.Authenticate(ctx, credentials)
	case "submit-property":
		in := application.PropertyCreationInput{
			Name:        *name,
			Bedrooms:    uint16(*bedrooms),
			Bathrooms:   uint16(*bathrooms),
			Sqft:        *sqft,
			Address:     *address,
			Agent:       *agent,
			Description: *description,
		}
		if *price >= 0 {
			in.Price = price
		}
		if in.Photos, err = readPhotos(fs.Args()); err != nil {
			return err
		}
		if _, err = client.Authenticate(ctx, credentials); err == nil {
			result, err = client.SubmitProperty(ctx, in)
		}
	case "list-properties":
		if _, err = client.Authenticate(ctx, credentials); err == nil {
			result, err = client.GetProperties(ctx)
		}
	}

	if *dumpMetrics {
		if mErr := writeMetrics(os.Stderr, prometheus.DefaultGatherer); mErr != nil {
			_ = level.Error(errorLogger).Log("msg", "failed to dump metrics", "err", mErr)
		}
	}
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, result)
}

func readPhotos(paths []string) ([]application.Photo, error) {
	photos := make([]application.Photo, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read photo '%s'", path)
		}
		photos = append(photos, application.Photo{Filename: filepath.Base(path), Content: content})
	}
	return photos, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.WithStack(enc.Encode(v))
}

func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return errors.Wrap(err, "failed to gather metrics")
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}

func runStub(cfg *config.Config, logger *logrus.Logger, errorLogger gokitlog.Logger) {
	serverAddr := ":" + cfg.Port

	sessionStorage := sessions.NewFilesystemStore("", []byte(cfg.SessionSecret))
	sessionStorage.MaxAge(cfg.SessionLifetime)
	sessionStorage.Options.HttpOnly = true

	apiServer := stub.NewHttpServer(errorLogger, stub.NewIdentityService(), sessionStorage, cfg.SessionCookie)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer.MakeHandler())
	mux.Handle("/metrics", promhttp.Handler())

	srv := startServer(serverAddr, mux, logger)

	waitForShutdown(srv)
	logger.Info("shutting down")
}

func startServer(serverAddr string, handler http.Handler, logger *logrus.Logger) *http.Server {
	srv := &http.Server{Addr: serverAddr, Handler: handler}

	go func() {
		logger.WithFields(logrus.Fields{"url": serverAddr}).Info("starting the stub server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(err)
		}
	}()

	return srv
}

func waitForShutdown(srv *http.Server) {
	killSignalChan := make(chan os.Signal, 1)
	signal.Notify(killSignalChan, os.Interrupt, syscall.SIGTERM)

	<-killSignalChan
	_ = srv.Shutdown(context.Background())
}

func goKitLevel(name string) level.Option {
	switch name {
	case "debug", "trace":
		return level.AllowDebug()
	case "warn", "warning":
		return level.AllowWarn()
	case "error", "fatal", "panic":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
