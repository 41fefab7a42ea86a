// launching the server, redis, rabbitMQ, alarm service
package appServer

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ds124wfegd/alarmbridge/config"
	"github.com/ds124wfegd/alarmbridge/internal/alarm"
	"github.com/ds124wfegd/alarmbridge/internal/database"
	"github.com/ds124wfegd/alarmbridge/internal/delivery"
	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/ds124wfegd/alarmbridge/internal/metrics"
	"github.com/ds124wfegd/alarmbridge/internal/notifier"
	"github.com/ds124wfegd/alarmbridge/internal/rabbitMQ"
	"github.com/ds124wfegd/alarmbridge/internal/service"
	"github.com/ds124wfegd/alarmbridge/internal/transport"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

type Server struct {
	httpServer *http.Server
}

func (s *Server) Run(cfg *config.Config, handler http.Handler) error {
	s.httpServer = &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           handler,
		MaxHeaderBytes:    1 << 20,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
		IdleTimeout:       cfg.Server.Idle_timeout,
		ReadHeaderTimeout: 3 * time.Second,
		TLSConfig:         &tls.Config{MinVersion: tls.VersionTLS12},
		ErrorLog:          log.New(os.Stderr, "SERVER ERROR: ", log.LstdFlags),
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func NewServer(v *viper.Viper, cfg *config.Config) {

	logrus.SetFormatter(new(logrus.JSONFormatter))
	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxRetries:   cfg.Redis.MaxRetries,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
		PoolTimeout:  cfg.Redis.PoolTimeout,
		IdleTimeout:  cfg.Redis.IdleTimeout,
	})
	defer redisClient.Close()

	pingCtx, pingCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logrus.Warnf("Failed to connect to Redis at %s:%d: %s", cfg.Redis.Host, cfg.Redis.Port, err.Error())
	}
	pingCancel()

	checks := []func(context.Context) error{
		func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	}

	// alarms still fire from the sweep when no broker is configured
	var queue rabbitMQ.Queue
	if cfg.Rabbit.Enabled() {
		rabbit, err := rabbitMQ.NewRabbitMQ(rabbitMQ.RabbitMQConfig{
			URL:       rabbitURL(cfg.Rabbit),
			QueueName: cfg.Rabbit.QueueName,
		})
		if err != nil {
			logrus.Fatalf("Failed to connect to RabbitMQ: %s", err.Error())
		}
		defer rabbit.Close()
		queue = rabbit
		checks = append(checks, func(context.Context) error { return rabbit.HealthCheck() })
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(registry); err != nil {
		logrus.Fatalf("Failed to register metrics: %s", err.Error())
	}

	tray := notifier.NewTray(database.NewTrayRepository(redisClient), cfg.Notification.Enabled)
	presenter, err := buildPresenter(ctx, cfg, tray)
	if err != nil {
		logrus.Fatalf("Failed to set up notification sinks: %s", err.Error())
	}

	handler := delivery.NewHandler(presenter, newLimiter(cfg.Notification), delivery.Options{
		Channel: entity.Channel{
			ID:         cfg.Notification.ChannelID,
			Name:       cfg.Notification.ChannelName,
			Importance: entity.ImportanceHigh,
		},
		SmallIcon:  cfg.Notification.SmallIcon,
		AppPackage: cfg.Notification.AppPackage,
	})

	alarms := alarm.NewManager(database.NewRedisRepository(redisClient), queue, alarm.Options{
		SweepInterval: cfg.Alarm.SweepInterval,
		SweepBatch:    cfg.Alarm.SweepBatch,
	})
	if err := alarms.Start(ctx, handler.Handle); err != nil {
		logrus.Fatalf("Failed to start alarm service: %s", err.Error())
	}

	permission := alarm.NewPermissionGate(cfg.Alarm.RequireExactPermission, cfg.Alarm.ExactPermissionGranted)
	config.Watch(v, func(updated *config.Config) {
		permission.Update(updated.Alarm.RequireExactPermission, updated.Alarm.ExactPermissionGranted)
		tray.SetEnabled(updated.Notification.Enabled)
	})

	alarmUseCase := service.NewAlarmUseCase(alarms, permission, time.Now)

	var trayRoutes *notifier.Tray
	if hasSink(cfg.Notification.Sinks, "tray") {
		trayRoutes = tray
	}

	srv := new(Server)
	go func() {
		router := transport.InitRoutes(alarmUseCase, trayRoutes, transport.RouterConfig{
			Channel:        cfg.Channel.Name,
			RequestTimeout: cfg.Server.RequestTimeout,
			Gatherer:       registry,
			Health:         healthCheck(checks...),
		})
		if err := srv.Run(cfg, router); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("error occured while running http server: %s", err.Error())
		}
	}()

	logrus.Print("App Started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	logrus.Print("App Shutting Down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("error occured on server shutting down: %s", err.Error())
	}

	// before the deferred broker and redis Close calls
	stopAlarms(cancel, alarms)
}

// stopAlarms cancels ctx so a delivery blocked on the rate limiter or a
// store call returns, then waits for the running sweep.
func stopAlarms(cancel context.CancelFunc, alarms *alarm.Manager) {
	cancel()
	alarms.Stop()
}

// healthCheck runs checks in order and returns the first failure.
func healthCheck(checks ...func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		for _, check := range checks {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func rabbitURL(cfg config.RabbitConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.Username,
		cfg.Password,
		cfg.Host,
		cfg.Port)
}

func buildPresenter(ctx context.Context, cfg *config.Config, tray *notifier.Tray) (notifier.Presenter, error) {
	var presenters []notifier.Presenter
	for _, sink := range cfg.Notification.Sinks {
		switch sink {
		case "tray":
			presenters = append(presenters, tray)
		case "fcm":
			sender, err := notifier.NewFirebaseSender(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
			if err != nil {
				return nil, err
			}
			presenters = append(presenters, notifier.NewPush(sender, notifier.FCMTarget{
				Token: cfg.Firebase.DeviceToken,
				Topic: cfg.Firebase.Topic,
			}))
		case "desktop":
			presenters = append(presenters, notifier.NewDesktop())
		default:
			return nil, fmt.Errorf("unknown notification sink %q", sink)
		}
	}
	if len(presenters) == 0 {
		return nil, fmt.Errorf("no notification sink configured")
	}
	return notifier.Multi(presenters...), nil
}

func hasSink(sinks []string, name string) bool {
	for _, s := range sinks {
		if s == name {
			return true
		}
	}
	return false
}

func newLimiter(cfg config.NotificationConfig) *rate.Limiter {
	if cfg.RatePerSecond <= 0 {
		return nil
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
}
