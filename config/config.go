// Ininicializing common application configuration
package config

import (
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Rabbit       RabbitConfig       `mapstructure:"rabbit"`
	Channel      ChannelConfig      `mapstructure:"channel"`
	Alarm        AlarmConfig        `mapstructure:"alarm"`
	Notification NotificationConfig `mapstructure:"notification"`
	Firebase     FirebaseConfig     `mapstructure:"firebase"`
}

type ServerConfig struct {
	AppVersion     string        `mapstructure:"app_version"`
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	Timeout        time.Duration `mapstructure:"timeout"`
	Idle_timeout   time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout int           `mapstructure:"request_timeout"` // в секундах
	Mode           string        `mapstructure:"mode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// Настройки пула соединений
	MaxRetries   int           `mapstructure:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolTimeout  time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// RabbitConfig is optional: with neither URL nor Host set, alarms fire from
// the Redis sweeper only.
type RabbitConfig struct {
	URL       string `mapstructure:"url"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	QueueName string `mapstructure:"queue_name"`
}

func (r RabbitConfig) Enabled() bool {
	return r.URL != "" || r.Host != ""
}

// ChannelConfig names the method channel the mobile layer talks to.
type ChannelConfig struct {
	Name string `mapstructure:"name"`
}

type AlarmConfig struct {
	RequireExactPermission bool          `mapstructure:"require_exact_permission"`
	ExactPermissionGranted bool          `mapstructure:"exact_permission_granted"`
	SweepInterval          time.Duration `mapstructure:"sweep_interval"`
	SweepBatch             int           `mapstructure:"sweep_batch"`
}

type NotificationConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	Sinks         []string `mapstructure:"sinks"`
	ChannelID     string   `mapstructure:"channel_id"`
	ChannelName   string   `mapstructure:"channel_name"`
	SmallIcon     string   `mapstructure:"small_icon"`
	AppPackage    string   `mapstructure:"app_package"`
	RatePerSecond float64  `mapstructure:"rate_per_second"`
	Burst         int      `mapstructure:"burst"`
}

type FirebaseConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
	DeviceToken     string `mapstructure:"device_token"`
	Topic           string `mapstructure:"topic"`
}

func LoadConfig() (*viper.Viper, error) {

	viperInstance := viper.New()

	viperInstance.AddConfigPath("./config")
	viperInstance.SetConfigName("config")
	viperInstance.SetConfigType("yaml")

	viperInstance.SetEnvPrefix("alarmbridge")
	viperInstance.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperInstance.AutomaticEnv()

	setDefaults(viperInstance)

	err := viperInstance.ReadInConfig()

	if err != nil {
		return nil, err
	}
	return viperInstance, nil
}

func ParseConfig(v *viper.Viper) (*Config, error) {

	var c Config

	err := v.Unmarshal(&c)
	if err != nil {
		logrus.Errorf("unable to decode config into struct, %v", err)
		return nil, err
	}
	return &c, nil
}

// Watch re-parses the config file on every change and hands the result to
// onChange. Files that fail to decode are logged and ignored.
func Watch(v *viper.Viper, onChange func(*Config)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := ParseConfig(v)
		if err != nil {
			return
		}
		logrus.WithFields(logrus.Fields{
			"file": e.Name,
			"op":   e.Op.String(),
		}).Info("config reloaded")
		onChange(cfg)
	})
	v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.app_version", "1.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 5)
	v.SetDefault("server.mode", "release")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)

	v.SetDefault("rabbit.queue_name", "alarm_wakeups")

	v.SetDefault("channel.name", "com.motivapp.motivapp/alarm")

	v.SetDefault("alarm.require_exact_permission", true)
	v.SetDefault("alarm.exact_permission_granted", true)
	v.SetDefault("alarm.sweep_interval", time.Second)
	v.SetDefault("alarm.sweep_batch", 100)

	v.SetDefault("notification.enabled", true)
	v.SetDefault("notification.sinks", []string{"tray"})
	v.SetDefault("notification.channel_id", "alarm_channel")
	v.SetDefault("notification.channel_name", "Alarm Notifications")
	v.SetDefault("notification.small_icon", "ic_dialog_info")
	v.SetDefault("notification.app_package", "com.motivapp.motivapp")
	v.SetDefault("notification.rate_per_second", 20)
	v.SetDefault("notification.burst", 5)
}
