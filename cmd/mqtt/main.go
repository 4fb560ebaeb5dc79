package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	mqtt_server "speaking-stone-golang/internal/app/mqtt_server"
	log "speaking-stone-golang/logger"
)

// Standalone telemetry broker. Use this when the broker should run
// apart from the edge process; otherwise set mqtt_server.enable and the
// edge embeds it.

func initConfig(configFile string) error {
	basePath, file := filepath.Split(configFile)

	fileName, fileExt := func(file string) (string, string) {
		if pos := strings.LastIndex(file, "."); pos != -1 {
			return file[:pos], strings.ToLower(file[pos+1:])
		}
		return file, ""
	}(file)

	viper.SetConfigName(fileName)
	viper.AddConfigPath(basePath)

	switch fileExt {
	case "json":
		viper.SetConfigType("json")
	case "yaml", "yml":
		viper.SetConfigType("yaml")
	default:
		return fmt.Errorf("unsupported config file type: %s", fileExt)
	}

	return viper.ReadInConfig()
}

func initLog() error {
	logPath := filepath.Join(viper.GetString("log.path"), viper.GetString("log.file"))
	writer, err := rotatelogs.New(
		logPath+".%Y%m%d",
		rotatelogs.WithLinkName(logPath),
		rotatelogs.WithRotationCount(uint(viper.GetInt("log.max_age"))),
		rotatelogs.WithRotationTime(24*time.Hour),
	)
	if err != nil {
		return fmt.Errorf("init log error: %v", err)
	}

	if viper.GetBool("log.stdout") {
		logrus.SetOutput(os.Stdout)
	} else {
		logrus.SetOutput(writer)
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000",
		ForceColors:     false,
	})
	logrus.SetReportCaller(false)

	logLevel, err := logrus.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)
	return nil
}

func main() {
	configFile := flag.String("c", "config/config.yaml", "path to config file")
	flag.Parse()

	if err := initConfig(*configFile); err != nil {
		fmt.Printf("read config failed: %v\n", err)
		os.Exit(1)
	}
	if err := initLog(); err != nil {
		fmt.Printf("init log failed: %v\n", err)
		os.Exit(1)
	}

	if err := mqtt_server.StartMqttServer(); err != nil {
		log.Errorf("start telemetry broker failed: %v", err)
		os.Exit(1)
	}
	log.Info("telemetry broker started, press Ctrl+C to exit")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("telemetry broker stopped")
}
