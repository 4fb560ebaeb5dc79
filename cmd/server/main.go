package main

import (
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/spf13/viper"

	"speaking-stone-golang/internal/app/server"
	log "speaking-stone-golang/logger"
)

func main() {
	configFile := flag.String("c", "config/config.yaml", "config file path")
	flag.Parse()

	if *configFile == "" {
		fmt.Println("config file path must not be empty")
		return
	}

	err := Init(*configFile)
	if err != nil {
		return
	}

	if viper.GetBool("server.pprof.enable") {
		pprofPort := viper.GetInt("server.pprof.port")
		go func() {
			log.Infof("starting pprof on port %d", pprofPort)
			if err := http.ListenAndServe(fmt.Sprintf(":%d", pprofPort), nil); err != nil {
				log.Errorf("pprof server failed: %v", err)
			}
		}()
	}

	appInstance := server.NewApp()
	if appInstance == nil {
		log.Fatalf("failed to create app")
		return
	}
	appInstance.Run()
}
