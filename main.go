package main

import (
	"log"
	"os"

	"zapcrm/config"
	dbpkg "zapcrm/db"
	"zapcrm/router"
	"zapcrm/workers"

	"github.com/gin-gonic/gin"
)

func main() {
	configPath := "config/config.json"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg := config.Get(configPath)

	dbpkg.SetConfigurations(cfg)
	database, err := dbpkg.Connect()
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close()

	// entrega assíncrona pro workflow engine
	workers.StartOutboxDispatcher(database, cfg)

	// varredura do trigger de tempo-em-coluna + janitor de dedup
	scheduler := workers.StartAutomationScheduler(database, cfg)
	defer scheduler.Stop()

	r := gin.New()
	r.Use(dbpkg.SetDBtoContext(database))
	router.Initialize(r, cfg)

	log.Printf("zapcrm listening on :%s", cfg.ApiPort)
	log.Fatal(r.Run(":" + cfg.ApiPort))
}
