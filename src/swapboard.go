package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/swapboard/swapboard/src/bot"
	"github.com/swapboard/swapboard/src/config"
	"github.com/swapboard/swapboard/src/data"
)

var cleanupCommands = flag.Bool("cleanup-commands", false, "delete the guild's slash commands and exit")

func main() {
	flag.Parse()
	config.Bootstrap()

	db := data.MustMySQL(config.MySQLDSN())
	rdb := data.MustRedis(config.RedisURL())
	cfg := config.New(db)

	b, err := bot.New(cfg, db, rdb)
	if err != nil {
		log.Fatalf("bot: %v", err)
	}

	if *cleanupCommands {
		if err := b.RemoveCommands(); err != nil {
			log.Fatalf("cleanup commands: %v", err)
		}
		log.Println("slash commands removed")
		return
	}

	if err := b.Start(); err != nil {
		log.Fatalf("bot start: %v", err)
	}
	log.Println("swapboard is running, press Ctrl+C to exit")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	b.Stop()
}
