package main

import (
	"log"

	"github.com/joho/godotenv"

	"github.com/erbtraffic/licensebot/bot"
	"github.com/erbtraffic/licensebot/core/cmd"
)

func main() {
	// Local development keeps credentials in .env; hosted deployments set
	// real environment variables and have no file.
	_ = godotenv.Load()

	err := cmd.Run(cmd.Options{
		ConfigEnvVar:      "CONFIG_PATH",
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (cmd.ConfigCarrier, error) {
			return bot.LoadConfig(path)
		},
		Bootstrap: func(cfg cmd.ConfigCarrier) (cmd.TelegramApp, error) {
			return bot.Bootstrap(cfg.(*bot.AppConfig))
		},
	})
	if err != nil {
		log.Fatalf("licensebot: %v", err)
	}
}
