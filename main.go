package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/betwixt-game/betwixt/internal/httpserver"
	"github.com/betwixt-game/betwixt/internal/store"
	"github.com/betwixt-game/betwixt/internal/words"
)

func main() {
	_ = godotenv.Load()
	if lvl, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info")); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}

	dict, err := words.Default()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}
	answers, allowed := dict.Stats()
	log.Info().Int("answers", answers).Int("allowed", allowed).Msg("dictionary loaded")

	db, err := store.Open(getEnv("DB_PATH", "./data/betwixt.db"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()
	if err := store.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	st := store.NewSQLite(db)
	seeded, err := st.SeedSecretWords(context.Background(), dict.Answers())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed secret words")
	}
	if seeded > 0 {
		log.Info().Int("seeded", seeded).Msg("secret-word pool updated")
	}

	srv := httpserver.New(st, dict)
	port := getEnv("PORT", "8080")
	log.Info().Str("port", port).Msg("starting betwixt server")
	if err := srv.Start(":" + port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
