package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"keywarden/config"
	"keywarden/handlers"
	"keywarden/i18n"
	"keywarden/scheduler"
	"keywarden/stats"
	"keywarden/store"
	"keywarden/workflow"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.Load()
	i18n.Init(cfg.Lang)

	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPassword := getEnv("DB_PASSWORD", "")
	dbName := getEnv("DB_NAME", "keywarden")

	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dbHost, dbPort, dbUser, dbPassword, dbName)

	discord, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		log.Fatal("Error creating Discord session:", err)
	}

	// The board is created before the store so the store can poke it after
	// every custody mutation.
	board := stats.NewBoard(discord, nil, cfg.StatusChannelID)

	st, err := store.NewPostgres(connStr, cfg.CacheTTL, board.NotifyUpdate)
	if err != nil {
		log.Fatal("Database connection failed:", err)
	}
	defer st.Close()

	if err := st.Setup(context.Background()); err != nil {
		log.Fatal("Database setup failed:", err)
	}

	board.SetStore(st)

	messenger := handlers.NewMessenger(discord)
	orch := workflow.New(st, messenger, cfg.RequestTTL)
	h := handlers.New(orch, st)

	discord.AddHandler(handlers.Ready)
	discord.AddHandler(h.MessageCreate)
	discord.AddHandler(h.InteractionCreate)
	discord.Identify.Intents |= discordgo.IntentsDirectMessages | discordgo.IntentMessageContent

	err = discord.Open()
	if err != nil {
		log.Fatal("Error opening connection:", err)
	}
	defer discord.Close()
	defer board.Cleanup()

	stopScheduler := scheduler.Start(orch, messenger, cfg.ReminderInterval, cfg.ReminderAge)
	defer stopScheduler()
	log.Printf("Reminder scheduler started with check interval: %s", cfg.ReminderInterval)

	board.NotifyUpdate()

	log.Println("Bot is now running. Press CTRL-C to exit.")

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	<-sc

	log.Println("Shutting down bot...")
}
