package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/certlab/examd/internal/config"
	"github.com/certlab/examd/internal/database"
	"github.com/certlab/examd/internal/logger"
	"github.com/certlab/examd/internal/model"
	"github.com/certlab/examd/internal/repository"
	"github.com/certlab/examd/internal/service"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	candidates := repository.NewCandidateRepository(pool)
	auth := service.NewAuthService(cfg, rdb)

	names := []string{
		"Alice Chen", "Bruno Almeida", "Carmen Reyes", "Daniel Okafor", "Elena Petrova",
		"Farid Hassan", "Grace Kim", "Hugo Lindqvist", "Ines Moreau", "Jonas Weber",
		"Katya Ivanova", "Liam O'Brien", "Mei Tanaka", "Noah Cohen", "Olivia Rossi",
		"Pavel Novak", "Quinn Murphy", "Rosa Fernandez", "Samir Patel", "Tara Singh",
	}

	fmt.Printf("=== Seeding %d Candidates ===\n", len(names))

	hash, err := auth.HashPassword("changeme123")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to hash seed password")
	}

	successCount := 0
	for i, name := range names {
		email := fmt.Sprintf("%s@example.com",
			strings.ReplaceAll(strings.ToLower(strings.ReplaceAll(name, "'", "")), " ", "."))

		candidate := &model.Candidate{
			Email:        email,
			Name:         name,
			PasswordHash: hash,
		}

		if err := candidates.Create(ctx, candidate); err != nil {
			fmt.Printf("Error creating candidate %s (%s): %v\n", name, email, err)
			continue
		}
		successCount++
		if (i+1)%10 == 0 {
			fmt.Printf("Created %d candidates...\n", i+1)
		}
	}

	fmt.Printf("\nSeed completed! Successfully added %d/%d candidates.\n", successCount, len(names))
}
