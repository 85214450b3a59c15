package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"scout/internal/config"
	"scout/internal/controller"
	"scout/internal/database"
	"scout/internal/model"

	"github.com/rs/zerolog"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if len(os.Args) < 4 {
		fmt.Println("Usage: tokengen <config_path> <token_name> <expires_in_days> [role]")
		fmt.Println("Example: tokengen config/config.json \"Initial Admin Token\" 365 admin")
		os.Exit(1)
	}

	configPath := os.Args[1]
	tokenName := os.Args[2]
	expiresInDays, err := strconv.Atoi(os.Args[3])
	if err != nil {
		log.Fatal().Msgf("Invalid expires_in_days value: %v", err)
	}

	role := model.RoleAdmin
	if len(os.Args) > 4 {
		role = os.Args[4]
	}
	if role != model.RoleAdmin && role != model.RoleIngest {
		log.Fatal().Msgf("Invalid role %q, must be %q or %q", role, model.RoleAdmin, model.RoleIngest)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Msgf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Msgf("Failed to connect to database: %v", err)
	}

	tc := controller.NewTokenController(db)
	rawToken, token, err := tc.Mint(context.Background(), tokenName, role, expiresInDays)
	if err != nil {
		log.Fatal().Msgf("Failed to create token: %v", err)
	}

	fmt.Printf("%s token %q created successfully!\n", token.Role, token.Name)
	fmt.Println("Token:", rawToken)
	fmt.Println("IMPORTANT: Save this token securely. It won't be shown again.")
}
