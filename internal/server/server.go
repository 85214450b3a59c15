package server

import (
	"fmt"
	"net/http"
	"time"

	"scout/internal/aws"
	"scout/internal/cache"
	"scout/internal/config"
	"scout/internal/controller"
	"scout/internal/database"
	"scout/internal/rabbitmq"
)

type Server struct {
	ic       controller.IngestController
	tc       controller.TokenController
	db       database.Database
	cache    cache.Cache
	rabbit   rabbitmq.Client
	profiles aws.ProfileStore
	config   config.Config
}

func New(config config.Config, db database.Database, cache cache.Cache, rabbit rabbitmq.Client, profiles aws.ProfileStore, ic controller.IngestController) *http.Server {
	tc := controller.NewTokenController(db)

	server := Server{
		ic:       ic,
		tc:       tc,
		db:       db,
		cache:    cache,
		rabbit:   rabbit,
		profiles: profiles,
		config:   config,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%v", config.Port),
		Handler:      server.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
