package main

import (
	"github.com/Leyton-2712/syncro-chat-copia/internal/access"
	"github.com/Leyton-2712/syncro-chat-copia/internal/config"
	"github.com/Leyton-2712/syncro-chat-copia/internal/db"
	clog "github.com/Leyton-2712/syncro-chat-copia/internal/log"
	"github.com/Leyton-2712/syncro-chat-copia/internal/notify"
	"github.com/Leyton-2712/syncro-chat-copia/internal/server"
	"github.com/Leyton-2712/syncro-chat-copia/internal/service"
	"github.com/Leyton-2712/syncro-chat-copia/internal/session"
	"github.com/Leyton-2712/syncro-chat-copia/internal/ws"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}
	if err := db.EnsureGeneralChat(gdb); err != nil {
		log.Fatal().Err(err).Msg("seed general chat")
	}

	// 通知总线先以空操作状态注入 service，网关就绪后再挂上
	bus := notify.NewBus()
	eval := access.NewEvaluator(gdb)
	registry := session.NewRegistry()

	userSvc := service.NewUserService(gdb, cfg)
	chatSvc := service.NewChatService(gdb, eval, bus)
	msgSvc := service.NewMessageService(gdb, eval, bus)

	gateway := ws.NewGateway(registry, eval, chatSvc, msgSvc, cfg)
	bus.Attach(gateway)

	h := server.NewHandler(userSvc, chatSvc, msgSvc)
	r := server.SetupRouter(cfg, h, gateway)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
