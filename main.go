package main

import (
	"log"
	"time"

	"github.com/chatterhq/chatter/config"
	"github.com/chatterhq/chatter/db"
	"github.com/chatterhq/chatter/realtime"
	"github.com/chatterhq/chatter/server"
	"github.com/chatterhq/chatter/services"
	"github.com/redis/go-redis/v9"
)

// notificationPushWindow collapses duplicate realtime pushes for the same
// recipient/notification pair.
const notificationPushWindow = 5 * time.Second

func main() {
	conf, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	gormDB := db.GetDB(conf)

	userRepo := db.NewUserRepo(gormDB)
	conversationRepo := db.NewConversationRepo(gormDB)
	messageRepo := db.NewMessageRepo(gormDB)
	notificationRepo := db.NewNotificationRepo(gormDB)
	postRepo := db.NewPostRepo(gormDB)
	mediaRepo := db.NewMediaRepo(gormDB, conf)

	gateway := realtime.NewGateway()
	gateway.Init()

	var deduper services.Deduper
	if conf.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: conf.RedisAddr})
		deduper = services.NewRedisDeduper(client, notificationPushWindow)
		log.Printf("notification dedup backed by redis at %s", conf.RedisAddr)
	} else {
		deduper = services.NewMemoryDeduper(notificationPushWindow)
	}

	notificationService := services.NewNotificationService(notificationRepo, postRepo, gateway, deduper)
	messagingService := services.NewMessagingService(
		conversationRepo,
		messageRepo,
		userRepo,
		mediaRepo,
		notificationService,
		gateway,
		conf,
	)
	gateway.SetHandler(messagingService)

	s := &server.Server{
		Config:              conf,
		UserRepository:      userRepo,
		MessagingService:    messagingService,
		NotificationService: notificationService,
		Gateway:             gateway,
	}
	s.Start()
}
