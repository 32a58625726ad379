// Package main (in api-subfolder) provides launch of the whole floorplan-ingest application
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UnendingLoop/FloorPlanIngest/internal/kafka"
	"github.com/UnendingLoop/FloorPlanIngest/internal/layout"
	"github.com/UnendingLoop/FloorPlanIngest/internal/mwlogger"
	"github.com/UnendingLoop/FloorPlanIngest/internal/processor"
	"github.com/UnendingLoop/FloorPlanIngest/internal/repository"
	"github.com/UnendingLoop/FloorPlanIngest/internal/service"
	"github.com/UnendingLoop/FloorPlanIngest/internal/storage"
	"github.com/UnendingLoop/FloorPlanIngest/internal/transport"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	err := zlog.SetLevel("info")
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключиться к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// накатываем миграцию - реестр обработки и очередь манифестов
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу архивов
	strg := storage.NewArchiveStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо - он же реестр и очередь манифестов
	repo := repository.NewPostgresRepo(dbConn)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker)
	// подключиться к кафке как продюсер событий "результат готов"
	topic := appConfig.GetString("KAFKA_TOPIC")
	kafka.InitKafkaTopics(ctx, broker, 10*time.Second, topic)
	pub := wbfkafka.NewProducer([]string{broker}, topic)

	// клиент модели и раскладка рабочего дерева
	proc := processor.NewModelClient(appConfig.GetString("MODEL_URL"), 2*time.Minute)
	tree := layout.New(dataRoot(appConfig))

	// создаем экземпляр сервиса
	var svc FloorPlanService = service.NewIngestService(repo, repo, pub, strg, proc, tree, workerLimit(appConfig))
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewIngestHandler(svc)
	// сетапим сервер
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/health", handlers.HealthCheck)
	engine.POST("/floorplans/upload", handlers.Upload)        // прием плана этажа
	engine.GET("/results", handlers.TenantsWithPending)       // у кого есть неразобранные результаты
	engine.GET("/results/:user_id", handlers.DrainResults)    // забрать очередь манифестов пользователя
	engine.GET("/results/archive/*key", handlers.LoadArchive) // скачать сохраненный бандл

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: mwlogger.NewMWLogger(engine),
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(pub, dbConn)
	log.Println("Exiting app...")
}

func workerLimit(cfg *config.Config) int {
	limit, err := strconv.Atoi(cfg.GetString("WORKER_LIMIT"))
	if err != nil || limit <= 0 {
		log.Println("WORKER_LIMIT is not set or invalid, falling back to default pool size")
		return 0
	}
	return limit
}

func dataRoot(cfg *config.Config) string {
	root := cfg.GetString("DATA_ROOT")
	if root == "" {
		root = "./data"
		log.Printf("DATA_ROOT is empty. Using default value %q...", root)
	}
	return root
}

func shutdown(pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connection:
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	log.Println("Kafka-producer connection closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
