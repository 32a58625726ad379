package storage

import (
	"log"
	"time"

	"github.com/UnendingLoop/FloorPlanIngest/internal/storage/miniostorage"
	"github.com/wb-go/wbf/config"
)

func NewArchiveStorage(cfg *config.Config, delay time.Duration) *miniostorage.MinioArchiveStorage {
	success := false
	var client *miniostorage.MinioArchiveStorage
	var err error

	for !success {
		log.Println("Connecting to archive-storage...")
		client, err = miniostorage.NewMinioClient(cfg)
		if err != nil {
			log.Printf("Failed to init connection to archive-storage: %v\nNext retry in %v...", err, delay)
			time.Sleep(delay)
			continue
		}
		log.Println("Successfully connected archive-storage!")
		success = true
	}

	return client
}
