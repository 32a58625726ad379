// Package service provides business-logic for the app
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/UnendingLoop/FloorPlanIngest/internal/layout"
	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/UnendingLoop/FloorPlanIngest/internal/mwlogger"
	"github.com/UnendingLoop/FloorPlanIngest/internal/packager"
	"github.com/UnendingLoop/FloorPlanIngest/internal/pool"
	"github.com/UnendingLoop/FloorPlanIngest/internal/processor"
	"github.com/UnendingLoop/FloorPlanIngest/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

type IngestService struct {
	ledger    repository.Ledger
	manifests repository.ManifestStore
	publisher EventPublisher
	archives  ArchiveStorage
	processor processor.FloorProcessor
	layout    layout.Layout
	pool      *pool.Pool
	keys      *pool.KeyedMutex
}

func NewIngestService(
	ledger repository.Ledger,
	manifests repository.ManifestStore,
	pub EventPublisher,
	strg ArchiveStorage,
	proc processor.FloorProcessor,
	l layout.Layout,
	workerLimit int,
) *IngestService {
	return &IngestService{
		ledger:    ledger,
		manifests: manifests,
		publisher: pub,
		archives:  strg,
		processor: proc,
		layout:    l,
		pool:      pool.New(workerLimit),
		keys:      pool.NewKeyedMutex(),
	}
}

// EventPublisher - контракт для работы с очередью событий "результат готов"
type EventPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ArchiveStorage - контракт для работы с хранилищем собранных архивов
type ArchiveStorage interface {
	Get(ctx context.Context, key string) (output io.ReadCloser, ctype string, err error)
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
}

// Стратегия ретрая отправки события в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

func (c *IngestService) Ingest(ctx context.Context, raw *model.UploadData) (*model.IngestResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	// валидируем поля запроса и собираем ключ задачи
	key, delivery, ext, err := validateNormalizeUpload(raw)
	if err != nil {
		return nil, err
	}

	// проверяем что это действительно картинка, до того как занимать слот модели
	img, _, err := processor.ValidateImage(raw.Image)
	if err != nil {
		// не распарсилось - вина клиента; не прочиталось - наша
		if errors.Is(err, model.ErrUnsupportedFormat) {
			return nil, model.ErrUnsupportedFormat
		}
		logger.Error().Err(err).Msg("Failed to read uploaded image")
		return nil, model.ErrCommon500
	}

	// сериализуемся по ключу: два конкурентных аплоада одной задачи не должны
	// оба проскочить проверку леджера и оба запустить модель
	unlock := c.keys.Lock(key.String())
	defer unlock()

	dirs := c.layout.Resolve(key)
	if err := layout.EnsureDirs(dirs); err != nil {
		logger.Error().Err(err).Msg("Failed to prepare work-item dirs")
		return nil, model.ErrCommon500
	}

	// сохраняем исходник: путь детерминированный, повторная заливка того же
	// ключа просто перезапишет идентичный файл
	origPath := c.layout.Candidates(key, ext)[model.KindOriginalImage]
	if err := saveOriginal(origPath, img); err != nil {
		logger.Error().Err(err).Msg("Failed to save original image")
		return nil, model.ErrCommon500
	}

	// спрашиваем леджер; его отказ - отказ запроса, НЕ "не обработано"
	processed, err := c.ledger.IsProcessed(ctx, key)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Ledger read failed for %q", key))
		return nil, model.ErrLedgerUnavailable
	}

	if !processed {
		// модель уже не отменяем: дисконнект клиента не должен терять работу,
		// которая все равно зачтется в леджер
		opCtx := context.WithoutCancel(ctx)
		err := c.pool.Run(ctx, func() error {
			return c.processor.Process(opCtx, key, origPath, dirs.Base)
		})
		if err != nil {
			// леджер не трогаем - повторный аплоад того же ключа перезапустит модель
			logger.Error().Err(err).Msg(fmt.Sprintf("Processing failed for %q", key))
			return nil, model.ErrProcessingFailed
		}

		if err := c.ledger.MarkProcessed(ctx, key); err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Ledger write failed for %q", key))
			return nil, model.ErrLedgerUnavailable
		}
	}

	// перечисляем какие артефакты реально лежат на диске
	artifacts := c.collectArtifacts(key, ext)
	if len(artifacts) == 0 {
		// модель отработала, но не отдала ни одного файла - перезапуск не поможет,
		// леджер уже отмечен, отдаем пустой результат
		logger.Warn().Msg(fmt.Sprintf("No artifacts produced for %q", key))
	}

	res := &model.IngestResult{
		Key:          key,
		Delivery:     delivery,
		Deduplicated: processed,
		Artifacts:    artifacts,
	}

	switch delivery {
	case model.DeliveryArchive:
		data, err := packager.Pack(key.Tenant, c.layout.TenantRoot(key.Tenant), artifacts)
		if err != nil {
			logger.Error().Err(err).Msg(fmt.Sprintf("Failed to pack artifacts for %q", key))
			return nil, model.ErrPackagingFailed
		}
		res.Archive = data
	case model.DeliveryManifest:
		m, err := c.enqueueManifest(ctx, key, raw.ImageName, artifacts)
		if err != nil {
			return nil, err
		}
		res.Manifest = m
	}

	return res, nil
}

// enqueueManifest - пакует бандл в хранилище архивов и ставит запись в очередь выдачи
func (c *IngestService) enqueueManifest(ctx context.Context, key model.WorkKey, imageName string, artifacts []model.Artifact) (*model.Manifest, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	data, err := packager.Pack(key.Tenant, c.layout.TenantRoot(key.Tenant), artifacts)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to pack artifacts for %q", key))
		return nil, model.ErrPackagingFailed
	}

	archiveKey := "results/" + key.Tenant + "/" + uuid.New().String() + ".zip"
	if err := c.archives.Put(ctx, archiveKey, int64(len(data)), "application/zip", bytes.NewReader(data)); err != nil {
		logger.Error().Err(err).Msg("Failed to save result-archive in Storage")
		return nil, model.ErrCommon500
	}

	files := make(model.FileMap, len(artifacts))
	for _, a := range artifacts {
		files[a.Kind] = a.Name
	}

	now := time.Now().UTC()
	m := &model.Manifest{
		Tenant:     key.Tenant,
		Project:    key.Project,
		Floor:      key.Floor,
		ImageName:  imageName,
		ArchiveKey: archiveKey,
		Files:      files,
		CreatedAt:  &now,
	}

	if err := c.manifests.Append(ctx, m); err != nil {
		logger.Error().Err(err).Msg("Failed to append manifest to queue in DB")
		return nil, model.ErrCommon500
	}

	// событие чисто сигнальное: поллинг работает и без него, поэтому ошибку
	// публикации не превращаем в отказ запроса
	event, _ := json.Marshal(m)
	if err := c.publisher.SendWithRetry(ctx, retryStrategy, []byte(key.Tenant), event); err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to publish result-event for %q", key))
	}

	return m, nil
}

// collectArtifacts - кандидаты есть всегда, артефакт - только тот файл, который существует
func (c *IngestService) collectArtifacts(key model.WorkKey, ext string) []model.Artifact {
	candidates := c.layout.Candidates(key, ext)

	artifacts := make([]model.Artifact, 0, len(model.AllKinds))
	for _, kind := range model.AllKinds {
		path := candidates[kind]
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue // отсутствие файла - не ошибка, модель не обязана отдавать все виды
		}
		artifacts = append(artifacts, model.Artifact{
			Kind: kind,
			Path: path,
			Name: info.Name(),
		})
	}

	return artifacts
}

func (c *IngestService) DrainResults(ctx context.Context, tenant string) ([]model.Manifest, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	if !layout.SafeKeyPart(tenant) {
		return nil, model.ErrMissingFields
	}

	res, err := c.manifests.Drain(ctx, tenant)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to drain manifests for tenant %q from DB", tenant))
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c *IngestService) TenantsWithPending(ctx context.Context) ([]string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	res, err := c.manifests.TenantsWithPending(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch tenants with pending results from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}

func (c *IngestService) LoadArchive(ctx context.Context, key string) (io.ReadCloser, string, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	data, cType, err := c.archives.Get(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", model.ErrArchiveNotFound
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch result-archive %q from Storage", key))
		return nil, "", model.ErrCommon500
	}
	return data, cType, nil
}

func saveOriginal(path string, r io.Reader) error {
	dst, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		return err
	}

	return dst.Close()
}
