// Package model provides data-structs for internal app-usage
package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"
)

type (
	ArtifactKind string
	DeliveryMode string
)

const (
	KindDetectionJSON    ArtifactKind = "detection_json"
	KindOobJSON          ArtifactKind = "oob_json"
	KindSegmentationJSON ArtifactKind = "segmentation_json"
	KindCroppedJSON      ArtifactKind = "cropped_json"
	KindResultImage      ArtifactKind = "result_image"
	KindOriginalImage    ArtifactKind = "original_image"
	KindCroppedImage     ArtifactKind = "cropped_image"
)

// AllKinds - полный каталог артефактов, которые модель обязана уметь отдавать.
// Порядок фиксированный - он же порядок обхода при сборке архива.
var AllKinds = []ArtifactKind{
	KindDetectionJSON,
	KindOobJSON,
	KindSegmentationJSON,
	KindCroppedJSON,
	KindResultImage,
	KindOriginalImage,
	KindCroppedImage,
}

const (
	DeliveryArchive  DeliveryMode = "archive"  // результат сразу в ответе
	DeliveryManifest DeliveryMode = "manifest" // результат в очередь, клиент заберет поллингом
)

var DeliveryModeMap = map[DeliveryMode]bool{
	DeliveryArchive:  true,
	DeliveryManifest: true,
}

//---------------------

// WorkKey - уникальный ключ задачи: один и тот же файл под другим этажом/проектом - другая задача
type WorkKey struct {
	Tenant  string `json:"user_id"`
	Project string `json:"project_number"`
	Floor   string `json:"floor_number"`
	ImageID string `json:"image_id"`
}

func (k WorkKey) String() string {
	return k.Tenant + "/" + k.Project + "/" + k.Floor + "/" + k.ImageID
}

// Artifact - один выходной файл модели, уже проверенный на существование
type Artifact struct {
	Kind ArtifactKind `json:"kind"`
	Path string       `json:"-"` // абсолютный путь на диске, наружу не отдаем
	Name string       `json:"filename"`
}

// Manifest - запись об одной успешно обработанной задаче в очереди выдачи
type Manifest struct {
	ID         int64      `json:"-"`
	Tenant     string     `json:"-"`
	Project    string     `json:"project_number"`
	Floor      string     `json:"floor_number"`
	ImageName  string     `json:"image_name"`
	ArchiveKey string     `json:"archive_key"`
	Files      FileMap    `json:"filenames"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// IngestResult - итог одного аплоада, хендлер решает как его отдать по Delivery
type IngestResult struct {
	Key          WorkKey
	Delivery     DeliveryMode
	Deduplicated bool
	Artifacts    []Artifact
	Archive      []byte    // push-режим: готовый zip
	Manifest     *Manifest // manifest-режим: запись, вставшая в очередь
}

//-------------------

// UploadData - сырые данные запроса на загрузку, до валидации
type UploadData struct {
	Tenant      string
	Project     string
	Floor       string
	Delivery    string
	ImageName   string
	Image       multipart.File
	ContentType string
	ImageSize   int64
}

// ------------------

var (
	ErrCommon500         error = errors.New("something went wrong. Try again later")             // 500
	ErrMissingFields     error = errors.New("user_id, project_number and floor_number required") // 400
	ErrEmptySource       error = errors.New("empty/incorrect source image provided")             // 400
	ErrUnsupportedFormat error = errors.New("unsupported image format")                          // 400
	ErrIncorrectDelivery error = errors.New("delivery mode is not supported")                    // 400
	ErrLedgerUnavailable error = errors.New("processing ledger is unavailable")                  // 500
	ErrProcessingFailed  error = errors.New("image processing failed")                           // 502
	ErrPackagingFailed   error = errors.New("failed to package result artifacts")                // 500
	ErrArchiveNotFound   error = errors.New("requested archive doesn't exist")                   // 404
)

//--------------------

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
)

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
}

//--------------------

// FileMap - маппинг kind->имя файла, в базе лежит как JSONB
type FileMap map[ArtifactKind]string

func (f *FileMap) Scan(value any) error {
	if value == nil {
		*f = FileMap{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("invalid type for FileMap")
	}

	if err := json.Unmarshal(b, f); err != nil {
		return fmt.Errorf("failed to unmarshal JSONB to FileMap: %w", err)
	}
	return nil
}

func (f FileMap) Value() (driver.Value, error) {
	if len(f) == 0 {
		return []byte(`{}`), nil
	}
	res, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal FileMap to JSONB: %w", err)
	}

	return res, nil
}
