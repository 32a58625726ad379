package service

import (
	"strings"

	"github.com/UnendingLoop/FloorPlanIngest/internal/layout"
	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
)

func validateNormalizeUpload(raw *model.UploadData) (model.WorkKey, model.DeliveryMode, string, error) {
	var key model.WorkKey

	// обязательные поля идентификации
	raw.Tenant = strings.TrimSpace(raw.Tenant)
	raw.Project = strings.TrimSpace(raw.Project)
	raw.Floor = strings.TrimSpace(raw.Floor)
	if raw.Tenant == "" || raw.Project == "" || raw.Floor == "" {
		return key, "", "", model.ErrMissingFields
	}

	// все три поля станут компонентами пути - побег из дерева недопустим
	if !layout.SafeKeyPart(raw.Tenant) || !layout.SafeKeyPart(raw.Project) || !layout.SafeKeyPart(raw.Floor) {
		return key, "", "", model.ErrMissingFields
	}

	// корректен ли исходник
	if raw.Image == nil || raw.ImageSize <= 0 || raw.ImageName == "" || !model.InImageTypeMap[raw.ContentType] {
		return key, "", "", model.ErrEmptySource
	}

	id, ext := layout.ImageID(raw.ImageName)
	if !layout.SafeKeyPart(id) {
		return key, "", "", model.ErrEmptySource
	}

	// режим выдачи: пустой - пушим архив в ответ, как делает большинство клиентов
	delivery := model.DeliveryMode(strings.ToLower(strings.TrimSpace(raw.Delivery)))
	if delivery == "" {
		delivery = model.DeliveryArchive
	}
	if !model.DeliveryModeMap[delivery] {
		return key, "", "", model.ErrIncorrectDelivery
	}

	key = model.WorkKey{
		Tenant:  raw.Tenant,
		Project: raw.Project,
		Floor:   raw.Floor,
		ImageID: id,
	}

	return key, delivery, ext, nil
}
