package processor

import (
	"bytes"
	"errors"
	"image"
	"io"

	_ "image/jpeg"
	_ "image/png"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
	"github.com/disintegration/imaging"
)

// ValidateImage - проверяет что аплоад действительно картинка допустимого формата,
// до того как занимать слот дорогого инференса. Возвращает перечитываемый ридер.
func ValidateImage(r io.Reader) (io.Reader, imaging.Format, error) {
	if r == nil {
		return nil, -1, errors.New("nil-reader provided")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, -1, err
	}

	_, f, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, -1, model.ErrUnsupportedFormat
	}

	format, err := imaging.FormatFromExtension(f)
	if err != nil {
		return nil, -1, model.ErrUnsupportedFormat
	}

	switch format {
	case imaging.PNG, imaging.JPEG:
	default:
		return nil, -1, model.ErrUnsupportedFormat
	}

	return bytes.NewReader(data), format, nil
}
