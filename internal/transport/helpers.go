package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/FloorPlanIngest/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500),
		errors.Is(err, model.ErrLedgerUnavailable),
		errors.Is(err, model.ErrPackagingFailed):
		return 500
	case errors.Is(err, model.ErrProcessingFailed):
		return 502
	case errors.Is(err, model.ErrArchiveNotFound):
		return 404
	case errors.Is(err, model.ErrMissingFields),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrUnsupportedFormat),
		errors.Is(err, model.ErrIncorrectDelivery):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
