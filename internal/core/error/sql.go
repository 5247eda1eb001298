package errx

import (
	"database/sql"
	"errors"
	"net/http"
)

// WrapSQL maps database/sql errors to AppError with appropriate kinds.
func WrapSQL(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return New(KindNotFound, err, http.StatusNotFound, NotFoundMessage)
	}

	return New(KindPersistence, err, http.StatusServiceUnavailable, SQLErrorMessage)
}
