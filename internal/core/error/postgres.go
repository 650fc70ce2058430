package errx

import (
	"database/sql"
	"errors"
	"net/http"
)

// WrapStore maps database/sql errors from the product store to the unified
// Error type. sql.ErrNoRows becomes a not-found result so callers can route
// data absence through normal conditional edges; everything else is reported
// as the store being unavailable, never as a raw driver error.
func WrapStore(err error) *Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return New(err, http.StatusNotFound, StoreNotFoundMessage)
	}

	return New(err, http.StatusBadGateway, StoreErrorMessage)
}
