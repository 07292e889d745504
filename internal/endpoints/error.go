package endpoints

import (
	"context"
	"errors"

	"rates-app/internal/domain"
)

const (
	API_SUCCESS = iota + 303000 // 303000
	API_FAILURE                 // 303001 - Generic API failure
)

const (
	RATES_NOT_AVAILABLE   = iota + 101 // 101 - Upstream rates could not be fetched
	HISTORY_NOT_AVAILABLE              // 102 - Retention store could not be read
	INVALID_PARAMETERS                 // 103 - Malformed limit
	REQUEST_CANCELLED                  // 104 - Request was cancelled by client or server timeout
	STREAM_NOT_AVAILABLE               // 105 - Broadcast hub is shut down
)

var (
	ErrFetchFailed        = errors.New("Failed to fetch data")
	ErrHistoryUnavailable = errors.New("failed to read rate history")
	ErrInvalidParameters  = errors.New("invalid limit parameter")
	ErrRequestCancelled   = errors.New("request cancelled by client or server timeout")
	ErrStreamNotAvailable = errors.New("rate stream is not available")
	ErrMethodNotAllowed   = errors.New("method Not Allowed. Only GET requests are supported")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	var fetchErr *domain.FetchError

	switch {
	case errors.Is(err, ErrFetchFailed), errors.As(err, &fetchErr):
		return RATES_NOT_AVAILABLE
	case errors.Is(err, ErrHistoryUnavailable):
		return HISTORY_NOT_AVAILABLE
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, ErrRequestCancelled), errors.Is(err, context.Canceled):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrStreamNotAvailable):
		return STREAM_NOT_AVAILABLE
	default:
		return API_FAILURE
	}
}
