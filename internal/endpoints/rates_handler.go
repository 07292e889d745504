package endpoints

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"rates-app/internal/domain"
	"rates-app/internal/query"
	"rates-app/internal/util"
)

type RatesService interface {
	Current(ctx context.Context) (*domain.Snapshot, error)
	RecentHistory(ctx context.Context, charCode string, limit int) ([]query.Point, error)
	Codes(ctx context.Context) ([]string, error)
}

type Rates struct {
	Response APIResponse
	logger   *util.RatesLogger
	service  RatesService
}

func (h *Rates) Init(service RatesService, webSlogger *util.RatesLogger) {
	h.service = service
	h.logger = webSlogger
}

func (h *Rates) GetCurrentHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}

	snapshot, err := h.service.Current(r.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled while fetching current rates")
			h.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
			return
		}
		h.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while fetching current rates. Err -", err)
		h.Response.WriteErrorResponseWithStatusCode(w, ErrFetchFailed, http.StatusInternalServerError)
		return
	}

	valute := snapshot.Valute
	if valute == nil {
		valute = []domain.Valute{}
	}
	h.Response.WriteRawResponse(w, domain.Snapshot{
		Date:         snapshot.Date,
		PreviousDate: snapshot.PreviousDate,
		Valute:       valute,
	})
}

func (h *Rates) GetHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}

	code := mux.Vars(r)["code"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting limit from query. value -", raw)
			h.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
			return
		}
	}

	points, err := h.service.RecentHistory(r.Context(), code, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			h.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled")
			h.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
			return
		}
		h.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while reading history for", code, "Err -", err)
		h.Response.WriteErrorResponseWithStatusCode(w, ErrHistoryUnavailable, http.StatusInternalServerError)
		return
	}

	h.Response.WriteRawResponse(w, points)
}

func (h *Rates) GetCodesHandler(w http.ResponseWriter, r *http.Request) {
	if !h.allowGet(w, r) {
		return
	}

	codes, err := h.service.Codes(r.Context())
	if err != nil {
		h.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while listing codes. Err -", err)
		h.Response.WriteErrorResponseWithStatusCode(w, ErrHistoryUnavailable, http.StatusInternalServerError)
		return
	}

	h.Response.WriteRawResponse(w, codes)
}

func (h *Rates) allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	h.logger.LogEvent(util.LOG_LEVEL_ERROR, "Method Not Allowed. Only GET requests are supported", http.StatusMethodNotAllowed)
	h.Response.WriteErrorResponseWithStatusCode(w, ErrMethodNotAllowed, http.StatusMethodNotAllowed)
	return false
}
