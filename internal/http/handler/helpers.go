package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/whitecard/whitecard-backend/internal/http/response"
	"github.com/whitecard/whitecard-backend/internal/i18n"
	"github.com/whitecard/whitecard-backend/internal/repository"
	"github.com/whitecard/whitecard-backend/internal/service"
)

var (
	pinRe   = regexp.MustCompile(`^[0-9]{6}$`)
	otpRe   = regexp.MustCompile(`^[0-9]{4}$`)
	phoneRe = regexp.MustCompile(`^[0-9]{1,15}$`)
)

// fieldErrors maps a JSON field name to what is wrong with it.
type fieldErrors map[string]string

func (f fieldErrors) require(field, value string) {
	if strings.TrimSpace(value) == "" {
		f[field] = "required"
	}
}

func (f fieldErrors) match(field, value string, re *regexp.Regexp, rule string) {
	if _, seen := f[field]; seen {
		return
	}
	if !re.MatchString(value) {
		f[field] = rule
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func writeInvalid(w http.ResponseWriter, r *http.Request, details any) {
	response.Error(w, r, http.StatusBadRequest, "invalid_request", response.Msg(i18n.MsgInvalidRequest), details)
}

// writeServiceError renders expected outcomes as 4xx and logs everything else
// as an internal failure. It returns the status for duration metrics.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) string {
	if de, ok := service.AsDomainError(err); ok {
		msg := response.Msg(de.MessageID)
		if de.Data != nil {
			response.ErrorWithData(w, r, de.Status, de.Code(), msg, de.Data)
		} else {
			response.Error(w, r, de.Status, de.Code(), msg, nil)
		}
		return de.Code()
	}
	slog.ErrorContext(r.Context(), "request failed", "operation", op, "error", err.Error())
	response.Error(w, r, http.StatusInternalServerError, "internal", response.Msg(i18n.MsgInternalError), nil)
	return "error"
}

func setTokenHeader(w http.ResponseWriter, token string) {
	if token != "" {
		w.Header().Set(response.TokenHeader, token)
	}
}

func parsePageRequest(r *http.Request) (repository.PageRequest, error) {
	page := repository.DefaultPage
	pageSize := repository.DefaultPageSize
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page must be a positive integer")
		}
		page = v
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("page_size")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			return repository.PageRequest{}, errors.New("page_size must be a positive integer")
		}
		if v > repository.MaxPageSize {
			return repository.PageRequest{}, fmt.Errorf("page_size must be <= %d", repository.MaxPageSize)
		}
		pageSize = v
	}
	return repository.PageRequest{Page: page, PageSize: pageSize}, nil
}
