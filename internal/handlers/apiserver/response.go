package apiserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"socialnet/internal/services"
)

// OperationResult is returned by every mutating endpoint and by every failed
// request, with Success=false.
type OperationResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      uint   `json:"id,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// writeJSONResponse 是一个辅助函数，用于发送 JSON 响应。
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeJSONError 是一个辅助函数，用于发送 JSON 格式的错误响应。
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, OperationResult{Success: false, Message: message})
}

func writeOK(w http.ResponseWriter, status int, message string, id uint) {
	writeJSONResponse(w, status, OperationResult{Success: true, Message: message, ID: id})
}

// writeServiceError maps a service error kind to its HTTP status. Internal
// failures are logged and answered with a generic message.
func writeServiceError(w http.ResponseWriter, log *zap.Logger, err error) {
	var se *services.ServiceError
	if !errors.As(err, &se) {
		log.Error("unexpected handler error", zap.Error(err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	switch se.Kind {
	case services.KindValidation:
		writeJSONError(w, se.Message, http.StatusBadRequest)
	case services.KindNotFound:
		writeJSONError(w, se.Message, http.StatusNotFound)
	case services.KindDuplicate:
		writeJSONError(w, se.Message, http.StatusConflict)
	case services.KindForbidden:
		writeJSONError(w, se.Message, http.StatusForbidden)
	default:
		log.Error("service operation failed", zap.String("kind", string(se.Kind)), zap.Error(err))
		writeJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON decodes the request body into dst and runs struct validation.
func decodeJSON(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return errors.New("请求体无效")
	}
	if err := validate.Struct(dst); err != nil {
		return validationMessage(err)
	}
	return nil
}

func validationMessage(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "email":
			parts = append(parts, fmt.Sprintf("%s must be a valid email", fe.Field()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param()))
		case "eqfield":
			parts = append(parts, fmt.Sprintf("%s must match %s", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return errors.New(strings.Join(parts, "; "))
}

// pathID reads a positive integer path variable.
func pathID(r *http.Request, name string) (uint, error) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("无效的 %s", name)
	}
	return uint(id), nil
}

// queryInt reads an optional non-negative integer query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("无效的 %s", name)
	}
	return n, nil
}
