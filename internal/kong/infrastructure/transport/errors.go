package transport

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jnikolaeva/kongclient/internal/kong/application"
)

const maxErrorBodySize = 64 << 10

// ResponseError is returned when kong answers with a status other than the
// operation's success status. Err is one of the application sentinels.
type ResponseError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *ResponseError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (status %d)", e.Err, e.StatusCode)
	}
	return fmt.Sprintf("%s (status %d): %s", e.Err, e.StatusCode, e.Message)
}

func (e *ResponseError) Unwrap() error { return e.Err }

func (e *ResponseError) Cause() error { return e.Err }

// statusTable maps response statuses of one operation to outcomes.
type statusTable struct {
	success int
	errs    map[int]error
}

func (t statusTable) errorFor(status int) error {
	if err, ok := t.errs[status]; ok {
		return err
	}
	return application.ErrUnexpectedStatus
}

var (
	createAccountStatus = statusTable{
		success: http.StatusCreated,
		errs: map[int]error{
			http.StatusBadRequest:          application.ErrInvalidInput,
			http.StatusUnauthorized:        application.ErrInvalidInput,
			http.StatusInternalServerError: application.ErrInternalServer,
		},
	}
	authenticateStatus = statusTable{
		success: http.StatusOK,
		errs: map[int]error{
			http.StatusBadRequest:          application.ErrInvalidInput,
			http.StatusUnauthorized:        application.ErrInvalidInput,
			http.StatusNotFound:            application.ErrAccountNotFound,
			http.StatusInternalServerError: application.ErrInternalServer,
		},
	}
	propertyErrs = map[int]error{
		http.StatusBadRequest:          application.ErrInvalidInput,
		http.StatusUnauthorized:        application.ErrUnauthorized,
		http.StatusNotFound:            application.ErrAccountNotFound,
		http.StatusInternalServerError: application.ErrInternalServer,
	}
	submitPropertyStatus = statusTable{success: http.StatusCreated, errs: propertyErrs}
	getPropertiesStatus  = statusTable{success: http.StatusOK, errs: propertyErrs}
)

// newResponseError reads the error body kong sends along, {"msg": "..."},
// when there is one.
func newResponseError(r *http.Response, t statusTable) error {
	var body errorResponse
	if data, err := io.ReadAll(io.LimitReader(r.Body, maxErrorBodySize)); err == nil && len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}
	msg := body.Msg
	if msg == "" {
		msg = body.Message
	}
	return &ResponseError{
		StatusCode: r.StatusCode,
		Message:    msg,
		Err:        t.errorFor(r.StatusCode),
	}
}
