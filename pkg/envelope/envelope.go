// Package envelope writes the { result, message, data, totalRecords } body
// shared by every module REST endpoint.
package envelope

import (
	"encoding/json"
	"net/http"

	"github.com/jacksonlee411/harbor-erp/pkg/httperr"
)

const (
	ResultOK     = 1
	ResultFailed = 0
	// ResultLocked tells the client the record exists but may not be changed.
	ResultLocked = -2
)

const unexpectedMessage = "An unexpected error occurred. Please try again."

type Envelope struct {
	Result       int    `json:"result"`
	Message      string `json:"message"`
	Data         any    `json:"data"`
	TotalRecords *int   `json:"totalRecords,omitempty"`
}

func OK(data any, message string) Envelope {
	return Envelope{Result: ResultOK, Message: message, Data: data}
}

func List(data any, total int) Envelope {
	return Envelope{Result: ResultOK, Data: data, TotalRecords: &total}
}

func Failed(message string) Envelope {
	return Envelope{Result: ResultFailed, Message: message}
}

// FromError builds the failure envelope and status for err. Errors that do
// not carry an HTTP meaning are reported without their text.
func FromError(err error) (int, Envelope) {
	status := httperr.Status(err)
	switch {
	case httperr.IsLocked(err):
		return status, Envelope{Result: ResultLocked, Message: err.Error()}
	case status == http.StatusInternalServerError:
		return status, Failed(unexpectedMessage)
	default:
		return status, Failed(err.Error())
	}
}

func Write(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(env)
}

func WriteOK(w http.ResponseWriter, data any, message string) {
	Write(w, http.StatusOK, OK(data, message))
}

func WriteList(w http.ResponseWriter, data any, total int) {
	Write(w, http.StatusOK, List(data, total))
}

func WriteFailure(w http.ResponseWriter, err error) {
	status, env := FromError(err)
	Write(w, status, env)
}
