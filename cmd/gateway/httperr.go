package main

import (
	"encoding/json"
	"net/http"

	"github.com/masaic-ai-platform/gateway/pkg/gatewayerr"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// writeError maps an error to the {error:{type,message,code}} shape, using
// the *gatewayerr.GatewayError's status/type/code when the error carries
// one, and falling back to a generic 500 internal_error otherwise.
func writeError(w http.ResponseWriter, err error) {
	ge, ok := gatewayerr.As(err)
	if !ok {
		ge = gatewayerr.NewInternalError(err.Error(), err)
	}
	status := ge.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: errorDetail{
		Type:    string(ge.ErrType),
		Message: ge.Message,
		Code:    ge.Code,
	}})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
