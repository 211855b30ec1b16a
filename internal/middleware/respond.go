package middleware

import (
	"encoding/json"
	"net/http"

	"playergate/pkg/types"
)

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.Failure(code, message))
}
