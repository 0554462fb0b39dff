package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/amityadav/webresearch/internal/limiter"
	"github.com/amityadav/webresearch/internal/retrieval"
)

// Services groups the dependencies the REST handlers need
type Services struct {
	Controller *retrieval.Controller
	Limiter    *limiter.RateLimiter
}

// CreateRESTHandler creates the REST API endpoints
func CreateRESTHandler(services Services) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		switch r.URL.Path {
		case "/api/web-search/retrieve":
			handleRetrieve(w, r, services.Controller)
		case "/api/web-search/usage":
			handleUsage(w, r, services.Limiter)
		case "/healthz":
			handleHealth(w, r)
		default:
			http.NotFound(w, r)
		}
	}
}

type retrieveResponse struct {
	*retrieval.Result
	Error string `json:"error,omitempty"`
}

func handleRetrieve(w http.ResponseWriter, r *http.Request, controller *retrieval.Controller) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error": "method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req retrieval.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error": "invalid request body"}`, http.StatusBadRequest)
		return
	}
	if req.UserQuestion == "" && req.InitialQuery == "" {
		http.Error(w, `{"error": "user_question or initial_query is required"}`, http.StatusBadRequest)
		return
	}

	result, err := controller.Run(r.Context(), req, nil)
	if result == nil {
		log.Printf("[REST] Retrieval rejected: %v", err)
		http.Error(w, `{"error": "retrieval failed"}`, http.StatusInternalServerError)
		return
	}

	resp := retrieveResponse{Result: result}
	status := http.StatusOK
	if err != nil {
		// Aborted runs still return the accumulated state; the caller
		// decides what to do with partial evidence.
		resp.Error = err.Error()
		if errors.Is(err, limiter.ErrLimitExceeded) {
			status = http.StatusTooManyRequests
		}
		log.Printf("[REST] Retrieval %s aborted: %v", result.RunID, err)
	}

	writeJSON(w, status, resp)
}

func handleUsage(w http.ResponseWriter, r *http.Request, rl *limiter.RateLimiter) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error": "method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, rl.Stats(r.Context()))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[REST] Failed to encode response: %v", err)
	}
}
