package utils

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/piggybanx/auction-service/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SendErrorResponse writes an error as JSON.
func SendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	errorResponse := models.ErrorResponse{
		StatusCode: statusCode,
		Message:    message,
	}
	if err := json.NewEncoder(w).Encode(errorResponse); err != nil {
		log.Println(err)
	}
}

// SendJSON writes a payload with the given status code.
func SendJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Println(err)
	}
}

// CheckUserExists reports whether a user with the given id exists.
func CheckUserExists(ctx context.Context, dbPool *pgxpool.Pool, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`
	err := dbPool.QueryRow(ctx, query, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// CheckUserIsAdmin reports whether the user has the admin flag set.
func CheckUserIsAdmin(ctx context.Context, dbPool *pgxpool.Pool, userID string) (bool, error) {
	var isAdmin bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE id = $1 AND is_admin)`
	err := dbPool.QueryRow(ctx, query, userID).Scan(&isAdmin)
	if err != nil {
		return false, err
	}
	return isAdmin, nil
}
