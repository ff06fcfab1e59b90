package models

import "time"

// Data Transfer Objects

type StartProcessResponse struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

type ReviewUpdateRequest struct {
	Scores []ScoreEntry `json:"valutazione"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}
