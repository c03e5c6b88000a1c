package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const maxTextLength = 10000

// AnalyzeRequest is the body of POST /api/v1/analyze.
type AnalyzeRequest struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
	Date   string `json:"date"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// validate mirrors the closed request contract: positive user id, text
// between 1 and 10000 characters, date in YYYY-MM-DD when present.
func (r *AnalyzeRequest) validate() string {
	if r.UserID <= 0 {
		return "user_id must be positive"
	}
	length := utf8.RuneCountInString(r.Text)
	if length == 0 {
		return "text must not be empty"
	}
	if length > maxTextLength {
		return "text exceeds maximum length of 10000 characters"
	}
	if r.Date != "" {
		if _, err := time.Parse("2006-01-02", r.Date); err != nil {
			return "date must be formatted as YYYY-MM-DD"
		}
	}
	return ""
}

func (s *Server) analyze(c echo.Context) error {
	start := time.Now()
	requestID := uuid.NewString()

	var req AnalyzeRequest
	if err := c.Bind(&req); err != nil {
		s.observeFailure("bind_error")
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "invalid request body"})
	}
	if msg := req.validate(); msg != "" {
		s.observeFailure("validation_error")
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: msg})
	}

	// The raw text stays out of logs.
	slog.Info("analyze request",
		"request_id", requestID,
		"user_id", req.UserID,
		"text_length", utf8.RuneCountInString(req.Text),
		"date", req.Date,
	)

	result, err := s.analyzer.Analyze(c.Request().Context(), req.UserID, req.Text, req.Date)
	if err != nil {
		s.observeFailure("analysis_error")
		slog.Error("analyze failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "Analysis failed: " + err.Error()})
	}

	duration := time.Since(start)
	if s.exporter != nil {
		s.exporter.ObserveRequest(duration.Seconds(), len(result.Actions))
	}
	slog.Info("analyze success",
		"request_id", requestID,
		"user_id", req.UserID,
		"actions_count", len(result.Actions),
		"used_llm", result.Meta.UsedLLM,
		"duration_ms", duration.Milliseconds(),
	)

	return c.JSON(http.StatusOK, result)
}

func (s *Server) userStats(c echo.Context) error {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		return c.JSON(http.StatusUnprocessableEntity, errorResponse{Detail: "user_id must be a positive integer"})
	}

	stats, err := s.store.GetUserStats(c.Request().Context(), userID)
	if err != nil {
		slog.Error("stats failed", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Detail: "Failed to get stats: " + err.Error()})
	}
	return c.JSON(http.StatusOK, stats)
}

// clearCache drops the in-process cache. The Redis backend treats Clear
// as a no-op, which the response spells out.
func (s *Server) clearCache(c echo.Context) error {
	s.cache.Clear(c.Request().Context())
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "cache cleared where the backend allows it",
	})
}

func (s *Server) observeFailure(errorType string) {
	if s.exporter != nil {
		s.exporter.ObserveRequestFailure(errorType)
	}
}
