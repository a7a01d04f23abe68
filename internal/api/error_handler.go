package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-event-booking/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
// Kind は機械可読なエラー分類、Detail は人間向けの説明
type ErrorResponse struct {
	Kind           string `json:"kind"`
	Detail         string `json:"detail,omitempty"`
	RemainingSeats *int   `json:"remaining_seats,omitempty"`
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	resp := ErrorResponse{Kind: "internal", Detail: "内部サーバーエラー"}

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		switch m := he.Message.(type) {
		case ErrorResponse:
			resp = m
		case *ErrorResponse:
			resp = *m
		case string:
			resp = ErrorResponse{Kind: kindForStatus(code), Detail: m}
		default:
			resp = ErrorResponse{Kind: kindForStatus(code), Detail: http.StatusText(code)}
		}
	}

	// 5xx はサーバー側の問題としてログに残す
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, resp); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}

func kindForStatus(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "invalid_state"
	case http.StatusServiceUnavailable:
		return "contention"
	default:
		return "internal"
	}
}
