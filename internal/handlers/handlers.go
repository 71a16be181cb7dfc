package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/example/foodsnap/internal/apperrors"
	"github.com/example/foodsnap/internal/auth"
	"github.com/example/foodsnap/internal/usecase"
)

// MaxUploadSize caps a single uploaded image.
const MaxUploadSize = 10 << 20

// TraceHeader carries the trace identifier; it always equals the body field.
const TraceHeader = "X-Trace-Id"

// RecognitionPipeline is the use case surface the routes depend on.
type RecognitionPipeline interface {
	Submit(ctx context.Context, userID string, input usecase.SubmitInput) (*usecase.SubmitResult, error)
	Retry(ctx context.Context, userID, jobID string) (*usecase.SubmitResult, error)
	Status(ctx context.Context, requesterID, jobID string) (*usecase.StatusResult, error)
}

type submitJSONRequest struct {
	ImageDataURL string `json:"image_data_url"`
	MealType     string `json:"meal_type" binding:"required"`
	Date         string `json:"date" binding:"required"`
	Comment      string `json:"comment"`
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, pipeline RecognitionPipeline, registry *apperrors.Registry, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1", authMiddleware)

	api.POST("/recognitions", func(c *gin.Context) {
		traceID := newTrace(c)
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, registry.Response(apperrors.CodeNotFound, traceID, nil))
			return
		}

		input, status, errCode := bindSubmitRequest(c)
		if errCode != "" {
			c.JSON(status, registry.Response(errCode, traceID, nil))
			return
		}

		result, err := pipeline.Submit(c.Request.Context(), userID, input)
		if err != nil {
			writeContractError(c, registry, traceID, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"job_id":   result.JobID,
			"status":   result.Status,
			"meal_id":  nil,
			"trace_id": traceID,
		})
	})

	api.GET("/recognitions/:id", func(c *gin.Context) {
		traceID := newTrace(c)
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, registry.Response(apperrors.CodeNotFound, traceID, nil))
			return
		}

		result, err := pipeline.Status(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			writeContractError(c, registry, traceID, err)
			return
		}

		body := gin.H{"status": result.Status}
		switch result.Status {
		case usecase.StatusSuccess:
			body["result"] = result.Result
		case usecase.StatusFailed:
			body["result"] = result.Result
			// Trace id stays out of the embedded error so repeated polls of a
			// terminal job return identical bodies.
			body["error"] = registry.Response(result.ErrorCode, "", nil)
		}
		c.JSON(http.StatusOK, body)
	})

	api.POST("/recognitions/:id/retry", func(c *gin.Context) {
		traceID := newTrace(c)
		userID, ok := auth.GetUserID(c.Request.Context())
		if !ok {
			c.JSON(http.StatusUnauthorized, registry.Response(apperrors.CodeNotFound, traceID, nil))
			return
		}

		result, err := pipeline.Retry(c.Request.Context(), userID, c.Param("id"))
		if err != nil {
			writeContractError(c, registry, traceID, err)
			return
		}

		c.JSON(http.StatusAccepted, gin.H{
			"job_id":   result.JobID,
			"status":   result.Status,
			"meal_id":  nil,
			"trace_id": traceID,
		})
	})
}

// bindSubmitRequest extracts the submit input from either a multipart form or
// a JSON body. It returns an error code plus HTTP status on transport-level
// rejections.
func bindSubmitRequest(c *gin.Context) (usecase.SubmitInput, int, string) {
	var input usecase.SubmitInput

	if c.Request.ContentLength > MaxUploadSize {
		return input, http.StatusRequestEntityTooLarge, apperrors.CodeInvalidRequest
	}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		input.MealType = c.PostForm("meal_type")
		input.MealDate = c.PostForm("date")
		input.Comment = c.PostForm("comment")
		input.DataURL = c.PostForm("image_data_url")

		if file, err := c.FormFile("image"); err == nil {
			declared := file.Header.Get("Content-Type")
			if declared != "" && !strings.HasPrefix(declared, "image/") {
				return input, http.StatusUnsupportedMediaType, apperrors.CodeImageUnsupportedFormat
			}
			src, err := file.Open()
			if err != nil {
				return input, http.StatusBadRequest, apperrors.CodeInvalidRequest
			}
			defer src.Close()
			data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
			if err != nil {
				return input, http.StatusBadRequest, apperrors.CodeInvalidRequest
			}
			if len(data) > MaxUploadSize {
				return input, http.StatusRequestEntityTooLarge, apperrors.CodeInvalidRequest
			}
			input.ImageData = data
			input.ImageContentType = declared
		}
		if input.MealType == "" || input.MealDate == "" {
			return input, http.StatusBadRequest, apperrors.CodeInvalidRequest
		}
		return input, 0, ""
	}

	var req submitJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return input, http.StatusBadRequest, apperrors.CodeInvalidRequest
	}
	input.DataURL = req.ImageDataURL
	input.MealType = req.MealType
	input.MealDate = req.Date
	input.Comment = req.Comment
	return input, 0, ""
}

func newTrace(c *gin.Context) string {
	traceID := uuid.NewString()
	c.Header(TraceHeader, traceID)
	return traceID
}

func writeContractError(c *gin.Context, registry *apperrors.Registry, traceID string, err error) {
	code := apperrors.CodeOf(err)
	resp := registry.ResponseRetryAfter(code, traceID, apperrors.RetryAfterOf(err),
		map[string]interface{}{"detail": err.Error()})
	c.JSON(httpStatusFor(code), resp)
}

func httpStatusFor(code string) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeLimitExceeded:
		return http.StatusTooManyRequests
	case apperrors.CodeInvalidRequest, apperrors.CodeInvalidDate, apperrors.CodeInvalidStatus:
		return http.StatusBadRequest
	case apperrors.CodeImageDecodeFailed, apperrors.CodeImageUnsupportedFormat:
		return http.StatusUnprocessableEntity
	case apperrors.CodeRecognitionTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeRecognitionUnavailable, apperrors.CodeAuthFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
