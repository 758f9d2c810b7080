package proxy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/amari-ai/go-amari/pkg/llm"
)

// handleChatCompletion serves POST /v1/chat/completions.
func (s *Server) handleChatCompletion(c echo.Context) error {
	var wireReq chatCompletionRequest
	if err := c.Bind(&wireReq); err != nil {
		return sendError(c, http.StatusBadRequest, errorBody{
			Message: "We could not parse the JSON body of your request.",
			Type:    llm.ErrTypeInvalidRequest,
		})
	}

	if len(wireReq.Messages) == 0 {
		return sendError(c, http.StatusBadRequest, errorBody{
			Message: "'messages' is a required property",
			Type:    llm.ErrTypeInvalidRequest,
		})
	}

	req, err := wireReq.toChatRequest()
	if err != nil {
		return sendError(c, http.StatusBadRequest, errorBody{
			Message: err.Error(),
			Type:    llm.ErrTypeInvalidRequest,
		})
	}
	if req.Model == "" {
		req.Model = s.client.GetModelInfo().Name
	}

	requestID, _ := c.Get("request_id").(string)
	slog.Debug("chat completion request",
		slog.String("request_id", requestID),
		slog.String("model", req.Model),
		slog.Int("messages", len(req.Messages)),
		slog.Bool("stream", req.Stream))

	if wireReq.Stream {
		return s.streamCompletion(c, req, requestID)
	}

	resp, err := s.client.ChatCompletion(c.Request().Context(), req)
	if err != nil {
		return sendCompletionError(c, err)
	}

	out := fromChatResponse(resp)
	if out.ID == "" {
		out.ID = "chatcmpl-" + requestID
	}
	if out.Created == 0 {
		out.Created = time.Now().Unix()
	}
	return c.JSON(http.StatusOK, out)
}

// streamCompletion serves the stream=true path as server-sent events.
func (s *Server) streamCompletion(c echo.Context, req llm.ChatRequest, requestID string) error {
	events, err := s.client.StreamChatCompletion(c.Request().Context(), req)
	if err != nil {
		return sendCompletionError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	id := "chatcmpl-" + requestID
	created := time.Now().Unix()

	for event := range events {
		if event.IsError() {
			// The stream is already committed as 200, so the error
			// travels as a terminal SSE payload.
			payload, _ := json.Marshal(errorResponse{Error: errorBody{
				Message: event.Error.Message,
				Type:    event.Error.Type,
				Code:    event.Error.Code,
			}})
			fmt.Fprintf(res, "data: %s\n\n", payload)
			res.Flush()
			break
		}

		chunk, ok := fromStreamEvent(event, id, req.Model, created)
		if !ok {
			continue
		}
		payload, err := json.Marshal(chunk)
		if err != nil {
			slog.Error("marshaling stream chunk", slog.Any("error", err))
			break
		}
		fmt.Fprintf(res, "data: %s\n\n", payload)
		res.Flush()
	}

	fmt.Fprint(res, "data: [DONE]\n\n")
	res.Flush()
	return nil
}

// handleModels serves GET /v1/models with the configured model.
func (s *Server) handleModels(c echo.Context) error {
	info := s.client.GetModelInfo()
	return c.JSON(http.StatusOK, modelList{
		Object: objectList,
		Data: []modelItem{{
			ID:      info.Name,
			Object:  objectModel,
			Created: time.Now().Unix(),
			OwnedBy: info.Provider,
		}},
	})
}

// handleHealth serves GET /healthz with the cached upstream status.
func (s *Server) handleHealth(c echo.Context) error {
	remote := s.client.GetRemote()

	status := "ok"
	code := http.StatusOK
	if remote.Status != nil && remote.Status.Healthy != nil && !*remote.Status.Healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	body := map[string]any{
		"status":   status,
		"provider": remote.Name,
	}
	if remote.Status != nil && remote.Status.LastChecked != nil {
		body["last_checked"] = remote.Status.LastChecked.UTC().Format(time.RFC3339)
	}
	return c.JSON(code, body)
}

// sendError writes an OpenAI-shaped error body.
func sendError(c echo.Context, status int, body errorBody) error {
	return c.JSON(status, errorResponse{Error: body})
}

// sendCompletionError maps an upstream error onto the wire.
func sendCompletionError(c echo.Context, err error) error {
	llmErr, ok := llm.AsError(err)
	if !ok {
		return sendError(c, http.StatusBadGateway, errorBody{
			Message: err.Error(),
			Type:    llm.ErrTypeAPI,
		})
	}

	status := llmErr.StatusCode
	if status == 0 {
		switch llmErr.Type {
		case llm.ErrTypeAuthentication:
			status = http.StatusUnauthorized
		case llm.ErrTypeRateLimit:
			status = http.StatusTooManyRequests
		case llm.ErrTypeInvalidRequest:
			status = http.StatusBadRequest
		default:
			status = http.StatusBadGateway
		}
	}

	return sendError(c, status, errorBody{
		Message: llmErr.Message,
		Type:    llmErr.Type,
		Code:    llmErr.Code,
	})
}
