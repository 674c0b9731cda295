package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"watchsync/internal/core/domain"
	"watchsync/internal/core/services"
	"watchsync/internal/infrastructure/middleware"
	"watchsync/internal/infrastructure/repositories/memory"
)

func setupRouter(t *testing.T, codes ...domain.RoomCode) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop().Sugar()

	var opts []services.RoomServiceOption
	if len(codes) > 0 {
		i := 0
		opts = append(opts, services.WithCodeGenerator(func() (domain.RoomCode, error) {
			code := codes[i%len(codes)]
			i++
			return code, nil
		}))
	}
	opts = append(opts, services.WithClock(func() time.Time { return time.Unix(1700000000, 0) }))

	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(logger))
	NewRoomHandler(services.NewRoomService(memory.NewMemoryRoomRepository(), logger, opts...)).SetupRoutes(router)
	return router
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRoomHandler_CreateAndGet(t *testing.T) {
	router := setupRouter(t, "ABC123")

	w := doRequest(router, http.MethodPost, "/api/v1/rooms", `{"displayName":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ABC123", decode(t, w)["roomCode"])

	w = doRequest(router, http.MethodGet, "/api/v1/rooms/abc123", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["exists"])
	room := body["room"].(map[string]interface{})
	assert.Equal(t, "ABC123", room["code"])
	assert.Equal(t, "alice", room["createdBy"])
}

func TestRoomHandler_CreateWithoutBody(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms", "")
	require.Equal(t, http.StatusCreated, w.Code)
	code, _ := decode(t, w)["roomCode"].(string)
	assert.True(t, domain.RoomCode(code).Valid())
}

func TestRoomHandler_CreateRejectsBadInput(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms", `{"displayName":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode(t, w)["code"])

	w = doRequest(router, http.MethodPost, "/api/v1/rooms", `{"displayName":"`+strings.Repeat("x", 51)+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_CodeCollisionsExhausted(t *testing.T) {
	router := setupRouter(t, "ABC123")

	require.Equal(t, http.StatusCreated, doRequest(router, http.MethodPost, "/api/v1/rooms", "").Code)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, w)["code"])
}

func TestRoomHandler_GetUnknownOrMalformed(t *testing.T) {
	router := setupRouter(t)

	for _, path := range []string{"/api/v1/rooms/ZZZ999", "/api/v1/rooms/nope"} {
		w := doRequest(router, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, false, decode(t, w)["exists"], path)
	}
}

func TestRoomHandler_CloseRoom(t *testing.T) {
	router := setupRouter(t, "ABC123", "XYZ789")

	doRequest(router, http.MethodPost, "/api/v1/rooms", "")
	doRequest(router, http.MethodPost, "/api/v1/rooms", "")

	w := doRequest(router, http.MethodPost, "/api/v1/rooms/abc123/close", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/rooms/ABC123", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(router, http.MethodGet, "/api/v1/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 1, body["count"])

	w = doRequest(router, http.MethodPost, "/api/v1/rooms/QQQ111/close", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, w)["code"])
}

func TestRoomHandler_ListEmpty(t *testing.T) {
	router := setupRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, []interface{}{}, body["rooms"])
	assert.EqualValues(t, 0, body["count"])
}
