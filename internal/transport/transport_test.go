package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ds124wfegd/alarmbridge/internal/database"
	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/ds124wfegd/alarmbridge/internal/notifier"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const channel = "com.motivapp.motivapp/alarm"

type fakeUseCase struct {
	requests []*entity.ScheduleRequest
}

func (f *fakeUseCase) ScheduleAlarm(_ context.Context, req *entity.ScheduleRequest) bool {
	f.requests = append(f.requests, req)
	return true
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(uc *fakeUseCase, tray *notifier.Tray) *gin.Engine {
	return InitRoutes(uc, tray, RouterConfig{
		Channel:        channel,
		RequestTimeout: 5,
		Gatherer:       prometheus.NewRegistry(),
	})
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestInvokeScheduleAlarm(t *testing.T) {
	uc := &fakeUseCase{}
	router := newRouter(uc, nil)

	w := do(router, http.MethodPost, "/api/v1/channel/"+channel,
		`{"method":"scheduleAlarm","arguments":{"delaySeconds":30,"title":"Good Morning","body":"Rise!"}}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"result":true}`, w.Body.String())

	require.Len(t, uc.requests, 1)
	req := uc.requests[0]
	require.NotNil(t, req.DelaySeconds)
	assert.Equal(t, 30, *req.DelaySeconds)
	assert.Equal(t, "Good Morning", *req.Title)
	assert.Equal(t, "Rise!", *req.Body)
}

func TestInvokeUnknownMethod(t *testing.T) {
	uc := &fakeUseCase{}
	router := newRouter(uc, nil)

	w := do(router, http.MethodPost, "/api/v1/channel/"+channel, `{"method":"cancelAlarm"}`)

	assert.Equal(t, http.StatusNotImplemented, w.Code)
	assert.JSONEq(t, `{"error":"notImplemented"}`, w.Body.String())
	assert.Empty(t, uc.requests)
}

func TestInvokeUnknownChannel(t *testing.T) {
	router := newRouter(&fakeUseCase{}, nil)

	w := do(router, http.MethodPost, "/api/v1/channel/other/channel", `{"method":"scheduleAlarm"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleArgumentsAreLenient(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantDelay *int
		wantTitle *string
		wantBody  *string
	}{
		{name: "empty body", body: ``},
		{name: "empty object", body: `{}`},
		{name: "nulls", body: `{"delaySeconds":null,"title":null,"body":null}`},
		{name: "wrong types", body: `{"delaySeconds":"ten","title":5,"body":false}`},
		{name: "fractional delay", body: `{"delaySeconds":1.5}`},
		{name: "negative delay passes through", body: `{"delaySeconds":-3}`, wantDelay: intPtr(-3)},
		{name: "empty title kept", body: `{"title":""}`, wantTitle: strPtr("")},
		{name: "all set", body: `{"delaySeconds":0,"title":"Task","body":"b"}`,
			wantDelay: intPtr(0), wantTitle: strPtr("Task"), wantBody: strPtr("b")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc := &fakeUseCase{}
			w := do(newRouter(uc, nil), http.MethodPost, "/api/v1/alarms", tt.body)

			require.Equal(t, http.StatusOK, w.Code)
			require.Len(t, uc.requests, 1)
			req := uc.requests[0]
			assert.Equal(t, tt.wantDelay, req.DelaySeconds)
			assert.Equal(t, tt.wantTitle, req.Title)
			assert.Equal(t, tt.wantBody, req.Body)
		})
	}
}

func TestScheduleAlarmRejectsMalformedJSON(t *testing.T) {
	w := do(newRouter(&fakeUseCase{}, nil), http.MethodPost, "/api/v1/alarms", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTrayRoutes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	tray := notifier.NewTray(database.NewTrayRepository(client), true)

	require.NoError(t, tray.Post(context.Background(), entity.Notification{
		Slot:       1001,
		Title:      "Good Morning",
		Body:       "Rise!",
		AutoCancel: true,
		TapAction:  entity.TapAction{Kind: entity.TapLaunchApp, Target: "com.motivapp.motivapp"},
	}))

	router := newRouter(&fakeUseCase{}, tray)

	w := do(router, http.MethodGet, "/api/v1/notifications", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	w = do(router, http.MethodPost, "/api/v1/notifications/1001/tap", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "com.motivapp.motivapp")

	w = do(router, http.MethodPost, "/api/v1/notifications/1001/tap", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(router, http.MethodPost, "/api/v1/notifications/abc/tap", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	router := newRouter(&fakeUseCase{}, nil)

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, do(router, http.MethodGet, "/api/v1/notifications", "").Code)
}

func TestHealthReportsFailingStore(t *testing.T) {
	router := InitRoutes(&fakeUseCase{}, nil, RouterConfig{
		Channel: channel,
		Health: func(context.Context) error {
			return errors.New("redis: connection refused")
		},
	})

	w := do(router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
