package transport

import (
	"encoding/json"
	"math"
	"net/http"
	"strings"

	"github.com/ds124wfegd/alarmbridge/internal/entity"
	"github.com/ds124wfegd/alarmbridge/internal/service"

	"github.com/gin-gonic/gin"
)

const methodScheduleAlarm = "scheduleAlarm"

// MethodCall is one invocation on the method channel.
type MethodCall struct {
	Method    string                     `json:"method"`
	Arguments map[string]json.RawMessage `json:"arguments"`
}

type AlarmHandler struct {
	service service.AlarmUseCase
	channel string
}

func NewAlarmHandler(service service.AlarmUseCase, channel string) *AlarmHandler {
	return &AlarmHandler{service: service, channel: channel}
}

func (h *AlarmHandler) InvokeMethod(c *gin.Context) {
	if strings.TrimPrefix(c.Param("channel"), "/") != h.channel {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown channel"})
		return
	}

	var call MethodCall
	if err := c.ShouldBindJSON(&call); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch call.Method {
	case methodScheduleAlarm:
		ok := h.service.ScheduleAlarm(c.Request.Context(), parseScheduleArguments(call.Arguments))
		c.JSON(http.StatusOK, gin.H{"result": ok})
	default:
		c.JSON(http.StatusNotImplemented, gin.H{"error": "notImplemented"})
	}
}

func (h *AlarmHandler) ScheduleAlarm(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	args := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	ok := h.service.ScheduleAlarm(c.Request.Context(), parseScheduleArguments(args))
	c.JSON(http.StatusOK, gin.H{"result": ok})
}

// parseScheduleArguments reads each argument on its own; one of the wrong
// type is treated as absent so the default applies.
func parseScheduleArguments(args map[string]json.RawMessage) *entity.ScheduleRequest {
	req := &entity.ScheduleRequest{}

	if raw, ok := args["delaySeconds"]; ok {
		var f *float64
		if err := json.Unmarshal(raw, &f); err == nil && f != nil &&
			*f == math.Trunc(*f) && math.Abs(*f) <= math.MaxInt32+1 {
			delay := int(*f)
			req.DelaySeconds = &delay
		}
	}
	req.Title = stringArgument(args, "title")
	req.Body = stringArgument(args, "body")

	return req
}

func stringArgument(args map[string]json.RawMessage, name string) *string {
	raw, ok := args[name]
	if !ok {
		return nil
	}
	var s *string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return s
}
