package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	orchestratorx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/agents/orchestrator"
	contractx "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/contract"
	statex "github.com/tanpawarit/Chative-Handset-Sales-Agent/agent/state"
	logx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/logger"
	metricsx "github.com/tanpawarit/Chative-Handset-Sales-Agent/pkg/metrics"
)

const requestIDHeader = "X-Request-ID"

type startThreadResponse struct {
	ThreadID string       `json:"thread_id"`
	Reply    string       `json:"reply"`
	Phase    statex.Phase `json:"phase"`
}

type messageRequest struct {
	Text      string `json:"text"`
	RequestID string `json:"request_id"`
}

type messageResponse struct {
	ThreadID  string       `json:"thread_id"`
	Reply     string       `json:"reply"`
	Phase     statex.Phase `json:"phase"`
	Duplicate bool         `json:"duplicate,omitempty"`
}

type threadResponse struct {
	ThreadID string           `json:"thread_id"`
	Phase    statex.Phase     `json:"phase"`
	Cycle    int              `json:"cycle"`
	Turns    []contractx.Turn `json:"turns"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter registers the conversation routes:
//
//	POST /v1/threads              start a thread
//	POST /v1/threads/:id/messages run one turn
//	GET  /v1/threads/:id          phase and history
//	GET  /healthz
//	GET  /metrics
func NewRouter(svc Service) *gin.Engine {
	logger := logx.Component("httpapi")
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	h := &handlers{svc: svc, logger: logger}
	r.GET("/healthz", h.health)
	r.GET("/metrics", gin.WrapH(metricsx.Handler()))

	v1 := r.Group("/v1")
	v1.POST("/threads", h.startThread)
	v1.POST("/threads/:id/messages", h.postMessage)
	v1.GET("/threads/:id", h.getThread)
	return r
}

type handlers struct {
	svc    Service
	logger zerolog.Logger
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) startThread(c *gin.Context) {
	t, err := h.svc.StartThread(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, startThreadResponse{
		ThreadID: t.ThreadID,
		Reply:    t.LastReply,
		Phase:    t.Phase,
	})
}

func (h *handlers) postMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "request body must be JSON with a text field"})
		return
	}
	requestID := strings.TrimSpace(req.RequestID)
	if requestID == "" {
		requestID = strings.TrimSpace(c.GetHeader(requestIDHeader))
	}

	threadID := c.Param("id")
	res, err := h.svc.HandleTurn(c.Request.Context(), threadID, req.Text, requestID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{
		ThreadID:  threadID,
		Reply:     res.Reply,
		Phase:     res.Phase,
		Duplicate: res.Duplicate,
	})
}

func (h *handlers) getThread(c *gin.Context) {
	t, err := h.svc.Thread(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	turns := t.Turns
	if turns == nil {
		turns = []contractx.Turn{}
	}
	c.JSON(http.StatusOK, threadResponse{
		ThreadID: t.ThreadID,
		Phase:    t.Phase,
		Cycle:    t.Cycle,
		Turns:    turns,
	})
}

// writeError maps service errors to status codes. Bodies never carry raw error detail.
func (h *handlers) writeError(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, "something went wrong, please try again"
	switch {
	case errors.Is(err, orchestratorx.ErrInvalidMessage):
		status, msg = http.StatusBadRequest, "message text is required"
	case errors.Is(err, orchestratorx.ErrInvalidThread), errors.Is(err, statex.ErrInvalidThread):
		status, msg = http.StatusBadRequest, "thread id is required"
	case errors.Is(err, statex.ErrThreadNotFound):
		status, msg = http.StatusNotFound, "thread not found"
	}
	if status == http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug().
			Str("method", c.Request.Method).
			Str("route", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("http request")
	}
}
