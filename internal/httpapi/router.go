package httpapi

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// APIPrefix 路由前缀
const APIPrefix = "/firewatch/api/v1"

// Router 使用标准库 http.ServeMux
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	start := time.Now()
	r.mux.ServeHTTP(w, req)
	r.logger.Debug("HTTP request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Duration("duration", time.Since(start)),
	)
}

// RegisterFirewatchRoutes 注册检测与分析路由
func (r *Router) RegisterFirewatchRoutes(h *FirewatchHandler) {
	r.Handle(APIPrefix+"/analyze", methodOnly(http.MethodPost, h.Analyze))
	r.Handle(APIPrefix+"/detect", methodOnly(http.MethodPost, h.Detect))
	r.Handle(APIPrefix+"/files", methodOnly(http.MethodGet, h.ListFiles))
	r.Handle(APIPrefix+"/history", methodOnly(http.MethodGet, h.History))
	r.Handle(APIPrefix+"/history/export", methodOnly(http.MethodGet, h.ExportHistory))
	r.Handle(APIPrefix+"/status", methodOnly(http.MethodGet, h.Status))

	r.Handle("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ok(map[string]any{"status": "ok"}))
	})
}

func methodOnly(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}
