package monitor

import (
	"context"
	"embed"
	"html/template"
	"net"
	"net/http"
	"time"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

type Web struct {
	*http.Server
	Engine *gin.Engine
}

func NewWeb(monitor *Monitor) (*Web, error) {
	engine := createRouter(monitor.log, monitor.Settings().RunMode)
	if errRoutes := setupRoutes(engine, monitor); errRoutes != nil {
		return nil, errRoutes
	}

	httpServer := &http.Server{
		Addr:         monitor.Settings().ListenAddr(),
		Handler:      engine,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return &Web{
		Server: httpServer,
		Engine: engine,
	}, nil
}

func (w *Web) startWeb(ctx context.Context) error {
	w.BaseContext = func(_ net.Listener) context.Context {
		return ctx
	}

	if errServe := w.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
		return errors.Wrap(errServe, "HTTP server returned error")
	}

	return nil
}

func (w *Web) Stop(ctx context.Context) error {
	if w.Server == nil {
		return nil
	}

	timeout, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	if errShutdown := w.Server.Shutdown(timeout); errShutdown != nil {
		return errors.Wrap(errShutdown, "Failed to shutdown http service")
	}

	return nil
}

func responseErr(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, data)
}

func responseOK(ctx *gin.Context, status int, data any) {
	ctx.JSON(status, data)
}

func createRouter(logger *zap.Logger, mode RunModes) *gin.Engine {
	switch mode {
	case ModeProd:
		gin.SetMode(gin.ReleaseMode)
	case ModeTest:
		gin.SetMode(gin.TestMode)
	case ModeDebug:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	if mode != ModeTest {
		engine.Use(ginzap.GinzapWithConfig(logger, &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/api/servers"},
		}))

		engine.Use(ginzap.RecoveryWithZap(logger, true))
	}

	_ = engine.SetTrustedProxies(nil)

	return engine
}

func setupRoutes(engine *gin.Engine, monitor *Monitor) error {
	pages, errPages := template.ParseFS(templateFS, "templates/*.html")
	if errPages != nil {
		return errors.Wrap(errPages, "Failed to parse page templates")
	}

	engine.SetHTMLTemplate(pages)

	engine.StaticFS("/static", http.Dir(monitor.Settings().StaticRoot))
	engine.StaticFS("/media", http.Dir(monitor.Settings().MediaRoot))

	engine.GET("/", getIndex(monitor))
	engine.GET("/add-server", getAddServer())
	engine.POST("/add-server", postAddServer(monitor))
	engine.GET("/api/servers", getServers(monitor))
	engine.GET("/api/version", getVersion(monitor))
	engine.GET("/api/history/:address", getHistory(monitor))
	engine.GET("/ws", func(ctx *gin.Context) {
		monitor.hub.handle(ctx.Writer, ctx.Request)
	})

	return nil
}
