package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/yulifengwx/RazorRockstars/views"
)

const shutdownTimeout = 10 * time.Second

// NewRouter builds the gin engine. renderer may be nil, the server
// then answers in JSON and CSV only and serves no star pages.
func NewRouter(svc Service, renderer *views.Renderer, logger hclog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger(logger))

	var handler *Handler
	if renderer != nil {
		router.HTMLRender = renderer
		router.GET("/stars/:status/:name/", StarPage(renderer))

		handler = NewHandler(svc, renderer, logger)
	} else {
		handler = NewHandler(svc, nil, logger)
	}

	Routes(router, handler)

	return router
}

// Serve runs the router on addr until ctx is done, then shuts down
// gracefully.
func Serve(ctx context.Context, addr string, router http.Handler, logger hclog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
