package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/go-hclog"

	"github.com/yulifengwx/RazorRockstars/service"
	"github.com/yulifengwx/RazorRockstars/storage"
)

// RockstarsView renders search results for browsers.
const RockstarsView = "Rockstars.html"

const MIMECSV = "text/csv"

type Service interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.RockstarsResponse, error)
	Delete(ctx context.Context, id int) (*service.RockstarsResponse, error)
	Create(ctx context.Context, r storage.Rockstar) (*service.RockstarsResponse, error)
	Reset(ctx context.Context) (*service.RockstarsResponse, error)
	UpdateContent(ctx context.Context, req service.UpdateContentRequest) (string, error)
}

// Views is consulted before rendering html; without it every
// response is JSON or CSV.
type Views interface {
	HasTemplate(name string) bool
}

type Handler struct {
	service Service
	views   Views
	log     hclog.Logger
}

func NewHandler(svc Service, views Views, logger hclog.Logger) *Handler {
	return &Handler{
		service: svc,
		views:   views,
		log:     logger,
	}
}

func (h *Handler) Search(ctx *gin.Context) {
	var req service.SearchRequest

	id, err := intParam(ctx, "id")
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err))
		return
	}
	if id != nil {
		req.ID = *id
	}

	req.Age, err = intParam(ctx, "age")
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err))
		return
	}

	res, err := h.service.Search(ctx.Request.Context(), req)
	h.respond(ctx, res, err)
}

func (h *Handler) Delete(ctx *gin.Context) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, errorBody(fmt.Errorf("invalid id %q", ctx.Param("id"))))
		return
	}

	res, err := h.service.Delete(ctx.Request.Context(), id)
	h.respond(ctx, res, err)
}

func (h *Handler) Create(ctx *gin.Context) {
	var r storage.Rockstar
	if err := ctx.ShouldBind(&r); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err))
		return
	}

	res, err := h.service.Create(ctx.Request.Context(), r)
	h.respond(ctx, res, err)
}

func (h *Handler) Reset(ctx *gin.Context) {
	res, err := h.service.Reset(ctx.Request.Context())
	h.respond(ctx, res, err)
}

type updateContentRequest struct {
	Razor bool `form:"razor"`
	Clear bool `form:"clear"`
}

func (h *Handler) UpdateContent(ctx *gin.Context) {
	var req updateContentRequest
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, errorBody(err))
		return
	}

	target, err := h.service.UpdateContent(ctx.Request.Context(), service.UpdateContentRequest{
		Razor: req.Razor,
		Clear: req.Clear,
	})
	if err != nil {
		h.fail(ctx, err)
		return
	}

	ctx.Redirect(http.StatusFound, target)
}

// respond writes res as JSON, CSV or the html view, whichever the
// client asked for.
func (h *Handler) respond(ctx *gin.Context, res *service.RockstarsResponse, err error) {
	if err != nil {
		h.fail(ctx, err)
		return
	}

	offered := []string{gin.MIMEJSON, MIMECSV}
	if h.views != nil && h.views.HasTemplate(RockstarsView) {
		offered = append(offered, gin.MIMEHTML)
	}

	format := ctx.NegotiateFormat(offered...)
	if ctx.Query("format") == "csv" {
		format = MIMECSV
	}

	switch format {
	case MIMECSV:
		data, err := encodeCSV(res.Results)
		if err != nil {
			h.fail(ctx, err)
			return
		}
		ctx.Data(http.StatusOK, MIMECSV+"; charset=utf-8", data)
	case gin.MIMEHTML:
		ctx.HTML(http.StatusOK, RockstarsView, res)
	default:
		ctx.JSON(http.StatusOK, res)
	}
}

func (h *Handler) fail(ctx *gin.Context, err error) {
	h.log.Error("request failed",
		"method", ctx.Request.Method,
		"path", ctx.Request.URL.Path,
		"request_id", ctx.GetString(requestIDKey),
		"error", err,
	)

	ctx.AbortWithStatusJSON(http.StatusInternalServerError, errorBody(err))
}

// intParam reads name from the route, falling back to the query string.
// It returns nil when neither carries it.
func intParam(ctx *gin.Context, name string) (*int, error) {
	raw := ctx.Param(name)
	if raw == "" {
		raw = ctx.Query(name)
	}
	if raw == "" {
		return nil, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("invalid " + name + " " + strconv.Quote(raw))
	}

	return &n, nil
}

func errorBody(err error) gin.H {
	return gin.H{"error": err.Error()}
}
