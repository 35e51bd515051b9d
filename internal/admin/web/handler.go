package web

import (
	"errors"

	"github.com/ecodeclub/ekit/slice"
	"github.com/ecodeclub/ginx"
	"github.com/gin-gonic/gin"
	"github.com/meoying/schedlock-go/internal/admin/service"
)

var errPurgeNotConfirmed = errors.New("清理锁必须确认")

type Handler struct {
	svc *service.LockService
}

func NewHandler(svc *service.LockService) *Handler {
	return &Handler{
		svc: svc,
	}
}

func (handler *Handler) RegisterRoutes(server *gin.Engine) {
	g := server.Group("/locks")
	g.POST("/list", ginx.B(handler.List))
	g.POST("/exists", ginx.B(handler.Exists))
	g.POST("/purge", ginx.B(handler.Purge))
}

func (handler *Handler) List(ctx *ginx.Context, req ListReq) (ginx.Result, error) {
	res, err := handler.svc.List(ctx, req.NamePrefix)
	if err != nil {
		return ginx.Result{}, err
	}
	return ginx.Result{
		Data: slice.Map(res, func(idx int, src service.Lock) Lock {
			return Lock{
				Name: src.Name,
				Key:  src.Key,
			}
		}),
	}, nil
}

func (handler *Handler) Exists(ctx *ginx.Context, req ExistsReq) (ginx.Result, error) {
	ok, err := handler.svc.Exists(ctx, req.Name)
	if err != nil {
		return ginx.Result{}, err
	}
	return ginx.Result{Data: ok}, nil
}

func (handler *Handler) Purge(ctx *ginx.Context, req PurgeReq) (ginx.Result, error) {
	if !req.Confirm {
		return ginx.Result{Code: 4, Msg: errPurgeNotConfirmed.Error()}, nil
	}
	cnt, err := handler.svc.Purge(ctx)
	if err != nil {
		return ginx.Result{}, err
	}
	return ginx.Result{Data: cnt}, nil
}
