package handler

import (
	"Recharge/config"
	"Recharge/middleware"
	"Recharge/pkg/context"
	"Recharge/pkg/response"
	"Recharge/service"
	"Recharge/types"

	"github.com/gin-gonic/gin"
)

type Point struct {
	Config *config.Config
	Points service.IPointService
}

func (p *Point) RegisterRouter(r gin.IRouter) {
	pointGroup := r.Group("/v1/points", middleware.Auth([]byte(p.Config.Jwt.Secret)))
	pointGroup.GET("/balance", context.Wrap(p.Balance))
	pointGroup.GET("/records", context.Wrap(p.GetRecords))
}

func (p *Point) Balance(c *gin.Context) error {
	userID, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(401, err.Error())
	}
	resp, err := p.Points.GetAccountDashboard(c.Request.Context(), userID)
	if err != nil {
		return err
	}
	response.Success(c, resp)
	return nil
}

func (p *Point) GetRecords(c *gin.Context) error {
	var req types.ListPointRecordsReq
	if err := c.ShouldBindQuery(&req); err != nil {
		return response.NewError(400, "参数错误: "+err.Error())
	}
	userID, err := context.GetUserID(c)
	if err != nil {
		return response.NewError(401, err.Error())
	}
	resp, err := p.Points.ListPointRecords(c.Request.Context(), userID, req.Action, req.Cursor, req.Limit)
	if err != nil {
		return err
	}
	response.Success(c, resp)
	return nil
}
