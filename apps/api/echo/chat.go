package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kazimoto/mipango/core/chat"
)

type chatApi struct {
	svc      *chat.Service
	validate *validator.Validate
}

func registerChatAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := chatApi{
		svc:      deps.ChatSvc,
		validate: deps.Validate,
	}

	cg := g.Group("/chat", jwt)
	// assistant completions are metered per user
	cg.POST("/messages", api.send, rateLimitMiddleware(deps.RateLimiter, deps.Conf.RateLimit.ChatPerMin))
	cg.GET("/conversations", api.queryConversations)
	cg.GET("/conversations/:id", api.retrieveConversation)
	cg.DELETE("/conversations/:id", api.destroyConversation)
}

// Handlers

func (api *chatApi) send(ctx echo.Context) error {
	var data chat.SendRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	reply, err := api.svc.Send(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, reply)
}

func (api *chatApi) queryConversations(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	convs, err := api.svc.QueryForUser(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying conversations")
	}
	if convs == nil {
		convs = []chat.Conversation{}
	}
	return ctx.JSON(http.StatusOK, convs)
}

func (api *chatApi) retrieveConversation(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	conv, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, conv)
}

func (api *chatApi) destroyConversation(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err = api.svc.Delete(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
