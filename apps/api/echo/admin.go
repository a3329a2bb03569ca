package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core/channel"
	"github.com/DexterJames00/EduTrack360/core/credential"
	"github.com/DexterJames00/EduTrack360/core/registration"
	"github.com/DexterJames00/EduTrack360/core/school"
)

type (
	adminApi struct {
		schools     *school.Service
		channels    *channel.Service
		credentials *credential.Service
		validate    *validator.Validate
	}

	connectionsResponse struct {
		School school.School `json:"school"`
		channel.Stats
	}

	inviteResponse struct {
		Student school.Student `json:"student"`
		School  school.School  `json:"school"`
		Link    string         `json:"link"`
		Linked  bool           `json:"linked"`
	}

	credentialResponse struct {
		credential.Credential
		Token string `json:"token"` // masked
	}

	activateCredentialRequest struct {
		Token string `json:"token" validate:"required"`
	}

	webhookRequest struct {
		PublicURL string `json:"public_url" validate:"required,url"`
	}
)

func registerAdminAPI(g *echo.Group, deps ServerDeps) {
	api := adminApi{
		schools:     deps.Schools,
		channels:    deps.Channels,
		credentials: deps.Credentials,
		validate:    deps.Validate,
	}

	ag := g.Group("", adminMiddleware())
	ag.GET("/schools/:code/connections", api.connections)
	ag.GET("/students/:id/invite", api.invite)
	ag.DELETE("/students/:id/link", api.unlink)

	ag.GET("/credentials", api.listCredentials)
	ag.GET("/credentials/current", api.currentCredential)
	ag.POST("/credentials", api.activateCredential)
	ag.POST("/webhook", api.configureWebhook)
}

func newCredentialResponse(cred credential.Credential) credentialResponse {
	return credentialResponse{Credential: cred, Token: cred.MaskedToken()}
}

// Handlers

func (api *adminApi) connections(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	sch, err := api.schools.GetSchoolByCode(rctx, ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	stats, err := api.channels.Stats(rctx, sch.ID)
	if err != nil {
		return errors.Wrap(err, "getting connection stats")
	}
	return ctx.JSON(http.StatusOK, connectionsResponse{School: sch, Stats: stats})
}

func (api *adminApi) invite(ctx echo.Context) error {
	rctx := ctx.Request().Context()
	std, err := api.schools.GetStudent(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting student")
	}
	sch, err := api.schools.GetSchool(rctx, std.SchoolID)
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	cred, err := api.credentials.Current(rctx)
	if err != nil {
		return errors.Wrap(err, "getting active credential")
	}
	_, linked, err := api.channels.LookupChannel(rctx, std.ID)
	if err != nil {
		return errors.Wrap(err, "looking up channel")
	}

	return ctx.JSON(http.StatusOK, inviteResponse{
		Student: std,
		School:  sch,
		Link:    registration.InviteLink(cred.Handle, sch, std),
		Linked:  linked,
	})
}

func (api *adminApi) unlink(ctx echo.Context) error {
	if err := api.channels.Unlink(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "unlinking student")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *adminApi) listCredentials(ctx echo.Context) error {
	creds, err := api.credentials.List(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing credentials")
	}
	resp := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		resp = append(resp, newCredentialResponse(c))
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *adminApi) currentCredential(ctx echo.Context) error {
	cred, err := api.credentials.Current(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "getting active credential")
	}
	return ctx.JSON(http.StatusOK, newCredentialResponse(cred))
}

func (api *adminApi) activateCredential(ctx echo.Context) error {
	var data activateCredentialRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	cred, err := api.credentials.Activate(ctx.Request().Context(), data.Token)
	if err != nil {
		return errors.Wrap(err, "activating credential")
	}
	return ctx.JSON(http.StatusCreated, newCredentialResponse(cred))
}

func (api *adminApi) configureWebhook(ctx echo.Context) error {
	var data webhookRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}
	hookURL, err := api.credentials.ConfigureWebhook(ctx.Request().Context(), data.PublicURL)
	if err != nil {
		return errors.Wrap(err, "configuring webhook")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"url": hookURL})
}
