package controller

import (
	"context"
	"time"

	"taskflow-api/core/controller"
	"taskflow-api/core/errors"
	"taskflow-api/core/middleware"
	"taskflow-api/modules/calendar/dto"
	"taskflow-api/modules/calendar/entity"
	"taskflow-api/modules/calendar/provider"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type ManualSyncer interface {
	ManualSync(ctx context.Context, userID uuid.UUID, credentialID string) (*dto.SyncOutcome, error)
	Calendars(ctx context.Context, userID uuid.UUID) ([]provider.Calendar, error)
	ProviderName() string
}

type Connector interface {
	ConnectURL(ctx context.Context, userID uuid.UUID) (string, *errors.AppError)
	CompleteConnect(ctx context.Context, state, code string) (*entity.CalendarConnection, *errors.AppError)
}

type SchedulerStatus interface {
	State() string
	Interval() time.Duration
	LastPass() *dto.PassSummary
}

type CalendarController struct {
	syncer    ManualSyncer
	scheduler SchedulerStatus
	connector Connector // nil unless the google provider is configured
	controller.BaseController
}

func NewCalendarController(syncer ManualSyncer, scheduler SchedulerStatus, connector Connector) *CalendarController {
	return &CalendarController{
		syncer:         syncer,
		scheduler:      scheduler,
		connector:      connector,
		BaseController: controller.NewBaseController(),
	}
}

// ManualSync runs a calendar sync for the caller immediately
// POST /api/v1/private/calendar/sync
func (c *CalendarController) ManualSync(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	req := new(dto.ManualSyncRequest)
	if ctx.Request().ContentLength > 0 {
		if err := ctx.Bind(req); err != nil {
			return c.BadRequest(errors.ErrInvalidRequestData, "Invalid request body")
		}
	}

	outcome, err := c.syncer.ManualSync(ctx.Request().Context(), userID, req.CredentialID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, outcome, "Calendar synced successfully")
}

// SyncStatus reports the scheduler state and the last pass
// GET /api/v1/private/calendar/sync/status
func (c *CalendarController) SyncStatus(ctx echo.Context) error {
	resp := dto.SyncStatusResponse{
		State:    "idle",
		Provider: c.syncer.ProviderName(),
	}
	if c.scheduler != nil {
		resp.State = c.scheduler.State()
		resp.IntervalMinutes = int(c.scheduler.Interval() / time.Minute)
		resp.LastPass = c.scheduler.LastPass()
	}
	return c.SuccessResponse(ctx, resp, "Sync status retrieved successfully")
}

// ListCalendars returns the calendars behind the caller's credential
// GET /api/v1/private/calendar/calendars
func (c *CalendarController) ListCalendars(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}

	calendars, err := c.syncer.Calendars(ctx.Request().Context(), userID)
	if err != nil {
		return c.ErrorResponse(ctx, err)
	}
	return c.SuccessResponse(ctx, calendars, "Calendars retrieved successfully")
}

// ConnectGoogle returns the Google consent URL for the caller
// GET /api/v1/private/calendar/google/connect
func (c *CalendarController) ConnectGoogle(ctx echo.Context) error {
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return c.Unauthorized(errors.ErrUnauthorized, "Unauthorized")
	}
	if c.connector == nil {
		return c.BadRequest(errors.ErrProviderNotConfigured, "Google calendar is not configured")
	}

	authURL, appErr := c.connector.ConnectURL(ctx.Request().Context(), userID)
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, dto.ConnectURLResponse{AuthURL: authURL}, "Connect URL generated successfully")
}

// GoogleCallback completes the consent redirect
// GET /api/v1/public/calendar/google/callback
func (c *CalendarController) GoogleCallback(ctx echo.Context) error {
	if c.connector == nil {
		return c.BadRequest(errors.ErrProviderNotConfigured, "Google calendar is not configured")
	}
	if reason := ctx.QueryParam("error"); reason != "" {
		return c.BadRequest(errors.ErrInvalidInput, "Google consent was denied", reason)
	}

	conn, appErr := c.connector.CompleteConnect(ctx.Request().Context(), ctx.QueryParam("state"), ctx.QueryParam("code"))
	if appErr != nil {
		return c.ErrorResponse(ctx, appErr)
	}
	return c.SuccessResponse(ctx, dto.ToConnectionResponse(conn), "Google calendar connected successfully")
}
