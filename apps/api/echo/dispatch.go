package echoapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/DexterJames00/EduTrack360/core"
	"github.com/DexterJames00/EduTrack360/core/notify"
	"github.com/DexterJames00/EduTrack360/core/school"
	"github.com/DexterJames00/EduTrack360/services/metrics"
)

type (
	dispatchApi struct {
		dispatcher *notify.Dispatcher
		schools    *school.Service
		logger     core.Logger
		validate   *validator.Validate
	}

	attendanceRecord struct {
		StudentID string `json:"student_id" validate:"required"`
		Status    string `json:"status" validate:"required,status"`
	}

	attendanceDispatchRequest struct {
		SubjectID   string             `json:"subject_id" validate:"required"`
		SubjectName string             `json:"subject_name" validate:"required"`
		Date        string             `json:"date" validate:"required,datetime=2006-01-02"`
		StartTime   string             `json:"start_time" validate:"required,clock"`
		EndTime     string             `json:"end_time" validate:"required,clock"`
		Records     []attendanceRecord `json:"records" validate:"required,min=1,dive"`
	}

	announcementRequest struct {
		Message string `json:"message" validate:"required,max=3500"`
	}

	dispatchResponse struct {
		EventKey string        `json:"event_key"`
		Summary  string        `json:"summary"`
		Report   notify.Report `json:"report"`
		Error    string        `json:"error,omitempty"`
	}
)

func registerDispatchAPI(g *echo.Group, deps ServerDeps) {
	api := dispatchApi{
		dispatcher: deps.Dispatcher,
		schools:    deps.Schools,
		logger:     deps.Logger,
		validate:   deps.Validate,
	}

	dg := g.Group("/dispatches")
	dg.POST("/attendance", api.attendance, roleMiddleware(RoleInstructor, RoleAdmin))
	dg.GET("", api.records, adminMiddleware())

	g.POST("/schools/:code/announcements", api.announce, adminMiddleware())
}

// Handlers

// attendance notifies the students of a recorded attendance session. It is called after the attendance is saved.
func (api *dispatchApi) attendance(ctx echo.Context) error {
	var data attendanceDispatchRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}

	ev := notify.AttendanceEvent{
		SubjectID:   core.CleanString(data.SubjectID),
		SubjectName: core.CleanString(data.SubjectName),
		Date:        data.Date,
		StartTime:   data.StartTime,
		EndTime:     data.EndTime,
		Statuses:    make(map[string]string, len(data.Records)),
	}
	ids := make([]string, 0, len(data.Records))
	for _, rec := range data.Records {
		if _, dup := ev.Statuses[rec.StudentID]; !dup {
			ids = append(ids, rec.StudentID)
		}
		ev.Statuses[rec.StudentID] = rec.Status
	}

	return api.dispatch(ctx, ev.Key(), ids, ev.Renderer())
}

func (api *dispatchApi) announce(ctx echo.Context) error {
	var data announcementRequest
	if err := bindAndValidate(ctx, api.validate, &data); err != nil {
		return err
	}

	sch, err := api.schools.GetSchoolByCode(ctx.Request().Context(), ctx.Param("code"))
	if err != nil {
		return errors.Wrap(err, "getting school")
	}
	ids, err := api.schools.ListStudentIDs(ctx.Request().Context(), sch.ID)
	if err != nil {
		return errors.Wrap(err, "listing students")
	}

	key := notify.AnnouncementEventKey(sch.ID, uuid.NewString())
	return api.dispatch(ctx, key, ids, notify.AnnouncementRenderer(sch, data.Message))
}

func (api *dispatchApi) dispatch(ctx echo.Context, eventKey string, ids []string, render notify.Render) error {
	start := time.Now()
	report, err := api.dispatcher.Dispatch(ctx.Request().Context(), eventKey, ids, render)
	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
	for _, res := range report.Results {
		metrics.NotificationOutcomes.WithLabelValues(string(res.Outcome)).Inc()
	}

	resp := dispatchResponse{EventKey: eventKey, Summary: report.Summary(), Report: report}
	if err != nil {
		api.logger.Error(fmt.Sprintf("dispatching %s", eventKey), err)
		resp.Error = "some recipients could not be processed"
		return ctx.JSON(http.StatusInternalServerError, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *dispatchApi) records(ctx echo.Context) error {
	eventKey := core.CleanString(ctx.QueryParam("event_key"))
	if eventKey == "" {
		return core.NewFieldError("event_key", "this field is required")
	}
	records, err := api.dispatcher.Records(ctx.Request().Context(), eventKey)
	if err != nil {
		return errors.Wrap(err, "querying outbox records")
	}
	return ctx.JSON(http.StatusOK, records)
}
