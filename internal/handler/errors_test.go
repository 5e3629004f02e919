package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-engine/internal/middleware"
	"github.com/iliyamo/cinema-booking-engine/internal/model"
)

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{&model.SeatConflictError{ShowtimeID: "1-1", Seats: []string{"A1"}}, http.StatusConflict, `"unavailable":["A1"]`},
		{fmt.Errorf("%w: no seats", model.ErrInvalidSelection), http.StatusBadRequest, "no seats"},
		{model.ErrSeatConflict, http.StatusConflict, "seats unavailable"},
		{fmt.Errorf("%w: b1", model.ErrBookingNotFound), http.StatusNotFound, "booking unavailable"},
		{fmt.Errorf("%w: b1 is confirmed", model.ErrInvalidState), http.StatusConflict, "booking unavailable"},
		{fmt.Errorf("%w: declined", model.ErrPaymentFailed), http.StatusPaymentRequired, "declined"},
		{model.ErrShowNotFound, http.StatusNotFound, "show not found"},
		{fmt.Errorf("%w: receipt r1", model.ErrNotFound), http.StatusNotFound, "not found"},
		{errors.New("disk on fire"), http.StatusInternalServerError, "internal error"},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		assert.NoError(t, writeError(c, tc.err))
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Contains(t, rec.Body.String(), tc.body)
	}
}

func TestWriteErrorLogsUnhandledToRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/bookings", nil), rec)
	c.Set(middleware.ContextLogger, logger.WithField("request_id", "rid-1"))

	assert.NoError(t, writeError(c, errors.New("disk on fire")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "unhandled error", entry.Message)
	assert.Equal(t, "rid-1", entry.Data["request_id"])
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "disk on fire")

	hook.Reset()
	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.Set(middleware.ContextLogger, logger)
	assert.NoError(t, writeError(c, model.ErrShowNotFound))
	assert.Empty(t, hook.AllEntries(), "mapped errors are not logged")
}
