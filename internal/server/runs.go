package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/droverhq/drover/internal/store"
)

// RunsHandler serves the audit trail: benchmark sweeps, their task runs and
// the per-turn transcripts the runner persisted.
type RunsHandler struct {
	Store *store.Store
}

func (h *RunsHandler) Register(g *echo.Group, secret []byte) {
	g.Use(authMiddleware(secret))
	g.GET("/sweeps", h.listSweeps)
	g.GET("/sweeps/:id", h.getSweep)
	g.GET("/runs/:id", h.getRun)
}

func (h *RunsHandler) listSweeps(c echo.Context) error {
	limit := 50
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	sessions, err := h.Store.ListSessions(c.Request().Context(), limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	out := make([]SweepResponse, 0, len(sessions))
	for _, rec := range sessions {
		out = append(out, sweepResponse(rec))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"sweeps": out})
}

func (h *RunsHandler) getSweep(c echo.Context) error {
	id := c.Param("id")
	session, ok, err := h.Store.GetSession(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "sweep not found")
	}
	runs, err := h.Store.ListTaskRuns(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	outRuns := make([]TaskRunResponse, 0, len(runs))
	for _, rec := range runs {
		outRuns = append(outRuns, taskRunResponse(rec))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sweep": sweepResponse(session),
		"runs":  outRuns,
	})
}

func (h *RunsHandler) getRun(c echo.Context) error {
	id := c.Param("id")
	run, ok, err := h.Store.GetTaskRun(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	turns, err := h.Store.ListTurns(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	outTurns := make([]TurnResponse, 0, len(turns))
	for _, row := range turns {
		outTurns = append(outTurns, turnResponse(row))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"run":   taskRunResponse(run),
		"turns": outTurns,
	})
}

func sweepResponse(rec store.SessionRecord) SweepResponse {
	return SweepResponse{
		ID:             rec.ID,
		Profile:        rec.Profile,
		Actor:          rec.Actor,
		BaseURL:        rec.BaseURL,
		Status:         rec.Status,
		TasksTotal:     rec.TasksTotal,
		TasksSucceeded: rec.TasksSucceeded,
		Score:          rec.Score,
		StartedAt:      rec.StartedAt,
		FinishedAt:     rec.FinishedAt,
	}
}

func taskRunResponse(rec store.TaskRunRecord) TaskRunResponse {
	return TaskRunResponse{
		ID:         rec.ID,
		SessionID:  rec.SessionID,
		TaskID:     rec.TaskID,
		TaskText:   rec.TaskText,
		Outcome:    rec.Outcome,
		FinalNote:  rec.FinalNote,
		Attempts:   rec.Attempts,
		Turns:      rec.Turns,
		Completed:  rec.Completed,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
}

func turnResponse(row store.TurnRow) TurnResponse {
	return TurnResponse{
		Turn:         row.Turn,
		Instruction:  row.Instruction,
		Output:       row.Output,
		Interactions: row.Interactions,
		SoftFailure:  row.SoftFailure,
		CreatedAt:    row.CreatedAt,
	}
}
