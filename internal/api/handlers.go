package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/annel0/blockworld/internal/sim"
	"github.com/annel0/blockworld/internal/vec"
	"github.com/annel0/blockworld/internal/world"
	"github.com/annel0/blockworld/internal/world/block"
	"github.com/annel0/blockworld/internal/world/shape"
	"github.com/annel0/blockworld/internal/world/tick"
)

// maxStepTicks ограничение на число тиков за один запрос step
const maxStepTicks = 1200

// BlockView состояние блока в ответе API
type BlockView struct {
	Pos     vec.Vec3 `json:"pos"`
	State   string   `json:"state"`
	Loaded  bool     `json:"loaded"`
	Fluid   string   `json:"fluid,omitempty"`
	Level   int      `json:"fluid_level,omitempty"`
	Sturdy  []string `json:"sturdy_faces,omitempty"`
	Changed bool     `json:"changed,omitempty"`
}

// SetBlockRequest тело PUT /api/blocks/:x/:y/:z
type SetBlockRequest struct {
	State string `json:"state" binding:"required"`
	Flags string `json:"flags"` // "notify_neighbors|notify_clients", "all", "none"; пусто: all
}

// PlaceBlockRequest тело POST /api/blocks/:x/:y/:z/place
type PlaceBlockRequest struct {
	Type string `json:"type" binding:"required"`
	Face string `json:"face"` // грань, по которой кликнули; пусто: up
}

// ScheduleTickRequest тело POST /api/ticks. Указывается либо Block, либо Fluid.
type ScheduleTickRequest struct {
	Pos      vec.Vec3 `json:"pos"`
	Block    string   `json:"block"`
	Fluid    string   `json:"fluid"`
	Delay    int      `json:"delay"`
	Priority int      `json:"priority"`
}

// StepRequest тело POST /api/sim/step
type StepRequest struct {
	Ticks int `json:"ticks"`
}

// SimStatus состояние симуляции
type SimStatus struct {
	Paused       bool            `json:"paused"`
	GameTime     int64           `json:"game_time"`
	LoadedChunks int             `json:"loaded_chunks"`
	Digest       string          `json:"digest,omitempty"`
	LastTick     world.TickStats `json:"last_tick"`
}

// TypeView описание типа блока в реестре
type TypeView struct {
	ID          block.ID            `json:"id"`
	Name        string              `json:"name"`
	States      int                 `json:"states"`
	Default     string              `json:"default"`
	Properties  map[string][]string `json:"properties,omitempty"`
	RandomTicks bool                `json:"random_ticks,omitempty"`
	Replaceable bool                `json:"replaceable,omitempty"`
}

// do выполняет fn в потоке симуляции и переводит ошибки в HTTP-ответ.
// Возвращает false, если ответ уже отправлен.
func (rs *RestServer) do(c *gin.Context, fn func(*world.World) error) bool {
	err := rs.sim.Do(c.Request.Context(), fn)
	if err == nil {
		return true
	}
	var apiErr *requestError
	switch {
	case errors.As(err, &apiErr):
		abort(c, apiErr.status, apiErr.Error())
	case errors.Is(err, sim.ErrStopped):
		abort(c, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		abort(c, http.StatusRequestTimeout, err.Error())
	default:
		rs.logger.Error("ошибка выполнения запроса %s: %v", c.FullPath(), err)
		abort(c, http.StatusInternalServerError, err.Error())
	}
	return false
}

// requestError ошибка запроса с HTTP-статусом, возвращаемая из задачи симуляции
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...interface{}) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...interface{}) error {
	return &requestError{status: http.StatusConflict, msg: fmt.Sprintf(format, args...)}
}

// parsePos разбирает координаты :x/:y/:z
func parsePos(c *gin.Context) (vec.Vec3, bool) {
	var out [3]int
	for i, name := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(c.Param(name))
		if err != nil {
			abort(c, http.StatusBadRequest, fmt.Sprintf("неверная координата %s: %q", name, c.Param(name)))
			return vec.Vec3{}, false
		}
		out[i] = v
	}
	return vec.Vec3{X: out[0], Y: out[1], Z: out[2]}, true
}

// parseCoords разбирает "x,y,z"
func parseCoords(text string) (vec.Vec3, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return vec.Vec3{}, fmt.Errorf("ожидается x,y,z: %q", text)
	}
	var out [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return vec.Vec3{}, fmt.Errorf("неверная координата %q", p)
		}
		out[i] = v
	}
	return vec.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}

func viewOf(w *world.World, pos vec.Vec3) BlockView {
	s := w.Get(pos)
	v := BlockView{Pos: pos, State: s.String(), Loaded: w.IsLoaded(pos)}
	if fs := s.FluidState(); !fs.IsEmpty() {
		v.Fluid = fs.Fluid.String()
		v.Level = fs.Level
	}
	for _, d := range vec.Directions {
		if s.IsFaceSturdy(d, shape.SupportFull) {
			v.Sturdy = append(v.Sturdy, d.String())
		}
	}
	return v
}

func (rs *RestServer) handleGetBlock(c *gin.Context) {
	pos, ok := parsePos(c)
	if !ok {
		return
	}
	var view BlockView
	if !rs.do(c, func(w *world.World) error {
		view = viewOf(w, pos)
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: view})
}

func (rs *RestServer) handleSetBlock(c *gin.Context) {
	pos, ok := parsePos(c)
	if !ok {
		return
	}
	var req SetBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	state, err := rs.registry.ParseState(req.State)
	if err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	flags := block.UpdateAll
	if req.Flags != "" {
		if flags, err = block.ParseUpdateFlags(req.Flags); err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	var old string
	var view BlockView
	if !rs.do(c, func(w *world.World) error {
		if !w.IsLoaded(pos) {
			return conflict("чанк %v не загружен", pos.ToChunkCoords())
		}
		prev := w.Set(pos, state, flags)
		old = prev.String()
		view = viewOf(w, pos)
		view.Changed = prev != state
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "было: " + old, Data: view})
}

func (rs *RestServer) handlePlaceBlock(c *gin.Context) {
	pos, ok := parsePos(c)
	if !ok {
		return
	}
	var req PlaceBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	t, found := rs.registry.ByName(req.Type)
	if !found {
		abort(c, http.StatusBadRequest, fmt.Sprintf("неизвестный тип блока %q", req.Type))
		return
	}
	face := vec.Up
	if req.Face != "" {
		if face, found = vec.ParseDirection(req.Face); !found {
			abort(c, http.StatusBadRequest, fmt.Sprintf("неизвестная грань %q", req.Face))
			return
		}
	}

	var view BlockView
	if !rs.do(c, func(w *world.World) error {
		if _, placed := w.Place(pos, t, face); !placed {
			return conflict("нельзя поставить %s в %v", t.Name, pos)
		}
		view = viewOf(w, pos)
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: view})
}

func (rs *RestServer) handleDestroyBlock(c *gin.Context) {
	pos, ok := parsePos(c)
	if !ok {
		return
	}
	var destroyed bool
	if !rs.do(c, func(w *world.World) error {
		destroyed = w.Destroy(pos)
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: destroyed, Data: gin.H{"destroyed": destroyed}})
}

func (rs *RestServer) handleGetTicks(c *gin.Context) {
	var chunk *vec.Vec3
	if text := c.Query("chunk"); text != "" {
		coords, err := parseCoords(text)
		if err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
		chunk = &coords
	}
	var ticks []world.PendingTick
	if !rs.do(c, func(w *world.World) error {
		ticks = w.PendingTicks(chunk)
		return nil
	}) {
		return
	}
	if ticks == nil {
		ticks = []world.PendingTick{}
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: ticks})
}

func (rs *RestServer) handleScheduleTick(c *gin.Context) {
	var req ScheduleTickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, err.Error())
		return
	}
	if (req.Block == "") == (req.Fluid == "") {
		abort(c, http.StatusBadRequest, "нужно указать ровно одно из block или fluid")
		return
	}
	if req.Priority < int(tick.PriorityExtremelyHigh) || req.Priority > int(tick.PriorityExtremelyLow) {
		abort(c, http.StatusBadRequest, fmt.Sprintf("приоритет вне диапазона: %d", req.Priority))
		return
	}

	if !rs.do(c, func(w *world.World) error {
		if !w.IsLoaded(req.Pos) {
			return conflict("чанк %v не загружен", req.Pos.ToChunkCoords())
		}
		if req.Block != "" {
			t, ok := w.Registry().ByName(req.Block)
			if !ok {
				return badRequest("неизвестный тип блока %q", req.Block)
			}
			w.ScheduleBlockTickWithPriority(req.Pos, t, req.Delay, tick.Priority(req.Priority))
			return nil
		}
		f, ok := block.ParseFluid(req.Fluid)
		if !ok || f == block.FluidEmpty {
			return badRequest("неизвестная жидкость %q", req.Fluid)
		}
		w.ScheduleFluidTick(req.Pos, f, req.Delay)
		return nil
	}) {
		return
	}
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "тик запланирован"})
}

func (rs *RestServer) handleGetChunks(c *gin.Context) {
	var coords []vec.Vec3
	if !rs.do(c, func(w *world.World) error {
		coords = w.LoadedChunks()
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: coords})
}

func (rs *RestServer) handleGetChunk(c *gin.Context) {
	coords, ok := parsePos(c)
	if !ok {
		return
	}
	var data *world.ChunkData
	if !rs.do(c, func(w *world.World) error {
		snap, loaded := w.ChunkSnapshot(coords)
		if !loaded {
			return &requestError{status: http.StatusNotFound, msg: fmt.Sprintf("чанк %v не загружен", coords)}
		}
		data = snap
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: data})
}

func (rs *RestServer) handleLoadChunk(c *gin.Context) {
	coords, ok := parsePos(c)
	if !ok {
		return
	}
	if !rs.do(c, func(w *world.World) error {
		if err := w.LoadChunk(c.Request.Context(), coords); err != nil {
			return badRequest("%v", err)
		}
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: fmt.Sprintf("чанк %v загружен", coords)})
}

func (rs *RestServer) handleUnloadChunk(c *gin.Context) {
	coords, ok := parsePos(c)
	if !ok {
		return
	}
	if !rs.do(c, func(w *world.World) error {
		return w.UnloadChunk(c.Request.Context(), coords)
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: fmt.Sprintf("чанк %v выгружен", coords)})
}

func (rs *RestServer) handleGetRegistry(c *gin.Context) {
	types := rs.registry.Types()
	out := make([]TypeView, 0, len(types))
	for _, t := range types {
		v := TypeView{
			ID:          t.ID(),
			Name:        t.Name,
			States:      len(t.Definition().States()),
			Default:     t.DefaultState().String(),
			RandomTicks: t.RandomTicks,
			Replaceable: t.Replaceable,
		}
		for _, p := range t.Definition().Properties() {
			if v.Properties == nil {
				v.Properties = make(map[string][]string)
			}
			values := make([]string, p.Len())
			for i := range values {
				values[i] = p.ValueName(i)
			}
			v.Properties[p.Name()] = values
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Message: fmt.Sprintf("типов: %d, состояний: %d", len(types), rs.registry.StateCount()),
		Data:    out,
	})
}

func (rs *RestServer) status(c *gin.Context, withDigest bool) (SimStatus, bool) {
	st := SimStatus{Paused: rs.sim.Paused(), LastTick: rs.sim.Stats()}
	ok := rs.do(c, func(w *world.World) error {
		st.GameTime = w.GameTime()
		st.LoadedChunks = len(w.LoadedChunks())
		if withDigest {
			st.Digest = w.StateDigest()
		}
		return nil
	})
	return st, ok
}

func (rs *RestServer) handleSimStatus(c *gin.Context) {
	st, ok := rs.status(c, c.Query("digest") == "true")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: st})
}

func (rs *RestServer) handleSimStep(c *gin.Context) {
	req := StepRequest{Ticks: 1}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abort(c, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Ticks < 1 || req.Ticks > maxStepTicks {
		abort(c, http.StatusBadRequest, fmt.Sprintf("ticks должно быть в диапазоне 1..%d", maxStepTicks))
		return
	}
	stats, err := rs.sim.Step(c.Request.Context(), req.Ticks)
	if err != nil {
		abort(c, http.StatusServiceUnavailable, err.Error())
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: stats})
}

func (rs *RestServer) handleSimPause(c *gin.Context) {
	rs.sim.Pause()
	rs.logger.Info("симуляция поставлена на паузу оператором %s", c.GetString(ctxOperator))
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "пауза"})
}

func (rs *RestServer) handleSimResume(c *gin.Context) {
	rs.sim.Resume()
	rs.logger.Info("симуляция возобновлена оператором %s", c.GetString(ctxOperator))
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "продолжено"})
}

func (rs *RestServer) handleSimSave(c *gin.Context) {
	if !rs.do(c, func(w *world.World) error {
		return w.SaveAll(c.Request.Context())
	}) {
		return
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "мир сохранён"})
}
