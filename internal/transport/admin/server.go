package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/df-mc/dragonfly/server/block/cube"
	"github.com/google/uuid"

	"voxelgate.ai/internal/protocol"
	"voxelgate.ai/internal/sim/gateway"
	"voxelgate.ai/internal/sim/memworld"
	"voxelgate.ai/internal/sim/portal"
)

// Gateway is the session surface the admin API drives.
type Gateway interface {
	ID() string
	CurrentTick() uint64
	Metrics() gateway.SessionMetrics

	Portals(ctx context.Context, f gateway.Filter) ([]gateway.PortalInfo, error)
	DeactivateAddress(ctx context.Context, addr portal.Address, dimension string) ([]gateway.PortalInfo, error)
	DeactivateAt(ctx context.Context, dimension string, pos cube.Pos) ([]gateway.PortalInfo, error)
	Power(ctx context.Context, mode gateway.PowerMode, dimension string, pos cube.Pos, amount int) (gateway.PowerResult, error)
	Cooldown(ctx context.Context, id uuid.UUID) (int, error)
	Clear(ctx context.Context) (int, error)
	Teleport(ctx context.Context, id uuid.UUID, dimension string, pos cube.Pos) (memworld.Entity, error)
	Place(ctx context.Context, dimension string, pos cube.Pos, id portal.BlockID) error
	Interact(ctx context.Context, dimension string, pos cube.Pos, side cube.Face, sneaking bool) (gateway.InteractResult, *gateway.PortalInfo, error)
	Dispense(ctx context.Context, dimension string, pos cube.Pos, facing cube.Face) (*gateway.PortalInfo, error)
	Spawn(ctx context.Context, e memworld.Entity) (memworld.Entity, error)
	Move(ctx context.Context, id uuid.UUID, pos cube.Pos) (memworld.Entity, error)
	Entities(ctx context.Context) ([]memworld.Entity, error)
	Signal(ctx context.Context, dimension string, pos cube.Pos) (int, error)
}

type Server struct {
	gw  Gateway
	log *log.Logger

	// LoopbackOnly rejects requests that do not come from a loopback
	// address.
	LoopbackOnly bool
	// Timeout bounds each call into the session.
	Timeout time.Duration
}

const maxBody = 64 * 1024

func NewServer(gw Gateway, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{gw: gw, log: logger, Timeout: 5 * time.Second}
}

// Register mounts the admin routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/v1/state", s.get(s.state))
	mux.HandleFunc("/v1/portals", s.get(s.portals))
	mux.HandleFunc("/v1/portals/deactivate", s.post(protocol.SchemaDeactivate, s.deactivate))
	mux.HandleFunc("/v1/power", s.post(protocol.SchemaPower, s.power))
	mux.HandleFunc("/v1/cooldown", s.get(s.cooldown))
	mux.HandleFunc("/v1/clear", s.post(protocol.SchemaClear, s.clear))
	mux.HandleFunc("/v1/teleport", s.post(protocol.SchemaTeleport, s.teleport))
	mux.HandleFunc("/v1/blocks", s.post(protocol.SchemaBlock, s.place))
	mux.HandleFunc("/v1/interact", s.post(protocol.SchemaInteract, s.interact))
	mux.HandleFunc("/v1/dispense", s.post(protocol.SchemaDispense, s.dispense))
	mux.HandleFunc("/v1/entities", s.entities)
	mux.HandleFunc("/v1/entities/move", s.post(protocol.SchemaMove, s.move))
	mux.HandleFunc("/v1/signal", s.get(s.signal))
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Register(mux)
	return mux
}

// apiError carries a protocol code and the HTTP status it maps to.
type apiError struct {
	status int
	code   string
	msg    string
}

func (e *apiError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &apiError{status: http.StatusBadRequest, code: protocol.ErrBadRequest, msg: fmt.Sprintf(format, args...)}
}

type getFunc func(ctx context.Context, r *http.Request) (any, error)
type postFunc func(ctx context.Context, body []byte) (any, error)

func (s *Server) allowed(rw http.ResponseWriter, r *http.Request) bool {
	if s.LoopbackOnly && !isLoopbackRemote(r.RemoteAddr) {
		writeError(rw, http.StatusForbidden, protocol.ErrForbidden, "admin api is loopback only")
		return false
	}
	return true
}

func (s *Server) get(fn getFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.Timeout)
		defer cancel()
		out, err := fn(ctx, r)
		s.reply(rw, r, out, err)
	}
}

func (s *Server) post(schema string, fn postFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.allowed(rw, r) {
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
		if err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err.Error())
			return
		}
		if len(body) > maxBody {
			writeError(rw, http.StatusRequestEntityTooLarge, protocol.ErrProtoBadRequest, "body too large")
			return
		}
		if err := protocol.Validate(schema, body); err != nil {
			writeError(rw, http.StatusBadRequest, protocol.ErrProtoBadRequest, err.Error())
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), s.Timeout)
		defer cancel()
		out, err := fn(ctx, body)
		s.reply(rw, r, out, err)
	}
}

func (s *Server) reply(rw http.ResponseWriter, r *http.Request, out any, err error) {
	if err != nil {
		status, code := classify(err)
		if status >= http.StatusInternalServerError {
			s.log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
		}
		writeError(rw, status, code, err.Error())
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(out)
}

func classify(err error) (int, string) {
	var ae *apiError
	switch {
	case errors.As(err, &ae):
		return ae.status, ae.code
	case errors.Is(err, gateway.ErrNotRunning), errors.Is(err, gateway.ErrStopped),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, protocol.ErrUnavailable
	case errors.Is(err, gateway.ErrNoPortal):
		return http.StatusNotFound, protocol.ErrNoPortal
	case errors.Is(err, gateway.ErrAmbiguous):
		return http.StatusConflict, protocol.ErrConflict
	case errors.Is(err, memworld.ErrUnknownDimension), errors.Is(err, memworld.ErrUnknownEntity):
		return http.StatusNotFound, protocol.ErrNotFound
	case errors.Is(err, memworld.ErrUnknownBlock), errors.Is(err, portal.ErrBadAddress):
		return http.StatusBadRequest, protocol.ErrBadRequest
	default:
		// Remaining session errors reject the request's target.
		return http.StatusUnprocessableEntity, protocol.ErrInvalidTarget
	}
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(protocol.ErrorMsg{Code: code, Message: msg})
}

func isLoopbackRemote(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(strings.Trim(host, "[]"))
	return ip != nil && ip.IsLoopback()
}

func decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return badRequest("decode: %v", err)
	}
	return nil
}

func parseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, badRequest("bad entity id %q", s)
	}
	return id, nil
}

func parseFace(s string) (cube.Face, error) {
	f, ok := portal.ParseFace(s)
	if !ok {
		return 0, badRequest("bad face %q", s)
	}
	return f, nil
}

func queryPos(r *http.Request) (cube.Pos, error) {
	var pos cube.Pos
	q := r.URL.Query()
	for i, k := range []string{"x", "y", "z"} {
		v, err := strconv.Atoi(q.Get(k))
		if err != nil {
			return cube.Pos{}, badRequest("bad %s %q", k, q.Get(k))
		}
		pos[i] = v
	}
	return pos, nil
}

// parseAddress accepts four comma separated block ids.
func parseAddress(s string) (portal.Address, error) {
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return portal.ParseAddress(parts)
}
