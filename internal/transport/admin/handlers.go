package admin

import (
	"context"
	"net/http"

	"github.com/df-mc/dragonfly/server/block/cube"

	"voxelgate.ai/internal/protocol"
	"voxelgate.ai/internal/sim/gateway"
	"voxelgate.ai/internal/sim/memworld"
	"voxelgate.ai/internal/sim/portal"
)

type stateResp struct {
	Session string                 `json:"session"`
	Tick    uint64                 `json:"tick"`
	Metrics gateway.SessionMetrics `json:"metrics"`
}

func (s *Server) state(_ context.Context, _ *http.Request) (any, error) {
	return stateResp{Session: s.gw.ID(), Tick: s.gw.CurrentTick(), Metrics: s.gw.Metrics()}, nil
}

type portalsResp struct {
	Portals []gateway.PortalInfo `json:"portals"`
}

func (s *Server) portals(ctx context.Context, r *http.Request) (any, error) {
	q := r.URL.Query()
	f := gateway.Filter{Dimension: q.Get("dimension")}
	if a := q.Get("address"); a != "" {
		addr, err := parseAddress(a)
		if err != nil {
			return nil, err
		}
		f.Address = addr
	}
	list, err := s.gw.Portals(ctx, f)
	if err != nil {
		return nil, err
	}
	return portalsResp{Portals: nonNil(list)}, nil
}

func (s *Server) deactivate(ctx context.Context, body []byte) (any, error) {
	var req protocol.DeactivateReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	var (
		gone []gateway.PortalInfo
		err  error
	)
	if req.Pos != nil {
		gone, err = s.gw.DeactivateAt(ctx, req.Dimension, cube.Pos(*req.Pos))
	} else {
		var addr portal.Address
		addr, err = portal.ParseAddress(req.Address)
		if err != nil {
			return nil, err
		}
		gone, err = s.gw.DeactivateAddress(ctx, addr, req.Dimension)
	}
	if err != nil {
		return nil, err
	}
	return portalsResp{Portals: nonNil(gone)}, nil
}

func (s *Server) power(ctx context.Context, body []byte) (any, error) {
	var req protocol.PowerReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	return s.gw.Power(ctx, gateway.PowerMode(req.Mode), req.Dimension, cube.Pos(req.Pos), req.Amount)
}

type cooldownResp struct {
	Entity string `json:"entity"`
	Ticks  int    `json:"ticks"`
}

func (s *Server) cooldown(ctx context.Context, r *http.Request) (any, error) {
	id, err := parseID(r.URL.Query().Get("entity"))
	if err != nil {
		return nil, err
	}
	n, err := s.gw.Cooldown(ctx, id)
	if err != nil {
		return nil, err
	}
	return cooldownResp{Entity: id.String(), Ticks: n}, nil
}

type clearResp struct {
	Removed int `json:"removed"`
}

func (s *Server) clear(ctx context.Context, body []byte) (any, error) {
	var req protocol.ClearReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	if !req.Confirmed {
		return nil, badRequest("clear needs confirmed=true")
	}
	n, err := s.gw.Clear(ctx)
	if err != nil {
		return nil, err
	}
	return clearResp{Removed: n}, nil
}

type entityResp struct {
	Entity memworld.Entity `json:"entity"`
}

func (s *Server) teleport(ctx context.Context, body []byte) (any, error) {
	var req protocol.TeleportReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	id, err := parseID(req.Entity)
	if err != nil {
		return nil, err
	}
	e, err := s.gw.Teleport(ctx, id, req.Dimension, cube.Pos(req.Pos))
	if err != nil {
		return nil, err
	}
	return entityResp{Entity: e}, nil
}

type okResp struct {
	OK bool `json:"ok"`
}

func (s *Server) place(ctx context.Context, body []byte) (any, error) {
	var req protocol.BlockReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	if err := s.gw.Place(ctx, req.Dimension, cube.Pos(req.Pos), portal.BlockID(req.Block)); err != nil {
		return nil, err
	}
	return okResp{OK: true}, nil
}

type interactResp struct {
	gateway.InteractResult
	Portal *gateway.PortalInfo `json:"portal,omitempty"`
}

func (s *Server) interact(ctx context.Context, body []byte) (any, error) {
	var req protocol.InteractReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	side, err := parseFace(req.Side)
	if err != nil {
		return nil, err
	}
	res, info, err := s.gw.Interact(ctx, req.Dimension, cube.Pos(req.Pos), side, req.Sneaking)
	if err != nil {
		return nil, err
	}
	return interactResp{InteractResult: res, Portal: info}, nil
}

type dispenseResp struct {
	Activated bool                `json:"activated"`
	Portal    *gateway.PortalInfo `json:"portal,omitempty"`
}

func (s *Server) dispense(ctx context.Context, body []byte) (any, error) {
	var req protocol.DispenseReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	facing, err := parseFace(req.Facing)
	if err != nil {
		return nil, err
	}
	info, err := s.gw.Dispense(ctx, req.Dimension, cube.Pos(req.Pos), facing)
	if err != nil {
		return nil, err
	}
	return dispenseResp{Activated: info != nil, Portal: info}, nil
}

type entitiesResp struct {
	Entities []memworld.Entity `json:"entities"`
}

// entities lists on GET and spawns on POST.
func (s *Server) entities(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.get(s.listEntities)(rw, r)
	case http.MethodPost:
		s.post(protocol.SchemaSpawn, s.spawn)(rw, r)
	default:
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) listEntities(ctx context.Context, _ *http.Request) (any, error) {
	list, err := s.gw.Entities(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []memworld.Entity{}
	}
	return entitiesResp{Entities: list}, nil
}

func (s *Server) spawn(ctx context.Context, body []byte) (any, error) {
	var req protocol.SpawnReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	e := memworld.Entity{
		Kind:      memworld.Kind(req.Kind),
		Name:      req.Name,
		Dimension: req.Dimension,
		Pos:       cube.Pos(req.Pos),
		Yaw:       req.Yaw,
		Height:    req.Height,
		Creative:  req.Creative,
		Item:      req.Item,
		Count:     req.Count,
	}
	if req.ID != "" {
		id, err := parseID(req.ID)
		if err != nil {
			return nil, err
		}
		e.ID = id
	}
	out, err := s.gw.Spawn(ctx, e)
	if err != nil {
		return nil, err
	}
	return entityResp{Entity: out}, nil
}

func (s *Server) move(ctx context.Context, body []byte) (any, error) {
	var req protocol.MoveReq
	if err := decode(body, &req); err != nil {
		return nil, err
	}
	id, err := parseID(req.Entity)
	if err != nil {
		return nil, err
	}
	e, err := s.gw.Move(ctx, id, cube.Pos(req.Pos))
	if err != nil {
		return nil, err
	}
	return entityResp{Entity: e}, nil
}

type signalResp struct {
	Dimension string   `json:"dimension"`
	Pos       cube.Pos `json:"pos"`
	Signal    int      `json:"signal"`
}

func (s *Server) signal(ctx context.Context, r *http.Request) (any, error) {
	pos, err := queryPos(r)
	if err != nil {
		return nil, err
	}
	dim := r.URL.Query().Get("dimension")
	n, err := s.gw.Signal(ctx, dim, pos)
	if err != nil {
		return nil, err
	}
	return signalResp{Dimension: dim, Pos: pos, Signal: n}, nil
}

func nonNil(list []gateway.PortalInfo) []gateway.PortalInfo {
	if list == nil {
		return []gateway.PortalInfo{}
	}
	return list
}

var _ Gateway = (*gateway.Session)(nil)
