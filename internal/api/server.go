// Package api serves the perception state and robot commands over HTTP.
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/banshee-data/cybot.radar/internal/config"
	"github.com/banshee-data/cybot.radar/internal/httputil"
	"github.com/banshee-data/cybot.radar/internal/hub"
	"github.com/banshee-data/cybot.radar/internal/perception/pipeline"
	"github.com/banshee-data/cybot.radar/internal/perception/pose"
	"github.com/banshee-data/cybot.radar/internal/serialmux"
	"github.com/banshee-data/cybot.radar/internal/telemetry"
)

// State is the committed perception state the API reads. *pipeline.Core
// satisfies it.
type State interface {
	Pose() pose.Pose
	Obstacles() pipeline.ObstacleList
	Stats() pipeline.Stats
	PendingSamples() int
}

// Options carries the optional collaborators of a Server.
type Options struct {
	Bridge *telemetry.Bridge
	Hub    *hub.Hub
	Tuning *config.TuningConfig
}

type Server struct {
	state   State
	robot   serialmux.SerialMuxInterface
	opts    Options
	started time.Time
}

func NewServer(state State, robot serialmux.SerialMuxInterface, opts Options) *Server {
	if robot == nil {
		robot = serialmux.NewDisabledSerialMux()
	}
	return &Server{
		state:   state,
		robot:   robot,
		opts:    opts,
		started: time.Now(),
	}
}

// ServeMux returns the API routes. Debug routes are attached separately by
// the owners of each component.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/pose", s.showPose)
	mux.HandleFunc("/api/obstacles", s.showObstacles)
	mux.HandleFunc("/api/stats", s.showStats)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/commands", s.listCommands)
	mux.HandleFunc("/api/command", s.sendCommand)
	mux.HandleFunc("/healthz", s.health)
	if s.opts.Hub != nil {
		mux.Handle("/ws", s.opts.Hub)
	}
	return mux
}

func (s *Server) showPose(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, s.state.Pose())
}

func (s *Server) showObstacles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, s.state.Obstacles())
}

type hubStats struct {
	Clients int   `json:"clients"`
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
}

type statsResponse struct {
	Uptime         string                 `json:"uptime"`
	Pipeline       pipeline.Stats         `json:"pipeline"`
	PendingSamples int                    `json:"pending_samples"`
	Bridge         *telemetry.BridgeStats `json:"bridge,omitempty"`
	Hub            *hubStats              `json:"hub,omitempty"`
}

func (s *Server) showStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}

	resp := statsResponse{
		Uptime:         time.Since(s.started).Round(time.Second).String(),
		Pipeline:       s.state.Stats(),
		PendingSamples: s.state.PendingSamples(),
	}
	if s.opts.Bridge != nil {
		bs := s.opts.Bridge.Stats()
		resp.Bridge = &bs
	}
	if s.opts.Hub != nil {
		sent, dropped := s.opts.Hub.Stats()
		resp.Hub = &hubStats{Clients: s.opts.Hub.ClientCount(), Sent: sent, Dropped: dropped}
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	cfg := s.opts.Tuning
	if cfg == nil {
		cfg = config.DefaultTuningConfig()
	}
	httputil.WriteJSONOK(w, cfg)
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	httputil.WriteJSONOK(w, serialmux.Commands())
}

type commandRequest struct {
	Command string `json:"command"`
}

// sendCommand relays a robot command. The body is either JSON
// {"command": "..."} or a form with a command field; the command may be the
// firmware character or its name.
func (s *Server) sendCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w, http.MethodPost)
		return
	}

	var raw string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req commandRequest
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		raw = req.Command
	} else {
		raw = r.FormValue("command")
	}

	cmd, err := serialmux.ParseCommand(raw)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if err := s.robot.SendCommand(string(cmd)); err != nil {
		if errors.Is(err, serialmux.ErrNoRobot) {
			httputil.ServiceUnavailable(w, err.Error())
			return
		}
		httputil.WriteJSONError(w, http.StatusInternalServerError, "failed to send command")
		return
	}
	httputil.WriteJSONOK(w, commandRequest{Command: string(cmd)})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.opts.Hub != nil {
		resp["clients"] = s.opts.Hub.ClientCount()
	}
	httputil.WriteJSONOK(w, resp)
}
