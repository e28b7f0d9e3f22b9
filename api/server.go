// Package api exposes the alignment engine over HTTP. One session per
// operator; frames, tilt samples and recording control all address a
// session by its ID.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/stillframe/marker.align/db"
	"github.com/stillframe/marker.align/internal/align"
	"github.com/stillframe/marker.align/internal/config"
	"github.com/stillframe/marker.align/internal/geom"
	"github.com/stillframe/marker.align/internal/httputil"
	"github.com/stillframe/marker.align/internal/motion"
	"github.com/stillframe/marker.align/internal/session"
	"github.com/stillframe/marker.align/internal/version"
)

// ANSI escape codes for request log colouring
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

type Server struct {
	sessions *session.Manager
	store    *db.DB
	cfg      *config.TuningConfig
}

// NewServer wires the session manager and the verdict store into an HTTP
// surface. store may be nil; verdicts are then kept in memory only.
func NewServer(sessions *session.Manager, store *db.DB, cfg *config.TuningConfig) *Server {
	return &Server{
		sessions: sessions,
		store:    store,
		cfg:      cfg,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/session", s.createSession)
	mux.HandleFunc("DELETE /api/session/{id}", s.deleteSession)
	mux.HandleFunc("POST /api/session/{id}/frame", s.postFrame)
	mux.HandleFunc("POST /api/session/{id}/tilt", s.postTilt)
	mux.HandleFunc("GET /api/session/{id}/state", s.getState)
	mux.HandleFunc("POST /api/session/{id}/recording", s.postRecording)
	mux.HandleFunc("GET /api/session/{id}/report", s.getReport)
	mux.HandleFunc("GET /api/config", s.showConfig)
	mux.HandleFunc("GET /api/version", s.showVersion)
	return mux
}

// lookup resolves the {id} path value, writing a 404 on a miss.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		httputil.NotFound(w, "unknown session")
		return nil, false
	}
	return sess, true
}

type createSessionRequest struct {
	Variant     align.TemplateVariant `json:"variant"`
	ImageWidth  float64               `json:"image_width"`
	ImageHeight float64               `json:"image_height"`
}

type createSessionResponse struct {
	SessionID string                `json:"session_id"`
	Variant   align.TemplateVariant `json:"variant"`
	StartedAt time.Time             `json:"started_at"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}

	size := geom.Size{Width: req.ImageWidth, Height: req.ImageHeight}
	sess, err := s.sessions.Create(req.Variant, size)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	if s.store != nil {
		if err := s.store.RecordSession(sess.ID(), sess.Variant(), size, sess.StartedAt()); err != nil {
			log.Printf("failed to persist session %s: %v", sess.ID(), err)
		}
	}

	httputil.WriteJSON(w, http.StatusCreated, createSessionResponse{
		SessionID: sess.ID(),
		Variant:   sess.Variant(),
		StartedAt: sess.StartedAt(),
	})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if sess.Recording() {
		if _, err := sess.StopRecording(); err != nil {
			log.Printf("failed to stop recording for %s: %v", sess.ID(), err)
		}
	}
	s.sessions.Delete(sess.ID())
	w.WriteHeader(http.StatusNoContent)
}

type frameRequest struct {
	Markers []geom.Marker `json:"markers"`
}

func (s *Server) postFrame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req frameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}

	httputil.WriteJSONOK(w, sess.Frame(req.Markers))
}

type tiltRequest struct {
	PitchDeg float64 `json:"pitch_deg"`
}

func (s *Server) postTilt(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req tiltRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}

	sess.SetTilt(req.PitchDeg)
	w.WriteHeader(http.StatusNoContent)
}

type stateResponse struct {
	State          align.AlignmentState `json:"state"`
	Recording      bool                 `json:"recording"`
	Warning        motion.Warning       `json:"warning,omitempty"`
	ElapsedSeconds float64              `json:"elapsed_seconds"`
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	httputil.WriteJSONOK(w, stateResponse{
		State:          sess.Snapshot(),
		Recording:      sess.Recording(),
		Warning:        sess.Warning(),
		ElapsedSeconds: sess.Elapsed().Seconds(),
	})
}

type recordingRequest struct {
	Action string `json:"action"`
}

type recordingResponse struct {
	Recording       bool            `json:"recording"`
	Verdict         *motion.Verdict `json:"verdict,omitempty"`
	RecordedSeconds float64         `json:"recorded_seconds,omitempty"`
}

func (s *Server) postRecording(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req recordingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid JSON body")
		return
	}

	switch req.Action {
	case "start":
		if err := sess.StartRecording(); err != nil {
			httputil.Conflict(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, recordingResponse{Recording: true})

	case "stop":
		recordedSeconds := sess.Elapsed().Seconds()
		v, err := sess.StopRecording()
		if err != nil {
			httputil.Conflict(w, err.Error())
			return
		}
		if s.store != nil {
			if err := s.store.RecordVerdict(sess.ID(), v, recordedSeconds); err != nil {
				log.Printf("failed to persist verdict for %s: %v", sess.ID(), err)
			}
			if err := s.store.RecordMovementTrace(sess.ID(), sess.MovementTrace()); err != nil {
				log.Printf("failed to persist movement trace for %s: %v", sess.ID(), err)
			}
		}
		httputil.WriteJSONOK(w, recordingResponse{
			Verdict:         &v,
			RecordedSeconds: recordedSeconds,
		})

	default:
		httputil.BadRequest(w, `action must be "start" or "stop"`)
	}
}

// getReport renders the recorded movement trace as an HTML line chart.
// The live session trace is preferred; a persisted trace is the fallback
// so reports survive session deletion.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var trace []motion.DeltaPoint
	if sess, ok := s.sessions.Get(id); ok {
		trace = sess.MovementTrace()
	}
	if len(trace) == 0 && s.store != nil {
		stored, err := s.store.MovementTrace(id)
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to load movement trace: %v", err))
			return
		}
		trace = stored
	}
	if len(trace) == 0 {
		httputil.NotFound(w, "no movement trace for session")
		return
	}

	labels := make([]string, 0, len(trace))
	data := make([]opts.LineData, 0, len(trace))
	for _, d := range trace {
		labels = append(labels, d.At.Format("15:04:05.000"))
		data = append(data, opts.LineData{Value: d.Magnitude})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Recording Movement", Theme: "dark", Width: "1100px", Height: "500px"}),
		charts.WithTitleOpts(opts.Title{Title: "Marker movement during recording", Subtitle: fmt.Sprintf("session=%s samples=%d", id, len(trace))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "movement (px)"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("movement", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.cfg)
}

func (s *Server) showVersion(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"version":    version.Version,
		"git_sha":    version.GitSHA,
		"build_time": version.BuildTime,
	})
}
