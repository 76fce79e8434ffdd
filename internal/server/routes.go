package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/danmuck/skyctl/internal/action"
	"github.com/danmuck/skyctl/internal/link"
	"github.com/danmuck/skyctl/internal/protocol"
	"github.com/danmuck/skyctl/internal/uav"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type eventView struct {
	Type    string    `json:"type"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

type calibrationView struct {
	BoardType          uint8      `json:"board_type"`
	GyroOffset         [3]float32 `json:"gyro_offset"`
	AccelCalib         [3]float32 `json:"accel_calib"`
	MagnetSoft         [9]float32 `json:"magnet_soft"`
	MagnetHard         [3]float32 `json:"magnet_hard"`
	AltimeterSetting   float32    `json:"altimeter_setting"`
	TemperatureSetting float32    `json:"temperature_setting"`
	CRC                uint32     `json:"crc"`
	ReceivedAt         time.Time  `json:"received_at"`
}

type statusView struct {
	Status          string           `json:"status"`
	Busy            bool             `json:"busy"`
	LastEvent       *eventView       `json:"last_event,omitempty"`
	Calibration     *calibrationView `json:"calibration,omitempty"`
	NonStaticCount  int              `json:"non_static_count"`
	ControlDataFreq float64          `json:"control_data_freq"`
	History         []eventView      `json:"history"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": ServiceName,
			"version": Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/uav", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.status())
	})

	s.router.POST("/uav/connect", func(c *gin.Context) {
		if s.connector == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrNoConnector.Error()})
			return
		}
		a, err := s.connector.Connect(s.cfg.Handshake)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, link.ErrActionInProgress) || errors.Is(err, action.ErrAttemptInFlight) {
				status = http.StatusConflict
			} else if errors.Is(err, link.ErrLinkClosed) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{
			"attempt": a.AttemptID(),
			"state":   a.State(),
		})
	})
}

func (s *Server) status() statusView {
	snap := s.manager.Snapshot()
	out := statusView{
		Status:          string(snap.Status),
		NonStaticCount:  snap.NonStaticCount,
		ControlDataFreq: s.manager.ControlDataSendingFreq(),
		History:         make([]eventView, 0, len(snap.History)),
	}
	if s.connector != nil {
		out.Busy = s.connector.Busy()
	}
	if snap.LastEvent != nil {
		ev := viewEvent(*snap.LastEvent)
		out.LastEvent = &ev
	}
	if snap.Calibration != nil {
		cal := viewCalibration(*snap.Calibration, snap.CalibrationAt)
		out.Calibration = &cal
	}
	for _, ev := range snap.History {
		out.History = append(out.History, viewEvent(ev))
	}
	return out
}

func viewEvent(ev uav.Event) eventView {
	return eventView{Type: ev.Type.String(), Message: ev.Message, At: ev.At}
}

func viewCalibration(cal protocol.CalibrationSettings, at time.Time) calibrationView {
	return calibrationView{
		BoardType:          cal.BoardType,
		GyroOffset:         cal.GyroOffset,
		AccelCalib:         cal.AccelCalib,
		MagnetSoft:         cal.MagnetSoft,
		MagnetHard:         cal.MagnetHard,
		AltimeterSetting:   cal.AltimeterSetting,
		TemperatureSetting: cal.TemperatureSetting,
		CRC:                cal.CRC,
		ReceivedAt:         at,
	}
}
