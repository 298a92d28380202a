package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const progressWriteTimeout = 10 * time.Second

// streamProgress upgrades to a WebSocket and relays the run's checkpoint
// snapshots until the run reaches a terminal state.
func (s *Server) streamProgress(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{"message": "invalid simulation id"}})
		return
	}
	run, ok := s.svc.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"message": "unknown simulation id"}})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("progress websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	for snapshot := range run.Progress() {
		conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
		if err := conn.WriteJSON(snapshot); err != nil {
			s.logger.Debug("progress client dropped", zap.String("simulation_id", id.String()), zap.Error(err))
			return
		}
	}

	// Final frame carries the terminal status.
	conn.SetWriteDeadline(time.Now().Add(progressWriteTimeout))
	final := gin.H{"simulation_id": id, "status": run.Status()}
	if err := run.Err(); err != nil {
		final["error"] = err.Error()
	}
	_ = conn.WriteJSON(final)
}
