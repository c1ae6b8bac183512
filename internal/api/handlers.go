package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/roach88/muezzin/internal/control"
)

func (s *Server) status(c *gin.Context) {
	snap, err := s.ctrl.Snapshot(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) times(c *gin.Context) {
	date := time.Now().In(s.loc)
	if raw := c.Query("date"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, s.loc)
		if err != nil {
			s.fail(c, fmt.Errorf("%w: date %q: want YYYY-MM-DD", control.ErrInvalidCommand, raw))
			return
		}
		date = d
	}
	times, err := s.ctrl.Times(c.Request.Context(), date)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, times)
}

func (s *Server) play(c *gin.Context) {
	cmd := control.Command{Action: control.ActionPlay}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&cmd); err != nil {
			s.fail(c, fmt.Errorf("%w: %v", control.ErrInvalidCommand, err))
			return
		}
		cmd.Action = control.ActionPlay
	}
	s.dispatch(c, cmd)
}

// interrupt takes ?permanent=true for a permanent focus loss.
func (s *Server) interrupt(c *gin.Context) {
	s.dispatch(c, control.Command{Action: control.ActionInterrupt, Permanent: c.Query("permanent") == "true"})
}

func (s *Server) action(a control.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dispatch(c, control.Command{Action: a})
	}
}

func (s *Server) dispatch(c *gin.Context, cmd control.Command) {
	if err := cmd.Validate(); err != nil {
		s.fail(c, err)
		return
	}
	if err := s.ctrl.Dispatch(c.Request.Context(), cmd); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"action": cmd.Action, "ok": true})
}
