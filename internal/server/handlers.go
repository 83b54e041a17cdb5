package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/quizairium/quizairium/internal/domain"
	"github.com/quizairium/quizairium/internal/errors"
	"github.com/quizairium/quizairium/internal/leaderboard"
)

// REST views of the leaderboard and archive. Game control stays on the chat
// transports; HTTP is read-only.

func (s *Server) handleGetLeaderboard(c *gin.Context) {
	if s.service.leaderboard == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"message": "leaderboard requires redis"})
		return
	}

	l, err := s.service.leaderboard.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		Chat: domain.ChatID(c.Param("chat")),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, l)
}

func (s *Server) handleGetPlayerStats(c *gin.Context) {
	if s.service.archive == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"message": "stats require postgres"})
		return
	}

	stats, found, err := s.service.archive.Stats(c.Request.Context(),
		domain.ChatID(c.Param("chat")), c.Param("player"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !found {
		abortWithError(c, errors.New(errors.CodeNotFound,
			errors.WithMessagef("no finished games for player %s", c.Param("player"))))
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleGetTopPlayers(c *gin.Context) {
	if s.service.archive == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"message": "stats require postgres"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if err != nil || limit <= 0 {
		abortWithError(c, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid limit %q", c.Query("limit"))))
		return
	}

	top, err := s.service.archive.TopPlayers(c.Request.Context(), domain.ChatID(c.Param("chat")), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"chat": c.Param("chat"), "players": top})
}

func abortWithError(c *gin.Context, err error) {
	e := errors.Convert(err)
	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
