// Package http exposes the publisher's control API.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Publisher/internal/app/stats"
	"github.com/dkeye/Publisher/internal/config"
	"github.com/dkeye/Publisher/internal/domain"
)

// Publisher is what the control API drives.
type Publisher interface {
	Start() bool
	Stop() bool
	State() domain.SessionState
	LastError() string
	DroppedFrames() uint64
	Stats() stats.Snapshot
	GetStats(ctx context.Context) (stats.Snapshot, error)
	StatsList() string
}

const (
	startLimit    = 5
	startInterval = time.Minute
	statsTimeout  = 5 * time.Second
)

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

type stateResponse struct {
	State         string `json:"state"`
	LastError     string `json:"last_error,omitempty"`
	DroppedFrames uint64 `json:"dropped_frames"`
	Starts        int    `json:"starts"`
}

// SetupRouter builds the control API. A nil limiter allows five starts per minute per client.
func SetupRouter(cfg *config.Config, pub Publisher, limiter *StartLimiter) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	if limiter == nil {
		limiter = NewStartLimiter(startLimit, startInterval)
	}

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PublisherSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	api := r.Group("/api")

	state := func(c *gin.Context) stateResponse {
		starts, _ := sessions.Default(c).Get("starts").(int)
		return stateResponse{
			State:         pub.State().String(),
			LastError:     pub.LastError(),
			DroppedFrames: pub.DroppedFrames(),
			Starts:        starts,
		}
	}

	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, state(c))
	})

	// GET /api/stats?refresh=1 collects fresh numbers instead of the last periodic snapshot.
	api.GET("/stats", func(c *gin.Context) {
		if c.Query("refresh") == "" {
			c.JSON(http.StatusOK, pub.Stats())
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), statsTimeout)
		defer cancel()
		snap, err := pub.GetStats(ctx)
		if err != nil {
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, snap)
	})

	api.GET("/stats/list", func(c *gin.Context) {
		c.String(http.StatusOK, pub.StatsList())
	})

	api.POST("/start", func(c *gin.Context) {
		token := c.GetString("client_token")
		if !limiter.Allow(token) {
			log.Warn().Str("module", "adapters.http").Str("sid", token).Msg("start rate limited")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many start requests"})
			return
		}

		sess := sessions.Default(c)
		starts, _ := sess.Get("starts").(int)
		sess.Set("starts", starts+1)
		if err := sess.Save(); err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
		}

		log.Info().Str("module", "adapters.http").Str("sid", token).Msg("start requested")
		if !pub.Start() {
			c.JSON(http.StatusConflict, state(c))
			return
		}
		c.JSON(http.StatusAccepted, state(c))
	})

	api.POST("/stop", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("stop requested")
		stopped := pub.Stop()
		c.JSON(http.StatusOK, gin.H{"stopped": stopped, "state": pub.State().String()})
	})

	return r
}
