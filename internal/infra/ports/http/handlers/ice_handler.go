package handlers

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pion/webrtc/v4"

	"github.com/campuslive/signaling/internal/application/config"
)

type IceHandler struct {
	cfg *config.Config

	now func() time.Time
}

func NewIceHandler(cfg *config.Config) *IceHandler {
	return &IceHandler{cfg: cfg, now: time.Now}
}

// IceServers hands the caller the ICE server list for its
// RTCPeerConnection: the configured STUN servers and, when coturn is
// configured, time-limited TURN credentials derived from the shared
// static-auth-secret.
func (h *IceHandler) IceServers(c echo.Context) error {
	servers := []webrtc.ICEServer{h.cfg.StunServer}

	if h.cfg.CoturnServer.Enabled() {
		expiration := h.now().Add(h.cfg.CoturnServer.CredentialTTL).Unix()
		username := fmt.Sprintf("%d", expiration)

		mac := hmac.New(sha1.New, []byte(h.cfg.CoturnServer.Secret))
		mac.Write([]byte(username))
		password := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		servers = append(servers, webrtc.ICEServer{
			URLs:       h.cfg.CoturnServer.URLs(),
			Username:   username,
			Credential: password,
		})
	}

	return c.JSON(http.StatusOK, servers)
}
