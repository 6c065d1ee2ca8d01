package ws

import (
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/inkboard/inkboard/internal/service"
)

// ServeWS returns an HTTP handler that authenticates and upgrades to
// WebSocket. The bearer credential rides a ?token= query param since
// browser WebSocket clients cannot set headers. A connection that fails
// the handshake is refused before any room event is accepted.
func ServeWS(hub *Hub, verifier *service.IdentityVerifier) http.HandlerFunc {
	log := logrus.WithField("component", "ws_handler")

	return func(w http.ResponseWriter, r *http.Request) {
		user, err := verifier.Verify(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrUnauthenticated):
				http.Error(w, "missing token", http.StatusUnauthorized)
			case errors.Is(err, service.ErrInvalidCredential):
				http.Error(w, "invalid token", http.StatusUnauthorized)
			case errors.Is(err, service.ErrUnknownIdentity):
				http.Error(w, "unknown identity", http.StatusForbidden)
			default:
				log.WithError(err).Error("identity verification failed")
				http.Error(w, "identity store unavailable", http.StatusServiceUnavailable)
			}
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true, // origin is checked by the fronting proxy
		})
		if err != nil {
			log.WithError(err).Warn("websocket accept error")
			return
		}

		client := NewClient(hub, conn, user)
		client.log.Info("connection established")

		go client.WritePump()
		go client.ReadPump()
	}
}
