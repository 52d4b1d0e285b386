// Package webhook receives Meta Cloud API callbacks: the GET subscription
// handshake and POSTed message batches. Admission runs in a strict order per
// message (reserve pool capacity, record the message id, enqueue) so that an
// overload answer never burns a message id and the provider's retry can still
// get through once load drops.
package webhook

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yalahq/go-whatsapp-guestflow/internal/dedup"
	"github.com/yalahq/go-whatsapp-guestflow/internal/worker"
)

// webhook payloads are small; anything bigger is not a message batch
const maxBodyBytes = 1 << 20

// HandlerConfig groups dependencies for the webhook endpoints.
type HandlerConfig struct {
	Pool             *worker.Pool
	Dedup            dedup.Store
	DedupTTL         time.Duration
	VerifyToken      string
	AppSecret        string
	VerifySignatures bool
	Logger           *logrus.Logger
}

// RegisterMetaRoutes registers the Cloud API webhook endpoints.
func RegisterMetaRoutes(r *gin.Engine, cfg HandlerConfig) {
	log := cfg.Logger
	if log == nil {
		log = logrus.New()
	}

	r.GET("/webhook", func(c *gin.Context) {
		mode := c.Query("hub.mode")
		token := c.Query("hub.verify_token")
		if mode == "subscribe" && cfg.VerifyToken != "" && token == cfg.VerifyToken {
			c.String(http.StatusOK, c.Query("hub.challenge"))
			return
		}
		log.WithField("mode", mode).Warn("webhook verification rejected")
		c.JSON(http.StatusForbidden, gin.H{"error": "verification_failed"})
	})

	r.POST("/webhook", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable_body"})
			return
		}

		if cfg.VerifySignatures && !ValidSignature(body, c.GetHeader(signatureHeader), cfg.AppSecret) {
			log.Warn("webhook signature rejected")
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid_signature"})
			return
		}

		var env Envelope
		if err := json.Unmarshal(body, &env); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
			return
		}

		messages := ExtractMessages(env)
		if len(messages) == 0 {
			// delivery and read receipts land here
			c.JSON(http.StatusOK, gin.H{"status": "ignored"})
			return
		}

		accepted, duplicates := 0, 0
		for _, msg := range messages {
			// Capacity before dedup: once RecordIfNew returns true the message
			// id is spent, so there must already be room to process it.
			if !cfg.Pool.TryReserve() {
				log.WithField("message_id", msg.MessageID).Warn("pool saturated, asking provider to retry")
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "overloaded", "accepted": accepted})
				return
			}
			fresh, err := cfg.Dedup.RecordIfNew(c.Request.Context(), msg.MessageID, cfg.DedupTTL)
			if err != nil {
				cfg.Pool.Release()
				log.WithField("message_id", msg.MessageID).WithError(err).Error("dedup check failed")
				c.JSON(http.StatusInternalServerError, gin.H{"error": "dedup_unavailable"})
				return
			}
			if !fresh {
				log.WithField("message_id", msg.MessageID).Info("duplicate delivery dropped")
				cfg.Pool.NoteDuplicate()
				duplicates++
				continue
			}

			cfg.Pool.Enqueue(worker.Task{
				ID:           uuid.NewString(),
				SubscriberID: msg.SubscriberID,
				MessageID:    msg.MessageID,
				Text:         msg.Text,
			})
			accepted++
		}

		c.JSON(http.StatusOK, gin.H{"status": "accepted", "accepted": accepted, "duplicates": duplicates})
	})
}
