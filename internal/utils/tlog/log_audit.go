package tlog

import "github.com/gin-gonic/gin"

func AuditGrant(c *gin.Context, owner, clientID, scope string) {
	Audit.Info().
		Str("event", "grant").
		Str("result", "success").
		Str("owner", owner).
		Str("client_id", clientID).
		Str("scope", scope).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditExchange(c *gin.Context, clientID, grantType string, success bool) {
	event := Audit.Info()
	result := "success"
	if !success {
		event = Audit.Warn()
		result = "failure"
	}
	event.
		Str("event", "exchange").
		Str("result", result).
		Str("client_id", clientID).
		Str("grant_type", grantType).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditClientAuthFailure(c *gin.Context, clientID, reason string) {
	Audit.Warn().
		Str("event", "client_auth").
		Str("result", "failure").
		Str("client_id", clientID).
		Str("reason", reason).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditRevoke(c *gin.Context, owner, clientID string, count int64) {
	Audit.Info().
		Str("event", "revoke").
		Str("result", "success").
		Str("owner", owner).
		Str("client_id", clientID).
		Int64("count", count).
		Str("ip", c.ClientIP()).
		Send()
}

func AuditConsent(c *gin.Context, owner, clientID string, approved bool) {
	event := Audit.Info()
	result := "approved"
	if !approved {
		event = Audit.Warn()
		result = "denied"
	}
	event.
		Str("event", "consent").
		Str("result", result).
		Str("owner", owner).
		Str("client_id", clientID).
		Str("ip", c.ClientIP()).
		Send()
}
