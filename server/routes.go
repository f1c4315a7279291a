package server

import (
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-interaction/types"
	"github.com/saiset-co/sai-interaction/utils"
)

func (s *Server) route(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch path {
	case "/health":
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleHealth(ctx)
		return
	case "/metrics":
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleMetrics(ctx)
		return
	case "/api/interactions":
		if method != fasthttp.MethodPost {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleInteraction(ctx)
		return
	case "/api/sessions":
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleSessionList(ctx)
		return
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(segments) == 3 && segments[0] == "api" && segments[1] == "products":
		productID := segments[2]
		switch method {
		case fasthttp.MethodGet:
			s.handleProductGet(ctx, productID)
		case fasthttp.MethodPut:
			s.handleProductUpdate(ctx, productID)
		default:
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		}
	case len(segments) == 4 && segments[0] == "api" && segments[1] == "users" && segments[3] == "recent":
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleRecentProducts(ctx, segments[2])
	case len(segments) == 4 && segments[0] == "api" && segments[1] == "users" && segments[3] == "activities":
		if method != fasthttp.MethodGet {
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
			return
		}
		s.handleUserActivities(ctx, segments[2])
	case len(segments) == 3 && segments[0] == "api" && segments[1] == "sessions":
		sessionKey := segments[2]
		switch method {
		case fasthttp.MethodPost:
			s.handleSessionSet(ctx, sessionKey)
		case fasthttp.MethodPatch:
			s.handleSessionUpdateField(ctx, sessionKey)
		case fasthttp.MethodDelete:
			s.handleSessionDelete(ctx, sessionKey)
		default:
			s.writeError(ctx, fasthttp.StatusMethodNotAllowed, "method not allowed")
		}
	default:
		s.writeError(ctx, fasthttp.StatusNotFound, "not found")
	}
}

func (s *Server) handleHealth(ctx *fasthttp.RequestCtx) {
	report := s.deps.Health.Check(ctx)

	status := fasthttp.StatusOK
	if report.Status == types.StatusUnhealthy {
		status = fasthttp.StatusServiceUnavailable
	}

	s.writeJSON(ctx, status, report)
}

func (s *Server) handleMetrics(ctx *fasthttp.RequestCtx) {
	if s.deps.Metrics == nil {
		s.writeError(ctx, fasthttp.StatusNotFound, "metrics disabled")
		return
	}

	s.deps.Metrics.Handler()(ctx)
}

func (s *Server) handleProductGet(ctx *fasthttp.RequestCtx, productID string) {
	doc, err := s.deps.Catalog.Get(ctx, productID)
	if err != nil {
		if types.IsError(err, types.ErrProductNotFound) {
			s.writeError(ctx, fasthttp.StatusNotFound, "product not found")
			return
		}

		s.logger.Error("Failed to load product",
			zap.String("product_id", productID),
			zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "failed to load product")
		return
	}

	s.writeJSON(ctx, fasthttp.StatusOK, doc)
}

func (s *Server) handleProductUpdate(ctx *fasthttp.RequestCtx, productID string) {
	var doc types.Document
	if err := utils.Unmarshal(ctx.PostBody(), &doc); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.deps.Records.Update(ctx, s.collection, productID, doc); err != nil {
		if types.IsError(err, types.ErrRecordNotFound) {
			s.writeError(ctx, fasthttp.StatusNotFound, "product not found")
			return
		}

		s.logger.Error("Failed to update product",
			zap.String("product_id", productID),
			zap.Error(err))
		s.writeError(ctx, fasthttp.StatusInternalServerError, "failed to update product")
		return
	}

	// Stale cache entries must not outlive a successful write.
	if err := s.deps.Catalog.Invalidate(ctx, productID); err != nil {
		s.logger.Warn("Failed to invalidate product cache",
			zap.String("product_id", productID),
			zap.Error(err))
	}

	s.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"id":     productID,
		"status": "updated",
	})
}

func (s *Server) handleInteraction(ctx *fasthttp.RequestCtx) {
	if s.deps.Publisher == nil {
		s.writeError(ctx, fasthttp.StatusServiceUnavailable, "interaction pipeline disabled")
		return
	}

	var event types.InteractionEvent
	if err := utils.Unmarshal(ctx.PostBody(), &event); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.deps.Publisher.Publish(event); err != nil {
		if types.IsError(err, types.ErrEventInvalid) {
			s.writeError(ctx, fasthttp.StatusBadRequest, err.Error())
			return
		}

		s.writeError(ctx, fasthttp.StatusServiceUnavailable, "interaction pipeline unavailable")
		return
	}

	s.writeJSON(ctx, fasthttp.StatusAccepted, map[string]interface{}{
		"status": "accepted",
	})
}

func (s *Server) handleRecentProducts(ctx *fasthttp.RequestCtx, userID string) {
	products := s.deps.Recency.ListRecent(ctx, userID)

	s.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"products": products,
	})
}

func (s *Server) handleUserActivities(ctx *fasthttp.RequestCtx, userID string) {
	activities := s.deps.Activity.ListByUser(ctx, userID)

	s.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"user_id":    userID,
		"activities": activities,
	})
}

func (s *Server) handleSessionList(ctx *fasthttp.RequestCtx) {
	prefix := string(ctx.QueryArgs().Peek("prefix"))

	sessions := s.deps.Sessions.GetAllWithPrefix(prefix)

	s.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

func (s *Server) handleSessionSet(ctx *fasthttp.RequestCtx, sessionKey string) {
	var fields map[string]interface{}
	if err := utils.Unmarshal(ctx.PostBody(), &fields); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	s.deps.Sessions.Set(sessionKey, fields)

	s.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"key":    sessionKey,
		"status": "stored",
	})
}

type sessionFieldUpdate struct {
	Field string      `json:"field"`
	Value interface{} `json:"value"`
}

func (s *Server) handleSessionUpdateField(ctx *fasthttp.RequestCtx, sessionKey string) {
	var update sessionFieldUpdate
	if err := utils.Unmarshal(ctx.PostBody(), &update); err != nil {
		s.writeError(ctx, fasthttp.StatusBadRequest, "invalid request body")
		return
	}

	if update.Field == "" {
		s.writeError(ctx, fasthttp.StatusBadRequest, "field is required")
		return
	}

	if err := s.deps.Sessions.UpdateField(sessionKey, update.Field, update.Value); err != nil {
		if types.IsError(err, types.ErrSessionNotFound) {
			s.writeError(ctx, fasthttp.StatusNotFound, "session not found")
			return
		}

		s.writeError(ctx, fasthttp.StatusInternalServerError, "failed to update session")
		return
	}

	s.writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"key":    sessionKey,
		"status": "updated",
	})
}

func (s *Server) handleSessionDelete(ctx *fasthttp.RequestCtx, sessionKey string) {
	s.deps.Sessions.Delete(sessionKey)

	ctx.SetStatusCode(fasthttp.StatusNoContent)
}
