// Package http exposes the mirror endpoints: a read and a write route
// operating on the shared events document, plus a login route for issuing
// session tokens.
//
// Failures are reported inside the response envelope with a 200 status, so
// callers distinguish transport errors from application errors by shape.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/scoutpluse/scoutsync/internal/auth"
	"github.com/scoutpluse/scoutsync/internal/document"
	"github.com/scoutpluse/scoutsync/internal/errs"
	"github.com/scoutpluse/scoutsync/internal/model"
)

type response struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
	Error     any    `json:"error"`
}

type writeRequest struct {
	Token     string          `json:"token"`
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Server serves the mirror API over a shared document store.
type Server struct {
	docs   *document.FileStore
	token  string
	auth   *auth.Service
	log    *zap.Logger
	engine *gin.Engine
}

// New constructs the Server and its routes. auth may be nil, in which case
// only the shared-secret token is accepted and no login route is exposed.
func New(docs *document.FileStore, token string, authSvc *auth.Service, log *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{docs: docs, token: token, auth: authSvc, log: log}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.logging(), s.cors())
	engine.GET("/read", s.read)
	engine.HEAD("/read", s.head)
	engine.POST("/write", s.write)
	if authSvc != nil {
		engine.POST("/login", s.login)
	}
	s.engine = engine
	return s
}

// Handler returns the root handler for mounting on an http.Server.
func (s *Server) Handler() http.Handler { return s.engine }

func respond(c *gin.Context, success bool, data any, errMsg string) {
	var e any
	if errMsg != "" {
		e = errMsg
	}
	c.JSON(http.StatusOK, response{
		Success:   success,
		Timestamp: time.Now().Format(document.TimestampLayout),
		Data:      data,
		Error:     e,
	})
}

func (s *Server) logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

func (s *Server) cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}

// tokenValid accepts the shared secret or a verifiable session token.
func (s *Server) tokenValid(token string) bool {
	if token == s.token {
		return true
	}
	if s.auth != nil {
		if _, err := s.auth.Verify(token); err == nil {
			return true
		}
	}
	return false
}

func readToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func (s *Server) setLastModified(c *gin.Context) {
	if ts, ok := s.docs.ModTime(); ok {
		c.Header("Last-Modified", ts.UTC().Format(http.TimeFormat))
	}
}

// read returns the whole document. The token is optional here; if present
// it must be valid.
func (s *Server) read(c *gin.Context) {
	if t := readToken(c); t != "" && !s.tokenValid(t) {
		respond(c, false, nil, "Invalid security token")
		return
	}

	doc, err := s.docs.Load()
	if err != nil {
		s.log.Error("read data file", zap.Error(err))
		respond(c, false, nil, err.Error())
		return
	}
	s.setLastModified(c)
	respond(c, true, gin.H{
		"events":      doc.Events,
		"lastUpdated": doc.LastUpdated,
		"totalEvents": len(doc.Events),
		"readTime":    time.Now().Format(document.TimestampLayout),
	}, "")
}

// head serves the modification metadata without the body.
func (s *Server) head(c *gin.Context) {
	s.setLastModified(c)
	c.Status(http.StatusOK)
}

func (s *Server) write(c *gin.Context) {
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, false, nil, "Invalid JSON in request: "+err.Error())
		return
	}
	if !s.tokenValid(req.Token) {
		respond(c, false, nil, "Invalid or missing security token")
		return
	}
	op := req.Operation
	if op == "" {
		op = "update"
	}
	if len(req.Data) == 0 {
		respond(c, false, nil, "Missing data in request")
		return
	}

	var doc document.Document
	var err error
	switch op {
	case "update":
		doc, err = s.applyUpdate(req.Data)
	case "add":
		doc, err = s.applyAdd(req.Data)
	case "delete":
		doc, err = s.applyDelete(req.Data)
	default:
		respond(c, false, nil, "Invalid operation. Use: update, add, or delete")
		return
	}
	if err != nil {
		msg := err.Error()
		if errors.Is(err, errs.ErrEventNotFound) {
			msg = "Event not found"
		}
		respond(c, false, nil, msg)
		return
	}

	respond(c, true, gin.H{
		"operation":   op,
		"totalEvents": len(doc.Events),
		"lastUpdated": doc.LastUpdated,
	}, "")
}

func (s *Server) applyUpdate(raw json.RawMessage) (document.Document, error) {
	var data struct {
		Events []model.Event `json:"events"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.Events == nil {
		return document.Document{}, fmt.Errorf("invalid events data structure")
	}
	for i, e := range data.Events {
		if err := model.ValidateEvent(e); err != nil {
			return document.Document{}, fmt.Errorf("event %d validation failed: %s", i, err)
		}
	}
	return s.docs.Update(func(doc document.Document) (document.Document, error) {
		doc.Events = data.Events
		return doc, nil
	})
}

func (s *Server) applyAdd(raw json.RawMessage) (document.Document, error) {
	var e model.Event
	if err := json.Unmarshal(raw, &e); err != nil {
		return document.Document{}, fmt.Errorf("invalid event data: %s", err)
	}
	if err := model.ValidateEvent(e); err != nil {
		return document.Document{}, err
	}
	if e.ID == "" {
		uid, err := uuid.NewV4()
		if err != nil {
			return document.Document{}, err
		}
		e.ID = "event_" + uid.String()
	}
	now := time.Now().Format(document.TimestampLayout)
	e.CreatedAt = now
	e.UpdatedAt = now
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	return s.docs.Update(func(doc document.Document) (document.Document, error) {
		doc.Events = append(doc.Events, e)
		return doc, nil
	})
}

func (s *Server) applyDelete(raw json.RawMessage) (document.Document, error) {
	var data struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &data); err != nil || data.ID == "" {
		return document.Document{}, fmt.Errorf("event ID required for delete operation")
	}
	return s.docs.Update(func(doc document.Document) (document.Document, error) {
		kept := doc.Events[:0:0]
		for _, e := range doc.Events {
			if e.ID != data.ID {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(doc.Events) {
			return document.Document{}, errs.ErrEventNotFound
		}
		doc.Events = kept
		return doc, nil
	})
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond(c, false, nil, "Invalid JSON in request: "+err.Error())
		return
	}
	sess, err := s.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respond(c, false, nil, err.Error())
		return
	}
	respond(c, true, sess, "")
}
