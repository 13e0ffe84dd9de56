package mockapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/unisrv/unisrv-cli/pkg/metrics"
	"github.com/unisrv/unisrv-cli/pkg/system"
	"github.com/unisrv/unisrv-cli/pkg/unisrv/client"
)

const authHeaderKey = "Authorization"

type refreshSession struct {
	userID    string
	token     string
	expiresAt time.Time
}

type refreshBody struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

// UserID returns the stable user id assigned to a username.
func UserID(username string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("unisrv-user:"+username)).String()
}

func (s *Server) login(c *gin.Context) {
	log := system.GetReqLogger(c, s.log)
	username, password, ok := c.Request.BasicAuth()
	if !ok {
		metrics.LoginAttempts.WithLabelValues("missing_credentials").Inc()
		abortWithReason(c, http.StatusUnauthorized, "basic credentials required")
		return
	}
	s.mu.Lock()
	expected, known := s.users[username]
	s.mu.Unlock()
	if !known || expected != password {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		log.Infow("Rejected login", "username", username)
		abortWithReason(c, http.StatusUnauthorized, "invalid username or password")
		return
	}

	resp, err := s.issueSession(UserID(username))
	if err != nil {
		log.Errorw("Failed to issue session", "error", err)
		abortWithReason(c, http.StatusInternalServerError, "failed to issue session")
		return
	}
	metrics.LoginAttempts.WithLabelValues("success").Inc()
	log.Infow("User logged in", "username", username, "userID", resp.UserID)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) refreshSession(c *gin.Context) {
	log := system.GetReqLogger(c, s.log)
	var body refreshBody
	if err := c.ShouldBindJSON(&body); err != nil {
		metrics.SessionRefreshes.WithLabelValues("malformed").Inc()
		abortWithReason(c, http.StatusBadRequest, "invalid refresh request: %v", err)
		return
	}
	id, err := uuid.Parse(body.ID)
	bearer := strings.TrimPrefix(c.GetHeader(authHeaderKey), "Bearer ")
	if err != nil || bearer != body.Token {
		metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		abortWithReason(c, http.StatusUnauthorized, "invalid refresh session")
		return
	}

	now := time.Now()
	s.mu.Lock()
	session, found := s.refresh[id]
	valid := found && session.token == body.Token && now.Before(session.expiresAt)
	if found && !valid {
		delete(s.refresh, id)
	}
	if valid {
		// tokens rotate, the old one is only good once
		delete(s.refresh, id)
	}
	s.mu.Unlock()
	if !valid {
		metrics.SessionRefreshes.WithLabelValues("rejected").Inc()
		log.Infow("Rejected refresh", "session", id)
		abortWithReason(c, http.StatusUnauthorized, "refresh session expired or revoked")
		return
	}

	resp, err := s.issueSession(session.userID)
	if err != nil {
		log.Errorw("Failed to issue session", "error", err)
		abortWithReason(c, http.StatusInternalServerError, "failed to issue session")
		return
	}
	metrics.SessionRefreshes.WithLabelValues("success").Inc()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) issueSession(userID string) (client.LoginResponse, error) {
	now := time.Now()
	tokenID := uuid.NewString()
	expiresAt := now.Add(s.opts.AccessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.opts.SigningKey)
	if err != nil {
		return client.LoginResponse{}, err
	}

	session := &refreshSession{
		userID:    userID,
		token:     uuid.NewString() + uuid.NewString(),
		expiresAt: now.Add(s.opts.RefreshTTL),
	}
	sessionID := uuid.New()

	s.mu.Lock()
	s.access[tokenID] = userID
	s.refresh[sessionID] = session
	s.mu.Unlock()

	return client.LoginResponse{
		UserID:           userID,
		Token:            signed,
		ExpiresAt:        client.Timestamp{Time: expiresAt.UTC()},
		RefreshSessionID: sessionID.String(),
		RefreshToken:     session.token,
		RefreshExpiresAt: client.Timestamp{Time: session.expiresAt.UTC()},
	}, nil
}

func (s *Server) authMiddleware(c *gin.Context) {
	authHeader := c.GetHeader(authHeaderKey)
	// keep the token out of request logs
	c.Request.Header.Del(authHeaderKey)
	if !strings.HasPrefix(authHeader, "Bearer ") {
		abortWithReason(c, http.StatusUnauthorized, "no Bearer token provided in Authorization header")
		return
	}
	userID, err := s.verifyAccessToken(authHeader[len("Bearer "):])
	if err != nil {
		system.GetReqLogger(c, s.log).Debugw("Rejected access token", "error", err)
		abortWithReason(c, http.StatusUnauthorized, "%v", err)
		return
	}
	c.Set(system.UserIDKey, userID)
	c.Set(system.ReqLoggerKey, system.EnrichReqLoggerWithUser(c, system.GetReqLogger(c, s.log)))
	c.Next()
}

func (s *Server) verifyAccessToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.opts.SigningKey, nil
	})
	if err != nil {
		var validation *jwt.ValidationError
		if errors.As(err, &validation) && validation.Errors&jwt.ValidationErrorExpired != 0 {
			return "", errors.New("access token expired")
		}
		return "", errors.New("invalid access token")
	}
	s.mu.Lock()
	userID, active := s.access[claims.ID]
	s.mu.Unlock()
	if !active || userID != claims.Subject {
		return "", errors.New("access token revoked")
	}
	return userID, nil
}

func currentUser(c *gin.Context) string {
	return c.GetString(system.UserIDKey)
}
