package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/intakeplan/internal/db"
	"github.com/intakeplan/internal/service"
)

const (
	sessionUserKey = "user_id"
	sessionNameKey = "username"
	currentUserKey = "__current_user"
)

type loginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login 校验账号并签发 Bearer 令牌，同时写入会话
func (a *API) Login(c *gin.Context) {
	var payload loginPayload
	if !bindJSON(c, &payload, "로그인 요청 형식이 올바르지 않습니다") {
		return
	}

	token, err := a.auth.Login(payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			respondError(c, http.StatusUnauthorized, "아이디 또는 비밀번호가 올바르지 않습니다")
			return
		}
		respondError(c, http.StatusInternalServerError, "로그인에 실패했습니다")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserKey, token.UserID)
	session.Set(sessionNameKey, strings.TrimSpace(payload.Username))
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "세션 저장에 실패했습니다")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":     token.Token,
		"expiresAt": token.ExpiresAt,
	})
}

// Logout 吊销当前令牌并清空会话
func (a *API) Logout(c *gin.Context) {
	if raw := bearerToken(c); raw != "" {
		if err := a.auth.Revoke(raw); err != nil {
			respondError(c, http.StatusInternalServerError, "로그아웃에 실패했습니다")
			return
		}
	}

	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "로그아웃에 실패했습니다")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loggedOut": true})
}

// AuthRequired 接受 Bearer 令牌或会话，二者皆无时返回 401
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			user, err := a.auth.Verify(raw)
			if err != nil {
				respondError(c, http.StatusUnauthorized, "로그인이 필요합니다")
				c.Abort()
				return
			}
			c.Set(currentUserKey, user)
			c.Next()
			return
		}

		session := sessions.Default(c)
		userID, ok := session.Get(sessionUserKey).(uint)
		if !ok {
			respondError(c, http.StatusUnauthorized, "로그인이 필요합니다")
			c.Abort()
			return
		}
		user, err := a.auth.User(userID)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "로그인이 필요합니다")
			c.Abort()
			return
		}
		c.Set(currentUserKey, user)
		c.Next()
	}
}

// CurrentUser 返回经 Bearer 令牌或会话认证的用户
func CurrentUser(c *gin.Context) (*db.User, bool) {
	value, exists := c.Get(currentUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*db.User)
	return user, ok
}

// currentUserID 取出当前用户 ID，未认证时直接写入 401
func currentUserID(c *gin.Context) (uint, bool) {
	user, ok := CurrentUser(c)
	if !ok || user == nil {
		respondError(c, http.StatusUnauthorized, "로그인이 필요합니다")
		return 0, false
	}
	return user.ID, true
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
