package auth

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"TH_treasure_hunt/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	initdata "github.com/telegram-mini-apps/init-data-golang"
	"go.uber.org/zap"
)

const (
	expTime = 24 * time.Hour

	participantKey = "participant"
	initDataQuery  = "init_data"
)

type TelegramAuth struct {
	botToken  string
	debugMode bool
}

func NewTelegramAuth(botToken string, debugMode bool) *TelegramAuth {
	return &TelegramAuth{
		botToken:  botToken,
		debugMode: debugMode,
	}
}

// TelegramAuthMiddleware identifies the participant from Telegram init data
// sent as "Authorization: Telegram <init data>". Websocket clients that cannot
// set headers pass the init data in the init_data query parameter instead.
func (t *TelegramAuth) TelegramAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logger.Logger()

		initData, ok := t.initData(c)
		if !ok {
			log.Info("missing or malformed authorization")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header is required"})
			return
		}

		if !t.debugMode {
			if err := initdata.Validate(initData, t.botToken, expTime); err != nil {
				log.Info("invalid telegram init data", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram auth data"})
				return
			}
		}

		telegramUserData, err := ExtractTelegramData(initData)
		if err != nil {
			log.Info("failed to extract telegram data", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid telegram data"})
			return
		}

		c.Set(participantKey, telegramUserData)
		c.Next()
	}
}

func (t *TelegramAuth) initData(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		q := c.Query(initDataQuery)
		return q, q != ""
	}
	if !strings.HasPrefix(authHeader, "Telegram ") {
		return "", false
	}
	return strings.TrimPrefix(authHeader, "Telegram "), true
}

type TelegramUserData struct {
	ID       int64
	Username string
	AuthDate time.Time
}

// ParticipantID is the id progress is stored under.
func (u *TelegramUserData) ParticipantID() string {
	return strconv.FormatInt(u.ID, 10)
}

// Participant returns the caller set by TelegramAuthMiddleware.
func Participant(c *gin.Context) (*TelegramUserData, bool) {
	v, exists := c.Get(participantKey)
	if !exists {
		return nil, false
	}
	user, ok := v.(*TelegramUserData)
	return user, ok
}

func ExtractTelegramData(initData string) (*TelegramUserData, error) {
	values, err := url.ParseQuery(initData)
	if err != nil {
		return nil, err
	}

	authDateUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, err
	}

	authDate := time.Unix(authDateUnix, 0)

	var userData struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}

	if err := json.Unmarshal([]byte(values.Get("user")), &userData); err != nil {
		return nil, err
	}

	return &TelegramUserData{
		ID:       userData.ID,
		Username: userData.Username,
		AuthDate: authDate,
	}, nil
}
