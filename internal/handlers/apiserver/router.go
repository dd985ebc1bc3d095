package apiserver

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"socialnet/internal/auth"
	"socialnet/internal/config"
	"socialnet/internal/middleware"
	"socialnet/internal/services"
)

// RouterDeps 汇总构建路由所需的服务。
type RouterDeps struct {
	Config    config.Config
	Auth      services.AuthService
	Users     services.UserService
	Relations services.RelationService
	Messages  services.MessageService
	Blacklist auth.TokenBlacklist
	Log       *zap.Logger
}

// Health 是存活检查。
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter 注册全部 HTTP 路由。/auth 与 /healthz 公开，其余位于 /api/v1 下并需要 Bearer Token。
func NewRouter(deps RouterDeps) *mux.Router {
	log := deps.Log
	authHandler := NewAuthHandler(deps.Auth, log.Named("auth-handler"))
	userHandler := NewUserHandler(deps.Users, log.Named("user-handler"))
	uploadHandler := NewUploadHandler(deps.Users, deps.Config.Storage, log.Named("upload-handler"))
	relationHandler := NewRelationHandler(deps.Relations, log.Named("relation-handler"))
	messageHandler := NewMessageHandler(deps.Messages, log.Named("message-handler"))

	r := mux.NewRouter()
	r.HandleFunc("/healthz", Health).Methods(http.MethodGet)

	// 认证路由
	authRouter := r.PathPrefix("/auth").Subrouter()
	authRouter.HandleFunc("/register", authHandler.Register).Methods(http.MethodPost)
	authRouter.HandleFunc("/login", authHandler.Login).Methods(http.MethodPost)

	apiRouter := r.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(middleware.RequestLogger(log.Named("http")))
	apiRouter.Use(middleware.AuthMiddleware(deps.Config.Auth.JWTSecretKey, deps.Blacklist, log.Named("auth-mw")))

	apiRouter.HandleFunc("/auth/logout", authHandler.Logout).Methods(http.MethodPost)

	// 用户路由
	apiRouter.HandleFunc("/users/me", userHandler.GetMe).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/me", userHandler.UpdateMe).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/me/password", userHandler.ChangePassword).Methods(http.MethodPut)
	apiRouter.HandleFunc("/users/me/picture", uploadHandler.ChangeProfilePicture).Methods(http.MethodPost)
	apiRouter.HandleFunc("/users/search", userHandler.SearchUsers).Methods(http.MethodGet)
	apiRouter.HandleFunc("/users/{userID:[0-9]+}", userHandler.GetUser).Methods(http.MethodGet)

	// 好友关系路由
	relationRouter := apiRouter.PathPrefix("/relations").Subrouter()
	relationRouter.HandleFunc("", relationHandler.Create).Methods(http.MethodPost)
	relationRouter.HandleFunc("/accept", relationHandler.Accept).Methods(http.MethodPost)
	relationRouter.HandleFunc("/{relationID:[0-9]+}/accept", relationHandler.AcceptByID).Methods(http.MethodPost)
	relationRouter.HandleFunc("/{relationID:[0-9]+}/decline", relationHandler.Decline).Methods(http.MethodPost)
	relationRouter.HandleFunc("/users", relationHandler.ListUsers).Methods(http.MethodGet)
	relationRouter.HandleFunc("/friends", relationHandler.ListFriends).Methods(http.MethodGet)
	relationRouter.HandleFunc("/mutual/{otherUserID:[0-9]+}", relationHandler.MutualCount).Methods(http.MethodGet)
	relationRouter.HandleFunc("/activity", relationHandler.ListActivity).Methods(http.MethodGet)

	// 私信路由
	messageRouter := apiRouter.PathPrefix("/messages").Subrouter()
	messageRouter.HandleFunc("", messageHandler.Send).Methods(http.MethodPost)
	messageRouter.HandleFunc("/with/{otherUserID:[0-9]+}", messageHandler.History).Methods(http.MethodGet)
	messageRouter.HandleFunc("/latest/{otherUserID:[0-9]+}", messageHandler.Latest).Methods(http.MethodGet)
	messageRouter.HandleFunc("/{messageID:[0-9]+}", messageHandler.Get).Methods(http.MethodGet)
	messageRouter.HandleFunc("/{messageID:[0-9]+}", messageHandler.Edit).Methods(http.MethodPut)

	// 静态文件服务路由，用于访问上传的头像
	if deps.Config.Storage.Type == "local" && strings.HasPrefix(deps.Config.Storage.BaseURL, "/") {
		staticPath := strings.TrimSuffix(deps.Config.Storage.BaseURL, "/") + "/"
		localDir := http.Dir(deps.Config.Storage.LocalPath)
		r.PathPrefix(staticPath).Handler(http.StripPrefix(staticPath, http.FileServer(localDir)))
	}

	return r
}
