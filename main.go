package main

import (
	"context"
	"log"
	"net"
	"os"
	"time"

	"HRProject/global"
	"HRProject/logger"
	mid "HRProject/middleware"
	attendance "HRProject/module/attendance"
	attservice "HRProject/module/attendance/service"
	chath "HRProject/module/chat"
	chatmodel "HRProject/module/chat/model"
	chatservice "HRProject/module/chat/service"
	leave "HRProject/module/leave"
	leaveservice "HRProject/module/leave/service"
	userh "HRProject/module/user"
	userservice "HRProject/module/user/service"
	gate "HRProject/service/chat"
	mgoSrv "HRProject/service/mgo"
	"HRProject/service/redisx"
	"HRProject/tools/safe"
	security "HRProject/tools/security"

	"github.com/gin-gonic/gin"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	if err := global.ConfigAll(cfgPath); err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	cfg := global.Config()

	// 等 Mongo 就绪再建索引/起服务
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err := mgoSrv.WaitReady(ctx, mgoSrv.Manager()); err != nil {
		log.Fatalf("mongo not ready: %v", err)
	}
	cancel()
	db := mgoSrv.GetDB()

	users := userservice.NewStore(db)
	msgs := chatservice.NewStore(db)
	att := attservice.NewStore(db)
	leaves := leaveservice.NewStore(db)

	idxCtx, idxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer idxCancel()
	if err := users.EnsureIndexes(idxCtx); err != nil {
		log.Fatalf("ensure user indexes: %v", err)
	}
	if err := chatmodel.EnsureIndexes(idxCtx, db); err != nil {
		log.Fatalf("ensure message indexes: %v", err)
	}
	if err := att.EnsureIndexes(idxCtx); err != nil {
		log.Fatalf("ensure attendance indexes: %v", err)
	}
	if err := leaves.EnsureIndexes(idxCtx); err != nil {
		log.Fatalf("ensure leave indexes: %v", err)
	}

	// 网关的握手校验：签名有效 + 未被注销
	verify := func(token string) (*security.AuthClaims, error) {
		claims, err := security.Verify(global.JWTOptions(), token)
		if err != nil {
			return nil, err
		}
		if claims.ID != "" {
			revoked, err := redisx.IsTokenRevoked(context.Background(), claims.ID)
			if err != nil {
				return nil, err
			}
			if revoked {
				return nil, security.ErrRevoked
			}
		}
		return claims, nil
	}

	dir := gate.NewDirectory()
	gw := gate.NewServer(dir, msgs, users, verify)

	uh := userh.NewHandler(users)
	ch := chath.NewHandler(msgs, users, dir)
	ah := attendance.NewHandler(att, users)
	lh := leave.NewHandler(leaves, users)

	// 部署探活用的 gRPC 健康服务
	safe.SafeGo(func() {
		lis, err := net.Listen("tcp", cfg.GrpcAddr)
		if err != nil {
			log.Fatalf("gRPC listen failed: %v", err)
		}
		gs := grpc.NewServer()
		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(gs, healthServer)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		logger.Infof("[gRPC] Listening on %s", cfg.GrpcAddr)
		if err := gs.Serve(lis); err != nil {
			log.Fatalf("gRPC server failed: %v", err)
		}
	})

	r := gin.New()
	r.Use(gin.Recovery())
	mid.Global().Add(mid.Cors())
	r.Use(mid.Global().Use())

	// WebSocket 入口，e.g. ws://host/chat?token=xxx
	r.GET("/chat", gw.HandleWS)

	api := r.Group("/api")

	mid.POST(api, "/auth/login", uh.Login, mid.RouteOpt{})
	mid.POST(api, "/auth/logout", uh.Logout, mid.RouteOpt{IsAuth: true})
	mid.GET(api, "/auth/me", uh.Me, mid.RouteOpt{IsAuth: true})

	adminOnly := mid.RouteOpt{IsAuth: true, Roles: []string{"admin"}}
	adminOrManager := mid.RouteOpt{IsAuth: true, Roles: []string{"admin", "manager"}}
	authed := mid.RouteOpt{IsAuth: true}

	mid.POST(api, "/users", uh.Create, adminOrManager)
	mid.GET(api, "/users", uh.List, adminOrManager)
	mid.GET(api, "/users/me", uh.Me, authed)
	mid.GET(api, "/users/:id", uh.Get, authed)
	mid.PATCH(api, "/users/:id", uh.Update, adminOnly)
	mid.DELETE(api, "/users/:id", uh.Delete, adminOnly)

	mid.GET(api, "/chat/messages", ch.List, authed)
	mid.POST(api, "/chat/messages", ch.Send, authed)
	mid.PATCH(api, "/chat/messages/:id/read", ch.MarkRead, authed)
	mid.PATCH(api, "/chat/messages/read-all", ch.ReadAll, authed)
	mid.GET(api, "/chat/conversations", ch.Conversations, authed)

	mid.POST(api, "/attendance/check-in", ah.CheckIn, authed)
	mid.POST(api, "/attendance/check-out", ah.CheckOut, authed)
	mid.GET(api, "/attendance", ah.List, authed)
	mid.GET(api, "/attendance/summary", ah.Summary, authed)
	mid.POST(api, "/attendance", ah.Create, adminOrManager)
	mid.PATCH(api, "/attendance/:id", ah.Update, adminOrManager)
	mid.DELETE(api, "/attendance/:id", ah.Delete, adminOnly)

	mid.POST(api, "/leaves", lh.Create, authed)
	mid.GET(api, "/leaves", lh.List, authed)
	mid.PATCH(api, "/leaves/:id", lh.Decide, adminOrManager)
	mid.DELETE(api, "/leaves/:id", lh.Delete, authed)

	logger.Infof("[HTTP] Listening on %s", cfg.HTTPAddr)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
